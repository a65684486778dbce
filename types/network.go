package types

import (
	"fmt"
	"strings"
)

// Network represents the configured blockchain network
type Network string

const (
	NetworkSepolia Network = "sepolia"
)

var networkChainIDs = map[Network]int64{
	NetworkSepolia: 11155111,
}

var networkLabels = map[Network]string{
	NetworkSepolia: "Sepolia testnet",
}

var networkRPCs = map[Network]string{
	NetworkSepolia: "https://ethereum-sepolia-rpc.publicnode.com",
}

var networkExplorers = map[Network]string{
	NetworkSepolia: "https://sepolia.etherscan.io",
}

func (n Network) String() string {
	return string(n)
}

// IsSupported reports whether the network is known to this library.
func (n Network) IsSupported() bool {
	_, ok := networkChainIDs[n]
	return ok
}

// ChainID returns the EIP-155 chain id, or 0 for unknown networks.
func (n Network) ChainID() int64 {
	return networkChainIDs[n]
}

// Label is the human-readable name stored on history records.
func (n Network) Label() string {
	if l, ok := networkLabels[n]; ok {
		return l
	}
	return n.String()
}

// DefaultRPCUrl is the public endpoint used when none is configured.
func (n Network) DefaultRPCUrl() string {
	return networkRPCs[n]
}

// ExplorerTxURL returns the block explorer link for a transaction hash.
func (n Network) ExplorerTxURL(hash string) string {
	base, ok := networkExplorers[n]
	if !ok || hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", base, hash)
}

// ParseNetwork maps a config string to a Network.
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	if !n.IsSupported() {
		return "", NewError(ErrConfigError, "unsupported network: %s", s)
	}
	return n, nil
}
