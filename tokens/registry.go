// Package tokens describes the JPYC contract deployments the payment flow
// can read from and transfer with.
package tokens

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

// Sepolia deployments.
const (
	SepoliaOfficialAddress  = "0x431D5dfF03120AFA4bDf332c61A6e1766eF37BDB"
	SepoliaCommunityAddress = "0xd3eF95d29A198868241FE374A999fc25F6152253"
)

// Descriptor identifies one deployed token contract and its interface.
type Descriptor struct {
	Label            types.TokenLabel
	Name             string
	Symbol           string
	ContractAddress  common.Address
	FallbackDecimals uint8
	ABI              abi.ABI
}

// Address returns the checksummed contract address.
func (d Descriptor) Address() string {
	return d.ContractAddress.Hex()
}

// Registry is the immutable set of known token descriptors.
type Registry struct {
	tokens       []Descriptor
	byLabel      map[types.TokenLabel]int
	defaultLabel types.TokenLabel
}

// NewRegistry builds a registry. The first descriptor is the default unless
// defaultLabel names another one.
func NewRegistry(defaultLabel types.TokenLabel, descriptors ...Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, types.NewError(types.ErrConfigError, "token registry needs at least one descriptor")
	}

	r := &Registry{
		tokens:  make([]Descriptor, 0, len(descriptors)),
		byLabel: make(map[types.TokenLabel]int, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Label == "" {
			return nil, types.NewError(types.ErrConfigError, "token %s has no label", d.ContractAddress.Hex())
		}
		if _, dup := r.byLabel[d.Label]; dup {
			return nil, types.NewError(types.ErrConfigError, "duplicate token label %q", d.Label)
		}
		if d.ContractAddress == (common.Address{}) {
			return nil, types.NewError(types.ErrConfigError, "token %q has no contract address", d.Label)
		}
		if d.FallbackDecimals == 0 {
			d.FallbackDecimals = types.DefaultTokenDecimals
		}
		if len(d.ABI.Methods) == 0 {
			d.ABI = ERC20ABI()
		}
		r.byLabel[d.Label] = len(r.tokens)
		r.tokens = append(r.tokens, d)
	}

	r.defaultLabel = r.tokens[0].Label
	if defaultLabel != "" {
		if _, ok := r.byLabel[defaultLabel]; !ok {
			return nil, types.NewError(types.ErrConfigError, "default token %q is not registered", defaultLabel)
		}
		r.defaultLabel = defaultLabel
	}

	return r, nil
}

// DefaultRegistry returns the Sepolia official and community JPYC deployments.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(types.TokenOfficial,
		Descriptor{
			Label:           types.TokenOfficial,
			Name:            "JPY Coin",
			Symbol:          "JPYC",
			ContractAddress: common.HexToAddress(utils.MustNormalizeAddress(SepoliaOfficialAddress)),
		},
		Descriptor{
			Label:           types.TokenCommunity,
			Name:            "JPY Coin (community)",
			Symbol:          "JPYC",
			ContractAddress: common.HexToAddress(utils.MustNormalizeAddress(SepoliaCommunityAddress)),
		},
	)
	if err != nil {
		panic(fmt.Sprintf("default token registry: %v", err))
	}
	return r
}

// Get returns the descriptor for label.
func (r *Registry) Get(label types.TokenLabel) (Descriptor, error) {
	i, ok := r.byLabel[label]
	if !ok {
		return Descriptor{}, types.NewError(types.ErrUnknownToken, "unknown token %q", label)
	}
	return r.tokens[i], nil
}

// Default returns the descriptor selected when the caller expresses no preference.
func (r *Registry) Default() Descriptor {
	return r.tokens[r.byLabel[r.defaultLabel]]
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// Lookup finds the descriptor deployed at address.
func (r *Registry) Lookup(address string) (Descriptor, bool) {
	addr, err := utils.NormalizeAddress(address)
	if err != nil {
		return Descriptor{}, false
	}
	for _, d := range r.tokens {
		if d.ContractAddress.Hex() == addr {
			return d, true
		}
	}
	return Descriptor{}, false
}
