package types

import (
	"math/big"
	"time"
)

// PendingTransfer is the handle returned once a transfer has been broadcast.
type PendingTransfer struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	Token       string    `json:"token"`
	Amount      *big.Int  `json:"amount"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// TransferReceipt reports how a broadcast transfer ended up on chain.
type TransferReceipt struct {
	Hash        string `json:"hash"`
	Confirmed   bool   `json:"confirmed"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
	Err         error  `json:"-"`
}
