package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jpycpay/types"
)

func TestParsePaymentRecords(t *testing.T) {
	records := []types.PaymentRecord{{
		ID:              "1700000000000-abc123xyz",
		TransactionHash: "0xdeadbeef",
		To:              "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Amount:          "100",
		Timestamp:       1700000000000,
		Memo:            "Shop",
		Status:          types.StatusSuccess,
		Network:         "Sepolia testnet",
	}}

	data, err := SerializePaymentRecords(records)
	require.NoError(t, err)

	parsed, err := ParsePaymentRecords(data)
	require.NoError(t, err)
	assert.Equal(t, records, parsed)
}

func TestParsePaymentRecordsRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"object", `{"id":"1"}`},
		{"null", `null`},
		{"missing fields", `[{"id":"1"}]`},
		{"bad status", `[{"id":"1","transactionHash":"0x1","to":"0x2","amount":"1","timestamp":1,"status":"weird","network":"n"}]`},
		{"duplicate ids", `[
			{"id":"1","transactionHash":"0x1","to":"0x2","amount":"1","timestamp":1,"status":"success","network":"n"},
			{"id":"1","transactionHash":"0x1","to":"0x2","amount":"1","timestamp":1,"status":"success","network":"n"}
		]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePaymentRecords([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, types.IsKind(err, types.ErrHistoryPersistence))
		})
	}
}

func TestParsePaymentRecordsEmptyArray(t *testing.T) {
	parsed, err := ParsePaymentRecords([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, parsed)
}
