package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/jpycpay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct validates a struct using its `validate` tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ParsePaymentRecords parses and validates a serialized history snapshot.
// The snapshot must be a JSON array of well-formed records.
func ParsePaymentRecords(data []byte) ([]types.PaymentRecord, error) {
	var records []types.PaymentRecord

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, types.WrapError(types.ErrHistoryPersistence, err, "failed to parse payment records")
	}
	if records == nil {
		return nil, types.NewError(types.ErrHistoryPersistence, "payment records must be an array")
	}

	seen := make(map[string]struct{}, len(records))
	for i := range records {
		if err := validate.Struct(&records[i]); err != nil {
			return nil, types.WrapError(types.ErrHistoryPersistence, err, "record %d failed validation", i)
		}
		if _, dup := seen[records[i].ID]; dup {
			return nil, types.NewError(types.ErrHistoryPersistence, "duplicate record id %q", records[i].ID)
		}
		seen[records[i].ID] = struct{}{}
	}

	return records, nil
}

// SerializePaymentRecords converts records to indented JSON
func SerializePaymentRecords(records []types.PaymentRecord) ([]byte, error) {
	if records == nil {
		records = []types.PaymentRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize payment records: %w", err)
	}
	return data, nil
}
