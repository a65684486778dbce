// Package history keeps the device-local log of payments as a single JSON
// collection, newest first.
package history

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/storage"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

const idSuffixLength = 9

// Store owns the persisted payment collection.
type Store struct {
	mu sync.Mutex

	kv         storage.KV
	key        string
	maxRecords int
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithMaxRecords(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRecords = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		key:        types.DefaultHistoryKey,
		maxRecords: types.DefaultMaxHistoryRecords,
		logger:     logger.NoopLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append assigns an id, stores rec at the front of the collection and drops
// the oldest entries beyond the retention cap.
func (s *Store) Append(rec types.PaymentRecord) (types.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return types.PaymentRecord{}, err
	}

	now := s.now()
	rec.ID = newID(now)
	if rec.Timestamp == 0 {
		rec.Timestamp = now.UnixMilli()
	}
	if rec.Status == "" {
		rec.Status = types.StatusSuccess
	}

	records = append([]types.PaymentRecord{rec}, records...)
	if len(records) > s.maxRecords {
		records = records[:s.maxRecords]
	}

	if err := s.save(records); err != nil {
		return types.PaymentRecord{}, err
	}

	s.logger.Debug("payment recorded", map[string]any{"id": rec.ID, "tx": rec.TransactionHash})
	return rec, nil
}

// List returns the records matching filter. Read failures yield an empty list.
func (s *Store) List(filter Filter) []types.PaymentRecord {
	s.mu.Lock()
	records, err := s.load()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("history read failed", map[string]any{"error": err})
		return []types.PaymentRecord{}
	}

	return filter.Apply(records, s.now())
}

// Get returns the record with id.
func (s *Store) Get(id string) (types.PaymentRecord, bool) {
	for _, r := range s.List(Filter{}) {
		if r.ID == id {
			return r, true
		}
	}
	return types.PaymentRecord{}, false
}

// UpdateMemo replaces the memo of an existing record. It reports false when
// no record has the id.
func (s *Store) UpdateMemo(id, memo string) (bool, error) {
	return s.mutate(func(records []types.PaymentRecord) ([]types.PaymentRecord, bool) {
		for i := range records {
			if records[i].ID == id {
				records[i].Memo = memo
				return records, true
			}
		}
		return records, false
	})
}

// Delete removes a record. It reports false when no record has the id.
func (s *Store) Delete(id string) (bool, error) {
	return s.mutate(func(records []types.PaymentRecord) ([]types.PaymentRecord, bool) {
		for i := range records {
			if records[i].ID == id {
				return append(records[:i], records[i+1:]...), true
			}
		}
		return records, false
	})
}

// Clear removes every record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(s.key); err != nil {
		return types.WrapError(types.ErrHistoryPersistence, err, "clear history")
	}
	return nil
}

// Export serializes the full collection.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	records, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return utils.SerializePaymentRecords(records)
}

// Import replaces the collection with a previously exported snapshot. A
// malformed snapshot leaves the current collection untouched.
func (s *Store) Import(data []byte) error {
	records, err := utils.ParsePaymentRecords(data)
	if err != nil {
		return err
	}
	if len(records) > s.maxRecords {
		records = records[:s.maxRecords]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(records)
}

func (s *Store) mutate(fn func([]types.PaymentRecord) ([]types.PaymentRecord, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}

	records, changed := fn(records)
	if !changed {
		return false, nil
	}
	if err := s.save(records); err != nil {
		return false, err
	}
	return true, nil
}

// load reads the collection. A missing key is an empty history; a corrupt
// blob is logged and treated as empty.
func (s *Store) load() ([]types.PaymentRecord, error) {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		return nil, types.WrapError(types.ErrHistoryPersistence, err, "read history")
	}
	if !ok || raw == "" {
		return []types.PaymentRecord{}, nil
	}

	var records []types.PaymentRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("history blob is corrupt, starting empty", map[string]any{"error": err})
		return []types.PaymentRecord{}, nil
	}
	return records, nil
}

func (s *Store) save(records []types.PaymentRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return types.WrapError(types.ErrHistoryPersistence, err, "encode history")
	}
	if err := s.kv.Set(s.key, string(data)); err != nil {
		return types.WrapError(types.ErrHistoryPersistence, err, "write history")
	}
	return nil
}

// newID combines the save time with a random base36 suffix.
func newID(now time.Time) string {
	id := uuid.New()
	suffix := new(big.Int).SetBytes(id[:]).Text(36)
	suffix = strings.Repeat("0", max(0, idSuffixLength-len(suffix))) + suffix
	return fmt.Sprintf("%s-%s", strconv.FormatInt(now.UnixMilli(), 10), suffix[:idSuffixLength])
}
