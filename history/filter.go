package history

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
)

type Period string

const (
	PeriodAll   Period = "all"
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortOldest     SortKey = "oldest"
	SortAmountDesc SortKey = "amount_desc"
	SortAmountAsc  SortKey = "amount_asc"
)

// Filter selects and orders history records. The zero value returns all
// records in stored order.
type Filter struct {
	Period Period
	Search string
	Sort   SortKey
}

// Since returns the inclusive lower time bound for the period, relative to now.
func (p Period) Since(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case PeriodWeek:
		return now.AddDate(0, 0, -7), true
	case PeriodMonth:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

// Apply returns a new slice with the matching records.
func (f Filter) Apply(records []types.PaymentRecord, now time.Time) []types.PaymentRecord {
	since, bounded := f.Period.Since(now)
	query := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]types.PaymentRecord, 0, len(records))
	for _, r := range records {
		if bounded && r.Time().Before(since) {
			continue
		}
		if query != "" && !matches(r, query) {
			continue
		}
		out = append(out, r)
	}

	switch f.Sort {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	case SortAmountDesc:
		sort.SliceStable(out, func(i, j int) bool { return utils.CompareAmounts(out[i].Amount, out[j].Amount) > 0 })
	case SortAmountAsc:
		sort.SliceStable(out, func(i, j int) bool { return utils.CompareAmounts(out[i].Amount, out[j].Amount) < 0 })
	}

	return out
}

func matches(r types.PaymentRecord, query string) bool {
	return strings.Contains(strings.ToLower(r.Memo), query) ||
		strings.Contains(strings.ToLower(r.Amount), query) ||
		strings.Contains(strings.ToLower(r.To), query)
}

// Summary aggregates a filtered view of the history.
type Summary struct {
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
	Recipients int             `json:"recipients"`
	Latest     *time.Time      `json:"latest,omitempty"`
}

// Summary aggregates the successful records matching filter.
func (s *Store) Summary(filter Filter) Summary {
	var sum Summary
	seen := make(map[string]struct{})

	for _, r := range s.List(filter) {
		if r.Status != types.StatusSuccess {
			continue
		}
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			continue
		}
		sum.Count++
		sum.Total = sum.Total.Add(amount)
		seen[strings.ToLower(r.To)] = struct{}{}

		t := r.Time()
		if sum.Latest == nil || t.After(*sum.Latest) {
			sum.Latest = &t
		}
	}

	sum.Recipients = len(seen)
	return sum
}
