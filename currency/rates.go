/*
Package currency provides the exchange-rate store and the rate resolution
policy for bi-currency reporting.

PURPOSE:
  Stored payslip amounts are always in the primary currency (USD). Reports
  and liquidation interest need historical VEB/USD rates. This package
  answers two questions:

    1. "What was the rate of currency C on date D?"       (RateStore)
    2. "Which rate should THIS report use?"               (Resolve)

RATE SEMANTICS:
  A rate is "secondary units per one primary unit" (e.g. 234.87 VEB/USD).
  Lookup is greatest-effective-date <= query date. Dates before the first
  record fall back to the earliest record, dates after the last fall back
  to the latest. That mirrors how the upstream accounting system converts.

RESOLUTION POLICY (Resolve):
  override rate > user-selected date > latest stored rate, in that order.
  The latest-rate default is deliberate: liquidation amounts are paid at
  the disbursement date, not the accrual date. Interest accrual ignores
  this policy entirely and always walks historical dates (see liquidation
  package).
*/
package currency

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
)

// =============================================================================
// RATE RECORD
// =============================================================================

// Rate is one stored exchange-rate record, keyed by (currency, date).
type Rate struct {
	Currency  string          `json:"currency"`
	Date      engine.Date     `json:"date"`
	Value     decimal.Decimal `json:"value"` // secondary units per primary unit
}

// =============================================================================
// RATE STORE
// =============================================================================

// RateStore answers historical rate queries. Implementations must treat
// the store as read-only during payslip evaluation.
type RateStore interface {
	// RateOn returns the rate whose effective date is the greatest not
	// exceeding date. Falls back to the earliest stored record for dates
	// before history begins. Fails with ErrRateUnavailable only when the
	// currency has no records at all.
	RateOn(ctx context.Context, currency string, date engine.Date) (decimal.Decimal, error)

	// LatestRate returns the most recent stored record.
	LatestRate(ctx context.Context, currency string) (Rate, error)
}

// =============================================================================
// MEMORY STORE - for tests and embedded use
// =============================================================================

// MemoryStore is an in-memory RateStore. Safe for concurrent reads.
type MemoryStore struct {
	mu    sync.RWMutex
	rates map[string][]Rate // per currency, sorted by date ascending
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rates: map[string][]Rate{}}
}

// Put inserts or replaces the record for (currency, date).
func (s *MemoryStore) Put(r Rate) error {
	if !r.Value.IsPositive() {
		return fmt.Errorf("rate for %s on %s must be positive, got %s", r.Currency, r.Date, r.Value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.rates[r.Currency]
	for i, existing := range list {
		if existing.Date.Equal(r.Date) {
			list[i] = r
			return nil
		}
	}
	list = append(list, r)
	sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	s.rates[r.Currency] = list
	return nil
}

func (s *MemoryStore) RateOn(_ context.Context, currency string, date engine.Date) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.rates[currency]
	if len(list) == 0 {
		return decimal.Zero, &engine.RateUnavailableError{Currency: currency, Date: date}
	}
	// Greatest effective date <= query date.
	best := -1
	for i, r := range list {
		if r.Date.BeforeOrEqual(date) {
			best = i
		} else {
			break
		}
	}
	if best == -1 {
		// Before history begins: earliest record.
		return list[0].Value, nil
	}
	return list[best].Value, nil
}

func (s *MemoryStore) LatestRate(_ context.Context, currency string) (Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.rates[currency]
	if len(list) == 0 {
		return Rate{}, &engine.RateUnavailableError{Currency: currency, Date: engine.Today()}
	}
	return list[len(list)-1], nil
}

var _ RateStore = (*MemoryStore)(nil)
