package currency

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
)

// =============================================================================
// RATE RESOLUTION POLICY - override > user date > latest
// =============================================================================

// maxSaneRate is the sanity ceiling for manual overrides. Adjust per
// deployment if the secondary currency devalues past it.
var maxSaneRate = decimal.NewFromInt(1000)

// PolicyInputs are the wizard-level knobs for display-time conversion.
type PolicyInputs struct {
	// OverrideRate, when positive, wins over everything.
	OverrideRate *decimal.Decimal

	// RateDate, when set, selects the stored rate effective on that date.
	RateDate *engine.Date
}

// Resolution is a resolved display rate and its provenance label.
type Resolution struct {
	Rate   decimal.Decimal
	Source string
}

// Resolve picks the effective display rate:
//
//  1. positive override        -> "manual override"
//  2. user-selected rate date  -> "rate of <date>"
//  3. latest stored rate       -> "rate of <latest date>"
//
// Interest accrual never consults this policy.
func Resolve(ctx context.Context, store RateStore, secondary string, in PolicyInputs) (Resolution, error) {
	if in.OverrideRate != nil {
		r := *in.OverrideRate
		if !r.IsPositive() || r.GreaterThan(maxSaneRate) {
			return Resolution{}, &engine.InvalidRateError{Rate: r}
		}
		return Resolution{Rate: r, Source: "manual override"}, nil
	}

	if in.RateDate != nil {
		rate, err := store.RateOn(ctx, secondary, *in.RateDate)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Rate: rate, Source: fmt.Sprintf("rate of %s", *in.RateDate)}, nil
	}

	latest, err := store.LatestRate(ctx, secondary)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Rate: latest.Value, Source: fmt.Sprintf("rate of %s", latest.Date)}, nil
}
