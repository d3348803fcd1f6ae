/*
interest.go - Accrual interest on prestaciones sociales

PURPOSE:
  Interest on prestaciones accrues month by month from the original hire
  date to the separation date. Each month's interest is converted at THAT
  month's historical exchange rate and the secondary-currency amounts are
  accumulated directly. There is no single-rate conversion at the end:
  the reported total IS the running secondary sum.

ACCRUAL vs SPOT:
  Two upstream reports once diverged because one converted the interest
  total at a spot rate while the other walked the months. This calculator
  is the single canonical definition; the projector substitutes its result
  for the interest line and the display-rate override never touches it.

FORMULA (constant-flow approximation):
  total_interest = prestaciones_total * annual_rate * (service_months/12)
  per_month      = total_interest / service_months

  The statutory 13% on the average balance equals 6.5% on the full balance
  under the average-balance = total/2 reading; the even monthly spread is
  exactly what the system of record disburses.
*/
package liquidation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/currency"
	"github.com/nominave/payroll-engine/engine"
)

// =============================================================================
// SCHEDULE
// =============================================================================

// ScheduleRow is one month of the interest breakdown. Monetary columns are
// in the schedule's display currency.
type ScheduleRow struct {
	MonthIndex int         `json:"month_index"`
	MonthDate  engine.Date `json:"month_date"`
	MonthLabel string      `json:"month_label"` // e.g. "Sep-23"

	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	IntegralDaily decimal.Decimal `json:"integral_daily"`

	// Prestaciones deposit cadence: 15 days on each completed quarter.
	DepositDays             int             `json:"deposit_days"`
	DepositAmount           decimal.Decimal `json:"deposit_amount"`
	AccumulatedPrestaciones decimal.Decimal `json:"accumulated_prestaciones"`

	ExchangeRate        decimal.Decimal `json:"exchange_rate"`
	MonthInterest       decimal.Decimal `json:"month_interest"`
	AccumulatedInterest decimal.Decimal `json:"accumulated_interest"`
}

// Schedule is the full month-by-month breakdown plus its total. The total
// equals the sum of MonthInterest to the last cent.
type Schedule struct {
	Currency string          `json:"currency"`
	Rows     []ScheduleRow   `json:"rows"`
	Total    decimal.Decimal `json:"total"`

	// TotalPrimary is the interest total in the primary currency,
	// independent of the display currency.
	TotalPrimary decimal.Decimal `json:"total_primary"`
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Input carries the figures the calculator needs; all monetary values in
// the primary currency.
type Input struct {
	OriginalHireDate  engine.Date
	DateTo            engine.Date
	PrestacionesTotal decimal.Decimal
	IntegralDaily     decimal.Decimal
	DailySalary       decimal.Decimal
	DisplayCurrency   string
}

// Calculator accumulates prestaciones interest using historical rates.
// It deliberately ignores the rate resolution policy: overrides and
// user-selected dates never alter interest figures.
type Calculator struct {
	Rates           currency.RateStore
	AnnualRate      decimal.Decimal // effective annual rate on full balance
	PrimaryCurrency string
}

// Accrued walks [OriginalHireDate, DateTo] in calendar-month steps and
// returns the schedule. Walking stops when the next step would exceed
// DateTo, so the row count equals the number of full month steps strictly
// fitting the interval.
func (c *Calculator) Accrued(ctx context.Context, in Input) (*Schedule, error) {
	sched := &Schedule{Currency: in.DisplayCurrency}
	if in.DateTo.Before(in.OriginalHireDate) {
		return sched, nil
	}

	serviceMonths := engine.MonthsBetween(in.OriginalHireDate, in.DateTo)
	if !serviceMonths.IsPositive() {
		return sched, nil
	}

	twelve := decimal.NewFromInt(12)
	totalPrimary := in.PrestacionesTotal.Mul(c.AnnualRate).Mul(serviceMonths).Div(twelve)
	perMonth := totalPrimary.Div(serviceMonths)
	sched.TotalPrimary = engine.Round2(totalPrimary)

	inPrimary := in.DisplayCurrency == c.PrimaryCurrency
	monthlyIncome := in.DailySalary.Mul(decimal.NewFromInt(30))
	quarterDeposit := in.IntegralDaily.Mul(decimal.NewFromInt(15))

	accumPrestPrimary := decimal.Zero
	running := decimal.Zero
	current := in.OriginalHireDate
	for monthIdx := 1; ; monthIdx++ {
		rate := decimal.NewFromInt(1)
		if !inPrimary {
			r, err := c.Rates.RateOn(ctx, in.DisplayCurrency, current)
			if err != nil {
				return nil, err
			}
			rate = r
		}

		depositDays := 0
		depositAmount := decimal.Zero
		if monthIdx >= 3 && (monthIdx-3)%3 == 0 {
			depositDays = 15
			depositAmount = quarterDeposit
			accumPrestPrimary = accumPrestPrimary.Add(quarterDeposit)
		}

		// Rounded per month and accumulated rounded, so the schedule sum
		// equals the reported total exactly.
		monthInterest := engine.Round2(perMonth.Mul(rate))
		running = running.Add(monthInterest)

		sched.Rows = append(sched.Rows, ScheduleRow{
			MonthIndex:              monthIdx,
			MonthDate:               current,
			MonthLabel:              current.MonthLabel(),
			MonthlyIncome:           engine.Round2(monthlyIncome.Mul(rate)),
			IntegralDaily:           engine.Round2(in.IntegralDaily.Mul(rate)),
			DepositDays:             depositDays,
			DepositAmount:           engine.Round2(depositAmount.Mul(rate)),
			AccumulatedPrestaciones: engine.Round2(accumPrestPrimary.Mul(rate)),
			ExchangeRate:            rate,
			MonthInterest:           monthInterest,
			AccumulatedInterest:     running,
		})

		next := current.AddMonths(1)
		if next.After(in.DateTo) {
			break
		}
		current = next
	}

	if inPrimary {
		sched.Total = sched.TotalPrimary
	} else {
		sched.Total = running
	}
	return sched, nil
}
