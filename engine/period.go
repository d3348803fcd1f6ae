package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD - Payslip period math (proration, Mondays, 30-day months)
// =============================================================================

// Period is an inclusive date range covered by one payslip.
type Period struct {
	DateFrom Date `json:"date_from"`
	DateTo   Date `json:"date_to"`
}

func NewPeriod(from, to Date) Period {
	return Period{DateFrom: from, DateTo: to}
}

func (p Period) Valid() bool {
	return !p.DateFrom.IsZero() && !p.DateTo.IsZero() && p.DateFrom.BeforeOrEqual(p.DateTo)
}

// Days returns the inclusive day count of the period.
func (p Period) Days() int {
	return p.DateFrom.DaysUntil(p.DateTo) + 1
}

// ProrationFactor is days/30. Monthly contract amounts are multiplied by it
// to obtain the payslip portion. A standard bi-weekly period gives 0.5.
func (p Period) ProrationFactor() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Days())).Div(decimal.NewFromInt(30))
}

// BiMonthlyFactor is the bi-weekly partition used by bi-monthly benefit
// rules (Aguinaldos). Each half of the month pays exactly 50% of the
// monthly benefit; only unusual periods fall back to days/30.
func (p Period) BiMonthlyFactor() decimal.Decimal {
	half := decimal.NewFromFloat(0.5)
	if p.Days() <= 16 {
		return half
	}
	if p.DateFrom.Day() >= 15 {
		return half
	}
	return p.ProrationFactor()
}

func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.DateFrom) && d.BeforeOrEqual(p.DateTo)
}

func (p Period) String() string {
	return "[" + p.DateFrom.String() + ", " + p.DateTo.String() + "]"
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// MondaysInRange counts Mondays in [from, to] inclusive. Weekly benefit
// rules pay per Monday worked.
func MondaysInRange(from, to Date) int {
	if to.Before(from) {
		return 0
	}
	count := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if d.Weekday() == time.Monday {
			count++
		}
	}
	return count
}

// MondaysInMonth counts Mondays in the calendar month containing d.
func MondaysInMonth(d Date) int {
	first := NewDate(d.Year(), d.Month(), 1)
	last := first.AddMonths(1).AddDays(-1)
	return MondaysInRange(first, last)
}

// MonthsBetween returns (b-a)/30 as a fractional month count. Seniority
// math uses 30-day months, not calendar months.
func MonthsBetween(a, b Date) decimal.Decimal {
	days := a.DaysUntil(b)
	return decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(30))
}

// =============================================================================
// FISCAL YEAR - September 1 through August 31 by default
// =============================================================================

// FiscalYearOf returns the fiscal year period containing date, for a fiscal
// year starting on the first day of startMonth.
func FiscalYearOf(date Date, startMonth time.Month) Period {
	start := NewDate(date.Year(), startMonth, 1)
	if date.Before(start) {
		start = NewDate(date.Year()-1, startMonth, 1)
	}
	end := start.AddYears(1).AddDays(-1)
	return Period{DateFrom: start, DateTo: end}
}
