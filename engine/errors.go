/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All engine error kinds in one place. Domain packages (payroll, liquidation,
  currency) wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors - rejected at the boundary before any work happens
     (InvalidRate, CompensationMismatch)
  2. Computation errors - abort the owning payslip only (RuleEvalError,
     RateUnavailable); a batch continues with the next item
  3. Configuration errors - the ruleset itself is broken (InvariantViolation);
     fatal, nothing can be computed

USAGE:
  Callers branch with errors.Is:

    if errors.Is(err, engine.ErrRateUnavailable) {
        // no usable historical rate
    }
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateUnavailable is returned when no exchange rate exists at or
	// before the requested date and the fallback policy disallows the
	// earliest record.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrInvalidRate is returned when a manual override rate is out of the
	// sane range. Rejected at the wizard boundary.
	ErrInvalidRate = errors.New("invalid exchange rate")

	// ErrCompensationMismatch is returned when a contract write violates the
	// wage invariant. No partial write happens.
	ErrCompensationMismatch = errors.New("compensation breakdown does not match wage")

	// ErrRuleEval is returned when a rule's condition or amount expression
	// fails. The owning payslip is aborted.
	ErrRuleEval = errors.New("salary rule evaluation failed")

	// ErrInvariantViolation indicates a misconfigured ruleset (missing gross,
	// duplicate net, unknown identifier). Fatal.
	ErrInvariantViolation = errors.New("ruleset invariant violation")

	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrPayslipNotFound is returned when a referenced payslip doesn't exist.
	ErrPayslipNotFound = errors.New("payslip not found")

	// ErrPayslipImmutable is returned on any attempt to rewrite the lines of
	// a done payslip. Only metadata flags may change after done.
	ErrPayslipImmutable = errors.New("payslip is done and immutable")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrRulesetMismatch is returned when an operation requires a payslip of
	// a different kind, e.g. an interest schedule on a bi-weekly payslip.
	ErrRulesetMismatch = errors.New("operation does not apply to this payslip kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RateUnavailableError reports the currency and date that had no usable rate.
type RateUnavailableError struct {
	Currency string
	Date     Date
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("no %s rate usable for %s", e.Currency, e.Date)
}

func (e *RateUnavailableError) Unwrap() error { return ErrRateUnavailable }

// InvalidRateError reports an override rate outside the sane range.
type InvalidRateError struct {
	Rate decimal.Decimal
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("override rate %s out of range (0, 1000]", e.Rate)
}

func (e *InvalidRateError) Unwrap() error { return ErrInvalidRate }

// CompensationMismatchError reports the delta between the declared wage and
// the sum of the four compensation components.
type CompensationMismatchError struct {
	ContractID string
	Wage       decimal.Decimal
	Components decimal.Decimal
}

func (e *CompensationMismatchError) Error() string {
	delta := e.Wage.Sub(e.Components)
	return fmt.Sprintf("contract %s: wage %s != components %s (delta %s)",
		e.ContractID, e.Wage, e.Components, delta)
}

func (e *CompensationMismatchError) Unwrap() error { return ErrCompensationMismatch }

// Delta returns wage minus component sum.
func (e *CompensationMismatchError) Delta() decimal.Decimal {
	return e.Wage.Sub(e.Components)
}

// RuleEvalError preserves the originating rule code and the chained cause,
// reported to the user verbatim.
type RuleEvalError struct {
	Code  string
	Cause error
}

func (e *RuleEvalError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Code, e.Cause)
}

func (e *RuleEvalError) Unwrap() error { return ErrRuleEval }

// InvariantViolationError describes a broken ruleset.
type InvariantViolationError struct {
	Ruleset string
	Detail  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("ruleset %s: %s", e.Ruleset, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true when the error is due to invalid caller input
// and should surface as an immediate fault to the user interface.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrCompensationMismatch) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrRulesetMismatch) ||
		errors.Is(err, ErrPayslipImmutable)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) || errors.Is(err, ErrPayslipNotFound)
}
