/*
contract.go - Employee contract: compensation breakdown and fiscal metadata

PURPOSE:
  The contract holds the four-component monthly compensation (primary
  currency) and the fiscal parameters the rulesets read. Compensation is
  mutated only through UpdateCompensation, which enforces the wage
  invariant and appends one audit line per changed field.

WAGE INVARIANT:
  wage = salary_base + bonus_regular + extra_bonus + cesta_ticket
  (tolerance +/- 0.10, spreadsheet imports carry rounding dust)

AUDIT TRAIL:
  Imports from the payroll spreadsheet record provenance per field:
  "From payroll sheet <tab>, <cell> (<veb> VEB) @ <rate> VEB/USD".
  The trail makes every USD figure verifiable against the sheet of record.
*/
package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
)

// wageTolerance absorbs spreadsheet rounding on imported breakdowns.
var wageTolerance = decimal.NewFromFloat(0.10)

// =============================================================================
// CONTRACT
// =============================================================================

type Contract struct {
	ID          string `json:"id"`
	EmployeeRef string `json:"employee_ref"`

	// DateStart is the current employment period start (company liability).
	DateStart engine.Date `json:"date_start"`

	// Compensation, monthly, primary currency.
	Wage         decimal.Decimal `json:"wage"`
	SalaryBase   decimal.Decimal `json:"salary_base"`   // subject to deductions
	BonusRegular decimal.Decimal `json:"bonus_regular"` // exempt
	ExtraBonus   decimal.Decimal `json:"extra_bonus"`   // exempt
	CestaTicket  decimal.Decimal `json:"cesta_ticket"`  // exempt food allowance

	// Fiscal metadata.
	ARIRate decimal.Decimal `json:"ari_rate"` // percent, reviewed quarterly

	// OriginalHireDate anchors seniority continuity across rehires; it may
	// precede DateStart.
	OriginalHireDate engine.Date `json:"original_hire_date"`

	// PreviousLiquidationDate marks seniority already settled by a prior
	// liquidation; quarters deposited before it are not owed again.
	PreviousLiquidationDate *engine.Date `json:"previous_liquidation_date,omitempty"`

	PrestacionesResetDate *engine.Date    `json:"prestaciones_reset_date,omitempty"`
	VacationPrepaid       decimal.Decimal `json:"vacation_prepaid"`

	// AuditNotes is the append-only provenance trail for compensation writes.
	AuditNotes []AuditNote `json:"audit_notes,omitempty"`
}

// AuditNote is one audit-trail line.
type AuditNote struct {
	At   time.Time `json:"at"`
	Note string    `json:"note"`
}

// SeniorityBasis returns the date seniority is measured from: the original
// hire date when recorded, otherwise the contract start.
func (c *Contract) SeniorityBasis() engine.Date {
	if !c.OriginalHireDate.IsZero() {
		return c.OriginalHireDate
	}
	return c.DateStart
}

// ComponentSum returns the sum of the four compensation components.
func (c *Contract) ComponentSum() decimal.Decimal {
	return c.SalaryBase.Add(c.BonusRegular).Add(c.ExtraBonus).Add(c.CestaTicket)
}

// ValidateWage checks the wage invariant.
func (c *Contract) ValidateWage() error {
	if engine.WithinTolerance(c.Wage, c.ComponentSum(), wageTolerance) {
		return nil
	}
	return &engine.CompensationMismatchError{
		ContractID: c.ID,
		Wage:       c.Wage,
		Components: c.ComponentSum(),
	}
}

// =============================================================================
// AUDITED COMPENSATION WRITES
// =============================================================================

// CompensationUpdate carries new values for the mutable compensation
// fields. Nil pointers leave fields untouched.
type CompensationUpdate struct {
	SalaryBase   *decimal.Decimal
	BonusRegular *decimal.Decimal
	ExtraBonus   *decimal.Decimal
	CestaTicket  *decimal.Decimal
	ARIRate      *decimal.Decimal
}

// Provenance identifies the spreadsheet cell a value was imported from.
type Provenance struct {
	SheetTab  string
	Cell      string
	VEBAmount decimal.Decimal
	RateUsed  decimal.Decimal
}

// Note renders the audit-trail line format of the system of record.
func (p Provenance) Note() string {
	return fmt.Sprintf("From payroll sheet %s, %s (%s VEB) @ %s VEB/USD",
		p.SheetTab, p.Cell, p.VEBAmount.StringFixed(2), p.RateUsed.StringFixed(2))
}

// UpdateCompensation validates and applies vals, appending one audit line
// per changed field. The wage is recomputed from the new components. On a
// wage-invariant violation nothing is written.
func (c *Contract) UpdateCompensation(vals CompensationUpdate, audit string, now time.Time) error {
	next := *c
	if vals.SalaryBase != nil {
		next.SalaryBase = *vals.SalaryBase
	}
	if vals.BonusRegular != nil {
		next.BonusRegular = *vals.BonusRegular
	}
	if vals.ExtraBonus != nil {
		next.ExtraBonus = *vals.ExtraBonus
	}
	if vals.CestaTicket != nil {
		next.CestaTicket = *vals.CestaTicket
	}
	if vals.ARIRate != nil {
		next.ARIRate = *vals.ARIRate
	}
	next.Wage = next.ComponentSum()
	if err := next.ValidateWage(); err != nil {
		return err
	}

	appendChange := func(field string, old, new decimal.Decimal) {
		if old.Equal(new) {
			return
		}
		note := fmt.Sprintf("%s: %s -> %s", field, old.StringFixed(2), new.StringFixed(2))
		if audit != "" {
			note += " | " + audit
		}
		next.AuditNotes = append(next.AuditNotes, AuditNote{At: now, Note: note})
	}
	appendChange("salary_base", c.SalaryBase, next.SalaryBase)
	appendChange("bonus_regular", c.BonusRegular, next.BonusRegular)
	appendChange("extra_bonus", c.ExtraBonus, next.ExtraBonus)
	appendChange("cesta_ticket", c.CestaTicket, next.CestaTicket)
	appendChange("ari_rate", c.ARIRate, next.ARIRate)
	appendChange("wage", c.Wage, next.Wage)

	*c = next
	return nil
}

// ImportCompensation applies a spreadsheet import row: same semantics as
// UpdateCompensation with the provenance rendered into each audit line.
func (c *Contract) ImportCompensation(vals CompensationUpdate, prov Provenance, now time.Time) error {
	return c.UpdateCompensation(vals, prov.Note(), now)
}
