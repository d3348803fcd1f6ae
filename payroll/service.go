/*
service.go - Host-facing payroll operations

PURPOSE:
  The orchestration layer between the host (API, batch jobs) and the rule
  engine. It resolves every environment scalar BEFORE evaluation — contract
  fields, proration factors, the payslip-date spot rate, the fiscal-year
  Aguinaldos budget, the accrued interest — and hands the finished payslip
  back for persistence.

OPERATIONS:
  ComputePayslip      bi-weekly payroll ruleset
  ComputeAguinaldos   bi-monthly Christmas-bonus ruleset with FY cap
  ComputeLiquidation  separation settlement incl. accrual interest
  ConfirmPayslip      computed -> done (freezes lines)
  ProjectPayslip      display-currency view (pure, interest substituted)
  InterestSchedule    month-by-month interest rows
  ComputeBatch        many contracts, per-item error summary

CONCURRENCY:
  One payslip is evaluated by one evaluator instance; shared inputs (rate
  store, contracts) are read-only during evaluation. The Aguinaldos cap
  reads only already-persisted done payslips, never in-flight batchmates,
  so batch order cannot affect results.
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nominave/payroll-engine/currency"
	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/liquidation"
	"github.com/nominave/payroll-engine/report"
)

// =============================================================================
// STORE INTERFACES - implemented by store/sqlite; memory versions in tests
// =============================================================================

type ContractStore interface {
	GetContract(ctx context.Context, id string) (*Contract, error)
	SaveContract(ctx context.Context, c *Contract) error
}

type PayslipStore interface {
	GetPayslip(ctx context.Context, id string) (*engine.Payslip, error)

	// SavePayslip persists the payslip and its lines. Rewriting the lines
	// of a done payslip fails with ErrPayslipImmutable.
	SavePayslip(ctx context.Context, p *engine.Payslip) error

	// SetPayslipState advances the state without touching lines.
	SetPayslipState(ctx context.Context, id string, state engine.State) error

	// DoneAguinaldoTotal sums the Aguinaldo lines of done payslips for the
	// contract within the fiscal year.
	DoneAguinaldoTotal(ctx context.Context, contractID string, fiscalYear engine.Period) (decimal.Decimal, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Params carries the statutory configuration the rulesets need.
type Params struct {
	PrimaryCurrency     string
	SecondaryCurrency   string
	SSORate             decimal.Decimal
	FAOVRate            decimal.Decimal
	PARORate            decimal.Decimal
	PrestacionesRate    decimal.Decimal
	SSOCeilingSecondary decimal.Decimal
	FiscalYearStart     time.Month
}

type Service struct {
	params    Params
	contracts ContractStore
	payslips  PayslipStore
	rates     currency.RateStore
	log       *logrus.Logger

	payrollRS    *engine.Ruleset
	aguinaldosRS *engine.Ruleset
	liquidRS     *engine.Ruleset
	interest     *liquidation.Calculator
	eval         engine.Evaluator
}

// NewService validates the built-in rulesets once and returns the service.
// A validation failure is a programming error and panics at startup.
func NewService(params Params, contracts ContractStore, payslips PayslipStore,
	rates currency.RateStore, log *logrus.Logger) *Service {

	if log == nil {
		log = logrus.New()
	}
	s := &Service{
		params:       params,
		contracts:    contracts,
		payslips:     payslips,
		rates:        rates,
		log:          log,
		payrollRS:    PayrollRulesetV2(),
		aguinaldosRS: AguinaldosRulesetV2(),
		liquidRS:     liquidation.RulesetV2(),
		interest: &liquidation.Calculator{
			Rates:           rates,
			AnnualRate:      params.PrestacionesRate,
			PrimaryCurrency: params.PrimaryCurrency,
		},
	}

	base := BaseVars()
	for _, rs := range []*engine.Ruleset{s.payrollRS, s.aguinaldosRS} {
		if err := rs.Validate(base); err != nil {
			panic(err)
		}
	}
	if err := s.liquidRS.Validate(liquidation.Vars()); err != nil {
		panic(err)
	}
	return s
}

// =============================================================================
// COMPUTE OPERATIONS
// =============================================================================

// ComputePayslip evaluates the bi-weekly payroll ruleset for the contract
// over the period and persists the result in the computed state.
func (s *Service) ComputePayslip(ctx context.Context, contractID string, period engine.Period) (*engine.Payslip, error) {
	return s.compute(ctx, contractID, period, s.payrollRS)
}

// ComputeAguinaldos evaluates the Christmas-bonus ruleset, clamping to the
// remaining fiscal-year budget.
func (s *Service) ComputeAguinaldos(ctx context.Context, contractID string, period engine.Period) (*engine.Payslip, error) {
	return s.compute(ctx, contractID, period, s.aguinaldosRS)
}

func (s *Service) compute(ctx context.Context, contractID string, period engine.Period, rs *engine.Ruleset) (*engine.Payslip, error) {
	if !period.Valid() {
		return nil, engine.ErrInvalidPeriod
	}
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := c.ValidateWage(); err != nil {
		return nil, err
	}

	in := periodVars(contractVars(engine.NewInputs(), c), period)
	in.Set(VarSSORate, s.params.SSORate)
	in.Set(VarFAOVRate, s.params.FAOVRate)
	in.Set(VarPARORate, s.params.PARORate)
	in.Set(VarSSOCeiling, s.params.SSOCeilingSecondary)

	// Payslip-date spot rate, for the SSO ceiling conversion.
	rateNow, err := s.rates.RateOn(ctx, s.params.SecondaryCurrency, period.DateTo)
	if err != nil {
		return nil, err
	}
	in.Set(VarRateNow, rateNow)

	// Aguinaldos budget already consumed this fiscal year: done payslips
	// only, classified by date_to.
	fy := engine.FiscalYearOf(period.DateTo, s.params.FiscalYearStart)
	paid, err := s.payslips.DoneAguinaldoTotal(ctx, contractID, fy)
	if err != nil {
		return nil, err
	}
	in.Set(VarAguinaldoPaidFY, paid)

	lines, err := s.eval.Run(rs, in)
	if err != nil {
		return nil, err
	}

	slip := &engine.Payslip{
		ID:          uuid.NewString(),
		ContractID:  c.ID,
		EmployeeRef: c.EmployeeRef,
		RulesetCode: rs.Code,
		Period:      period,
		State:       engine.StateComputed,
		Lines:       lines,
	}
	if err := slip.ValidateTotals(); err != nil {
		return nil, err
	}
	if err := s.payslips.SavePayslip(ctx, slip); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"payslip":  slip.ID,
		"contract": c.ID,
		"ruleset":  rs.Code,
		"net":      slip.Net(),
	}).Info("payslip computed")
	return slip, nil
}

// ComputeLiquidation evaluates the separation settlement. Seniority runs
// from the original hire date; the interest line carries the accrual
// calculator's primary-currency total.
func (s *Service) ComputeLiquidation(ctx context.Context, contractID string, period engine.Period) (*engine.Payslip, error) {
	if !period.Valid() {
		return nil, engine.ErrInvalidPeriod
	}
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := c.ValidateWage(); err != nil {
		return nil, err
	}

	basis := c.SeniorityBasis()
	serviceMonths := engine.MonthsBetween(basis, period.DateTo)
	paidMonths := decimal.Zero
	if c.PreviousLiquidationDate != nil {
		paidMonths = engine.MonthsBetween(basis, *c.PreviousLiquidationDate)
	}
	// Seniority years use calendar days over 365, not the 30-day month
	// convention: the progressive vacation-day table keys off real tenure.
	seniorityYears := decimal.NewFromInt(int64(basis.DaysUntil(period.DateTo))).
		Div(decimal.NewFromInt(365))

	in := contractVars(engine.NewInputs(), c)
	in.Set(liquidation.VarServiceMonths, serviceMonths)
	in.Set(liquidation.VarPaidMonths, paidMonths)
	in.Set(liquidation.VarAnnualVacDays, liquidation.AnnualVacationDays(seniorityYears))
	in.Set(liquidation.VarVacationPrepaid, c.VacationPrepaid)

	// The interest expression needs the prestaciones figure, which is
	// itself a rule output. Pre-compute it the same way the rule does.
	integralDaily := engine.Round2(c.SalaryBase.Add(c.BonusRegular).Add(c.ExtraBonus).Div(decimal.NewFromInt(30)))
	quarters := serviceMonths.Div(decimal.NewFromInt(3)).Floor().
		Sub(paidMonths.Div(decimal.NewFromInt(3)).Floor())
	prestaciones := integralDaily.Mul(decimal.NewFromInt(15)).Mul(quarters)

	sched, err := s.interest.Accrued(ctx, liquidation.Input{
		OriginalHireDate:  basis,
		DateTo:            period.DateTo,
		PrestacionesTotal: prestaciones,
		IntegralDaily:     integralDaily,
		DailySalary:       engine.Round2(c.SalaryBase.Div(decimal.NewFromInt(30))),
		DisplayCurrency:   s.params.PrimaryCurrency,
	})
	if err != nil {
		return nil, err
	}
	in.Set(liquidation.VarInterestTotal, sched.TotalPrimary)

	lines, err := s.eval.Run(s.liquidRS, in)
	if err != nil {
		return nil, err
	}

	slip := &engine.Payslip{
		ID:          uuid.NewString(),
		ContractID:  c.ID,
		EmployeeRef: c.EmployeeRef,
		RulesetCode: s.liquidRS.Code,
		Period:      period,
		State:       engine.StateComputed,
		Lines:       lines,
	}
	if err := slip.ValidateTotals(); err != nil {
		return nil, err
	}
	if err := s.payslips.SavePayslip(ctx, slip); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"payslip":  slip.ID,
		"contract": c.ID,
		"months":   serviceMonths.StringFixed(2),
		"net":      slip.Net(),
	}).Info("liquidation computed")
	return slip, nil
}

// ConfirmPayslip advances computed -> done. Done payslips count toward
// the Aguinaldos fiscal-year budget and their lines freeze.
func (s *Service) ConfirmPayslip(ctx context.Context, payslipID string) error {
	slip, err := s.payslips.GetPayslip(ctx, payslipID)
	if err != nil {
		return err
	}
	if slip.State == engine.StateDone {
		return nil
	}
	return s.payslips.SetPayslipState(ctx, payslipID, engine.StateDone)
}

// =============================================================================
// PROJECTION AND SCHEDULES
// =============================================================================

// ProjectPayslip builds the display-currency view. The interest line of a
// liquidation payslip is substituted with the accrual total and ignores
// the override.
func (s *Service) ProjectPayslip(ctx context.Context, payslipID, displayCurrency string, in currency.PolicyInputs) (*report.ProjectedView, error) {
	slip, err := s.payslips.GetPayslip(ctx, payslipID)
	if err != nil {
		return nil, err
	}

	var res currency.Resolution
	if displayCurrency == s.params.PrimaryCurrency {
		res = currency.Resolution{Rate: decimal.NewFromInt(1), Source: "primary currency"}
	} else {
		res, err = currency.Resolve(ctx, s.rates, s.params.SecondaryCurrency, in)
		if err != nil {
			return nil, err
		}
	}

	substitutions := map[string]decimal.Decimal{}
	if slip.RulesetCode == liquidation.RulesetLiquidationV2 {
		sched, err := s.interestSchedule(ctx, slip, displayCurrency)
		if err != nil {
			return nil, err
		}
		substitutions[liquidation.CodeIntereses] = sched.Total
	}

	return report.Project(slip, displayCurrency, res, substitutions), nil
}

// InterestSchedule returns the month-by-month interest rows for a
// liquidation payslip. Independent of any projection inputs.
func (s *Service) InterestSchedule(ctx context.Context, payslipID, displayCurrency string) (*liquidation.Schedule, error) {
	slip, err := s.payslips.GetPayslip(ctx, payslipID)
	if err != nil {
		return nil, err
	}
	if slip.RulesetCode != liquidation.RulesetLiquidationV2 {
		return nil, fmt.Errorf("payslip %s: interest schedule requires the liquidation ruleset: %w",
			payslipID, engine.ErrRulesetMismatch)
	}
	return s.interestSchedule(ctx, slip, displayCurrency)
}

func (s *Service) interestSchedule(ctx context.Context, slip *engine.Payslip, displayCurrency string) (*liquidation.Schedule, error) {
	c, err := s.contracts.GetContract(ctx, slip.ContractID)
	if err != nil {
		return nil, err
	}
	return s.interest.Accrued(ctx, liquidation.Input{
		OriginalHireDate:  c.SeniorityBasis(),
		DateTo:            slip.Period.DateTo,
		PrestacionesTotal: slip.LineAmount(liquidation.CodePrestaciones),
		IntegralDaily:     slip.LineAmount(liquidation.CodeIntegralDaily),
		DailySalary:       slip.LineAmount(liquidation.CodeDailySalary),
		DisplayCurrency:   displayCurrency,
	})
}

// LiquidationBreakdown assembles the settlement view model for a
// liquidation payslip, projected through the resolution policy.
func (s *Service) LiquidationBreakdown(ctx context.Context, payslipID, displayCurrency string, in currency.PolicyInputs) (*report.Breakdown, *liquidation.Schedule, error) {
	slip, err := s.payslips.GetPayslip(ctx, payslipID)
	if err != nil {
		return nil, nil, err
	}
	if slip.RulesetCode != liquidation.RulesetLiquidationV2 {
		return nil, nil, fmt.Errorf("payslip %s: breakdown requires the liquidation ruleset: %w",
			payslipID, engine.ErrRulesetMismatch)
	}
	c, err := s.contracts.GetContract(ctx, slip.ContractID)
	if err != nil {
		return nil, nil, err
	}
	view, err := s.ProjectPayslip(ctx, payslipID, displayCurrency, in)
	if err != nil {
		return nil, nil, err
	}
	sched, err := s.interestSchedule(ctx, slip, displayCurrency)
	if err != nil {
		return nil, nil, err
	}

	basis := c.SeniorityBasis()
	months := engine.MonthsBetween(basis, slip.Period.DateTo)
	years := decimal.NewFromInt(int64(basis.DaysUntil(slip.Period.DateTo))).
		Div(decimal.NewFromInt(365))
	paidMonths := decimal.Zero
	if c.PreviousLiquidationDate != nil {
		paidMonths = engine.MonthsBetween(basis, *c.PreviousLiquidationDate)
	}
	breakdown := report.BuildLiquidationBreakdown(report.BreakdownInput{
		View:             view,
		EmployeeRef:      c.EmployeeRef,
		OriginalHireDate: basis,
		DateTo:           slip.Period.DateTo,
		ServiceMonths:    months,
		PaidMonths:       paidMonths,
		SeniorityYears:   years,
		AnnualVacDays:    liquidation.AnnualVacationDays(years),
		ScheduleMonths:   len(sched.Rows),
	})
	return breakdown, sched, nil
}

// =============================================================================
// BATCHES
// =============================================================================

// BatchItemError pairs a contract with the error that aborted its payslip.
type BatchItemError struct {
	ContractID string `json:"contract_id"`
	Err        string `json:"error"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Payslips []*engine.Payslip `json:"payslips"`
	Errors   []BatchItemError  `json:"errors"`
}

// ComputeBatch evaluates the payroll ruleset for each contract. A failed
// payslip rolls back alone; the batch continues and reports per-item
// errors.
func (s *Service) ComputeBatch(ctx context.Context, contractIDs []string, period engine.Period) *BatchResult {
	result := &BatchResult{}
	for _, id := range contractIDs {
		if ctx.Err() != nil {
			break
		}
		slip, err := s.ComputePayslip(ctx, id, period)
		if err != nil {
			s.log.WithError(err).WithField("contract", id).Warn("batch item failed")
			result.Errors = append(result.Errors, BatchItemError{ContractID: id, Err: err.Error()})
			continue
		}
		result.Payslips = append(result.Payslips, slip)
	}
	return result
}
