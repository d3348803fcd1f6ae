package sqlite_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nominave/payroll-engine/currency"
	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/payroll"
	"github.com/nominave/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return engine.MustDecimal(s)
}

func sampleContract() *payroll.Contract {
	return &payroll.Contract{
		ID:           "c-1",
		EmployeeRef:  "emp-1",
		DateStart:    engine.NewDate(2023, time.September, 1),
		Wage:         dec("195.90"),
		SalaryBase:   dec("119.21"),
		BonusRegular: dec("36.69"),
		ExtraBonus:   dec("0"),
		CestaTicket:  dec("40.00"),
		ARIRate:      dec("1"),
	}
}

func samplePayslip(id string, state engine.State) *engine.Payslip {
	return &engine.Payslip{
		ID:          id,
		ContractID:  "c-1",
		EmployeeRef: "emp-1",
		RulesetCode: payroll.RulesetPayrollV2,
		Period: engine.NewPeriod(
			engine.NewDate(2025, time.November, 1),
			engine.NewDate(2025, time.November, 15),
		),
		State: state,
		Lines: []engine.LineItem{
			{Code: "VE_SALARY_V2", Name: "Salario", Sequence: 10,
				Category: engine.CategoryBasic, Amount: dec("59.61")},
			{Code: "VE_SSO_DED_V2", Name: "S.S.O.", Sequence: 50,
				Category: engine.CategoryDeduction, Amount: dec("-2.68"),
				DebitAccount: "5101.01", CreditAccount: "2105.01"},
			{Code: "VE_GROSS_V2", Name: "Gross", Sequence: 90,
				Category: engine.CategoryGross, Amount: dec("59.61")},
			{Code: "VE_TOTAL_DED_V2", Name: "Deductions", Sequence: 100,
				Category: engine.CategoryTotalDeduction, Amount: dec("-2.68")},
			{Code: "VE_NET_V2", Name: "Net", Sequence: 110,
				Category: engine.CategoryNet, Amount: dec("56.93")},
		},
	}
}

// =============================================================================
// CONTRACTS AND AUDIT TRAIL
// =============================================================================

func TestStore_Contract_RoundTrip(t *testing.T) {
	// GIVEN: A contract with dates, decimals and an optional field set
	// WHEN: Saving and reloading
	// THEN: Every field survives, including the nullable dates

	store := newTestStore(t)
	ctx := context.Background()

	c := sampleContract()
	c.OriginalHireDate = engine.NewDate(2019, time.March, 1)
	prev := engine.NewDate(2024, time.August, 31)
	c.PreviousLiquidationDate = &prev
	c.VacationPrepaid = dec("150.00")

	require.NoError(t, store.SaveContract(ctx, c))

	got, err := store.GetContract(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", got.EmployeeRef)
	assert.True(t, got.SalaryBase.Equal(dec("119.21")))
	assert.True(t, got.Wage.Equal(dec("195.90")))
	assert.True(t, got.OriginalHireDate.Equal(engine.NewDate(2019, time.March, 1)))
	require.NotNil(t, got.PreviousLiquidationDate)
	assert.True(t, got.PreviousLiquidationDate.Equal(prev))
	assert.Nil(t, got.PrestacionesResetDate)
	assert.True(t, got.VacationPrepaid.Equal(dec("150.00")))
}

func TestStore_Contract_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetContract(context.Background(), "ghost")
	assert.ErrorIs(t, err, engine.ErrContractNotFound)
}

func TestStore_Contract_AuditTrailAppendOnly(t *testing.T) {
	// GIVEN: A contract saved, then mutated twice through the audited path
	// WHEN: Saving after each mutation
	// THEN: Audit rows accumulate in order and re-saving never duplicates
	//       already-stored rows

	store := newTestStore(t)
	ctx := context.Background()
	c := sampleContract()
	require.NoError(t, store.SaveContract(ctx, c))

	raise := dec("130.00")
	require.NoError(t, c.UpdateCompensation(payroll.CompensationUpdate{SalaryBase: &raise},
		"quarterly raise", time.Date(2025, time.November, 20, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, store.SaveContract(ctx, c))

	// Saving the same in-memory contract again must not re-append.
	require.NoError(t, store.SaveContract(ctx, c))

	bump := dec("2")
	require.NoError(t, c.UpdateCompensation(payroll.CompensationUpdate{ARIRate: &bump},
		"ARI review", time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, store.SaveContract(ctx, c))

	got, err := store.GetContract(ctx, "c-1")
	require.NoError(t, err)

	require.Len(t, got.AuditNotes, 3) // salary_base + wage, then ari_rate alone
	assert.Contains(t, got.AuditNotes[0].Note, "salary_base: 119.21 -> 130.00")
	assert.Contains(t, got.AuditNotes[0].Note, "quarterly raise")
	assert.Contains(t, got.AuditNotes[2].Note, "ari_rate: 1.00 -> 2.00")
}

func TestStore_ListContracts_OrderedByEmployee(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := sampleContract()
	b.ID = "c-2"
	b.EmployeeRef = "emp-2"
	require.NoError(t, store.SaveContract(ctx, b))
	require.NoError(t, store.SaveContract(ctx, sampleContract()))

	list, err := store.ListContracts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "emp-1", list[0].EmployeeRef)
	assert.Equal(t, "emp-2", list[1].EmployeeRef)
	assert.Empty(t, list[0].AuditNotes, "listing skips audit trails")
}

// =============================================================================
// PAYSLIP IMMUTABILITY
// =============================================================================

func TestStore_Payslip_RoundTrip(t *testing.T) {
	// GIVEN: A payslip with five lines including posting accounts
	// WHEN: Saving and reloading
	// THEN: Lines come back in sequence order with accounts intact

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePayslip(ctx, samplePayslip("ps-1", engine.StateComputed)))

	got, err := store.GetPayslip(ctx, "ps-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StateComputed, got.State)
	require.Len(t, got.Lines, 5)
	assert.Equal(t, "VE_SALARY_V2", got.Lines[0].Code)
	assert.Equal(t, "VE_NET_V2", got.Lines[4].Code)
	assert.Equal(t, "2105.01", got.Lines[1].CreditAccount)
	assert.True(t, got.Net().Equal(dec("56.93")))
}

func TestStore_Payslip_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetPayslip(context.Background(), "ghost")
	assert.ErrorIs(t, err, engine.ErrPayslipNotFound)
}

func TestStore_Payslip_RecomputeBeforeDone_Allowed(t *testing.T) {
	// GIVEN: A computed payslip
	// WHEN: Saving it again with different lines (recomputation)
	// THEN: The rewrite succeeds; only done freezes lines

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePayslip(ctx, samplePayslip("ps-1", engine.StateComputed)))

	p := samplePayslip("ps-1", engine.StateComputed)
	p.Lines[0].Amount = dec("70.00")
	require.NoError(t, store.SavePayslip(ctx, p))

	got, err := store.GetPayslip(ctx, "ps-1")
	require.NoError(t, err)
	assert.True(t, got.Lines[0].Amount.Equal(dec("70.00")))
}

func TestStore_Payslip_DoneLines_Frozen(t *testing.T) {
	// GIVEN: A done payslip
	// WHEN: Saving with modified lines
	// THEN: ErrPayslipImmutable; the stored lines stay untouched

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePayslip(ctx, samplePayslip("ps-1", engine.StateDone)))

	p := samplePayslip("ps-1", engine.StateDone)
	p.Lines[0].Amount = dec("9999.00")
	err := store.SavePayslip(ctx, p)
	assert.ErrorIs(t, err, engine.ErrPayslipImmutable)

	got, err := store.GetPayslip(ctx, "ps-1")
	require.NoError(t, err)
	assert.True(t, got.Lines[0].Amount.Equal(dec("59.61")))
}

func TestStore_Payslip_DoneMetadataFlags_StillWritable(t *testing.T) {
	// GIVEN: A done payslip
	// WHEN: Saving the identical payslip with the metadata flags toggled
	// THEN: The flags persist; the lines are untouched

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePayslip(ctx, samplePayslip("ps-1", engine.StateDone)))

	p := samplePayslip("ps-1", engine.StateDone)
	p.PaymentSent = true
	p.EmailSent = true
	require.NoError(t, store.SavePayslip(ctx, p))

	got, err := store.GetPayslip(ctx, "ps-1")
	require.NoError(t, err)
	assert.True(t, got.PaymentSent)
	assert.True(t, got.EmailSent)
	assert.Equal(t, engine.StateDone, got.State)
	require.Len(t, got.Lines, 5)
}

func TestStore_SetPayslipState_ForwardOnly(t *testing.T) {
	// GIVEN: A computed payslip
	// WHEN: Advancing to done, then trying to regress to draft
	// THEN: The advance sticks and the regression fails

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePayslip(ctx, samplePayslip("ps-1", engine.StateComputed)))

	require.NoError(t, store.SetPayslipState(ctx, "ps-1", engine.StateDone))

	err := store.SetPayslipState(ctx, "ps-1", engine.StateDraft)
	assert.ErrorIs(t, err, engine.ErrPayslipImmutable)

	got, err := store.GetPayslip(ctx, "ps-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StateDone, got.State)
}

// =============================================================================
// AGUINALDOS FISCAL-YEAR SUM
// =============================================================================

// aguinaldoSlip builds a done-able Aguinaldos payslip ending on dateTo.
func aguinaldoSlip(id string, dateTo engine.Date, amount string, state engine.State) *engine.Payslip {
	return &engine.Payslip{
		ID:          id,
		ContractID:  "c-1",
		EmployeeRef: "emp-1",
		RulesetCode: payroll.RulesetAguinaldosV2,
		Period:      engine.NewPeriod(dateTo.AddDays(-14), dateTo),
		State:       state,
		Lines: []engine.LineItem{
			{Code: payroll.CodeAguinaldo, Name: "Aguinaldos", Sequence: 10,
				Category: engine.CategoryAllowance, Amount: dec(amount)},
			{Code: payroll.CodeAguinaldoGross, Name: "Gross", Sequence: 20,
				Category: engine.CategoryGross, Amount: dec(amount)},
			{Code: payroll.CodeAguinaldoTotalDed, Name: "Ded", Sequence: 30,
				Category: engine.CategoryTotalDeduction, Amount: dec("0")},
			{Code: payroll.CodeAguinaldoNet, Name: "Net", Sequence: 40,
				Category: engine.CategoryNet, Amount: dec(amount)},
		},
	}
}

func TestStore_DoneAguinaldoTotal(t *testing.T) {
	// GIVEN: Done halves inside the fiscal year, one computed (not done),
	//        one done but in the previous fiscal year, and a done bi-weekly
	//        payslip
	// WHEN: Summing the fiscal-year consumption
	// THEN: Only done Aguinaldos inside the year count

	store := newTestStore(t)
	ctx := context.Background()
	fy := engine.FiscalYearOf(engine.NewDate(2025, time.November, 30), time.September)

	require.NoError(t, store.SavePayslip(ctx,
		aguinaldoSlip("ag-1", engine.NewDate(2025, time.November, 15), "100", engine.StateDone)))
	require.NoError(t, store.SavePayslip(ctx,
		aguinaldoSlip("ag-2", engine.NewDate(2025, time.November, 30), "50", engine.StateDone)))
	require.NoError(t, store.SavePayslip(ctx,
		aguinaldoSlip("ag-3", engine.NewDate(2025, time.December, 15), "100", engine.StateComputed)))
	require.NoError(t, store.SavePayslip(ctx,
		aguinaldoSlip("ag-4", engine.NewDate(2025, time.August, 15), "100", engine.StateDone)))
	require.NoError(t, store.SavePayslip(ctx, samplePayslip("ps-1", engine.StateDone)))

	total, err := store.DoneAguinaldoTotal(ctx, "c-1", fy)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("150")), "got %s", total)

	// Another contract consumes nothing.
	total, err = store.DoneAguinaldoTotal(ctx, "c-other", fy)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestStore_ListPayslips_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := samplePayslip("ps-old", engine.StateDone)
	older.Period = engine.NewPeriod(
		engine.NewDate(2025, time.October, 16),
		engine.NewDate(2025, time.October, 31),
	)
	require.NoError(t, store.SavePayslip(ctx, older))
	require.NoError(t, store.SavePayslip(ctx, samplePayslip("ps-new", engine.StateComputed)))

	slips, err := store.ListPayslips(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, slips, 2)
	assert.Equal(t, "ps-new", slips[0].ID)
	assert.Equal(t, "ps-old", slips[1].ID)
	assert.Empty(t, slips[0].Lines, "headers only")
}

// =============================================================================
// EXCHANGE RATES
// =============================================================================

func TestStore_RateOn_LookupChain(t *testing.T) {
	// GIVEN: Rates on Jan 15, Mar 1 and Jun 10
	// WHEN: Querying across the history
	// THEN: Greatest date at-or-before wins; before history falls back to
	//       the earliest; an unknown currency is unavailable

	store := newTestStore(t)
	ctx := context.Background()
	for _, r := range []currency.Rate{
		{Currency: "VEB", Date: engine.NewDate(2025, time.January, 15), Value: dec("150.00")},
		{Currency: "VEB", Date: engine.NewDate(2025, time.March, 1), Value: dec("180.50")},
		{Currency: "VEB", Date: engine.NewDate(2025, time.June, 10), Value: dec("234.87")},
	} {
		require.NoError(t, store.PutRate(ctx, r))
	}

	got, err := store.RateOn(ctx, "VEB", engine.NewDate(2025, time.April, 1))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("180.50")))

	got, err = store.RateOn(ctx, "VEB", engine.NewDate(2025, time.January, 1))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("150.00")), "before history falls back to earliest")

	got, err = store.RateOn(ctx, "VEB", engine.NewDate(2026, time.January, 1))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("234.87")), "after history uses latest")

	_, err = store.RateOn(ctx, "EUR", engine.NewDate(2025, time.June, 1))
	assert.ErrorIs(t, err, engine.ErrRateUnavailable)
}

func TestStore_PutRate_RejectsNonPositive(t *testing.T) {
	store := newTestStore(t)
	err := store.PutRate(context.Background(), currency.Rate{
		Currency: "VEB", Date: engine.NewDate(2025, time.June, 1), Value: dec("0"),
	})
	assert.ErrorIs(t, err, engine.ErrInvalidRate)
}

func TestStore_PutRate_SameDateOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := engine.NewDate(2025, time.June, 10)

	require.NoError(t, store.PutRate(ctx, currency.Rate{Currency: "VEB", Date: d, Value: dec("234.87")}))
	require.NoError(t, store.PutRate(ctx, currency.Rate{Currency: "VEB", Date: d, Value: dec("240.00")}))

	rates, err := store.ListRates(ctx, "VEB")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].Value.Equal(dec("240.00")))
}

func TestStore_LatestRate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutRate(ctx, currency.Rate{
		Currency: "VEB", Date: engine.NewDate(2025, time.June, 10), Value: dec("234.87")}))
	require.NoError(t, store.PutRate(ctx, currency.Rate{
		Currency: "VEB", Date: engine.NewDate(2025, time.January, 15), Value: dec("150.00")}))

	latest, err := store.LatestRate(ctx, "VEB")
	require.NoError(t, err)
	assert.True(t, latest.Date.Equal(engine.NewDate(2025, time.June, 10)))
	assert.True(t, latest.Value.Equal(dec("234.87")))
}

// =============================================================================
// SERVICE INTEGRATION - the store backing all three interfaces at once
// =============================================================================

func TestStore_BacksFullComputeConfirmCycle(t *testing.T) {
	// GIVEN: The sqlite store wired as contract, payslip and rate store
	// WHEN: Computing, confirming, then computing the next Aguinaldos half
	// THEN: The persisted done payslip feeds the fiscal-year budget

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutRate(ctx, currency.Rate{
		Currency: "VEB", Date: engine.NewDate(2023, time.January, 1), Value: dec("5")}))

	c := sampleContract()
	c.Wage = dec("100")
	c.SalaryBase = dec("100")
	c.BonusRegular = dec("0")
	c.CestaTicket = dec("0")
	require.NoError(t, store.SaveContract(ctx, c))

	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := payroll.NewService(payroll.Params{
		PrimaryCurrency:     "USD",
		SecondaryCurrency:   "VEB",
		SSORate:             dec("0.045"),
		FAOVRate:            dec("0.01"),
		PARORate:            dec("0.005"),
		PrestacionesRate:    dec("0.065"),
		SSOCeilingSecondary: dec("1300"),
		FiscalYearStart:     time.September,
	}, store, store, store, log)

	firstHalf := engine.NewPeriod(
		engine.NewDate(2025, time.November, 1),
		engine.NewDate(2025, time.November, 15),
	)
	slip, err := svc.ComputeAguinaldos(ctx, "c-1", firstHalf)
	require.NoError(t, err)
	assert.True(t, slip.LineAmount(payroll.CodeAguinaldo).Equal(dec("100")))
	require.NoError(t, svc.ConfirmPayslip(ctx, slip.ID))

	secondHalf := engine.NewPeriod(
		engine.NewDate(2025, time.November, 16),
		engine.NewDate(2025, time.November, 30),
	)
	second, err := svc.ComputeAguinaldos(ctx, "c-1", secondHalf)
	require.NoError(t, err)

	line, _ := second.Line(payroll.CodeAguinaldo)
	assert.True(t, line.Amount.Equal(dec("100")), "budget 200, 100 consumed")
	assert.Empty(t, line.Detail)

	// Computed before the second half is confirmed: only done halves count.
	third, err := svc.ComputeAguinaldos(ctx, "c-1", engine.NewPeriod(
		engine.NewDate(2025, time.December, 1),
		engine.NewDate(2025, time.December, 15),
	))
	require.NoError(t, err)
	assert.True(t, third.LineAmount(payroll.CodeAguinaldo).Equal(dec("100")))

	require.NoError(t, svc.ConfirmPayslip(ctx, second.ID))

	fourth, err := svc.ComputeAguinaldos(ctx, "c-1", engine.NewPeriod(
		engine.NewDate(2025, time.December, 16),
		engine.NewDate(2025, time.December, 31),
	))
	require.NoError(t, err)
	line, _ = fourth.Line(payroll.CodeAguinaldo)
	assert.True(t, line.Amount.IsZero(), "budget exhausted: got %s", line.Amount)
	assert.Equal(t, "clamped from 100.00 to 0.00", line.Detail)
}
