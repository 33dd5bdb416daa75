package target

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/incentive/internal/domain/commission"
	"github.com/clinicops/incentive/internal/domain/employee"
)

type ledgerCount struct {
	employeeID     uuid.UUID
	commissionType string
	start, end     time.Time
}

type mockLedger struct {
	counts map[string]int // keyed by commission type
	calls  []ledgerCount
}

func (m *mockLedger) CountForEmployee(_ context.Context, employeeID uuid.UUID, commissionType string, start, end time.Time) (int, error) {
	m.calls = append(m.calls, ledgerCount{employeeID, commissionType, start, end})
	return m.counts[commissionType], nil
}

type mockVisits struct {
	count int
	calls int
}

func (m *mockVisits) CountQualifyingNewPatientVisits(_ context.Context, _ uuid.UUID, _, _ time.Time) (int, error) {
	m.calls++
	return m.count, nil
}

func window(startDay, endDay int) Window {
	return Window{
		Start: time.Date(2025, 7, startDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, endDay, 0, 0, 0, 0, time.UTC),
	}
}

func TestCalculatorSet_CoversEveryCategory(t *testing.T) {
	set := NewCalculatorSet(&mockLedger{}, &mockVisits{})
	for _, cat := range []string{
		CategoryNewPatients, CategoryFollowUpPatients, CategorySpecialties,
		CategoryNominations, CategoryCustom,
	} {
		calc, ok := set.For(cat)
		if !ok {
			t.Fatalf("no calculator for %s", cat)
		}
		if calc.Category() != cat {
			t.Errorf("calculator for %s reports category %s", cat, calc.Category())
		}
	}
	if _, ok := set.For("unknown"); ok {
		t.Error("unexpected calculator for unknown category")
	}
}

func TestLedgerCalculator_ClampsWindowToFullDays(t *testing.T) {
	ledger := &mockLedger{counts: map[string]int{commission.TypeFollowUp: 4}}
	set := NewCalculatorSet(ledger, &mockVisits{})
	calc, _ := set.For(CategoryFollowUpPatients)

	w := Window{
		Start: time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 31, 14, 0, 0, 0, time.UTC),
	}
	got, err := calc.Compute(context.Background(), uuid.New(), employee.RoleCoordinator, w, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Errorf("expected 4, got %d", got)
	}

	call := ledger.calls[0]
	wantStart := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if !call.start.Equal(wantStart) {
		t.Errorf("expected start clamped to %s, got %s", wantStart, call.start)
	}
	if call.end.Day() != 31 || call.end.Hour() != 23 {
		t.Errorf("expected end clamped to end of July 31, got %s", call.end)
	}
}

func TestNewPatientsCalculator_SalesUsesVisitHistory(t *testing.T) {
	ledger := &mockLedger{counts: map[string]int{commission.TypePatientCreation: 2}}
	visits := &mockVisits{count: 7}
	set := NewCalculatorSet(ledger, visits)
	calc, _ := set.For(CategoryNewPatients)

	got, err := calc.Compute(context.Background(), uuid.New(), employee.RoleSales, window(1, 31), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Errorf("expected visit-derived 7, got %d", got)
	}
	if visits.calls != 1 || len(ledger.calls) != 0 {
		t.Error("sales computation should hit visit history, not the ledger")
	}
	if !calc.AuthoritativeForRole(employee.RoleSales) {
		t.Error("expected sales figure to be authoritative")
	}
}

func TestNewPatientsCalculator_OtherRolesUseLedger(t *testing.T) {
	ledger := &mockLedger{counts: map[string]int{commission.TypePatientCreation: 2}}
	visits := &mockVisits{count: 7}
	set := NewCalculatorSet(ledger, visits)
	calc, _ := set.For(CategoryNewPatients)

	got, err := calc.Compute(context.Background(), uuid.New(), employee.RoleCoordinator, window(1, 31), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Errorf("expected ledger count 2, got %d", got)
	}
	if visits.calls != 0 {
		t.Error("coordinator computation should not touch visit history")
	}
	if calc.AuthoritativeForRole(employee.RoleCoordinator) {
		t.Error("coordinator figure should not be authoritative")
	}
}

func TestCustomCalculator_PreservesCurrentValue(t *testing.T) {
	set := NewCalculatorSet(&mockLedger{}, &mockVisits{})
	calc, _ := set.For(CategoryCustom)

	got, err := calc.Compute(context.Background(), uuid.New(), employee.RoleStaff, window(1, 31), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected stored value 42, got %d", got)
	}
}

func TestCategoryForCommissionType(t *testing.T) {
	cases := map[string]string{
		commission.TypePatientCreation:        CategoryNewPatients,
		commission.TypeFollowUp:               CategoryFollowUpPatients,
		commission.TypeNominationConversion:   CategoryNominations,
		commission.TypeVisitSpecialtyAddition: CategorySpecialties,
	}
	for commType, want := range cases {
		got, ok := CategoryForCommissionType(commType)
		if !ok || got != want {
			t.Errorf("CategoryForCommissionType(%s) = %s, %v; want %s", commType, got, ok, want)
		}
	}
	if _, ok := CategoryForCommissionType("BONUS"); ok {
		t.Error("unexpected category for unknown commission type")
	}
}

func TestWindowContains(t *testing.T) {
	w := window(10, 20)
	if !w.Contains(time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)) {
		t.Error("start date should be inside the window")
	}
	if !w.Contains(time.Date(2025, 7, 20, 18, 0, 0, 0, time.UTC)) {
		t.Error("end date should be inside the window")
	}
	if w.Contains(time.Date(2025, 7, 21, 0, 0, 0, 0, time.UTC)) {
		t.Error("day after end should be outside the window")
	}
}
