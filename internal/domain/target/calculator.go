package target

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/incentive/internal/domain/commission"
	"github.com/clinicops/incentive/internal/domain/employee"
)

// LedgerCounter counts commission ledger entries for an employee. Satisfied
// by commission.Repository.
type LedgerCounter interface {
	CountForEmployee(ctx context.Context, employeeID uuid.UUID, commissionType string, start, end time.Time) (int, error)
}

// VisitCounter re-derives qualifying new-patient visits from clinical
// history. Satisfied by clinical.HistoryRepository.
type VisitCounter interface {
	CountQualifyingNewPatientVisits(ctx context.Context, salesID uuid.UUID, start, end time.Time) (int, error)
}

// RoleLookup resolves an employee's role. Satisfied by employee.Repository.
type RoleLookup interface {
	Role(ctx context.Context, id uuid.UUID) (string, error)
}

// ProgressCalculator derives a target's running total for one category.
// Compute receives the cached current value so manual categories can keep
// it untouched; automatic categories ignore it.
type ProgressCalculator interface {
	Category() string
	Compute(ctx context.Context, employeeID uuid.UUID, role string, w Window, current int) (int, error)
	// AuthoritativeForRole reports whether the calculator's figure for the
	// role comes from first-party records rather than the ledger, and so
	// may legitimately disagree with a ledger count.
	AuthoritativeForRole(role string) bool
}

// CalculatorSet is the closed set of per-category calculators. Every valid
// category has exactly one.
type CalculatorSet struct {
	byCategory map[string]ProgressCalculator
}

func NewCalculatorSet(ledger LedgerCounter, visits VisitCounter) *CalculatorSet {
	s := &CalculatorSet{byCategory: make(map[string]ProgressCalculator)}
	for _, c := range []ProgressCalculator{
		&ledgerCalculator{category: CategoryFollowUpPatients, commissionType: commission.TypeFollowUp, ledger: ledger},
		&ledgerCalculator{category: CategorySpecialties, commissionType: commission.TypeVisitSpecialtyAddition, ledger: ledger},
		&ledgerCalculator{category: CategoryNominations, commissionType: commission.TypeNominationConversion, ledger: ledger},
		&newPatientsCalculator{ledger: ledger, visits: visits},
		&customCalculator{},
	} {
		s.byCategory[c.Category()] = c
	}
	return s
}

func (s *CalculatorSet) For(category string) (ProgressCalculator, bool) {
	c, ok := s.byCategory[category]
	return c, ok
}

// ledgerCalculator counts ledger entries of one commission type inside the
// window's day bounds.
type ledgerCalculator struct {
	category       string
	commissionType string
	ledger         LedgerCounter
}

func (c *ledgerCalculator) Category() string { return c.category }

func (c *ledgerCalculator) Compute(ctx context.Context, employeeID uuid.UUID, _ string, w Window, _ int) (int, error) {
	start, end := w.Bounds()
	return c.ledger.CountForEmployee(ctx, employeeID, c.commissionType, start, end)
}

func (c *ledgerCalculator) AuthoritativeForRole(string) bool { return false }

// newPatientsCalculator counts new patients. For a sales employee the figure
// is re-derived from visit history, which survives ledger gaps; for anyone
// else it falls back to the PATIENT_CREATION ledger count.
type newPatientsCalculator struct {
	ledger LedgerCounter
	visits VisitCounter
}

func (c *newPatientsCalculator) Category() string { return CategoryNewPatients }

func (c *newPatientsCalculator) Compute(ctx context.Context, employeeID uuid.UUID, role string, w Window, _ int) (int, error) {
	start, end := w.Bounds()
	if role == employee.RoleSales {
		return c.visits.CountQualifyingNewPatientVisits(ctx, employeeID, start, end)
	}
	return c.ledger.CountForEmployee(ctx, employeeID, commission.TypePatientCreation, start, end)
}

func (c *newPatientsCalculator) AuthoritativeForRole(role string) bool {
	return role == employee.RoleSales
}

// customCalculator leaves the manually maintained value alone.
type customCalculator struct{}

func (customCalculator) Category() string { return CategoryCustom }

func (customCalculator) Compute(_ context.Context, _ uuid.UUID, _ string, _ Window, current int) (int, error) {
	return current, nil
}

func (customCalculator) AuthoritativeForRole(string) bool { return false }
