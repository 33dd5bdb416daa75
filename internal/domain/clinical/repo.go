package clinical

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("clinical record not found")
	ErrTaskNotOpen = errors.New("follow-up task is not pending")
)

// HistoryRepository answers the first-visit questions the commission rules
// and the sales progress recomputation depend on. All reads.
type HistoryRepository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// CountPriorVisits counts visits for the patient recorded before the
	// given visit, anywhere.
	CountPriorVisits(ctx context.Context, patientID, visitID uuid.UUID) (int, error)
	// CountPriorVisitsAtHospital counts the patient's earlier visits at one
	// specific hospital.
	CountPriorVisitsAtHospital(ctx context.Context, patientID, hospitalID, visitID uuid.UUID) (int, error)
	// CountQualifyingNewPatientVisits re-derives, from visit history alone,
	// how many new-patient visits (first ever, or first at a hospital, with
	// a specialty) are attributable to the sales employee's patients within
	// the window. This is the source of truth for sales new_patients
	// progress; the ledger is not consulted.
	CountQualifyingNewPatientVisits(ctx context.Context, salesID uuid.UUID, start, end time.Time) (int, error)
}

// TaskRepository manages follow-up task completion.
type TaskRepository interface {
	GetTask(ctx context.Context, id uuid.UUID) (*FollowUpTask, error)
	// ApproveTask transitions a pending task to approved. Approving an
	// already-approved task is a no-op so the conversion path stays
	// idempotent.
	ApproveTask(ctx context.Context, id uuid.UUID, at time.Time) error
}
