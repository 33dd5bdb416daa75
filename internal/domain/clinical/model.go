package clinical

import (
	"time"

	"github.com/google/uuid"
)

// Follow-up task statuses.
const (
	TaskPending   = "pending"
	TaskApproved  = "approved"
	TaskCancelled = "cancelled"
)

// Patient is the engine's read-only view of a patient record.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	AssignedSalesID *uuid.UUID `db:"assigned_sales_id" json:"assigned_sales_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Visit is a completed clinical visit, attributed to the calendar date it
// was scheduled for rather than when the row was written.
type Visit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	HospitalID    uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	ScheduledDate time.Time  `db:"scheduled_date" json:"scheduled_date"`
	HasSpecialty  bool       `db:"has_specialty" json:"has_specialty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Appointment is the engine's read-only view of an appointment.
type Appointment struct {
	ID                        uuid.UUID  `db:"id" json:"id"`
	PatientID                 uuid.UUID  `db:"patient_id" json:"patient_id"`
	CreatedByID               *uuid.UUID `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedFromFollowUpTaskID *uuid.UUID `db:"created_from_follow_up_task_id" json:"created_from_follow_up_task_id,omitempty"`
	HasSpecialty              bool       `db:"has_specialty" json:"has_specialty"`
	CreatedAt                 time.Time  `db:"created_at" json:"created_at"`
}

// FollowUpTask is a coordinator's follow-up assignment. Completion is marked
// when the resulting appointment converts to a visit.
type FollowUpTask struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	AssignedToID uuid.UUID  `db:"assigned_to_id" json:"assigned_to_id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status       string     `db:"status" json:"status"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// VisitFact describes a qualifying visit event handed to the engine by the
// appointment-to-visit conversion workflow. The engine never decides when a
// visit happened; it only accounts for it.
type VisitFact struct {
	VisitID       uuid.UUID  `json:"visit_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	HospitalID    uuid.UUID  `json:"hospital_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	HasSpecialty  bool       `json:"has_specialty"`
}

// NominationFact describes a nominated patient's converting first visit.
type NominationFact struct {
	PatientID   uuid.UUID `json:"patient_id"`
	NominatorID uuid.UUID `json:"nominator_id"`
	VisitID     uuid.UUID `json:"visit_id"`
	VisitDate   time.Time `json:"visit_date"`
}
