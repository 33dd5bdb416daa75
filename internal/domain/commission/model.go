package commission

import (
	"time"

	"github.com/google/uuid"
)

// Commission types. Each entry pays a fixed single unit; the type decides
// which target category it advances.
const (
	TypePatientCreation        = "PATIENT_CREATION"
	TypeFollowUp               = "FOLLOW_UP"
	TypeNominationConversion   = "NOMINATION_CONVERSION"
	TypeVisitSpecialtyAddition = "VISIT_SPECIALITY_ADDITION"
)

var validTypes = map[string]bool{
	TypePatientCreation:        true,
	TypeFollowUp:               true,
	TypeNominationConversion:   true,
	TypeVisitSpecialtyAddition: true,
}

// ValidType reports whether t is a known commission type.
func ValidType(t string) bool { return validTypes[t] }

// Commission is an immutable ledger entry: one earned incentive payout.
// Entries are never updated or deleted in normal operation.
type Commission struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	EmployeeID    uuid.UUID  `db:"employee_id" json:"employee_id"`
	PatientID     *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Type          string     `db:"type" json:"type"`
	Amount        int        `db:"amount" json:"amount"`
	Period        time.Time  `db:"period" json:"period"`
	SourceVisitID *uuid.UUID `db:"source_visit_id" json:"source_visit_id,omitempty"`
	Description   string     `db:"description" json:"description"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// RecordInput is the payload for writing one ledger entry.
type RecordInput struct {
	EmployeeID    uuid.UUID  `json:"employee_id"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	Type          string     `json:"type"`
	Period        time.Time  `json:"period"`
	SourceVisitID *uuid.UUID `json:"source_visit_id,omitempty"`
	Description   string     `json:"description"`
}
