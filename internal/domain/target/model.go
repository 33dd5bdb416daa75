package target

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/incentive/internal/domain/commission"
)

// Target cadences.
const (
	TypeDaily   = "daily"
	TypeWeekly  = "weekly"
	TypeMonthly = "monthly"
)

// Target categories. Each maps to one progress calculator.
const (
	CategoryNewPatients      = "new_patients"
	CategoryFollowUpPatients = "follow_up_patients"
	CategorySpecialties      = "specialties"
	CategoryNominations      = "nominations"
	CategoryCustom           = "custom"
)

func ValidTargetType(t string) bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeMonthly:
		return true
	}
	return false
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryNewPatients, CategoryFollowUpPatients, CategorySpecialties,
		CategoryNominations, CategoryCustom:
		return true
	}
	return false
}

// CategoryForCommissionType maps a ledger entry type to the target category
// it advances. Custom targets are never driven by the ledger.
func CategoryForCommissionType(commissionType string) (string, bool) {
	switch commissionType {
	case commission.TypePatientCreation:
		return CategoryNewPatients, true
	case commission.TypeFollowUp:
		return CategoryFollowUpPatients, true
	case commission.TypeNominationConversion:
		return CategoryNominations, true
	case commission.TypeVisitSpecialtyAddition:
		return CategorySpecialties, true
	}
	return "", false
}

// Target is one employee goal over an inclusive date window. CurrentValue is
// a cached figure; the calculators are the source of truth and a recompute
// may move it in either direction. CompletedAt is monotonic and survives a
// recompute that drops the value back below the threshold.
type Target struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	AssignedToID uuid.UUID  `db:"assigned_to_id" json:"assigned_to_id"`
	AssignedByID *uuid.UUID `db:"assigned_by_id" json:"assigned_by_id,omitempty"`
	Type         string     `db:"type" json:"type"`
	Category     string     `db:"category" json:"category"`
	Description  string     `db:"description" json:"description"`
	TargetValue  int        `db:"target_value" json:"target_value"`
	CurrentValue int        `db:"current_value" json:"current_value"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      time.Time  `db:"end_date" json:"end_date"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	TeamID       *uuid.UUID `db:"team_id" json:"team_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (t *Target) Completed() bool { return t.CompletedAt != nil }

func (t *Target) Window() Window {
	return Window{Start: t.StartDate, End: t.EndDate}
}

// Progress is one daily bucket of a target's history.
type Progress struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TargetID  uuid.UUID `db:"target_id" json:"target_id"`
	Day       time.Time `db:"day" json:"day"`
	Value     int       `db:"value" json:"value"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Window is an inclusive pair of business dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// Bounds clamps the window to full UTC days: midnight on the start date
// through the last instant of the end date.
func (w Window) Bounds() (time.Time, time.Time) {
	start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC).
		Add(24*time.Hour - time.Nanosecond)
	return start, end
}

func (w Window) Contains(day time.Time) bool {
	start, end := w.Bounds()
	return !day.Before(start) && !day.After(end)
}
