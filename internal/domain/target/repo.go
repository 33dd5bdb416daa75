package target

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("target not found")

// Filter narrows List and Statistics queries.
type Filter struct {
	AssignedToID *uuid.UUID
	TeamID       *uuid.UUID
	Category     string
	Type         string
	Active       *bool
}

// Stats are headline counts over a set of targets. Overdue means active,
// past its end date and not completed.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Overdue    int `json:"overdue"`
}

type Repository interface {
	Create(ctx context.Context, t *Target) error
	GetByID(ctx context.Context, id uuid.UUID) (*Target, error)
	Update(ctx context.Context, t *Target) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Target, int, error)

	// ListActiveForEmployeeCategoryDate returns the active targets of one
	// employee and category whose window contains the given day. The fast
	// increment path runs off this.
	ListActiveForEmployeeCategoryDate(ctx context.Context, employeeID uuid.UUID, category string, day time.Time) ([]*Target, error)
	ListActiveForTeam(ctx context.Context, teamID uuid.UUID) ([]*Target, error)

	// UpdateProgressValue persists a recomputed running total. completedAt
	// is only ever written when currently null; it is never cleared.
	UpdateProgressValue(ctx context.Context, id uuid.UUID, value int, completedAt *time.Time) error

	// AddDayProgress bumps the daily bucket for the given day, creating it
	// when absent.
	AddDayProgress(ctx context.Context, targetID uuid.UUID, day time.Time, delta int) error
	// SetDayProgress overwrites the daily bucket, creating it when absent.
	SetDayProgress(ctx context.Context, targetID uuid.UUID, day time.Time, value int, notes string) error
	ListProgress(ctx context.Context, targetID uuid.UUID) ([]*Progress, error)

	// RetireExpired deactivates active targets whose end date is strictly
	// before asOf's date and reports how many rows changed.
	RetireExpired(ctx context.Context, asOf time.Time) (int, error)

	Stats(ctx context.Context, f Filter, asOf time.Time) (*Stats, error)
}
