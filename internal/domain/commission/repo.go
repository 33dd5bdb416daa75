package commission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("commission not found")
	ErrDuplicate = errors.New("duplicate commission")
)

// ListFilter narrows ledger listings.
type ListFilter struct {
	EmployeeID *uuid.UUID
	PatientID  *uuid.UUID
	Type       string
	From       *time.Time // period lower bound, inclusive
	To         *time.Time // period upper bound, inclusive
}

type Repository interface {
	// Insert writes one ledger entry. The store's uniqueness constraints
	// decide dedup: a conflicting row yields ErrDuplicate and no write.
	Insert(ctx context.Context, c *Commission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Commission, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Commission, int, error)
	// CountForEmployee counts ledger entries of one type whose creation
	// time falls inside [start, end].
	CountForEmployee(ctx context.Context, employeeID uuid.UUID, commissionType string, start, end time.Time) (int, error)
	// ExistsForPatient reports whether any entry of the given type already
	// references the patient, regardless of payee.
	ExistsForPatient(ctx context.Context, patientID uuid.UUID, commissionType string) (bool, error)
}
