package employee

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("employee not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	// Role returns the employee's role without loading the full record.
	Role(ctx context.Context, id uuid.UUID) (string, error)
	// FindAnyByRole returns an arbitrary employee holding the given role,
	// used as the last resort of payee resolution.
	FindAnyByRole(ctx context.Context, role string) (*Employee, error)
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*Employee, int, error)
	// IncrementCommissionCount bumps the denormalized commission counter.
	IncrementCommissionCount(ctx context.Context, id uuid.UUID) error
}
