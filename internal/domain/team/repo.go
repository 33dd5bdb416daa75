package team

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("team not found")
	ErrAlreadyOnTeam = errors.New("employee already belongs to an active team")
)

type Filter struct {
	LeaderID *uuid.UUID
	Active   *bool
}

type Repository interface {
	Create(ctx context.Context, t *Team) error
	GetByID(ctx context.Context, id uuid.UUID) (*Team, error)
	Update(ctx context.Context, t *Team) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Team, int, error)

	// AddMember inserts an active membership row. A second active row for
	// the same employee anywhere yields ErrAlreadyOnTeam.
	AddMember(ctx context.Context, m *Member) error
	// RemoveMember deactivates the employee's row on the given team.
	RemoveMember(ctx context.Context, teamID, employeeID uuid.UUID) error
	ListMembers(ctx context.Context, teamID uuid.UUID) ([]*Member, error)
	ActiveTeamFor(ctx context.Context, employeeID uuid.UUID) (*Team, error)
}
