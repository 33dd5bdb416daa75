package employee

import (
	"time"

	"github.com/google/uuid"
)

// Roles relevant to incentive accounting. Other staff roles exist in the
// wider system but are opaque to the engine.
const (
	RoleSales       = "sales"
	RoleCoordinator = "coordinator"
	RoleStaff       = "staff"
)

// Employee is the engine's read model of a staff member. The engine owns
// only the denormalized commission counter; everything else belongs to the
// staffing module.
type Employee struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Role            string    `db:"role" json:"role"`
	CommissionCount int       `db:"commission_count" json:"commission_count"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// IncentiveEligible reports whether the employee's role participates in
// commission payouts.
func (e *Employee) IncentiveEligible() bool {
	return e.Role == RoleSales || e.Role == RoleCoordinator
}
