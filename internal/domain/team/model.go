package team

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/incentive/internal/domain/target"
)

// Team groups employees under a leader for shared targets. The leader's
// display name is never stored here; it is resolved from the employee record
// at read time so renames show up everywhere immediately.
type Team struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	LeaderID  uuid.UUID `db:"leader_id" json:"leader_id"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Member is one employee's membership row. Deactivated rows are kept for
// history; the store allows each employee a single active row.
type Member struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TeamID     uuid.UUID `db:"team_id" json:"team_id"`
	EmployeeID uuid.UUID `db:"employee_id" json:"employee_id"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// LeaderDisplayName is the read-time display form of a leading employee's
// name: the team name prefixed to their own. The employee row is never
// rewritten, so the form disappears the moment a team is deleted or its
// leader changes.
func LeaderDisplayName(teamName, name string) string {
	if name == "" {
		return ""
	}
	return teamName + " " + name
}

// View is a team with its derived leader name and active roster.
type View struct {
	Team
	LeaderName string       `json:"leader_name"`
	Members    []MemberView `json:"members"`
}

type MemberView struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
}

// MemberProgress is one participant's live-computed share of a team target.
type MemberProgress struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Value      int       `json:"value"`
	IsLeader   bool      `json:"is_leader"`
}

// TargetProgress is the aggregated state of one team target.
type TargetProgress struct {
	Target  *target.Target   `json:"target"`
	Total   int              `json:"total"`
	Members []MemberProgress `json:"members"`
}

// LeaderboardEntry ranks one team by average completion of its active team
// targets.
type LeaderboardEntry struct {
	TeamID        uuid.UUID `json:"team_id"`
	TeamName      string    `json:"team_name"`
	LeaderName    string    `json:"leader_name"`
	ActiveTargets int       `json:"active_targets"`
	CompletionPct float64   `json:"completion_pct"`
}
