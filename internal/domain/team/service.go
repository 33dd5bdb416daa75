package team

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/incentive/internal/domain/employee"
	"github.com/clinicops/incentive/internal/domain/target"
)

// Transactor runs a function inside a single store transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo      Repository
	employees employee.Repository
	targets   target.Repository
	calcs     *target.CalculatorSet
	tx        Transactor
	logger    zerolog.Logger
}

func NewService(
	repo Repository,
	employees employee.Repository,
	targets target.Repository,
	calcs *target.CalculatorSet,
	tx Transactor,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		employees: employees,
		targets:   targets,
		calcs:     calcs,
		tx:        tx,
		logger:    logger,
	}
}

type CreateInput struct {
	Name      string      `json:"name"`
	LeaderID  uuid.UUID   `json:"leader_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

type UpdateInput struct {
	Name     *string    `json:"name,omitempty"`
	LeaderID *uuid.UUID `json:"leader_id,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

func (s *Service) validateLeader(ctx context.Context, leaderID uuid.UUID) error {
	leader, err := s.employees.GetByID(ctx, leaderID)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return fmt.Errorf("leader %s not found", leaderID)
		}
		return fmt.Errorf("load leader: %w", err)
	}
	if !leader.IncentiveEligible() {
		return fmt.Errorf("leader must hold the %s or %s role", employee.RoleSales, employee.RoleCoordinator)
	}
	return nil
}

// Create creates a team and its initial roster in one transaction. The
// leader leads, they do not also sit on the roster; membership elsewhere is
// rejected by the store's one-active-team rule.
func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if in.LeaderID == uuid.Nil {
		return nil, fmt.Errorf("leader_id is required")
	}
	if err := s.validateLeader(ctx, in.LeaderID); err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(in.MemberIDs))
	for _, id := range in.MemberIDs {
		if id == in.LeaderID {
			return nil, fmt.Errorf("leader cannot be a member of their own team")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate member %s", id)
		}
		seen[id] = true
	}

	t := &Team{Name: in.Name, LeaderID: in.LeaderID, IsActive: true}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, t); err != nil {
			return err
		}
		for _, id := range in.MemberIDs {
			if _, err := s.employees.GetByID(ctx, id); err != nil {
				return fmt.Errorf("member %s: %w", id, err)
			}
			if err := s.repo.AddMember(ctx, &Member{TeamID: t.ID, EmployeeID: id}); err != nil {
				if errors.Is(err, ErrAlreadyOnTeam) {
					return fmt.Errorf("member %s: %w", id, err)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("team_id", t.ID.String()).
		Str("name", t.Name).
		Int("members", len(in.MemberIDs)).
		Msg("team created")
	return s.view(ctx, t)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, t)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*View, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("name must not be empty")
		}
		t.Name = *in.Name
	}
	if in.LeaderID != nil {
		if err := s.validateLeader(ctx, *in.LeaderID); err != nil {
			return nil, err
		}
		t.LeaderID = *in.LeaderID
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return s.view(ctx, t)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*View, int, error) {
	teams, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*View, 0, len(teams))
	for _, t := range teams {
		v, err := s.view(ctx, t)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, nil
}

func (s *Service) AddMember(ctx context.Context, teamID, employeeID uuid.UUID) error {
	t, err := s.repo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if t.LeaderID == employeeID {
		return fmt.Errorf("leader cannot be a member of their own team")
	}
	if _, err := s.employees.GetByID(ctx, employeeID); err != nil {
		return fmt.Errorf("member %s: %w", employeeID, err)
	}
	return s.repo.AddMember(ctx, &Member{TeamID: teamID, EmployeeID: employeeID})
}

func (s *Service) RemoveMember(ctx context.Context, teamID, employeeID uuid.UUID) error {
	return s.repo.RemoveMember(ctx, teamID, employeeID)
}

// view resolves the leader name and active roster for a team.
func (s *Service) view(ctx context.Context, t *Team) (*View, error) {
	v := &View{Team: *t}

	leader, err := s.employees.GetByID(ctx, t.LeaderID)
	if err == nil {
		v.LeaderName = LeaderDisplayName(t.Name, leader.Name)
	} else if !errors.Is(err, employee.ErrNotFound) {
		return nil, fmt.Errorf("load leader: %w", err)
	}

	members, err := s.repo.ListMembers(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		emp, err := s.employees.GetByID(ctx, m.EmployeeID)
		if err != nil {
			if errors.Is(err, employee.ErrNotFound) {
				continue
			}
			return nil, err
		}
		v.Members = append(v.Members, MemberView{
			EmployeeID: emp.ID, Name: emp.Name, Role: emp.Role,
		})
	}
	return v, nil
}

// Progress aggregates every active team target: the leader's contribution
// plus each member's, each computed live through the category calculator. A
// member with a personal active target in the category is measured over
// their own window; everyone else over the team target's window. The summed
// total is written back to the team target row so list views stay roughly
// current between aggregations.
func (s *Service) Progress(ctx context.Context, teamID uuid.UUID) ([]*TargetProgress, error) {
	t, err := s.repo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	teamTargets, err := s.targets.ListActiveForTeam(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	participants := make([]uuid.UUID, 0, len(members)+1)
	participants = append(participants, t.LeaderID)
	for _, m := range members {
		participants = append(participants, m.EmployeeID)
	}

	out := make([]*TargetProgress, 0, len(teamTargets))
	for _, tt := range teamTargets {
		progress, err := s.aggregateTarget(ctx, t, tt, participants)
		if err != nil {
			return nil, err
		}
		out = append(out, progress)
	}
	return out, nil
}

func (s *Service) aggregateTarget(ctx context.Context, t *Team, tt *target.Target, participants []uuid.UUID) (*TargetProgress, error) {
	calc, ok := s.calcs.For(tt.Category)
	if !ok {
		return nil, fmt.Errorf("no calculator for category %s", tt.Category)
	}

	today := time.Now().UTC()
	progress := &TargetProgress{Target: tt}

	for _, pid := range participants {
		emp, err := s.employees.GetByID(ctx, pid)
		if err != nil {
			if errors.Is(err, employee.ErrNotFound) {
				continue
			}
			return nil, err
		}

		window, current := tt.Window(), 0
		if own := s.personalTarget(ctx, pid, tt.Category, today); own != nil {
			window, current = own.Window(), own.CurrentValue
		}

		value, err := calc.Compute(ctx, pid, emp.Role, window, current)
		if err != nil {
			return nil, fmt.Errorf("compute %s for %s: %w", tt.Category, pid, err)
		}

		progress.Members = append(progress.Members, MemberProgress{
			EmployeeID: emp.ID,
			Name:       emp.Name,
			Role:       emp.Role,
			Value:      value,
			IsLeader:   pid == t.LeaderID,
		})
		progress.Total += value
	}

	var completedAt *time.Time
	if progress.Total >= tt.TargetValue && tt.CompletedAt == nil {
		now := time.Now().UTC()
		completedAt = &now
	}
	if err := s.targets.UpdateProgressValue(ctx, tt.ID, progress.Total, completedAt); err != nil {
		return nil, err
	}
	tt.CurrentValue = progress.Total
	if tt.CompletedAt == nil {
		tt.CompletedAt = completedAt
	}
	return progress, nil
}

// personalTarget finds the participant's own active target in the category,
// ignoring team-owned rows. Lookup failures fall back to the team window.
func (s *Service) personalTarget(ctx context.Context, employeeID uuid.UUID, category string, day time.Time) *target.Target {
	own, err := s.targets.ListActiveForEmployeeCategoryDate(ctx, employeeID, category, day)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("employee_id", employeeID.String()).
			Msg("personal target lookup failed")
		return nil
	}
	for _, o := range own {
		if o.TeamID == nil {
			return o
		}
	}
	return nil
}

// leaderboardTeamLimit caps how many active teams a single leaderboard pass
// will rank.
const leaderboardTeamLimit = 1000

// Leaderboard ranks active teams by their mean team-target completion. A
// team without active team targets ranks last at zero.
func (s *Service) Leaderboard(ctx context.Context) ([]*LeaderboardEntry, error) {
	active := true
	teams, _, err := s.repo.List(ctx, Filter{Active: &active}, leaderboardTeamLimit, 0)
	if err != nil {
		return nil, err
	}

	entries := make([]*LeaderboardEntry, 0, len(teams))
	for _, t := range teams {
		progress, err := s.Progress(ctx, t.ID)
		if err != nil {
			return nil, err
		}

		entry := &LeaderboardEntry{TeamID: t.ID, TeamName: t.Name, ActiveTargets: len(progress)}
		if leader, err := s.employees.GetByID(ctx, t.LeaderID); err == nil {
			entry.LeaderName = LeaderDisplayName(t.Name, leader.Name)
		}

		var sum float64
		for _, p := range progress {
			pct := float64(p.Total) / float64(p.Target.TargetValue) * 100
			if pct > 100 {
				pct = 100
			}
			sum += pct
		}
		if len(progress) > 0 {
			entry.CompletionPct = sum / float64(len(progress))
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CompletionPct != entries[j].CompletionPct {
			return entries[i].CompletionPct > entries[j].CompletionPct
		}
		return entries[i].TeamName < entries[j].TeamName
	})
	return entries, nil
}
