package target

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/incentive/internal/platform/telemetry"
)

type Service struct {
	repo    Repository
	calcs   *CalculatorSet
	roles   RoleLookup
	logger  zerolog.Logger
	metrics *telemetry.Provider
}

func NewService(repo Repository, calcs *CalculatorSet, roles RoleLookup, logger zerolog.Logger, metrics *telemetry.Provider) *Service {
	return &Service{repo: repo, calcs: calcs, roles: roles, logger: logger, metrics: metrics}
}

type CreateInput struct {
	AssignedToID uuid.UUID  `json:"assigned_to_id"`
	AssignedByID *uuid.UUID `json:"assigned_by_id,omitempty"`
	Type         string     `json:"type"`
	Category     string     `json:"category"`
	Description  string     `json:"description"`
	TargetValue  int        `json:"target_value"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	TeamID       *uuid.UUID `json:"team_id,omitempty"`
}

type UpdateInput struct {
	Type        *string    `json:"type,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Description *string    `json:"description,omitempty"`
	TargetValue *int       `json:"target_value,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("start_date and end_date are required")
	}
	if end.Before(start) {
		return fmt.Errorf("end_date must not precede start_date")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Target, error) {
	if in.AssignedToID == uuid.Nil {
		return nil, fmt.Errorf("assigned_to_id is required")
	}
	if !ValidTargetType(in.Type) {
		return nil, fmt.Errorf("invalid target type: %s", in.Type)
	}
	if !ValidCategory(in.Category) {
		return nil, fmt.Errorf("invalid target category: %s", in.Category)
	}
	if in.TargetValue < 1 {
		return nil, fmt.Errorf("target_value must be at least 1")
	}
	if err := validateWindow(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	t := &Target{
		AssignedToID: in.AssignedToID,
		AssignedByID: in.AssignedByID,
		Type:         in.Type,
		Category:     in.Category,
		Description:  in.Description,
		TargetValue:  in.TargetValue,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		IsActive:     true,
		TeamID:       in.TeamID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("target_id", t.ID.String()).
		Str("category", t.Category).
		Int("target_value", t.TargetValue).
		Msg("target created")
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Target, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Target, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Type != nil {
		if !ValidTargetType(*in.Type) {
			return nil, fmt.Errorf("invalid target type: %s", *in.Type)
		}
		t.Type = *in.Type
	}
	if in.Category != nil {
		if !ValidCategory(*in.Category) {
			return nil, fmt.Errorf("invalid target category: %s", *in.Category)
		}
		t.Category = *in.Category
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.TargetValue != nil {
		if *in.TargetValue < 1 {
			return nil, fmt.Errorf("target_value must be at least 1")
		}
		t.TargetValue = *in.TargetValue
	}
	if in.StartDate != nil {
		t.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		t.EndDate = *in.EndDate
	}
	if err := validateWindow(t.StartDate, t.EndDate); err != nil {
		return nil, err
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Target, int, error) {
	if f.Category != "" && !ValidCategory(f.Category) {
		return nil, 0, fmt.Errorf("invalid target category: %s", f.Category)
	}
	if f.Type != "" && !ValidTargetType(f.Type) {
		return nil, 0, fmt.Errorf("invalid target type: %s", f.Type)
	}
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Progress(ctx context.Context, targetID uuid.UUID) ([]*Progress, error) {
	if _, err := s.repo.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	return s.repo.ListProgress(ctx, targetID)
}

// CalculateProgress recomputes the target's running total from its category
// calculator and persists it. Completion is monotonic: crossing the
// threshold stamps completed_at once; a later recompute below the threshold
// lowers the value but keeps the stamp. Safe to run any number of times.
func (s *Service) CalculateProgress(ctx context.Context, targetID uuid.UUID) (*Target, error) {
	t, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return s.recompute(ctx, t)
}

func (s *Service) recompute(ctx context.Context, t *Target) (*Target, error) {
	calc, ok := s.calcs.For(t.Category)
	if !ok {
		return nil, fmt.Errorf("no calculator for category %s", t.Category)
	}

	role, err := s.roles.Role(ctx, t.AssignedToID)
	if err != nil {
		return nil, fmt.Errorf("resolve assignee role: %w", err)
	}

	value, err := calc.Compute(ctx, t.AssignedToID, role, t.Window(), t.CurrentValue)
	if err != nil {
		return nil, fmt.Errorf("compute %s progress: %w", t.Category, err)
	}

	var completedAt *time.Time
	if value >= t.TargetValue && t.CompletedAt == nil {
		now := time.Now().UTC()
		completedAt = &now
		if s.metrics != nil {
			s.metrics.Inc(telemetry.CounterTargetsCompleted)
		}
	}
	if err := s.repo.UpdateProgressValue(ctx, t.ID, value, completedAt); err != nil {
		return nil, err
	}

	t.CurrentValue = value
	if t.CompletedAt == nil {
		t.CompletedAt = completedAt
	}
	return t, nil
}

// UpdateProgress manually sets a custom target's running total and today's
// daily bucket. Calculated categories reject manual writes; their figures
// come from the ledger or clinical history.
func (s *Service) UpdateProgress(ctx context.Context, targetID uuid.UUID, value int, notes string) (*Target, error) {
	if value < 0 {
		return nil, fmt.Errorf("progress value must not be negative")
	}
	t, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if t.Category != CategoryCustom {
		return nil, fmt.Errorf("progress for %s targets is calculated, not set", t.Category)
	}

	var completedAt *time.Time
	if value >= t.TargetValue && t.CompletedAt == nil {
		now := time.Now().UTC()
		completedAt = &now
		if s.metrics != nil {
			s.metrics.Inc(telemetry.CounterTargetsCompleted)
		}
	}
	if err := s.repo.UpdateProgressValue(ctx, targetID, value, completedAt); err != nil {
		return nil, err
	}
	if err := s.repo.SetDayProgress(ctx, targetID, time.Now().UTC(), value, notes); err != nil {
		return nil, err
	}

	t.CurrentValue = value
	if t.CompletedAt == nil {
		t.CompletedAt = completedAt
	}
	return t, nil
}

// Increment is the fast path run right after a commission is recorded: every
// active target of the employee and category whose window contains the day
// gets +1 on the daily bucket and the running total. Zero matching targets
// is a normal outcome. The recompute path corrects any drift this shortcut
// accumulates.
func (s *Service) Increment(ctx context.Context, category string, employeeID uuid.UUID, day time.Time) error {
	if !ValidCategory(category) {
		return fmt.Errorf("invalid target category: %s", category)
	}

	targets, err := s.repo.ListActiveForEmployeeCategoryDate(ctx, employeeID, category, day)
	if err != nil {
		return err
	}

	for _, t := range targets {
		if err := s.repo.AddDayProgress(ctx, t.ID, day, 1); err != nil {
			return err
		}
		value := t.CurrentValue + 1
		var completedAt *time.Time
		if value >= t.TargetValue && t.CompletedAt == nil {
			now := time.Now().UTC()
			completedAt = &now
			if s.metrics != nil {
				s.metrics.Inc(telemetry.CounterTargetsCompleted)
			}
			s.logger.Info().
				Str("target_id", t.ID.String()).
				Str("category", t.Category).
				Msg("target completed")
		}
		if err := s.repo.UpdateProgressValue(ctx, t.ID, value, completedAt); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.Inc(telemetry.CounterTargetIncrements)
		}
	}
	return nil
}

// CommissionRecorded makes the service a commission-side notifier: it maps
// the ledger entry type to a category and runs the increment fast path.
// Ledger types with no category mapping are ignored.
func (s *Service) CommissionRecorded(ctx context.Context, commissionType string, employeeID uuid.UUID, day time.Time) error {
	category, ok := CategoryForCommissionType(commissionType)
	if !ok {
		return nil
	}
	return s.Increment(ctx, category, employeeID, day)
}

func (s *Service) Statistics(ctx context.Context, f Filter) (*Stats, error) {
	return s.repo.Stats(ctx, f, time.Now().UTC())
}

// Sweep deactivates active targets whose window has ended. Running it twice
// for the same day changes nothing the second time.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	retired, err := s.repo.RetireExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.Inc(telemetry.CounterSweepsRun)
		s.metrics.Add(telemetry.CounterTargetsRetired, int64(retired))
	}
	if retired > 0 {
		s.logger.Info().Int("retired", retired).Msg("expired targets deactivated")
	}
	return retired, nil
}
