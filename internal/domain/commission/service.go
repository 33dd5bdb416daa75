package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/incentive/internal/domain/clinical"
	"github.com/clinicops/incentive/internal/domain/employee"
	"github.com/clinicops/incentive/internal/platform/telemetry"
)

// Transactor runs a function inside a single store transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TargetNotifier advances matching targets after a commission is recorded.
// Notification is best-effort: a failure is logged and never propagated,
// because the full recompute path corrects any missed increment.
type TargetNotifier interface {
	CommissionRecorded(ctx context.Context, commissionType string, employeeID uuid.UUID, day time.Time) error
}

type Service struct {
	repo      Repository
	employees employee.Repository
	history   clinical.HistoryRepository
	tasks     clinical.TaskRepository
	tx        Transactor
	targets   TargetNotifier
	logger    zerolog.Logger
	metrics   *telemetry.Provider
}

func NewService(
	repo Repository,
	employees employee.Repository,
	history clinical.HistoryRepository,
	tasks clinical.TaskRepository,
	tx Transactor,
	targets TargetNotifier,
	logger zerolog.Logger,
	metrics *telemetry.Provider,
) *Service {
	return &Service{
		repo:      repo,
		employees: employees,
		history:   history,
		tasks:     tasks,
		tx:        tx,
		targets:   targets,
		logger:    logger,
		metrics:   metrics,
	}
}

// periodDay normalizes a business date to midnight UTC.
func periodDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Record writes one ledger entry and bumps the payee's commission counter in
// the same transaction. A conflicting entry yields ErrDuplicate and no write.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Commission, error) {
	if in.EmployeeID == uuid.Nil {
		return nil, fmt.Errorf("employee_id is required")
	}
	if !ValidType(in.Type) {
		return nil, fmt.Errorf("invalid commission type: %s", in.Type)
	}
	if in.Period.IsZero() {
		return nil, fmt.Errorf("period is required")
	}

	c := &Commission{
		EmployeeID:    in.EmployeeID,
		PatientID:     in.PatientID,
		Type:          in.Type,
		Amount:        1,
		Period:        periodDay(in.Period),
		SourceVisitID: in.SourceVisitID,
		Description:   in.Description,
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, c); err != nil {
			return err
		}
		return s.employees.IncrementCommissionCount(ctx, c.EmployeeID)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) && s.metrics != nil {
			s.metrics.Inc(telemetry.CounterCommissionsDuplicate)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Inc(telemetry.CounterCommissionsRecorded)
	}
	s.notifyTargets(ctx, c)
	return c, nil
}

// notifyTargets runs the target increment fast path. Failures are swallowed;
// the recompute path is authoritative.
func (s *Service) notifyTargets(ctx context.Context, c *Commission) {
	if s.targets == nil {
		return
	}
	if err := s.targets.CommissionRecorded(ctx, c.Type, c.EmployeeID, c.Period); err != nil {
		s.logger.Error().Err(err).
			Str("commission_id", c.ID.String()).
			Str("type", c.Type).
			Msg("target increment failed")
	}
}

// AwardPatientCreation credits the resolved coordinator for a qualifying
// visit: the appointment carries a specialty and the visit is the patient's
// first ever, or their first at this hospital. A non-qualifying fact is a
// no-op, not an error. Returns ErrDuplicate when the payout already exists.
func (s *Service) AwardPatientCreation(ctx context.Context, fact clinical.VisitFact) (*Commission, error) {
	if !fact.HasSpecialty {
		return nil, nil
	}

	priorAll, err := s.history.CountPriorVisits(ctx, fact.PatientID, fact.VisitID)
	if err != nil {
		return nil, fmt.Errorf("count prior visits: %w", err)
	}
	priorHere, err := s.history.CountPriorVisitsAtHospital(ctx, fact.PatientID, fact.HospitalID, fact.VisitID)
	if err != nil {
		return nil, fmt.Errorf("count prior hospital visits: %w", err)
	}

	var caseLabel string
	switch {
	case priorAll == 0:
		caseLabel = "first visit ever"
	case priorHere == 0:
		caseLabel = "first visit to hospital"
	default:
		return nil, nil
	}

	payee, err := s.resolvePatientCreationPayee(ctx, fact)
	if err != nil {
		return nil, err
	}

	patientID := fact.PatientID
	visitID := fact.VisitID
	return s.Record(ctx, RecordInput{
		EmployeeID:    payee,
		PatientID:     &patientID,
		Type:          TypePatientCreation,
		Period:        fact.ScheduledDate,
		SourceVisitID: &visitID,
		Description:   fmt.Sprintf("New patient commission (%s) for visit %s", caseLabel, visitID),
	})
}

// resolvePatientCreationPayee applies the payee fallback order: the
// appointment creator when the appointment came from a follow-up task and
// the creator's role is incentive-eligible, then the patient's assigned
// sales person if eligible, then any coordinator. The order is a business
// priority and must not be reshuffled.
func (s *Service) resolvePatientCreationPayee(ctx context.Context, fact clinical.VisitFact) (uuid.UUID, error) {
	if fact.AppointmentID != nil {
		appt, err := s.history.GetAppointment(ctx, *fact.AppointmentID)
		if err != nil && !errors.Is(err, clinical.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("load appointment: %w", err)
		}
		if appt != nil && appt.CreatedFromFollowUpTaskID != nil && appt.CreatedByID != nil {
			role, err := s.employees.Role(ctx, *appt.CreatedByID)
			if err != nil && !errors.Is(err, employee.ErrNotFound) {
				return uuid.Nil, fmt.Errorf("resolve creator role: %w", err)
			}
			if role == employee.RoleSales || role == employee.RoleCoordinator {
				return *appt.CreatedByID, nil
			}
		}
	}

	patient, err := s.history.GetPatient(ctx, fact.PatientID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.AssignedSalesID != nil {
		role, err := s.employees.Role(ctx, *patient.AssignedSalesID)
		if err != nil && !errors.Is(err, employee.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("resolve sales role: %w", err)
		}
		if role == employee.RoleSales || role == employee.RoleCoordinator {
			return *patient.AssignedSalesID, nil
		}
	}

	coordinator, err := s.employees.FindAnyByRole(ctx, employee.RoleCoordinator)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("no eligible payee for patient %s", fact.PatientID)
		}
		return uuid.Nil, fmt.Errorf("find coordinator: %w", err)
	}
	return coordinator.ID, nil
}

// AwardFollowUp credits the follow-up task's assignee when an appointment
// created from that task converts to a visit, and approves the task in the
// same transaction as the ledger write.
func (s *Service) AwardFollowUp(ctx context.Context, fact clinical.VisitFact) (*Commission, error) {
	if fact.AppointmentID == nil {
		return nil, nil
	}
	appt, err := s.history.GetAppointment(ctx, *fact.AppointmentID)
	if err != nil {
		if errors.Is(err, clinical.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.CreatedFromFollowUpTaskID == nil {
		return nil, nil
	}

	task, err := s.tasks.GetTask(ctx, *appt.CreatedFromFollowUpTaskID)
	if err != nil {
		return nil, fmt.Errorf("load follow-up task: %w", err)
	}

	patientID := fact.PatientID
	visitID := fact.VisitID
	c := &Commission{
		EmployeeID:    task.AssignedToID,
		PatientID:     &patientID,
		Type:          TypeFollowUp,
		Amount:        1,
		Period:        periodDay(fact.ScheduledDate),
		SourceVisitID: &visitID,
		Description:   fmt.Sprintf("Follow-up commission for visit %s (task %s)", visitID, task.ID),
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, c); err != nil {
			return err
		}
		if err := s.employees.IncrementCommissionCount(ctx, c.EmployeeID); err != nil {
			return err
		}
		return s.tasks.ApproveTask(ctx, task.ID, time.Now().UTC())
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			if s.metrics != nil {
				s.metrics.Inc(telemetry.CounterCommissionsDuplicate)
			}
			return nil, ErrDuplicate
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Inc(telemetry.CounterCommissionsRecorded)
	}
	s.notifyTargets(ctx, c)
	return c, nil
}

// AwardNominationConversion credits the referring coordinator once ever, on
// the nominated patient's very first visit.
func (s *Service) AwardNominationConversion(ctx context.Context, fact clinical.NominationFact) (*Commission, error) {
	prior, err := s.history.CountPriorVisits(ctx, fact.PatientID, fact.VisitID)
	if err != nil {
		return nil, fmt.Errorf("count prior visits: %w", err)
	}
	if prior > 0 {
		return nil, nil
	}

	exists, err := s.repo.ExistsForPatient(ctx, fact.PatientID, TypeNominationConversion)
	if err != nil {
		return nil, fmt.Errorf("check prior nomination commission: %w", err)
	}
	if exists {
		return nil, nil
	}

	patientID := fact.PatientID
	visitID := fact.VisitID
	return s.Record(ctx, RecordInput{
		EmployeeID:    fact.NominatorID,
		PatientID:     &patientID,
		Type:          TypeNominationConversion,
		Period:        fact.VisitDate,
		SourceVisitID: &visitID,
		Description:   fmt.Sprintf("Nomination conversion commission for visit %s", visitID),
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Commission, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Commission, int, error) {
	if f.Type != "" && !ValidType(f.Type) {
		return nil, 0, fmt.Errorf("invalid commission type: %s", f.Type)
	}
	return s.repo.List(ctx, f, limit, offset)
}
