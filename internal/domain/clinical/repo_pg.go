package clinical

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/incentive/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a repository implementing both HistoryRepository and
// TaskRepository against the shared clinical tables.
func NewRepoPG(pool *pgxpool.Pool) *repoPG { return &repoPG{pool: pool} }

var (
	_ HistoryRepository = (*repoPG)(nil)
	_ TaskRepository    = (*repoPG)(nil)
)

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if q := db.ConnFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, assigned_sales_id, created_at FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.AssignedSalesID, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repoPG) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	var v Visit
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, patient_id, hospital_id, appointment_id, scheduled_date, has_specialty, created_at
		 FROM visit WHERE id = $1`, id).
		Scan(&v.ID, &v.PatientID, &v.HospitalID, &v.AppointmentID, &v.ScheduledDate, &v.HasSpecialty, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *repoPG) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, patient_id, created_by_id, created_from_follow_up_task_id, has_specialty, created_at
		 FROM appointment WHERE id = $1`, id).
		Scan(&a.ID, &a.PatientID, &a.CreatedByID, &a.CreatedFromFollowUpTaskID, &a.HasSpecialty, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *repoPG) CountPriorVisits(ctx context.Context, patientID, visitID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit WHERE patient_id = $1 AND id <> $2`,
		patientID, visitID).Scan(&n)
	return n, err
}

func (r *repoPG) CountPriorVisitsAtHospital(ctx context.Context, patientID, hospitalID, visitID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit WHERE patient_id = $1 AND hospital_id = $2 AND id <> $3`,
		patientID, hospitalID, visitID).Scan(&n)
	return n, err
}

// A visit qualifies when it carries a specialty and is either the patient's
// earliest visit anywhere or their earliest visit at that hospital. Earliest
// is by scheduled date with row creation time as the tiebreak, so a
// first-ever visit that is simultaneously a first-at-hospital visit counts
// once.
func (r *repoPG) CountQualifyingNewPatientVisits(ctx context.Context, salesID uuid.UUID, start, end time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM visit v
		JOIN patient p ON p.id = v.patient_id
		WHERE p.assigned_sales_id = $1
		  AND v.has_specialty
		  AND v.scheduled_date >= $2::date
		  AND v.scheduled_date <= $3::date
		  AND (
		    NOT EXISTS (
		      SELECT 1 FROM visit prior
		      WHERE prior.patient_id = v.patient_id
		        AND prior.id <> v.id
		        AND (prior.scheduled_date < v.scheduled_date
		             OR (prior.scheduled_date = v.scheduled_date AND prior.created_at < v.created_at))
		    )
		    OR NOT EXISTS (
		      SELECT 1 FROM visit prior
		      WHERE prior.patient_id = v.patient_id
		        AND prior.hospital_id = v.hospital_id
		        AND prior.id <> v.id
		        AND (prior.scheduled_date < v.scheduled_date
		             OR (prior.scheduled_date = v.scheduled_date AND prior.created_at < v.created_at))
		    )
		  )`,
		salesID, start, end).Scan(&n)
	return n, err
}

func (r *repoPG) GetTask(ctx context.Context, id uuid.UUID) (*FollowUpTask, error) {
	var t FollowUpTask
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, assigned_to_id, patient_id, status, completed_at, created_at
		 FROM follow_up_task WHERE id = $1`, id).
		Scan(&t.ID, &t.AssignedToID, &t.PatientID, &t.Status, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *repoPG) ApproveTask(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE follow_up_task SET status = $2, completed_at = $3
		 WHERE id = $1 AND status = $4`,
		id, TaskApproved, at, TaskPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Already approved is fine; the conversion path retries.
	task, err := r.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status == TaskApproved {
		return nil
	}
	return ErrTaskNotOpen
}
