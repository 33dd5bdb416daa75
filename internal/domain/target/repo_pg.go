package target

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/incentive/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if q := db.ConnFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const targetCols = `id, assigned_to_id, assigned_by_id, type, category, description,
	target_value, current_value, start_date, end_date, is_active, completed_at,
	team_id, created_at, updated_at`

func scanTarget(row pgx.Row) (*Target, error) {
	var t Target
	err := row.Scan(&t.ID, &t.AssignedToID, &t.AssignedByID, &t.Type, &t.Category,
		&t.Description, &t.TargetValue, &t.CurrentValue, &t.StartDate, &t.EndDate,
		&t.IsActive, &t.CompletedAt, &t.TeamID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func scanTargets(rows pgx.Rows) ([]*Target, error) {
	defer rows.Close()
	var targets []*Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.ID, &t.AssignedToID, &t.AssignedByID, &t.Type, &t.Category,
			&t.Description, &t.TargetValue, &t.CurrentValue, &t.StartDate, &t.EndDate,
			&t.IsActive, &t.CompletedAt, &t.TeamID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		targets = append(targets, &t)
	}
	return targets, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, t *Target) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO target (id, assigned_to_id, assigned_by_id, type, category,
			description, target_value, current_value, start_date, end_date,
			is_active, team_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.AssignedToID, t.AssignedByID, t.Type, t.Category, t.Description,
		t.TargetValue, t.CurrentValue, t.StartDate, t.EndDate, t.IsActive, t.TeamID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Target, error) {
	return scanTarget(r.conn(ctx).QueryRow(ctx,
		`SELECT `+targetCols+` FROM target WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, t *Target) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE target SET type = $2, category = $3, description = $4,
			target_value = $5, start_date = $6, end_date = $7, is_active = $8,
			team_id = $9, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Type, t.Category, t.Description, t.TargetValue,
		t.StartDate, t.EndDate, t.IsActive, t.TeamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM target WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Target, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AssignedToID != nil {
		where += " AND assigned_to_id = " + arg(*f.AssignedToID)
	}
	if f.TeamID != nil {
		where += " AND team_id = " + arg(*f.TeamID)
	}
	if f.Category != "" {
		where += " AND category = " + arg(f.Category)
	}
	if f.Type != "" {
		where += " AND type = " + arg(f.Type)
	}
	if f.Active != nil {
		where += " AND is_active = " + arg(*f.Active)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM target "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + targetCols + " FROM target " + where +
		" ORDER BY created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	targets, err := scanTargets(rows)
	return targets, total, err
}

func (r *repoPG) ListActiveForEmployeeCategoryDate(ctx context.Context, employeeID uuid.UUID, category string, day time.Time) ([]*Target, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+targetCols+` FROM target
		WHERE assigned_to_id = $1 AND category = $2 AND is_active
		  AND start_date <= $3::date AND end_date >= $3::date`,
		employeeID, category, day)
	if err != nil {
		return nil, err
	}
	return scanTargets(rows)
}

func (r *repoPG) ListActiveForTeam(ctx context.Context, teamID uuid.UUID) ([]*Target, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+targetCols+` FROM target WHERE team_id = $1 AND is_active`, teamID)
	if err != nil {
		return nil, err
	}
	return scanTargets(rows)
}

func (r *repoPG) UpdateProgressValue(ctx context.Context, id uuid.UUID, value int, completedAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE target SET current_value = $2,
			completed_at = COALESCE(completed_at, $3),
			updated_at = NOW()
		WHERE id = $1`,
		id, value, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) AddDayProgress(ctx context.Context, targetID uuid.UUID, day time.Time, delta int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO target_progress (target_id, day, value)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (target_id, day)
		DO UPDATE SET value = target_progress.value + EXCLUDED.value, updated_at = NOW()`,
		targetID, day, delta)
	return err
}

func (r *repoPG) SetDayProgress(ctx context.Context, targetID uuid.UUID, day time.Time, value int, notes string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO target_progress (target_id, day, value, notes)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (target_id, day)
		DO UPDATE SET value = EXCLUDED.value, notes = EXCLUDED.notes, updated_at = NOW()`,
		targetID, day, value, notes)
	return err
}

func (r *repoPG) ListProgress(ctx context.Context, targetID uuid.UUID) ([]*Progress, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, target_id, day, value, notes, created_at, updated_at
		FROM target_progress WHERE target_id = $1 ORDER BY day`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []*Progress
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.ID, &p.TargetID, &p.Day, &p.Value, &p.Notes,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		progress = append(progress, &p)
	}
	return progress, rows.Err()
}

func (r *repoPG) RetireExpired(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE target SET is_active = FALSE, updated_at = NOW()
		WHERE is_active AND end_date < $1::date`, asOf)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) Stats(ctx context.Context, f Filter, asOf time.Time) (*Stats, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AssignedToID != nil {
		where += " AND assigned_to_id = " + arg(*f.AssignedToID)
	}
	if f.TeamID != nil {
		where += " AND team_id = " + arg(*f.TeamID)
	}
	if f.Category != "" {
		where += " AND category = " + arg(f.Category)
	}
	if f.Type != "" {
		where += " AND type = " + arg(f.Type)
	}
	if f.Active != nil {
		where += " AND is_active = " + arg(*f.Active)
	}

	asOfArg := arg(asOf)
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE completed_at IS NOT NULL),
			COUNT(*) FILTER (WHERE completed_at IS NULL AND is_active AND end_date >= `+asOfArg+`::date),
			COUNT(*) FILTER (WHERE completed_at IS NULL AND is_active AND end_date < `+asOfArg+`::date)
		FROM target `+where, args...).
		Scan(&s.Total, &s.Completed, &s.InProgress, &s.Overdue)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
