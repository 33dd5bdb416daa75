package team

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const teamCols = `id, name, leader_id, is_active, created_at, updated_at`

func scanTeam(row pgx.Row) (*Team, error) {
	var t Team
	err := row.Scan(&t.ID, &t.Name, &t.LeaderID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *Team) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO team (id, name, leader_id, is_active)
		VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.LeaderID, t.IsActive)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Team, error) {
	return scanTeam(r.conn(ctx).QueryRow(ctx,
		`SELECT `+teamCols+` FROM team WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, t *Team) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE team SET name = $2, leader_id = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.LeaderID, t.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM team WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Team, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.LeaderID != nil {
		where += " AND leader_id = " + arg(*f.LeaderID)
	}
	if f.Active != nil {
		where += " AND is_active = " + arg(*f.Active)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM team "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + teamCols + " FROM team " + where +
		" ORDER BY created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.LeaderID, &t.IsActive,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		teams = append(teams, &t)
	}
	return teams, total, rows.Err()
}

func (r *repoPG) AddMember(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO team_member (id, team_id, employee_id, is_active)
		VALUES ($1, $2, $3, TRUE)`,
		m.ID, m.TeamID, m.EmployeeID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyOnTeam
	}
	return err
}

func (r *repoPG) RemoveMember(ctx context.Context, teamID, employeeID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE team_member SET is_active = FALSE
		WHERE team_id = $1 AND employee_id = $2 AND is_active`,
		teamID, employeeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListMembers(ctx context.Context, teamID uuid.UUID) ([]*Member, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, team_id, employee_id, is_active, created_at
		FROM team_member WHERE team_id = $1 AND is_active ORDER BY created_at`,
		teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.TeamID, &m.EmployeeID, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (r *repoPG) ActiveTeamFor(ctx context.Context, employeeID uuid.UUID) (*Team, error) {
	return scanTeam(r.conn(ctx).QueryRow(ctx, `
		SELECT t.id, t.name, t.leader_id, t.is_active, t.created_at, t.updated_at
		FROM team t
		JOIN team_member m ON m.team_id = t.id AND m.is_active
		WHERE m.employee_id = $1 AND t.is_active`,
		employeeID))
}
