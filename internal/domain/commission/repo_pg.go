package commission

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

const commCols = `id, employee_id, patient_id, type, amount, period, source_visit_id, description, created_at`

func scanCommission(row pgx.Row) (*Commission, error) {
	var c Commission
	err := row.Scan(&c.ID, &c.EmployeeID, &c.PatientID, &c.Type, &c.Amount,
		&c.Period, &c.SourceVisitID, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *repoPG) Insert(ctx context.Context, c *Commission) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Amount == 0 {
		c.Amount = 1
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO commission (id, employee_id, patient_id, type, amount, period, source_visit_id, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT DO NOTHING`,
		c.ID, c.EmployeeID, c.PatientID, c.Type, c.Amount, c.Period, c.SourceVisitID, c.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Commission, error) {
	return scanCommission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+commCols+` FROM commission WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Commission, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.EmployeeID != nil {
		where += " AND employee_id = " + arg(*f.EmployeeID)
	}
	if f.PatientID != nil {
		where += " AND patient_id = " + arg(*f.PatientID)
	}
	if f.Type != "" {
		where += " AND type = " + arg(f.Type)
	}
	if f.From != nil {
		where += " AND period >= " + arg(*f.From)
	}
	if f.To != nil {
		where += " AND period <= " + arg(*f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM commission "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + commCols + " FROM commission " + where +
		" ORDER BY created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var commissions []*Commission
	for rows.Next() {
		var c Commission
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.PatientID, &c.Type, &c.Amount,
			&c.Period, &c.SourceVisitID, &c.Description, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		commissions = append(commissions, &c)
	}
	return commissions, total, rows.Err()
}

func (r *repoPG) CountForEmployee(ctx context.Context, employeeID uuid.UUID, commissionType string, start, end time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM commission
		 WHERE employee_id = $1 AND type = $2 AND created_at >= $3 AND created_at <= $4`,
		employeeID, commissionType, start, end).Scan(&n)
	return n, err
}

func (r *repoPG) ExistsForPatient(ctx context.Context, patientID uuid.UUID, commissionType string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM commission WHERE patient_id = $1 AND type = $2)`,
		patientID, commissionType).Scan(&exists)
	return exists, err
}
