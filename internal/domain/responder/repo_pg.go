package responder

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telecare/telecare/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const responderCols = `id, name, role, specialty, phone, email, push_token,
	available, active_cases, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Responder, error) {
	var res Responder
	err := row.Scan(&res.ID, &res.Name, &res.Role, &res.Specialty, &res.Phone, &res.Email, &res.PushToken,
		&res.Available, &res.ActiveCases, &res.CreatedAt, &res.UpdatedAt)
	return &res, err
}

func (r *repoPG) Create(ctx context.Context, res *Responder) error {
	res.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO responder (id, name, role, specialty, phone, email, push_token, available)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		res.ID, res.Name, res.Role, res.Specialty, res.Phone, res.Email, res.PushToken, res.Available)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Responder, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+responderCols+` FROM responder WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, res *Responder) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE responder SET name=$2, role=$3, specialty=$4, phone=$5, email=$6,
			push_token=$7, available=$8, updated_at=NOW()
		WHERE id = $1`,
		res.ID, res.Name, res.Role, res.Specialty, res.Phone, res.Email,
		res.PushToken, res.Available)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Responder, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM responder`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+responderCols+` FROM responder ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Responder
	for rows.Next() {
		res, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, res)
	}
	return items, total, rows.Err()
}

func (r *repoPG) RankedAvailable(ctx context.Context, roles []string, limit int) ([]*Responder, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+responderCols+` FROM responder
		WHERE available AND role = ANY($1)
		ORDER BY active_cases ASC, updated_at ASC
		LIMIT $2`, roles, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Responder
	for rows.Next() {
		res, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}
	return items, rows.Err()
}

func (r *repoPG) AdjustLoad(ctx context.Context, id uuid.UUID, delta int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE responder SET active_cases = GREATEST(active_cases + $2, 0), updated_at = NOW()
		WHERE id = $1`, id, delta)
	return err
}
