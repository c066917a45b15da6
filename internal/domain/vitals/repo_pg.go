package vitals

import (
	"context"
	"time"

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

const measurementCols = `id, patient_id, device_id, parameter, value, unit, measured_at, created_at`

func (r *repoPG) scan(row pgx.Row) (*Measurement, error) {
	var m Measurement
	err := row.Scan(&m.ID, &m.PatientID, &m.DeviceID, &m.Parameter, &m.Value, &m.Unit, &m.MeasuredAt, &m.CreatedAt)
	return &m, err
}

func (r *repoPG) Insert(ctx context.Context, m *Measurement) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO measurement (id, patient_id, device_id, parameter, value, unit, measured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.PatientID, m.DeviceID, m.Parameter, m.Value, m.Unit, m.MeasuredAt)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM measurement WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+measurementCols+` FROM measurement
		WHERE patient_id = $1
		ORDER BY measured_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := r.collect(rows)
	return items, total, err
}

func (r *repoPG) Recent(ctx context.Context, patientID uuid.UUID, since time.Time, limit int) ([]*Measurement, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+measurementCols+` FROM measurement
		WHERE patient_id = $1 AND measured_at > $2
		ORDER BY measured_at DESC
		LIMIT $3`, patientID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Measurement, error) {
	var items []*Measurement
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
