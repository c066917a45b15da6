package patient

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

const patientCols = `id, mrn, active, first_name, last_name, birth_date, gender,
	phone_mobile, email, address_line1, city, postal_code,
	emergency_contact_name, emergency_contact_phone, monitoring_enabled,
	created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.Active, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender,
		&p.PhoneMobile, &p.Email, &p.AddressLine1, &p.City, &p.PostalCode,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.MonitoringEnabled,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, mrn, active, first_name, last_name, birth_date, gender,
			phone_mobile, email, address_line1, city, postal_code,
			emergency_contact_name, emergency_contact_phone, monitoring_enabled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.MRN, p.Active, p.FirstName, p.LastName, p.BirthDate, p.Gender,
		p.PhoneMobile, p.Email, p.AddressLine1, p.City, p.PostalCode,
		p.EmergencyContactName, p.EmergencyContactPhone, p.MonitoringEnabled)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET mrn=$2, active=$3, first_name=$4, last_name=$5, birth_date=$6,
			gender=$7, phone_mobile=$8, email=$9, address_line1=$10, city=$11, postal_code=$12,
			emergency_contact_name=$13, emergency_contact_phone=$14, monitoring_enabled=$15,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.MRN, p.Active, p.FirstName, p.LastName, p.BirthDate,
		p.Gender, p.PhoneMobile, p.Email, p.AddressLine1, p.City, p.PostalCode,
		p.EmergencyContactName, p.EmergencyContactPhone, p.MonitoringEnabled)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE patient SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient WHERE active ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1 AND active)`, id).Scan(&exists)
	return exists, err
}
