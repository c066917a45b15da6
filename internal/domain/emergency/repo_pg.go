package emergency

import (
	"context"
	"errors"
	"fmt"
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

const caseCols = `id, patient_id, trigger_type, severity, priority, status, escalation_level,
	assigned_responder_id, assigned_at, description, location, outcome, follow_up,
	resolved_by, resolved_at, response_time_ms, resolution_time_ms, escalation_count,
	created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*EmergencyCase, error) {
	var c EmergencyCase
	var responseMs, resolutionMs *int64
	err := row.Scan(&c.ID, &c.PatientID, &c.TriggerType, &c.Severity, &c.Priority, &c.Status,
		&c.EscalationLevel, &c.AssignedResponderID, &c.AssignedAt, &c.Description, &c.Location,
		&c.Outcome, &c.FollowUp, &c.ResolvedBy, &c.ResolvedAt, &responseMs, &resolutionMs,
		&c.EscalationCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if responseMs != nil {
		d := time.Duration(*responseMs) * time.Millisecond
		c.ResponseTime = &d
	}
	if resolutionMs != nil {
		d := time.Duration(*resolutionMs) * time.Millisecond
		c.ResolutionTime = &d
	}
	return &c, nil
}

func durationMs(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func (r *repoPG) Create(ctx context.Context, c *EmergencyCase) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO emergency_case
			(id, patient_id, trigger_type, severity, priority, status, escalation_level, description, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.PatientID, c.TriggerType, c.Severity, c.Priority, c.Status, c.EscalationLevel,
		c.Description, c.Location)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*EmergencyCase, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM emergency_case WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *EmergencyCase) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE emergency_case SET
			status=$2, escalation_level=$3, assigned_responder_id=$4, assigned_at=$5,
			outcome=$6, follow_up=$7, resolved_by=$8, resolved_at=$9,
			response_time_ms=$10, resolution_time_ms=$11, escalation_count=$12, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Status, c.EscalationLevel, c.AssignedResponderID, c.AssignedAt,
		c.Outcome, c.FollowUp, c.ResolvedBy, c.ResolvedAt,
		durationMs(c.ResponseTime), durationMs(c.ResolutionTime), c.EscalationCount)
	return err
}

func (r *repoPG) FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*EmergencyCase, error) {
	c, err := r.scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+caseCols+` FROM emergency_case
		WHERE patient_id = $1 AND status IN ('active','acknowledged','responding')`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *repoPG) ListActive(ctx context.Context, filter ListFilter, limit, offset int) ([]*EmergencyCase, int, error) {
	where := `status IN ('active','acknowledged','responding')`
	args := []interface{}{}
	n := 0
	add := func(clause string, v interface{}) {
		n++
		where += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, v)
	}
	if filter.Severity != nil {
		add("severity", *filter.Severity)
	}
	if filter.Priority != nil {
		add("priority", *filter.Priority)
	}
	if filter.AssignedTo != nil {
		add("assigned_responder_id", *filter.AssignedTo)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM emergency_case WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM emergency_case WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		caseCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*EmergencyCase
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AppendAcknowledgment(ctx context.Context, ack *Acknowledgment) error {
	ack.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO case_acknowledgment (id, case_id, user_id, note)
		VALUES ($1,$2,$3,$4)
		RETURNING acknowledged_at`,
		ack.ID, ack.CaseID, ack.UserID, ack.Note).Scan(&ack.At)
}

func (r *repoPG) Acknowledgments(ctx context.Context, caseID uuid.UUID) ([]Acknowledgment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_id, user_id, note, acknowledged_at
		FROM case_acknowledgment
		WHERE case_id = $1
		ORDER BY acknowledged_at ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acks []Acknowledgment
	for rows.Next() {
		var a Acknowledgment
		if err := rows.Scan(&a.ID, &a.CaseID, &a.UserID, &a.Note, &a.At); err != nil {
			return nil, err
		}
		acks = append(acks, a)
	}
	return acks, rows.Err()
}

func (r *repoPG) AppendTimeline(ctx context.Context, event *TimelineEvent) error {
	event.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO case_timeline (id, case_id, seq, actor, description)
		SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4
		FROM case_timeline WHERE case_id = $2
		RETURNING seq, created_at`,
		event.ID, event.CaseID, event.Actor, event.Description).Scan(&event.Seq, &event.At)
}

func (r *repoPG) Timeline(ctx context.Context, caseID uuid.UUID) ([]TimelineEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_id, seq, actor, description, created_at
		FROM case_timeline
		WHERE case_id = $1
		ORDER BY seq ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var e TimelineEvent
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Seq, &e.Actor, &e.Description, &e.At); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
