package emergency

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows ListActive results. Nil fields match everything.
type ListFilter struct {
	Severity   *string
	Priority   *string
	AssignedTo *uuid.UUID
}

// Repository persists cases, acknowledgments and the append-only timeline.
type Repository interface {
	Create(ctx context.Context, c *EmergencyCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*EmergencyCase, error)
	Update(ctx context.Context, c *EmergencyCase) error
	// FindOpenByPatient returns the patient's open case or nil.
	FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*EmergencyCase, error)
	ListActive(ctx context.Context, filter ListFilter, limit, offset int) ([]*EmergencyCase, int, error)

	AppendAcknowledgment(ctx context.Context, ack *Acknowledgment) error
	Acknowledgments(ctx context.Context, caseID uuid.UUID) ([]Acknowledgment, error)

	// AppendTimeline assigns the next per-case sequence number. Callers
	// must hold the case lock so sequence assignment stays monotonic.
	AppendTimeline(ctx context.Context, event *TimelineEvent) error
	Timeline(ctx context.Context, caseID uuid.UUID) ([]TimelineEvent, error)
}
