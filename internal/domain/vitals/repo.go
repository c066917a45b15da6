package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists measurements. Rows are append-only.
type Repository interface {
	Insert(ctx context.Context, m *Measurement) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error)
	// Recent returns measurements newer than since, newest first, capped
	// at limit rows. Feeds the trend window.
	Recent(ctx context.Context, patientID uuid.UUID, since time.Time, limit int) ([]*Measurement, error)
}
