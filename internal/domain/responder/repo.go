package responder

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Responder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Responder, error)
	Update(ctx context.Context, r *Responder) error
	List(ctx context.Context, limit, offset int) ([]*Responder, int, error)
	// RankedAvailable returns available responders holding one of the given
	// roles, least-loaded first.
	RankedAvailable(ctx context.Context, roles []string, limit int) ([]*Responder, error)
	AdjustLoad(ctx context.Context, id uuid.UUID, delta int) error
}
