package responder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service manages the on-call responder roster.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Create(ctx context.Context, res *Responder) error {
	if res.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validRole(res.Role) {
		return fmt.Errorf("invalid role: %s", res.Role)
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return fmt.Errorf("failed to create responder: %w", err)
	}
	s.log.Info().Str("responder_id", res.ID.String()).Str("role", res.Role).Msg("responder created")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Responder, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, res *Responder) error {
	if !validRole(res.Role) {
		return fmt.Errorf("invalid role: %s", res.Role)
	}
	return s.repo.Update(ctx, res)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Responder, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// SetAvailability flips a responder on or off the call roster.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	res.Available = available
	if err := s.repo.Update(ctx, res); err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	s.log.Info().Str("responder_id", id.String()).Bool("available", available).Msg("responder availability changed")
	return nil
}

// RankedAvailable returns available responders holding any of the given
// roles, least-loaded first.
func (s *Service) RankedAvailable(ctx context.Context, roles []string, limit int) ([]*Responder, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	if limit <= 0 {
		limit = 10
	}
	return s.repo.RankedAvailable(ctx, roles, limit)
}

func (s *Service) AdjustLoad(ctx context.Context, id uuid.UUID, delta int) error {
	return s.repo.AdjustLoad(ctx, id, delta)
}
