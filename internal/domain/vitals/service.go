package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/platform/errs"
	"github.com/telecare/telecare/internal/platform/ws"
)

// PatientDirectory verifies patient references before ingestion.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service runs the ingestion pipeline: validate, classify, persist,
// recompute trends, route criticals into the case machinery, broadcast.
type Service struct {
	repo       Repository
	patients   PatientDirectory
	aggregator *Aggregator
	cache      TrendCache
	publisher  ws.Publisher
	log        zerolog.Logger
}

func NewService(repo Repository, patients PatientDirectory, aggregator *Aggregator, cache TrendCache, publisher ws.Publisher, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		patients:   patients,
		aggregator: aggregator,
		cache:      cache,
		publisher:  publisher,
		log:        log,
	}
}

// IngestBatch processes each vital set independently. A malformed item is
// reported in its slot of the result without blocking the rest of the batch.
func (s *Service) IngestBatch(ctx context.Context, patientID uuid.UUID, items []VitalSet) ([]IngestResult, error) {
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("patient", patientID.String())
	}

	results := make([]IngestResult, len(items))
	for i := range items {
		results[i] = s.ingestOne(ctx, patientID, &items[i])
	}
	return results, nil
}

func (s *Service) ingestOne(ctx context.Context, patientID uuid.UUID, set *VitalSet) IngestResult {
	if err := ValidateSet(set); err != nil {
		s.log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("measurement rejected")
		return IngestResult{Error: err.Error(), ErrorKind: errorKind(err), OverallStatus: StatusUnknown}
	}

	alerts := Evaluate(set)

	measurementIDs, err := s.persist(ctx, patientID, set)
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", patientID.String()).Msg("failed to persist measurement")
		return IngestResult{Error: "failed to persist measurement", ErrorKind: "internal", OverallStatus: StatusUnknown}
	}

	summary := s.recomputeTrend(ctx, patientID, alerts)

	result := IngestResult{Alerts: alerts, OverallStatus: summary.OverallStatus}
	caseID, created, attached, err := s.aggregator.Classify(ctx, patientID, measurementIDs, alerts)
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", patientID.String()).Msg("case classification failed")
		result.Error = err.Error()
		result.ErrorKind = errorKind(err)
		return result
	}
	result.CaseID = caseID
	result.CaseCreated = created
	result.CaseAttached = attached

	s.broadcast(ctx, patientID, set, alerts, summary)
	return result
}

// persist writes one row per present parameter, all stamped with the set's
// timestamp so the trend analyzer can fold them back into one reading.
func (s *Service) persist(ctx context.Context, patientID uuid.UUID, set *VitalSet) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for parameter, value := range set.parameters() {
		m := &Measurement{
			PatientID:  patientID,
			DeviceID:   set.DeviceID,
			Parameter:  parameter,
			Value:      value,
			Unit:       unitFor(parameter),
			MeasuredAt: set.MeasuredAt,
		}
		if err := s.repo.Insert(ctx, m); err != nil {
			return nil, err
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *Service) recomputeTrend(ctx context.Context, patientID uuid.UUID, alerts []Alert) TrendSummary {
	now := time.Now().UTC()
	recent, err := s.repo.Recent(ctx, patientID, now.Add(-TrendWindowAge), TrendWindowCap*6)
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", patientID.String()).Msg("failed to load trend window")
		return TrendSummary{PatientID: patientID, BPTrend: TrendUnknown, TempTrend: TrendUnknown, OverallStatus: StatusUnknown, ComputedAt: now}
	}
	summary := Analyze(patientID, GroupReadings(recent), alerts, now)
	if err := s.cache.Put(ctx, summary); err != nil {
		// Cache loss degrades trend reads, never ingestion.
		s.log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("failed to cache trend summary")
	}
	return summary
}

// Trends serves the latest summary, recomputing from storage on cache miss.
func (s *Service) Trends(ctx context.Context, patientID uuid.UUID) (*TrendSummary, error) {
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("patient", patientID.String())
	}

	if cached, err := s.cache.Get(ctx, patientID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("trend cache read failed")
	}

	summary := s.recomputeTrend(ctx, patientID, nil)
	return &summary, nil
}

func (s *Service) ListMeasurements(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

type measurementEvent struct {
	PatientID uuid.UUID    `json:"patient_id"`
	Set       *VitalSet    `json:"vitals"`
	Alerts    []Alert      `json:"alerts,omitempty"`
	Trend     TrendSummary `json:"trend"`
}

func (s *Service) broadcast(ctx context.Context, patientID uuid.UUID, set *VitalSet, alerts []Alert, summary TrendSummary) {
	data, err := json.Marshal(measurementEvent{PatientID: patientID, Set: set, Alerts: alerts, Trend: summary})
	if err != nil {
		return
	}
	eventType := "measurement.recorded"
	if len(alerts) > 0 {
		eventType = "alert.raised"
	}
	event := ws.Event{
		Type:       eventType,
		Topic:      ws.PatientTopic(patientID),
		Resource:   "measurement",
		ResourceID: patientID.String(),
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish measurement event")
	}
}

func errorKind(err error) string {
	var ve *errs.ValidationError
	var nf *errs.NotFoundError
	var sc *errs.StateConflictError
	var se *errs.SchedulingError
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &sc):
		return "state_conflict"
	case errors.As(err, &se):
		return "scheduling"
	default:
		return "internal"
	}
}
