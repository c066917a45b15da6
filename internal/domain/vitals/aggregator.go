package vitals

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CaseSink is the piece of the emergency service the aggregator needs:
// attach the alerts to the patient's open case, or open a new one.
type CaseSink interface {
	AttachOrCreate(ctx context.Context, patientID uuid.UUID, measurementIDs []uuid.UUID, alerts []Alert) (caseID uuid.UUID, created bool, err error)
}

const aggregatorStripes = 64

// Aggregator decides whether a classified measurement opens a new emergency
// case or folds into an existing one. Classification for the same patient is
// serialized on a striped lock so two near-simultaneous critical readings
// cannot both pass the no-open-case check.
type Aggregator struct {
	sink  CaseSink
	locks [aggregatorStripes]sync.Mutex
	log   zerolog.Logger
}

func NewAggregator(sink CaseSink, log zerolog.Logger) *Aggregator {
	return &Aggregator{sink: sink, log: log}
}

func (a *Aggregator) stripe(patientID uuid.UUID) *sync.Mutex {
	idx := binary.BigEndian.Uint32(patientID[:4]) % aggregatorStripes
	return &a.locks[idx]
}

// Classify routes critical alerts into the case machinery. Warning-only
// alert sets are returned to the caller for display but never open a case.
func (a *Aggregator) Classify(ctx context.Context, patientID uuid.UUID, measurementIDs []uuid.UUID, alerts []Alert) (caseID uuid.UUID, created, attached bool, err error) {
	if !HasCritical(alerts) {
		return uuid.Nil, false, false, nil
	}

	mu := a.stripe(patientID)
	mu.Lock()
	defer mu.Unlock()

	caseID, created, err = a.sink.AttachOrCreate(ctx, patientID, measurementIDs, alerts)
	if err != nil {
		return uuid.Nil, false, false, err
	}
	a.log.Info().
		Str("patient_id", patientID.String()).
		Str("case_id", caseID.String()).
		Bool("created", created).
		Msg("critical measurement routed to emergency case")
	return caseID, created, !created, nil
}
