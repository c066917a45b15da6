package emergency

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/responder"
	"github.com/telecare/telecare/internal/domain/vitals"
	"github.com/telecare/telecare/internal/platform/errs"
	"github.com/telecare/telecare/internal/platform/notify"
	"github.com/telecare/telecare/internal/platform/ws"
)

// PatientDirectory verifies patient references at case creation.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ResponderDirectory supplies escalation targets, least-loaded first.
type ResponderDirectory interface {
	RankedAvailable(ctx context.Context, roles []string, limit int) ([]*responder.Responder, error)
	GetByID(ctx context.Context, id uuid.UUID) (*responder.Responder, error)
}

const caseStripes = 64

// Service is the case state machine. Every mutation of one case runs under
// that case's stripe lock, making acknowledge/assign/escalate/resolve
// mutually exclusive per case.
type Service struct {
	repo       Repository
	patients   PatientDirectory
	responders ResponderDirectory
	notifier   notify.Notifier
	publisher  ws.Publisher
	scheduler  EscalationScheduler
	rules      []EscalationRule
	locks      [caseStripes]sync.Mutex
	log        zerolog.Logger
}

func NewService(
	repo Repository,
	patients PatientDirectory,
	responders ResponderDirectory,
	notifier notify.Notifier,
	publisher ws.Publisher,
	scheduler EscalationScheduler,
	rules []EscalationRule,
	log zerolog.Logger,
) *Service {
	if len(rules) == 0 {
		rules = DefaultEscalationRules()
	}
	return &Service{
		repo:       repo,
		patients:   patients,
		responders: responders,
		notifier:   notifier,
		publisher:  publisher,
		scheduler:  scheduler,
		rules:      rules,
		log:        log,
	}
}

func (s *Service) lock(caseID uuid.UUID) *sync.Mutex {
	idx := binary.BigEndian.Uint32(caseID[:4]) % caseStripes
	return &s.locks[idx]
}

// CreateInput carries the caller-supplied fields of a new case.
type CreateInput struct {
	PatientID   uuid.UUID `json:"patient_id"`
	TriggerType string    `json:"trigger_type"`
	Severity    string    `json:"severity"`
	Priority    string    `json:"priority"`
	Description string    `json:"description"`
	Location    *string   `json:"location,omitempty"`
}

// Create opens a new case at level 1 and synchronously arms the escalation
// chain. A patient can hold at most one open case; creating while one is
// open returns a StateConflictError. If the scheduler is unavailable the
// case fails open: it is raised to the maximum level immediately rather
// than never escalating.
func (s *Service) Create(ctx context.Context, in CreateInput) (*EmergencyCase, error) {
	if err := s.validateCreate(ctx, in); err != nil {
		return nil, err
	}
	open, err := s.repo.FindOpenByPatient(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for open case: %w", err)
	}
	if open != nil {
		return nil, errs.StateConflict("patient %s already has open case %s", in.PatientID, open.ID)
	}

	c := &EmergencyCase{
		PatientID:       in.PatientID,
		TriggerType:     in.TriggerType,
		Severity:        in.Severity,
		Priority:        in.Priority,
		Status:          StatusActive,
		EscalationLevel: MinEscalationLevel,
		Description:     in.Description,
		Location:        in.Location,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}
	created, err := s.repo.GetByID(ctx, c.ID)
	if err == nil {
		c = created
	}

	s.appendTimeline(ctx, c.ID, ActorAutomated,
		fmt.Sprintf("case created (%s, severity %s, priority %s)", c.TriggerType, c.Severity, c.Priority))

	if err := s.scheduler.Arm(c.ID, s.rules, c.CreatedAt); err != nil {
		s.log.Error().Err(err).Str("case_id", c.ID.String()).
			Msg("escalation scheduling failed, failing open to maximum level")
		s.failOpen(ctx, c)
	}

	s.publish(ctx, "case.created", c)
	s.log.Info().Str("case_id", c.ID.String()).Str("patient_id", c.PatientID.String()).
		Str("severity", c.Severity).Msg("emergency case created")
	return c, nil
}

func (s *Service) validateCreate(ctx context.Context, in CreateInput) error {
	if !validTrigger(in.TriggerType) {
		return errs.Validation("invalid trigger type: %s", in.TriggerType)
	}
	if !validSeverity(in.Severity) {
		return errs.Validation("invalid severity: %s", in.Severity)
	}
	if !validPriority(in.Priority) {
		return errs.Validation("invalid priority: %s", in.Priority)
	}
	ok, err := s.patients.Exists(ctx, in.PatientID)
	if err != nil {
		return fmt.Errorf("failed to verify patient: %w", err)
	}
	if !ok {
		return errs.Validation("unknown patient: %s", in.PatientID)
	}
	return nil
}

// failOpen raises the case to the maximum level right away, under the case
// lock like any other mutation.
func (s *Service) failOpen(ctx context.Context, c *EmergencyCase) {
	mu := s.lock(c.ID)
	mu.Lock()
	defer mu.Unlock()

	c.EscalationLevel = MaxEscalationLevel
	c.EscalationCount++
	if err := s.repo.Update(ctx, c); err != nil {
		s.log.Error().Err(err).Str("case_id", c.ID.String()).Msg("fail-open escalation update failed")
		return
	}
	s.appendTimeline(ctx, c.ID, ActorAutomated,
		fmt.Sprintf("escalated to level %d immediately: scheduler unavailable", MaxEscalationLevel))
	s.notifyLevel(ctx, c, MaxEscalationLevel)
}

// AttachOrCreate folds a critical measurement into the patient's open case
// or opens a new vital-signs case. The vitals aggregator serializes calls
// per patient; this method only implements the decision.
func (s *Service) AttachOrCreate(ctx context.Context, patientID uuid.UUID, measurementIDs []uuid.UUID, alerts []vitals.Alert) (uuid.UUID, bool, error) {
	open, err := s.repo.FindOpenByPatient(ctx, patientID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to look up open case: %w", err)
	}
	if open != nil {
		mu := s.lock(open.ID)
		mu.Lock()
		s.appendTimeline(ctx, open.ID, ActorAutomated, attachDescription(measurementIDs, alerts))
		mu.Unlock()
		s.publish(ctx, "case.measurement_attached", open)
		return open.ID, false, nil
	}

	c, err := s.Create(ctx, CreateInput{
		PatientID:   patientID,
		TriggerType: TriggerVitalSigns,
		Severity:    SeverityCritical,
		Priority:    PriorityUrgent,
		Description: alertSummary(alerts),
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	mu := s.lock(c.ID)
	mu.Lock()
	s.appendTimeline(ctx, c.ID, ActorAutomated, attachDescription(measurementIDs, alerts))
	mu.Unlock()
	return c.ID, true, nil
}

func alertSummary(alerts []vitals.Alert) string {
	msgs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		msgs = append(msgs, a.Message)
	}
	return "critical vital signs: " + strings.Join(msgs, "; ")
}

func attachDescription(measurementIDs []uuid.UUID, alerts []vitals.Alert) string {
	ids := make([]string, 0, len(measurementIDs))
	for _, id := range measurementIDs {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("%s (measurements %s)", alertSummary(alerts), strings.Join(ids, ", "))
}

// Acknowledge appends to the acknowledgment list unconditionally; repeats
// are kept as audit trail. The first acknowledgment moves the case to
// acknowledged, and an acknowledgment by the assigned primary responder
// cancels all pending escalations.
func (s *Service) Acknowledge(ctx context.Context, caseID, userID uuid.UUID, note *string) (*EmergencyCase, error) {
	mu := s.lock(caseID)
	mu.Lock()
	defer mu.Unlock()

	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		s.log.Warn().Str("case_id", caseID.String()).Str("status", c.Status).
			Msg("acknowledgment on terminal case rejected")
		return nil, errs.StateConflict("case %s is %s and cannot be acknowledged", caseID, c.Status)
	}

	ack := &Acknowledgment{CaseID: caseID, UserID: userID, Note: note}
	if err := s.repo.AppendAcknowledgment(ctx, ack); err != nil {
		return nil, fmt.Errorf("failed to record acknowledgment: %w", err)
	}

	if c.Status == StatusActive {
		c.Status = StatusAcknowledged
		if err := s.repo.Update(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to update case: %w", err)
		}
	}
	s.appendTimeline(ctx, caseID, userID.String(), "case acknowledged")

	if c.AssignedResponderID != nil && *c.AssignedResponderID == userID {
		s.scheduler.CancelAll(caseID)
		s.appendTimeline(ctx, caseID, ActorAutomated, "pending escalations cancelled: primary responder acknowledged")
	}

	s.publish(ctx, "case.acknowledged", c)
	return s.withAcks(ctx, c)
}

// Assign sets the primary responder. Status is unchanged.
func (s *Service) Assign(ctx context.Context, caseID, responderID uuid.UUID) (*EmergencyCase, error) {
	mu := s.lock(caseID)
	mu.Lock()
	defer mu.Unlock()

	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		return nil, errs.StateConflict("case %s is %s and cannot be assigned", caseID, c.Status)
	}
	if _, err := s.responders.GetByID(ctx, responderID); err != nil {
		return nil, errs.NotFound("responder", responderID.String())
	}

	now := time.Now().UTC()
	c.AssignedResponderID = &responderID
	c.AssignedAt = &now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to assign responder: %w", err)
	}
	s.appendTimeline(ctx, caseID, ActorAutomated, fmt.Sprintf("responder %s assigned", responderID))
	s.publish(ctx, "case.assigned", c)
	return s.withAcks(ctx, c)
}

// Respond moves an acknowledged case to responding.
func (s *Service) Respond(ctx context.Context, caseID, userID uuid.UUID) (*EmergencyCase, error) {
	mu := s.lock(caseID)
	mu.Lock()
	defer mu.Unlock()

	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusAcknowledged {
		return nil, errs.StateConflict("case %s is %s, responding requires acknowledged", caseID, c.Status)
	}
	c.Status = StatusResponding
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}
	s.appendTimeline(ctx, caseID, userID.String(), "responder en route")
	s.publish(ctx, "case.responding", c)
	return s.withAcks(ctx, c)
}

// Escalate is invoked by the scheduler when a timer fires. A fire landing
// after resolution is the expected race and is dropped without a trace in
// the timeline.
func (s *Service) Escalate(ctx context.Context, caseID uuid.UUID, level int) {
	mu := s.lock(caseID)
	mu.Lock()
	defer mu.Unlock()

	c, err := s.getCase(ctx, caseID)
	if err != nil {
		s.log.Error().Err(err).Str("case_id", caseID.String()).Msg("escalation target case not found")
		return
	}
	if c.Terminal() {
		s.log.Debug().Str("case_id", caseID.String()).Int("level", level).
			Msg("escalation fired after case closed, dropping")
		return
	}

	if level > c.EscalationLevel {
		c.EscalationLevel = level
	}
	c.EscalationCount++
	if err := s.repo.Update(ctx, c); err != nil {
		s.log.Error().Err(err).Str("case_id", caseID.String()).Msg("failed to persist escalation")
		return
	}
	s.appendTimeline(ctx, caseID, ActorAutomated, fmt.Sprintf("escalated to level %d", c.EscalationLevel))
	s.notifyLevel(ctx, c, c.EscalationLevel)
	s.publish(ctx, "case.escalated", c)
	s.log.Info().Str("case_id", caseID.String()).Int("level", c.EscalationLevel).Msg("case escalated")
}

// ResolveInput carries the resolution fields.
type ResolveInput struct {
	UserID   uuid.UUID `json:"user_id"`
	Outcome  string    `json:"outcome"`
	FollowUp *string   `json:"follow_up,omitempty"`
}

// Resolve closes the case, computes its metrics exactly once, and cancels
// any remaining escalations. Resolving an already-terminal case returns a
// StateConflictError and leaves the recorded metrics untouched.
func (s *Service) Resolve(ctx context.Context, caseID uuid.UUID, in ResolveInput) (*EmergencyCase, error) {
	if !validOutcome(in.Outcome) {
		return nil, errs.Validation("invalid outcome: %s", in.Outcome)
	}

	mu := s.lock(caseID)
	mu.Lock()
	defer mu.Unlock()

	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		s.log.Warn().Str("case_id", caseID.String()).Str("status", c.Status).
			Msg("resolve on terminal case rejected")
		return nil, errs.StateConflict("case %s is already %s", caseID, c.Status)
	}

	now := time.Now().UTC()
	c.Status = StatusResolved
	if in.Outcome == OutcomeFalseAlarm {
		c.Status = StatusFalseAlarm
	}
	c.Outcome = &in.Outcome
	c.FollowUp = in.FollowUp
	c.ResolvedBy = &in.UserID
	c.ResolvedAt = &now

	resolution := now.Sub(c.CreatedAt)
	c.ResolutionTime = &resolution
	if acks, err := s.repo.Acknowledgments(ctx, caseID); err == nil && len(acks) > 0 {
		response := acks[0].At.Sub(c.CreatedAt)
		c.ResponseTime = &response
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to resolve case: %w", err)
	}

	s.scheduler.CancelAll(caseID)
	s.appendTimeline(ctx, caseID, in.UserID.String(), fmt.Sprintf("case closed as %s (%s)", c.Status, in.Outcome))
	s.publish(ctx, "case.resolved", c)
	s.log.Info().Str("case_id", caseID.String()).Str("outcome", in.Outcome).
		Dur("resolution_time", resolution).Int("escalations", c.EscalationCount).
		Msg("emergency case resolved")
	return s.withAcks(ctx, c)
}

func (s *Service) Get(ctx context.Context, caseID uuid.UUID) (*EmergencyCase, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.withAcks(ctx, c)
}

func (s *Service) ListActive(ctx context.Context, filter ListFilter, limit, offset int) ([]*EmergencyCase, int, error) {
	return s.repo.ListActive(ctx, filter, limit, offset)
}

func (s *Service) Timeline(ctx context.Context, caseID uuid.UUID) ([]TimelineEvent, error) {
	if _, err := s.getCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.Timeline(ctx, caseID)
}

func (s *Service) getCase(ctx context.Context, caseID uuid.UUID) (*EmergencyCase, error) {
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, errs.NotFound("case", caseID.String())
	}
	return c, nil
}

func (s *Service) withAcks(ctx context.Context, c *EmergencyCase) (*EmergencyCase, error) {
	acks, err := s.repo.Acknowledgments(ctx, c.ID)
	if err == nil {
		c.Acknowledgments = acks
	}
	return c, nil
}

// appendTimeline never fails the surrounding operation; a lost audit row is
// logged and the mutation stands.
func (s *Service) appendTimeline(ctx context.Context, caseID uuid.UUID, actor, description string) {
	event := &TimelineEvent{CaseID: caseID, Actor: actor, Description: description}
	if err := s.repo.AppendTimeline(ctx, event); err != nil {
		s.log.Error().Err(err).Str("case_id", caseID.String()).Str("event", description).
			Msg("failed to append timeline event")
	}
}

// notifyLevel dispatches to every available responder in the level's target
// roles over whichever channels they carry. Dispatch is asynchronous and
// tracked by the notifier; failures never block case mutation.
func (s *Service) notifyLevel(ctx context.Context, c *EmergencyCase, level int) {
	roles := responder.RolesForLevel(level)
	if len(roles) == 0 {
		return
	}
	targets, err := s.responders.RankedAvailable(ctx, roles, 10)
	if err != nil {
		s.log.Error().Err(err).Str("case_id", c.ID.String()).Int("level", level).
			Msg("failed to look up escalation targets")
		return
	}
	body := fmt.Sprintf("Emergency case %s escalated to level %d: %s", c.ID, level, c.Description)
	for _, t := range targets {
		if t.Phone != nil {
			s.notifier.Dispatch(ctx, &notify.Communication{
				CaseID: c.ID, ResponderID: t.ID, Channel: notify.ChannelSMS,
				Recipient: *t.Phone, Body: body,
			})
		}
		if t.Email != nil {
			s.notifier.Dispatch(ctx, &notify.Communication{
				CaseID: c.ID, ResponderID: t.ID, Channel: notify.ChannelEmail,
				Recipient: *t.Email, Subject: "Emergency escalation", Body: body,
			})
		}
		if t.PushToken != nil {
			s.notifier.Dispatch(ctx, &notify.Communication{
				CaseID: c.ID, ResponderID: t.ID, Channel: notify.ChannelPush,
				Recipient: *t.PushToken, Body: body,
			})
		}
	}
	for _, role := range roles {
		s.publishTopic(ctx, "case.escalated", ws.RoleTopic(role), c)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, c *EmergencyCase) {
	s.publishTopic(ctx, eventType, ws.PatientTopic(c.PatientID), c)
}

func (s *Service) publishTopic(ctx context.Context, eventType, topic string, c *EmergencyCase) {
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	event := ws.Event{
		Type:       eventType,
		Topic:      topic,
		Resource:   "emergency_case",
		ResourceID: c.ID.String(),
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("case_id", c.ID.String()).Msg("failed to publish case event")
	}
}
