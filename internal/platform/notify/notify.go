// Package notify delivers responder alerts over SMS, email, and push.
// Every dispatch is recorded as a Communication with its delivery status,
// and failed deliveries are retried by a background worker independent of
// case-state mutation: a notification provider outage must never block or
// roll back an acknowledgment or escalation.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Channel is the transport used for one communication.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Delivery states of a Communication.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Communication records one attempted delivery to one responder.
type Communication struct {
	ID          uuid.UUID  `json:"id"`
	CaseID      uuid.UUID  `json:"case_id"`
	ResponderID uuid.UUID  `json:"responder_id"`
	Channel     Channel    `json:"channel"`
	Recipient   string     `json:"recipient"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

// ---------------------------------------------------------------------------
// Sender interfaces
// ---------------------------------------------------------------------------

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// PushSender is the interface for sending push notifications.
type PushSender interface {
	SendPush(ctx context.Context, deviceToken, title, body string) error
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Notifier is the surface the emergency service depends on.
type Notifier interface {
	Dispatch(ctx context.Context, comm *Communication) uuid.UUID
}

const defaultMaxAttempts = 5

// Dispatcher sends communications, records their outcome, and retries
// failures on a background worker.
type Dispatcher struct {
	sms    SMSSender
	email  EmailSender
	push   PushSender
	logger zerolog.Logger

	mu    sync.RWMutex
	comms map[uuid.UUID]*Communication

	retryInterval time.Duration
	maxAttempts   int
}

func NewDispatcher(sms SMSSender, email EmailSender, push PushSender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sms:           sms,
		email:         email,
		push:          push,
		logger:        logger,
		comms:         make(map[uuid.UUID]*Communication),
		retryInterval: 30 * time.Second,
		maxAttempts:   defaultMaxAttempts,
	}
}

// Dispatch records the communication and attempts delivery asynchronously.
// It returns the communication ID immediately; callers poll or subscribe for
// the delivery outcome rather than waiting on the provider.
func (d *Dispatcher) Dispatch(ctx context.Context, comm *Communication) uuid.UUID {
	comm.ID = uuid.New()
	comm.Status = StatusPending
	comm.CreatedAt = time.Now().UTC()

	d.mu.Lock()
	d.comms[comm.ID] = comm
	d.mu.Unlock()

	go d.attempt(context.WithoutCancel(ctx), comm.ID)
	return comm.ID
}

func (d *Dispatcher) attempt(ctx context.Context, id uuid.UUID) {
	d.mu.Lock()
	comm, ok := d.comms[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	comm.Attempts++
	channel := comm.Channel
	recipient := comm.Recipient
	subject := comm.Subject
	body := comm.Body
	d.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	switch channel {
	case ChannelSMS:
		err = d.sms.SendSMS(sendCtx, recipient, body)
	case ChannelEmail:
		err = d.email.SendEmail(sendCtx, recipient, subject, body)
	case ChannelPush:
		err = d.push.SendPush(sendCtx, recipient, subject, body)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		comm.Status = StatusFailed
		comm.LastError = err.Error()
		d.logger.Warn().
			Str("communication_id", id.String()).
			Str("channel", string(channel)).
			Int("attempts", comm.Attempts).
			Err(err).
			Msg("notification delivery failed")
		return
	}
	now := time.Now().UTC()
	comm.Status = StatusSent
	comm.SentAt = &now
	comm.LastError = ""
}

// Start runs the retry worker until ctx is cancelled. Failed communications
// are re-attempted until maxAttempts is reached.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.retryFailed(ctx)
		}
	}
}

func (d *Dispatcher) retryFailed(ctx context.Context) {
	d.mu.RLock()
	var due []uuid.UUID
	for id, comm := range d.comms {
		if comm.Status == StatusFailed && comm.Attempts < d.maxAttempts {
			due = append(due, id)
		}
	}
	d.mu.RUnlock()

	for _, id := range due {
		d.attempt(ctx, id)
	}
}

// Get returns a communication by ID.
func (d *Dispatcher) Get(id uuid.UUID) (*Communication, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	comm, ok := d.comms[id]
	if !ok {
		return nil, false
	}
	copied := *comm
	return &copied, true
}

// ListByCase returns all communications recorded for a case.
func (d *Dispatcher) ListByCase(caseID uuid.UUID) []*Communication {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*Communication
	for _, comm := range d.comms {
		if comm.CaseID == caseID {
			copied := *comm
			result = append(result, &copied)
		}
	}
	return result
}

// Stats returns communication counts grouped by status.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, comm := range d.comms {
		stats[comm.Status]++
	}
	return stats
}
