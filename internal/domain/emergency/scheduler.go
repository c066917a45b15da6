package emergency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/platform/errs"
)

// EscalationScheduler arms and cancels the delayed escalations of a case.
type EscalationScheduler interface {
	Arm(caseID uuid.UUID, rules []EscalationRule, createdAt time.Time) error
	CancelAll(caseID uuid.UUID)
}

// EscalateFunc is invoked when a timer fires. It must tolerate the case
// having been resolved in the meantime.
type EscalateFunc func(caseID uuid.UUID, level int)

type pairKey struct {
	caseID uuid.UUID
	level  int
}

// armedAction is one pending escalation. The claimed flag is the race
// arbiter: both the firing callback and cancellation CompareAndSwap it, so
// exactly one of them wins per pair.
type armedAction struct {
	timer   *time.Timer
	claimed atomic.Bool
}

// Scheduler keeps live timer handles keyed by (case, level).
type Scheduler struct {
	mu      sync.Mutex
	actions map[pairKey]*armedAction
	fire    EscalateFunc
	closed  bool
	log     zerolog.Logger
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		actions: make(map[pairKey]*armedAction),
		log:     log,
	}
}

// OnFire sets the escalation callback. Must be called before Arm; split
// from the constructor because the case service and the scheduler reference
// each other.
func (s *Scheduler) OnFire(fn EscalateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire = fn
}

// Arm schedules one delayed escalation per rule, each firing at
// createdAt + rule.After. Offsets already in the past fire immediately.
func (s *Scheduler) Arm(caseID uuid.UUID, rules []EscalationRule, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.Scheduling("escalation scheduler is shut down", nil)
	}
	if s.fire == nil {
		return errs.Scheduling("escalation scheduler has no callback bound", nil)
	}

	for _, rule := range rules {
		key := pairKey{caseID: caseID, level: rule.Level}
		if _, exists := s.actions[key]; exists {
			continue
		}
		action := &armedAction{}
		delay := time.Until(createdAt.Add(rule.After))
		if delay < 0 {
			delay = 0
		}
		level := rule.Level
		action.timer = time.AfterFunc(delay, func() {
			s.fired(key, level)
		})
		s.actions[key] = action
	}
	return nil
}

func (s *Scheduler) fired(key pairKey, level int) {
	s.mu.Lock()
	action, ok := s.actions[key]
	fn := s.fire
	s.mu.Unlock()
	if !ok || !action.claimed.CompareAndSwap(false, true) {
		// Cancellation claimed the pair first.
		return
	}
	s.mu.Lock()
	delete(s.actions, key)
	s.mu.Unlock()

	fn(key.caseID, level)
}

// CancelAll claims and stops every still-pending escalation of the case.
// Pairs already claimed by a firing callback are left alone. Idempotent.
func (s *Scheduler) CancelAll(caseID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, action := range s.actions {
		if key.caseID != caseID {
			continue
		}
		if action.claimed.CompareAndSwap(false, true) {
			action.timer.Stop()
		}
		delete(s.actions, key)
	}
}

// Pending reports how many escalations are still armed for the case.
func (s *Scheduler) Pending(caseID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.actions {
		if key.caseID == caseID {
			n++
		}
	}
	return n
}

// Shutdown cancels everything and rejects further Arm calls.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, action := range s.actions {
		if action.claimed.CompareAndSwap(false, true) {
			action.timer.Stop()
		}
		delete(s.actions, key)
	}
}
