package emergency

import (
	"time"

	"github.com/google/uuid"
)

// Case lifecycle statuses. Status moves forward only; resolved and
// false_alarm are terminal.
const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResponding   = "responding"
	StatusResolved     = "resolved"
	StatusFalseAlarm   = "false_alarm"
)

// Trigger types.
const (
	TriggerManual            = "manual"
	TriggerVitalSigns        = "vital_signs"
	TriggerFallDetection     = "fall_detection"
	TriggerPanicButton       = "panic_button"
	TriggerDeviceMalfunction = "device_malfunction"
	TriggerMedicationMissed  = "medication_missed"
	TriggerGeofenceBreach    = "geofence_breach"
)

// Severities and priorities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Resolution outcomes.
const (
	OutcomeStabilized    = "stabilized"
	OutcomeHospitalized  = "hospitalized"
	OutcomeTreatedOnSite = "treated_on_site"
	OutcomeFalseAlarm    = "false_alarm"
)

// Escalation levels run 1 to 5 on an axis independent of status; the level
// only ever increases.
const (
	MinEscalationLevel = 1
	MaxEscalationLevel = 5
)

// EmergencyCase is the aggregate record of one patient-safety incident,
// from trigger to resolution.
type EmergencyCase struct {
	ID                  uuid.UUID      `db:"id" json:"id"`
	PatientID           uuid.UUID      `db:"patient_id" json:"patient_id"`
	TriggerType         string         `db:"trigger_type" json:"trigger_type"`
	Severity            string         `db:"severity" json:"severity"`
	Priority            string         `db:"priority" json:"priority"`
	Status              string         `db:"status" json:"status"`
	EscalationLevel     int            `db:"escalation_level" json:"escalation_level"`
	AssignedResponderID *uuid.UUID     `db:"assigned_responder_id" json:"assigned_responder_id,omitempty"`
	AssignedAt          *time.Time     `db:"assigned_at" json:"assigned_at,omitempty"`
	Description         string         `db:"description" json:"description"`
	Location            *string        `db:"location" json:"location,omitempty"`
	Outcome             *string        `db:"outcome" json:"outcome,omitempty"`
	FollowUp            *string        `db:"follow_up" json:"follow_up,omitempty"`
	ResolvedBy          *uuid.UUID     `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	ResponseTime        *time.Duration `db:"response_time" json:"response_time,omitempty"`
	ResolutionTime      *time.Duration `db:"resolution_time" json:"resolution_time,omitempty"`
	EscalationCount     int            `db:"escalation_count" json:"escalation_count"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`

	Acknowledgments []Acknowledgment `db:"-" json:"acknowledgments,omitempty"`
}

// Open reports whether the case still accepts mutations.
func (c *EmergencyCase) Open() bool {
	switch c.Status {
	case StatusActive, StatusAcknowledged, StatusResponding:
		return true
	}
	return false
}

// Terminal is the complement of Open.
func (c *EmergencyCase) Terminal() bool { return !c.Open() }

// Acknowledgment is one entry in the case's acknowledgment list. Repeat
// acknowledgments by the same user are all recorded; the list is the audit
// trail, not a set.
type Acknowledgment struct {
	ID     uuid.UUID `db:"id" json:"id"`
	CaseID uuid.UUID `db:"case_id" json:"case_id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`
	Note   *string   `db:"note" json:"note,omitempty"`
	At     time.Time `db:"acknowledged_at" json:"acknowledged_at"`
}

// TimelineEvent is one append-only entry in a case's history. Seq increases
// monotonically per case and is the source of truth for ordering; wall
// clocks are informational.
type TimelineEvent struct {
	ID          uuid.UUID `db:"id" json:"id"`
	CaseID      uuid.UUID `db:"case_id" json:"case_id"`
	Seq         int       `db:"seq" json:"seq"`
	Actor       string    `db:"actor" json:"actor"`
	Description string    `db:"description" json:"description"`
	At          time.Time `db:"created_at" json:"created_at"`
}

// ActorAutomated marks timeline entries written by the system rather than
// a user.
const ActorAutomated = "automated"

// EscalationRule schedules one automatic escalation: After the offset from
// case creation, raise to Level.
type EscalationRule struct {
	After time.Duration `json:"after"`
	Level int           `json:"level"`
}

// DefaultEscalationRules returns the standard chain: 5, 15, 30 and 60
// minutes after creation raising to levels 2 through 5.
func DefaultEscalationRules() []EscalationRule {
	return []EscalationRule{
		{After: 5 * time.Minute, Level: 2},
		{After: 15 * time.Minute, Level: 3},
		{After: 30 * time.Minute, Level: 4},
		{After: 60 * time.Minute, Level: 5},
	}
}

// RulesFromOffsets builds a rule chain from configured offsets, mapping
// them in order onto levels 2 and up.
func RulesFromOffsets(offsets []time.Duration) []EscalationRule {
	rules := make([]EscalationRule, 0, len(offsets))
	for i, off := range offsets {
		rules = append(rules, EscalationRule{After: off, Level: i + 2})
	}
	return rules
}

func validTrigger(t string) bool {
	switch t {
	case TriggerManual, TriggerVitalSigns, TriggerFallDetection, TriggerPanicButton,
		TriggerDeviceMalfunction, TriggerMedicationMissed, TriggerGeofenceBreach:
		return true
	}
	return false
}

func validSeverity(s string) bool {
	return s == SeverityWarning || s == SeverityCritical
}

func validPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func validOutcome(o string) bool {
	switch o {
	case OutcomeStabilized, OutcomeHospitalized, OutcomeTreatedOnSite, OutcomeFalseAlarm:
		return true
	}
	return false
}
