package vitals

import (
	"time"

	"github.com/google/uuid"
)

// Vital-sign parameter names.
const (
	ParamHeartRate       = "heart_rate"
	ParamSystolicBP      = "systolic_bp"
	ParamDiastolicBP     = "diastolic_bp"
	ParamTemperature     = "temperature"
	ParamSpO2            = "spo2"
	ParamRespiratoryRate = "respiratory_rate"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Trend directions.
const (
	TrendWorsening = "worsening"
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendUnknown   = "unknown"
)

// Overall patient statuses.
const (
	StatusGood       = "good"
	StatusConcerning = "concerning"
	StatusCritical   = "critical"
	StatusUnknown    = "unknown"
)

// Measurement is one recorded vital-sign reading. Immutable once persisted.
type Measurement struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	DeviceID   *string   `db:"device_id" json:"device_id,omitempty"`
	Parameter  string    `db:"parameter" json:"parameter"`
	Value      float64   `db:"value" json:"value"`
	Unit       string    `db:"unit" json:"unit"`
	MeasuredAt time.Time `db:"measured_at" json:"measured_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// VitalSet carries the named parameters of one batch item taken at the same
// moment. Nil pointers mean the parameter was not measured.
type VitalSet struct {
	DeviceID        *string   `json:"device_id,omitempty"`
	MeasuredAt      time.Time `json:"measured_at"`
	HeartRate       *float64  `json:"heart_rate,omitempty"`
	SystolicBP      *float64  `json:"systolic_bp,omitempty"`
	DiastolicBP     *float64  `json:"diastolic_bp,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	SpO2            *float64  `json:"spo2,omitempty"`
	RespiratoryRate *float64  `json:"respiratory_rate,omitempty"`
}

// Alert is produced by threshold evaluation. Never persisted standalone;
// it travels with the measurement or the emergency case it triggered.
type Alert struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Severity  string  `json:"severity"`
	Threshold string  `json:"threshold"`
	Message   string  `json:"message"`
}

// TrendSummary is the per-patient rolling-window aggregate. Only the latest
// value per patient is kept, in the cache.
type TrendSummary struct {
	PatientID     uuid.UUID `json:"patient_id"`
	ReadingCount  int       `json:"reading_count"`
	HRVariability *float64  `json:"hr_variability,omitempty"`
	BPTrend       string    `json:"bp_trend"`
	TempTrend     string    `json:"temp_trend"`
	OverallStatus string    `json:"overall_status"`
	ComputedAt    time.Time `json:"computed_at"`
}

// IngestResult reports the outcome of one batch item. Items fail
// independently; Error is set when the item was rejected.
type IngestResult struct {
	Alerts        []Alert   `json:"alerts"`
	CaseCreated   bool      `json:"case_created"`
	CaseAttached  bool      `json:"case_attached"`
	CaseID        uuid.UUID `json:"case_id,omitempty"`
	OverallStatus string    `json:"overall_status"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
}

func unitFor(parameter string) string {
	switch parameter {
	case ParamHeartRate:
		return "bpm"
	case ParamSystolicBP, ParamDiastolicBP:
		return "mmHg"
	case ParamTemperature:
		return "°C"
	case ParamSpO2:
		return "%"
	case ParamRespiratoryRate:
		return "breaths/min"
	default:
		return ""
	}
}
