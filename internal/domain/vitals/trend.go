package vitals

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TrendWindow caps how far back and how many readings the analyzer looks at.
const (
	TrendWindowAge = 24 * time.Hour
	TrendWindowCap = 10
)

// Reading groups the measurements of one moment in time. The repository
// stores one row per parameter; GroupReadings folds them back together.
type Reading struct {
	At          time.Time
	HeartRate   *float64
	SystolicBP  *float64
	DiastolicBP *float64
	Temperature *float64
	SpO2        *float64
	RespRate    *float64
}

// GroupReadings buckets per-parameter measurement rows by their timestamp
// and returns readings sorted newest first.
func GroupReadings(measurements []*Measurement) []Reading {
	byTime := make(map[time.Time]*Reading)
	for _, m := range measurements {
		r, ok := byTime[m.MeasuredAt]
		if !ok {
			r = &Reading{At: m.MeasuredAt}
			byTime[m.MeasuredAt] = r
		}
		v := m.Value
		switch m.Parameter {
		case ParamHeartRate:
			r.HeartRate = &v
		case ParamSystolicBP:
			r.SystolicBP = &v
		case ParamDiastolicBP:
			r.DiastolicBP = &v
		case ParamTemperature:
			r.Temperature = &v
		case ParamSpO2:
			r.SpO2 = &v
		case ParamRespiratoryRate:
			r.RespRate = &v
		}
	}
	readings := make([]Reading, 0, len(byTime))
	for _, r := range byTime {
		readings = append(readings, *r)
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].At.After(readings[j].At) })
	return readings
}

// Analyze computes the rolling trend summary for a patient. The window is
// expected newest first and already includes the current reading; it is
// re-trimmed here to the configured age and cap. currentAlerts are the
// alerts of the measurement that triggered recomputation.
func Analyze(patientID uuid.UUID, window []Reading, currentAlerts []Alert, now time.Time) TrendSummary {
	cutoff := now.Add(-TrendWindowAge)
	trimmed := make([]Reading, 0, len(window))
	for _, r := range window {
		if r.At.Before(cutoff) {
			continue
		}
		trimmed = append(trimmed, r)
		if len(trimmed) == TrendWindowCap {
			break
		}
	}

	summary := TrendSummary{
		PatientID:    patientID,
		ReadingCount: len(trimmed),
		BPTrend:      TrendUnknown,
		TempTrend:    TrendUnknown,
		ComputedAt:   now,
	}

	summary.HRVariability = heartRateStdDev(trimmed)
	summary.BPTrend = directionalTrend(trimmed, func(r Reading) *float64 { return r.SystolicBP }, 10)
	summary.TempTrend = directionalTrend(trimmed, func(r Reading) *float64 { return r.Temperature }, 0.5)
	summary.OverallStatus = overallStatus(trimmed, currentAlerts)
	return summary
}

// heartRateStdDev is the sample standard deviation of the window's heart
// rates. Fewer than two readings leaves it unreported.
func heartRateStdDev(window []Reading) *float64 {
	var values []float64
	for _, r := range window {
		if r.HeartRate != nil {
			values = append(values, *r.HeartRate)
		}
	}
	n := len(values)
	if n < 2 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(n-1))
	return &sd
}

// directionalTrend compares the mean of the newest values against the mean
// of the oldest, up to 3 on each side. The segments never overlap, so thin
// windows of 2 or 3 readings still compare newest against oldest. A rise
// past the threshold is worsening, a fall past it improving. Requires at
// least two readings carrying the value.
func directionalTrend(window []Reading, pick func(Reading) *float64, threshold float64) string {
	var values []float64 // newest first, matching window order
	for _, r := range window {
		if v := pick(r); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) < 2 {
		return TrendUnknown
	}
	k := len(values) / 2
	if k > 3 {
		k = 3
	}
	if k < 1 {
		k = 1
	}
	newest := mean(values[:k])
	oldest := mean(values[len(values)-k:])
	diff := newest - oldest
	switch {
	case diff > threshold:
		return TrendWorsening
	case diff < -threshold:
		return TrendImproving
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// overallStatus is the maximum severity across the current alerts and the
// re-evaluated window. A thin window yields unknown unless the current
// reading is itself critical.
func overallStatus(window []Reading, currentAlerts []Alert) string {
	if HasCritical(currentAlerts) {
		return StatusCritical
	}
	if len(window) < 3 {
		return StatusUnknown
	}
	if len(currentAlerts) > 0 {
		return StatusConcerning
	}
	for _, r := range window {
		set := VitalSet{
			MeasuredAt:      r.At,
			HeartRate:       r.HeartRate,
			SystolicBP:      r.SystolicBP,
			DiastolicBP:     r.DiastolicBP,
			Temperature:     r.Temperature,
			SpO2:            r.SpO2,
			RespiratoryRate: r.RespRate,
		}
		if len(Evaluate(&set)) > 0 {
			return StatusConcerning
		}
	}
	return StatusGood
}
