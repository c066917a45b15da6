package vitals

import (
	"fmt"

	"github.com/telecare/telecare/internal/platform/errs"
)

// band holds the normal range and the critical cut-offs for one parameter.
// Values outside [WarnLow, WarnHigh] are a warning; values below CritLow or
// above CritHigh are critical. Critical takes precedence.
type band struct {
	WarnLow, WarnHigh float64
	CritLow, CritHigh float64
}

var bands = map[string]band{
	ParamHeartRate:       {WarnLow: 60, WarnHigh: 100, CritLow: 40, CritHigh: 150},
	ParamSystolicBP:      {WarnLow: 90, WarnHigh: 140, CritLow: 70, CritHigh: 180},
	ParamDiastolicBP:     {WarnLow: 60, WarnHigh: 90, CritLow: 40, CritHigh: 120},
	ParamTemperature:     {WarnLow: 36.1, WarnHigh: 37.2, CritLow: 35.0, CritHigh: 39.0},
	ParamRespiratoryRate: {WarnLow: 12, WarnHigh: 20, CritLow: 8, CritHigh: 30},
}

// classify returns the severity for a value against a band, or "" when the
// value is inside the normal range.
func (b band) classify(v float64) string {
	if v < b.CritLow || v > b.CritHigh {
		return SeverityCritical
	}
	if v < b.WarnLow || v > b.WarnHigh {
		return SeverityWarning
	}
	return ""
}

func (b band) describe() string {
	return fmt.Sprintf("normal %g-%g, critical <%g or >%g", b.WarnLow, b.WarnHigh, b.CritLow, b.CritHigh)
}

// physicalRange bounds what a sensor can plausibly report. Values outside
// are rejected as validation failures, not classified.
type physicalRange struct{ Min, Max float64 }

var physicalRanges = map[string]physicalRange{
	ParamHeartRate:       {Min: 0, Max: 300},
	ParamSystolicBP:      {Min: 0, Max: 400},
	ParamDiastolicBP:     {Min: 0, Max: 300},
	ParamTemperature:     {Min: 20, Max: 45},
	ParamSpO2:            {Min: 0, Max: 100},
	ParamRespiratoryRate: {Min: 0, Max: 120},
}

// ValidateSet rejects readings outside physical range before any
// classification or persistence happens.
func ValidateSet(set *VitalSet) error {
	if set.MeasuredAt.IsZero() {
		return errs.Validation("measured_at is required")
	}
	for p, v := range set.parameters() {
		r, ok := physicalRanges[p]
		if !ok {
			return errs.Validation("unknown parameter: %s", p)
		}
		if v < r.Min || v > r.Max {
			return errs.Validation("%s value %g outside physical range [%g, %g]", p, v, r.Min, r.Max)
		}
	}
	if (set.SystolicBP == nil) != (set.DiastolicBP == nil) {
		return errs.Validation("systolic and diastolic pressure must be submitted together")
	}
	return nil
}

// parameters flattens the set into present name/value pairs.
func (s *VitalSet) parameters() map[string]float64 {
	out := make(map[string]float64, 6)
	if s.HeartRate != nil {
		out[ParamHeartRate] = *s.HeartRate
	}
	if s.SystolicBP != nil {
		out[ParamSystolicBP] = *s.SystolicBP
	}
	if s.DiastolicBP != nil {
		out[ParamDiastolicBP] = *s.DiastolicBP
	}
	if s.Temperature != nil {
		out[ParamTemperature] = *s.Temperature
	}
	if s.SpO2 != nil {
		out[ParamSpO2] = *s.SpO2
	}
	if s.RespiratoryRate != nil {
		out[ParamRespiratoryRate] = *s.RespiratoryRate
	}
	return out
}

// Evaluate classifies every present parameter in the set and returns the
// resulting alerts. Missing parameters produce no alert. Blood pressure is
// evaluated jointly: the systolic/diastolic pair yields at most one alert,
// critical if either side is critical. Two or more parameters breaching
// their warning bands in the same reading indicate multi-system
// deterioration and the whole set is raised to critical.
func Evaluate(set *VitalSet) []Alert {
	var alerts []Alert

	if set.HeartRate != nil {
		if a := evaluateSingle(ParamHeartRate, *set.HeartRate); a != nil {
			alerts = append(alerts, *a)
		}
	}
	if set.SystolicBP != nil && set.DiastolicBP != nil {
		if a := evaluateBP(*set.SystolicBP, *set.DiastolicBP); a != nil {
			alerts = append(alerts, *a)
		}
	}
	if set.Temperature != nil {
		if a := evaluateSingle(ParamTemperature, *set.Temperature); a != nil {
			alerts = append(alerts, *a)
		}
	}
	if set.SpO2 != nil {
		if a := evaluateSpO2(*set.SpO2); a != nil {
			alerts = append(alerts, *a)
		}
	}
	if set.RespiratoryRate != nil {
		if a := evaluateSingle(ParamRespiratoryRate, *set.RespiratoryRate); a != nil {
			alerts = append(alerts, *a)
		}
	}
	if len(alerts) >= 2 && !HasCritical(alerts) {
		for i := range alerts {
			alerts[i].Severity = SeverityCritical
			alerts[i].Message += "; concurrent abnormal vitals"
		}
	}
	return alerts
}

func evaluateSingle(parameter string, value float64) *Alert {
	b := bands[parameter]
	sev := b.classify(value)
	if sev == "" {
		return nil
	}
	return &Alert{
		Parameter: parameter,
		Value:     value,
		Severity:  sev,
		Threshold: b.describe(),
		Message:   fmt.Sprintf("%s %g %s is %s (%s)", parameter, value, unitFor(parameter), sev, b.describe()),
	}
}

// evaluateBP reports the systolic/diastolic pair as a single alert. The
// reported value is the side that breached the more severe band.
func evaluateBP(systolic, diastolic float64) *Alert {
	sysBand, diaBand := bands[ParamSystolicBP], bands[ParamDiastolicBP]
	sysSev, diaSev := sysBand.classify(systolic), diaBand.classify(diastolic)
	if sysSev == "" && diaSev == "" {
		return nil
	}

	sev := SeverityWarning
	if sysSev == SeverityCritical || diaSev == SeverityCritical {
		sev = SeverityCritical
	}
	parameter, value, b := ParamSystolicBP, systolic, sysBand
	if diaSev == sev && sysSev != sev {
		parameter, value, b = ParamDiastolicBP, diastolic, diaBand
	}
	return &Alert{
		Parameter: "blood_pressure",
		Value:     value,
		Severity:  sev,
		Threshold: b.describe(),
		Message:   fmt.Sprintf("blood pressure %g/%g mmHg is %s (%s %s)", systolic, diastolic, sev, parameter, b.describe()),
	}
}

// SpO2 has no upper bound; only low saturation alerts.
func evaluateSpO2(value float64) *Alert {
	if value >= 95 {
		return nil
	}
	sev := SeverityWarning
	if value < 90 {
		sev = SeverityCritical
	}
	return &Alert{
		Parameter: ParamSpO2,
		Value:     value,
		Severity:  sev,
		Threshold: "warning <95, critical <90",
		Message:   fmt.Sprintf("oxygen saturation %g%% is %s (warning <95, critical <90)", value, sev),
	}
}

// HasCritical reports whether any alert in the slice is critical.
func HasCritical(alerts []Alert) bool {
	for _, a := range alerts {
		if a.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
