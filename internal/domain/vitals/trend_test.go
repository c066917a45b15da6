package vitals

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func reading(age time.Duration, hr, sys, temp *float64, now time.Time) Reading {
	return Reading{At: now.Add(-age), HeartRate: hr, SystolicBP: sys, Temperature: temp}
}

func TestAnalyze_HeartRateVariability(t *testing.T) {
	now := time.Now()
	window := []Reading{
		reading(0, f(80), nil, nil, now),
		reading(time.Hour, f(70), nil, nil, now),
		reading(2*time.Hour, f(90), nil, nil, now),
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.HRVariability == nil {
		t.Fatal("expected heart-rate variability to be reported")
	}
	// Sample stddev of 80, 70, 90 is 10.
	if math.Abs(*s.HRVariability-10) > 1e-9 {
		t.Errorf("stddev = %g, want 10", *s.HRVariability)
	}
}

func TestAnalyze_HRVariabilityNeedsTwoReadings(t *testing.T) {
	now := time.Now()
	s := Analyze(uuid.New(), []Reading{reading(0, f(80), nil, nil, now)}, nil, now)
	if s.HRVariability != nil {
		t.Error("expected variability unreported with a single reading")
	}
}

func TestAnalyze_BPTrendWorsening(t *testing.T) {
	now := time.Now()
	// Newest three mean 160, oldest three mean 120: +40 is worsening.
	window := []Reading{
		reading(0, nil, f(162), nil, now),
		reading(time.Hour, nil, f(160), nil, now),
		reading(2*time.Hour, nil, f(158), nil, now),
		reading(3*time.Hour, nil, f(122), nil, now),
		reading(4*time.Hour, nil, f(120), nil, now),
		reading(5*time.Hour, nil, f(118), nil, now),
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.BPTrend != TrendWorsening {
		t.Errorf("BPTrend = %s, want %s", s.BPTrend, TrendWorsening)
	}
}

func TestAnalyze_BPTrendImproving(t *testing.T) {
	now := time.Now()
	window := []Reading{
		reading(0, nil, f(118), nil, now),
		reading(time.Hour, nil, f(120), nil, now),
		reading(2*time.Hour, nil, f(160), nil, now),
		reading(3*time.Hour, nil, f(162), nil, now),
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.BPTrend != TrendImproving {
		t.Errorf("BPTrend = %s, want %s", s.BPTrend, TrendImproving)
	}
}

func TestAnalyze_BPTrendStableWithinThreshold(t *testing.T) {
	now := time.Now()
	window := []Reading{
		reading(0, nil, f(125), nil, now),
		reading(time.Hour, nil, f(120), nil, now),
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.BPTrend != TrendStable {
		t.Errorf("BPTrend = %s, want %s", s.BPTrend, TrendStable)
	}
}

func TestAnalyze_TempTrendHalfDegreeThreshold(t *testing.T) {
	now := time.Now()
	window := []Reading{
		reading(0, nil, nil, f(37.8), now),
		reading(time.Hour, nil, nil, f(37.0), now),
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.TempTrend != TrendWorsening {
		t.Errorf("TempTrend = %s, want %s", s.TempTrend, TrendWorsening)
	}
}

func TestAnalyze_ThinWindowComparesDisjointEnds(t *testing.T) {
	now := time.Now()
	// Three readings: the newest and oldest must land in separate
	// segments so the middle value cannot mask the jump.
	window := []Reading{
		reading(0, nil, f(140), nil, now),
		reading(time.Hour, nil, f(128), nil, now),
		reading(2*time.Hour, nil, f(118), nil, now),
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.BPTrend != TrendWorsening {
		t.Errorf("BPTrend = %s, want %s", s.BPTrend, TrendWorsening)
	}
}

func TestAnalyze_WindowAgeAndCap(t *testing.T) {
	now := time.Now()
	window := []Reading{
		reading(0, f(80), nil, nil, now),
		reading(25*time.Hour, f(200), nil, nil, now), // outside 24h, must be ignored
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.ReadingCount != 1 {
		t.Errorf("ReadingCount = %d, want 1", s.ReadingCount)
	}

	var big []Reading
	for i := 0; i < 15; i++ {
		big = append(big, reading(time.Duration(i)*time.Minute, f(80), nil, nil, now))
	}
	s = Analyze(uuid.New(), big, nil, now)
	if s.ReadingCount != TrendWindowCap {
		t.Errorf("ReadingCount = %d, want %d", s.ReadingCount, TrendWindowCap)
	}
}

func TestAnalyze_OverallStatus(t *testing.T) {
	now := time.Now()
	healthy := []Reading{
		reading(0, f(72), nil, nil, now),
		reading(time.Hour, f(74), nil, nil, now),
		reading(2*time.Hour, f(70), nil, nil, now),
	}

	s := Analyze(uuid.New(), healthy, nil, now)
	if s.OverallStatus != StatusGood {
		t.Errorf("healthy window: status = %s, want %s", s.OverallStatus, StatusGood)
	}

	warn := []Alert{{Parameter: ParamHeartRate, Severity: SeverityWarning}}
	s = Analyze(uuid.New(), healthy, warn, now)
	if s.OverallStatus != StatusConcerning {
		t.Errorf("warning alert: status = %s, want %s", s.OverallStatus, StatusConcerning)
	}

	crit := []Alert{{Parameter: ParamHeartRate, Severity: SeverityCritical}}
	s = Analyze(uuid.New(), healthy, crit, now)
	if s.OverallStatus != StatusCritical {
		t.Errorf("critical alert: status = %s, want %s", s.OverallStatus, StatusCritical)
	}
}

func TestAnalyze_ThinWindowUnknownUnlessCritical(t *testing.T) {
	now := time.Now()
	thin := []Reading{
		reading(0, f(110), nil, nil, now),
		reading(time.Hour, f(72), nil, nil, now),
	}

	warn := []Alert{{Parameter: ParamHeartRate, Severity: SeverityWarning}}
	s := Analyze(uuid.New(), thin, warn, now)
	if s.OverallStatus != StatusUnknown {
		t.Errorf("thin window with warning: status = %s, want %s", s.OverallStatus, StatusUnknown)
	}

	crit := []Alert{{Parameter: ParamHeartRate, Severity: SeverityCritical}}
	s = Analyze(uuid.New(), thin, crit, now)
	if s.OverallStatus != StatusCritical {
		t.Errorf("thin window with critical: status = %s, want %s", s.OverallStatus, StatusCritical)
	}
}

func TestAnalyze_ConcerningFromWindowHistory(t *testing.T) {
	now := time.Now()
	// A past reading breaches the warning band even though the current one
	// produced no alert.
	window := []Reading{
		reading(0, f(72), nil, nil, now),
		reading(time.Hour, f(110), nil, nil, now),
		reading(2*time.Hour, f(74), nil, nil, now),
	}
	s := Analyze(uuid.New(), window, nil, now)
	if s.OverallStatus != StatusConcerning {
		t.Errorf("status = %s, want %s", s.OverallStatus, StatusConcerning)
	}
}

func TestGroupReadings(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	earlier := now.Add(-time.Hour)
	ms := []*Measurement{
		{Parameter: ParamHeartRate, Value: 72, MeasuredAt: now},
		{Parameter: ParamSystolicBP, Value: 120, MeasuredAt: now},
		{Parameter: ParamHeartRate, Value: 80, MeasuredAt: earlier},
	}
	readings := GroupReadings(ms)
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if !readings[0].At.Equal(now) {
		t.Error("expected newest reading first")
	}
	if readings[0].HeartRate == nil || *readings[0].HeartRate != 72 {
		t.Error("heart rate not grouped into newest reading")
	}
	if readings[0].SystolicBP == nil || *readings[0].SystolicBP != 120 {
		t.Error("systolic not grouped into newest reading")
	}
}
