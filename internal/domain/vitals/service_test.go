package vitals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/platform/ws"
)

type mockMeasurementRepo struct {
	mu           sync.Mutex
	measurements []*Measurement
}

func (m *mockMeasurementRepo) Insert(ctx context.Context, meas *Measurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meas.ID = uuid.New()
	copied := *meas
	m.measurements = append(m.measurements, &copied)
	return nil
}

func (m *mockMeasurementRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Measurement
	for _, meas := range m.measurements {
		if meas.PatientID == patientID {
			out = append(out, meas)
		}
	}
	return out, len(out), nil
}

func (m *mockMeasurementRepo) Recent(ctx context.Context, patientID uuid.UUID, since time.Time, limit int) ([]*Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Measurement
	for _, meas := range m.measurements {
		if meas.PatientID == patientID && meas.MeasuredAt.After(since) {
			out = append(out, meas)
		}
	}
	return out, nil
}

func (m *mockMeasurementRepo) count(patientID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, meas := range m.measurements {
		if meas.PatientID == patientID {
			n++
		}
	}
	return n
}

type mockPatients struct{ known map[uuid.UUID]bool }

func (m *mockPatients) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.known[id], nil
}

// mockSink mimics the open-case bookkeeping of the emergency service. The
// deliberate sleep between the open-case check and the create widens the
// race window the aggregator must close.
type mockSink struct {
	mu        sync.Mutex
	openCases map[uuid.UUID]uuid.UUID
	creates   int
	attaches  int
}

func newMockSink() *mockSink {
	return &mockSink{openCases: make(map[uuid.UUID]uuid.UUID)}
}

func (m *mockSink) AttachOrCreate(ctx context.Context, patientID uuid.UUID, measurementIDs []uuid.UUID, alerts []Alert) (uuid.UUID, bool, error) {
	m.mu.Lock()
	existing, open := m.openCases[patientID]
	m.mu.Unlock()
	if open {
		m.mu.Lock()
		m.attaches++
		m.mu.Unlock()
		return existing, false, nil
	}
	time.Sleep(5 * time.Millisecond)
	id := uuid.New()
	m.mu.Lock()
	m.openCases[patientID] = id
	m.creates++
	m.mu.Unlock()
	return id, true, nil
}

func newTestService(repo *mockMeasurementRepo, patients *mockPatients, sink *mockSink) *Service {
	log := zerolog.Nop()
	return NewService(repo, patients, NewAggregator(sink, log), NewMemTrendCache(), ws.NewHub(), log)
}

func knownPatient() (*mockPatients, uuid.UUID) {
	id := uuid.New()
	return &mockPatients{known: map[uuid.UUID]bool{id: true}}, id
}

func TestIngestBatch_UnknownPatient(t *testing.T) {
	svc := newTestService(&mockMeasurementRepo{}, &mockPatients{known: map[uuid.UUID]bool{}}, newMockSink())

	set := setAt(time.Now())
	set.HeartRate = f(72)
	_, err := svc.IngestBatch(context.Background(), uuid.New(), []VitalSet{set})
	if err == nil {
		t.Fatal("expected error for unknown patient")
	}
}

func TestIngestBatch_NormalReadingNoCase(t *testing.T) {
	repo := &mockMeasurementRepo{}
	patients, patientID := knownPatient()
	sink := newMockSink()
	svc := newTestService(repo, patients, sink)

	set := setAt(time.Now())
	set.HeartRate = f(72)
	set.SystolicBP = f(120)
	set.DiastolicBP = f(80)
	results, err := svc.IngestBatch(context.Background(), patientID, []VitalSet{set})
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if len(results[0].Alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", results[0].Alerts)
	}
	if sink.creates != 0 {
		t.Error("normal reading must not create a case")
	}
	if repo.count(patientID) != 3 {
		t.Errorf("expected 3 persisted rows, got %d", repo.count(patientID))
	}
}

func TestIngestBatch_WarningOnlyNoCase(t *testing.T) {
	repo := &mockMeasurementRepo{}
	patients, patientID := knownPatient()
	sink := newMockSink()
	svc := newTestService(repo, patients, sink)

	set := setAt(time.Now())
	set.HeartRate = f(110) // warning band
	results, err := svc.IngestBatch(context.Background(), patientID, []VitalSet{set})
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if len(results[0].Alerts) != 1 || results[0].Alerts[0].Severity != SeverityWarning {
		t.Fatalf("expected one warning alert, got %+v", results[0].Alerts)
	}
	if results[0].CaseCreated || results[0].CaseAttached {
		t.Error("warning-only alerts must not open or attach to a case")
	}
	if sink.creates != 0 {
		t.Error("sink must not be invoked for warning-only alerts")
	}
}

func TestIngestBatch_CriticalCreatesCase(t *testing.T) {
	repo := &mockMeasurementRepo{}
	patients, patientID := knownPatient()
	sink := newMockSink()
	svc := newTestService(repo, patients, sink)

	// Bradycardia plus fever in a single reading.
	set := setAt(time.Now())
	set.HeartRate = f(45)
	set.Temperature = f(38.9)
	results, err := svc.IngestBatch(context.Background(), patientID, []VitalSet{set})
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	r := results[0]
	if len(r.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(r.Alerts))
	}
	if !HasCritical(r.Alerts) {
		t.Error("expected a critical alert for HR 45")
	}
	if !r.CaseCreated {
		t.Error("expected a case to be created")
	}
	if r.CaseID == uuid.Nil {
		t.Error("expected case id in result")
	}
	if r.OverallStatus != StatusCritical {
		t.Errorf("overall status = %s, want %s", r.OverallStatus, StatusCritical)
	}
}

func TestIngestBatch_SecondCriticalAttaches(t *testing.T) {
	repo := &mockMeasurementRepo{}
	patients, patientID := knownPatient()
	sink := newMockSink()
	svc := newTestService(repo, patients, sink)

	set := setAt(time.Now())
	set.HeartRate = f(35)
	if _, err := svc.IngestBatch(context.Background(), patientID, []VitalSet{set}); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	set2 := setAt(time.Now())
	set2.HeartRate = f(36)
	results, err := svc.IngestBatch(context.Background(), patientID, []VitalSet{set2})
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if results[0].CaseCreated {
		t.Error("second critical must attach, not create")
	}
	if !results[0].CaseAttached {
		t.Error("expected attach to the open case")
	}
	if sink.creates != 1 {
		t.Errorf("creates = %d, want 1", sink.creates)
	}
}

func TestIngestBatch_InvalidItemIsolated(t *testing.T) {
	repo := &mockMeasurementRepo{}
	patients, patientID := knownPatient()
	sink := newMockSink()
	svc := newTestService(repo, patients, sink)

	bad := setAt(time.Now())
	bad.SpO2 = f(-5)
	good := setAt(time.Now())
	good.HeartRate = f(72)

	results, err := svc.IngestBatch(context.Background(), patientID, []VitalSet{bad, good})
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if results[0].ErrorKind != "validation" {
		t.Errorf("bad item kind = %s, want validation", results[0].ErrorKind)
	}
	if results[0].CaseCreated || results[0].CaseAttached {
		t.Error("rejected item must not touch case state")
	}
	if results[1].Error != "" {
		t.Errorf("good item unexpectedly failed: %s", results[1].Error)
	}
	// Only the good item's single row was persisted.
	if repo.count(patientID) != 1 {
		t.Errorf("persisted rows = %d, want 1", repo.count(patientID))
	}
}

func TestClassify_ConcurrentCriticalsSingleCase(t *testing.T) {
	sink := newMockSink()
	agg := NewAggregator(sink, zerolog.Nop())
	patientID := uuid.New()
	alerts := []Alert{{Parameter: ParamHeartRate, Value: 30, Severity: SeverityCritical}}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, _, err := agg.Classify(context.Background(), patientID, []uuid.UUID{uuid.New()}, alerts); err != nil {
				t.Errorf("Classify failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if sink.creates != 1 {
		t.Errorf("creates = %d, want exactly 1", sink.creates)
	}
	if sink.attaches != 1 {
		t.Errorf("attaches = %d, want 1", sink.attaches)
	}
}

func TestTrends_CacheMissRecomputes(t *testing.T) {
	repo := &mockMeasurementRepo{}
	patients, patientID := knownPatient()
	svc := newTestService(repo, patients, newMockSink())

	now := time.Now()
	for i := 0; i < 3; i++ {
		repo.Insert(context.Background(), &Measurement{
			PatientID: patientID, Parameter: ParamHeartRate, Value: 70 + float64(i),
			MeasuredAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}

	summary, err := svc.Trends(context.Background(), patientID)
	if err != nil {
		t.Fatalf("Trends failed: %v", err)
	}
	if summary.ReadingCount != 3 {
		t.Errorf("ReadingCount = %d, want 3", summary.ReadingCount)
	}
	if summary.OverallStatus != StatusGood {
		t.Errorf("status = %s, want %s", summary.OverallStatus, StatusGood)
	}
}
