package emergency

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newHandlerFixture(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t, DefaultEscalationRules())
	return NewHandler(f.svc), f
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string, params map[string]string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	return rec, h(c)
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandlerCreate(t *testing.T) {
	h, f := newHandlerFixture(t)

	body := fmt.Sprintf(`{"patient_id":%q,"trigger_type":"manual","severity":"critical","priority":"urgent","description":"patient reported chest pain"}`, f.patientID)
	rec, err := doJSON(t, h.create, http.MethodPost, "/cases", body, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var created EmergencyCase
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Status != StatusActive {
		t.Errorf("expected status active, got %s", created.Status)
	}
	if created.EscalationLevel != MinEscalationLevel {
		t.Errorf("expected level %d, got %d", MinEscalationLevel, created.EscalationLevel)
	}
}

func TestHandlerCreate_UnknownPatient(t *testing.T) {
	h, _ := newHandlerFixture(t)

	body := fmt.Sprintf(`{"patient_id":%q,"trigger_type":"manual","severity":"critical","priority":"urgent","description":"x"}`, uuid.New())
	_, err := doJSON(t, h.create, http.MethodPost, "/cases", body, nil)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandlerGet_NotFound(t *testing.T) {
	h, _ := newHandlerFixture(t)

	_, err := doJSON(t, h.get, http.MethodGet, "/cases/x", "", map[string]string{"id": uuid.New().String()})
	if code := httpStatus(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandlerGet_InvalidID(t *testing.T) {
	h, _ := newHandlerFixture(t)

	_, err := doJSON(t, h.get, http.MethodGet, "/cases/x", "", map[string]string{"id": "not-a-uuid"})
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandlerAcknowledge_MissingUser(t *testing.T) {
	h, f := newHandlerFixture(t)
	c := f.createCase(t)

	_, err := doJSON(t, h.acknowledge, http.MethodPost, "/cases/x/acknowledge", `{}`, map[string]string{"id": c.ID.String()})
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandlerResolve_ConflictOnTerminalCase(t *testing.T) {
	h, f := newHandlerFixture(t)
	c := f.createCase(t)

	body := fmt.Sprintf(`{"user_id":%q,"outcome":"hospitalized"}`, uuid.New())
	rec, err := doJSON(t, h.resolve, http.MethodPost, "/cases/x/resolve", body, map[string]string{"id": c.ID.String()})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	_, err = doJSON(t, h.resolve, http.MethodPost, "/cases/x/resolve", body, map[string]string{"id": c.ID.String()})
	if code := httpStatus(t, err); code != http.StatusConflict {
		t.Errorf("expected 409 on second resolve, got %d", code)
	}
}

func TestHandlerListActive_FiltersBySeverity(t *testing.T) {
	h, f := newHandlerFixture(t)
	f.createCase(t)

	rec, err := doJSON(t, h.listActive, http.MethodGet, "/cases?severity=critical", "", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []*EmergencyCase `json:"data"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, ec := range resp.Data {
		if ec.Severity != SeverityCritical {
			t.Errorf("filter leaked severity %s", ec.Severity)
		}
	}
}
