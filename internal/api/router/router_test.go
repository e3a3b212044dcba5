package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/clinic-concierge/internal/agent"
	"github.com/wolfman30/clinic-concierge/internal/api/handlers"
	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/internal/webchat"
)

// cannedExtractor always returns the same extraction, enough to drive the
// chat endpoint without a model.
type cannedExtractor struct {
	ext agent.Extraction
}

func (c cannedExtractor) Extract(ctx context.Context, utterance string, pending agent.SessionState, refDate time.Time) (agent.Extraction, error) {
	return c.ext, nil
}

func newTestServer(t *testing.T, ext agent.Extraction) (http.Handler, schedstore.Store) {
	t.Helper()
	store, err := schedstore.NewFileStore(filepath.Join(t.TempDir(), "clinic.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	dispatcher := agent.NewDispatcher(agent.DispatcherConfig{
		Extractor: cannedExtractor{ext: ext},
		Sessions:  agent.NewMemorySessionStore(),
		Store:     store,
	})

	reg := prometheus.NewRegistry()
	h := New(&Config{
		ChatHandler:    handlers.NewChatHandler(dispatcher, nil),
		ClinicHandler:  handlers.NewClinicHandler(store, nil),
		WebChatHandler: webchat.NewHandler(dispatcher, nil),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return h, store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t, agent.Extraction{})
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, agent.Extraction{})
	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	h, _ := newTestServer(t, agent.Extraction{Kind: agent.IntentGreeting})

	rec := doJSON(t, h, http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp handlers.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Outcome != agent.OutcomeGreeting {
		t.Errorf("outcome = %q", resp.Outcome)
	}
	if resp.SessionID == "" {
		t.Error("session_id not assigned")
	}
}

func TestChatEndpointValidation(t *testing.T) {
	h, _ := newTestServer(t, agent.Extraction{})

	rec := doJSON(t, h, http.MethodPost, "/api/chat", handlers.ChatRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "hi", ReferenceDate: "not-a-date"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad reference_date status = %d, want 400", rec.Code)
	}
}

func TestPatientEndpoints(t *testing.T) {
	h, _ := newTestServer(t, agent.Extraction{})

	rec := doJSON(t, h, http.MethodPost, "/api/patients/", handlers.RegisterPatientRequest{
		Name: "Maria Gomez", Age: 34, Condition: "checkup", Email: "maria@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created schedstore.Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !schedstore.ValidPatientID(created.ID) {
		t.Errorf("created ID %q invalid", created.ID)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/patients/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get patient status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/patients/PZZ9999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing patient status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/patients/", handlers.RegisterPatientRequest{Age: 34})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("nameless registration status = %d, want 400", rec.Code)
	}
}

func TestDoctorAndStatsEndpoints(t *testing.T) {
	h, _ := newTestServer(t, agent.Extraction{})

	rec := doJSON(t, h, http.MethodGet, "/api/doctors", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("doctors status = %d", rec.Code)
	}
	var doctors struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &doctors)
	if doctors.Count != 4 {
		t.Errorf("doctor count = %d, want 4", doctors.Count)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/cleanup", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("cleanup status = %d", rec.Code)
	}
}

func TestAppointmentListEndpoint(t *testing.T) {
	h, store := newTestServer(t, agent.Extraction{})
	ctx := context.Background()

	p, err := store.CreatePatient(ctx, "Maria Gomez", 34, "", "")
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	date := time.Now().AddDate(0, 0, 10).Format("2006-01-02")
	if _, err := store.CreateAppointment(ctx, p.ID, 1, date, "10:00"); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/appointments?patient_id="+p.ID+"&include_past=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("appointments status = %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Errorf("appointment count = %d, want 1", resp.Count)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/appointments?doctor_id=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad doctor_id status = %d, want 400", rec.Code)
	}
}
