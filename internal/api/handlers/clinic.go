package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// ClinicHandler exposes the clinic data underneath the conversation layer:
// patient registration, rosters, appointment listings, and stats.
type ClinicHandler struct {
	store  schedstore.Store
	logger *logging.Logger
}

func NewClinicHandler(store schedstore.Store, logger *logging.Logger) *ClinicHandler {
	if store == nil {
		panic("handlers: store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ClinicHandler{store: store, logger: logger}
}

// RegisterPatientRequest is the body of POST /api/patients.
type RegisterPatientRequest struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Condition string `json:"condition"`
	Email     string `json:"email"`
}

// RegisterPatient handles POST /api/patients.
func (h *ClinicHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Age < 0 || req.Age > 130 {
		http.Error(w, "age out of range", http.StatusBadRequest)
		return
	}

	patient, err := h.store.CreatePatient(r.Context(), req.Name, req.Age, req.Condition, req.Email)
	if err != nil {
		h.logger.Error("patient registration failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("patient registered", "patient_id", patient.ID)
	writeJSON(w, http.StatusCreated, patient)
}

// ListPatients handles GET /api/patients.
func (h *ClinicHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.store.ListPatients(r.Context())
	if err != nil {
		h.logger.Error("list patients failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": patients, "count": len(patients)})
}

// GetPatient handles GET /api/patients/{patientID}.
func (h *ClinicHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	patient, err := h.store.FindPatient(r.Context(), id)
	if errors.Is(err, schedstore.ErrNotFound) {
		http.Error(w, "patient not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get patient failed", "patient_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

// ListDoctors handles GET /api/doctors.
func (h *ClinicHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.store.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error("list doctors failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors, "count": len(doctors)})
}

// ListAppointments handles GET /api/appointments with optional patient_id,
// doctor_id, date, and include_past query filters.
func (h *ClinicHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := schedstore.Filter{
		PatientID:   q.Get("patient_id"),
		Date:        q.Get("date"),
		IncludePast: q.Get("include_past") == "true",
	}
	if raw := q.Get("doctor_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "doctor_id must be an integer", http.StatusBadRequest)
			return
		}
		f.DoctorID = id
	}

	appts, err := h.store.ListAppointments(r.Context(), f)
	if err != nil {
		h.logger.Error("list appointments failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts, "count": len(appts)})
}

// Stats handles GET /api/stats.
func (h *ClinicHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Cleanup handles POST /api/cleanup, removing appointments whose slot has
// passed. The background sweeper runs the same operation on a timer.
func (h *ClinicHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.CleanupExpired(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("cleanup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// HealthCheck handles GET /health.
func (h *ClinicHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
