package schedstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// FileStore keeps patients, doctors, and appointments in a single JSON file.
// Every mutation rewrites the file atomically, keeping the previous version
// as a .backup sibling. Suitable for a single process; the Postgres store
// covers anything beyond that.
type FileStore struct {
	path   string
	logger *logging.Logger

	mu           sync.Mutex
	patients     map[string]*Patient
	doctors      map[int]*Doctor
	appointments map[string]*Appointment
}

type filePayload struct {
	Patients     map[string]*Patient     `json:"patients"`
	Doctors      map[int]*Doctor         `json:"doctors"`
	Appointments map[string]*Appointment `json:"appointments"`
	LastSaved    time.Time               `json:"last_saved"`
}

// NewFileStore loads the store from path, seeding the doctor roster when the
// file does not exist yet.
func NewFileStore(path string, logger *logging.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &FileStore{
		path:         path,
		logger:       logger,
		patients:     make(map[string]*Patient),
		doctors:      make(map[int]*Doctor),
		appointments: make(map[string]*Appointment),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.seedDoctors()
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("schedstore: read %s: %w", s.path, err)
	}

	var payload filePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("schedstore: decode %s: %w", s.path, err)
	}
	if payload.Patients != nil {
		s.patients = payload.Patients
	}
	if payload.Doctors != nil {
		s.doctors = payload.Doctors
	}
	if payload.Appointments != nil {
		s.appointments = payload.Appointments
	}
	if len(s.doctors) == 0 {
		s.seedDoctors()
	}
	s.logger.Info("schedstore: loaded data file",
		"path", s.path,
		"patients", len(s.patients),
		"appointments", len(s.appointments),
	)
	return nil
}

func (s *FileStore) seedDoctors() {
	for i := range SeedDoctors {
		d := SeedDoctors[i]
		s.doctors[d.ID] = &d
	}
}

// saveLocked writes the file atomically; callers must hold s.mu (or be in
// single-threaded init).
func (s *FileStore) saveLocked() error {
	payload := filePayload{
		Patients:     s.patients,
		Doctors:      s.doctors,
		Appointments: s.appointments,
		LastSaved:    time.Now().UTC(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("schedstore: encode data: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("schedstore: write %s: %w", tmp, err)
	}
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.path+".backup"); err != nil {
			return fmt.Errorf("schedstore: backup %s: %w", s.path, err)
		}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("schedstore: replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) FindPatient(ctx context.Context, patientID string) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return nil, fmt.Errorf("schedstore: patient %s: %w", patientID, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *FileStore) CreatePatient(ctx context.Context, name string, age int, condition, email string) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Patient{
		ID:        s.newPatientIDLocked(),
		Name:      name,
		Age:       age,
		Condition: condition,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	s.patients[p.ID] = p
	if err := s.saveLocked(); err != nil {
		delete(s.patients, p.ID)
		return nil, err
	}
	cp := *p
	return &cp, nil
}

// newPatientIDLocked generates an unused id in the fixed P + 2 letters +
// 4 digits format.
func (s *FileStore) newPatientIDLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for {
		id := fmt.Sprintf("P%c%c%04d",
			letters[rand.Intn(len(letters))],
			letters[rand.Intn(len(letters))],
			rand.Intn(10000),
		)
		if _, taken := s.patients[id]; !taken {
			return id
		}
	}
}

func (s *FileStore) ListPatients(ctx context.Context) ([]Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FileStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FileStore) FindDoctor(ctx context.Context, query string) (*Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, fmt.Errorf("schedstore: doctor %q: %w", query, ErrNotFound)
	}

	for _, d := range s.doctors {
		if strings.Contains(strings.ToLower(d.Name), q) {
			cp := *d
			return &cp, nil
		}
	}
	if alias, ok := specialtyAliases[q]; ok {
		q = alias
	}
	for _, d := range s.doctors {
		if strings.Contains(strings.ToLower(d.Specialty), q) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("schedstore: doctor %q: %w", query, ErrNotFound)
}

func (s *FileStore) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make([]Appointment, 0)
	for _, a := range s.appointments {
		if a.Status == StatusCancelled {
			continue
		}
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID != 0 && a.DoctorID != f.DoctorID {
			continue
		}
		if f.Date != "" && a.Date != f.Date {
			continue
		}
		if !f.IncludePast {
			if at, err := SlotTime(a.Date, a.Time); err == nil && at.Before(now) {
				continue
			}
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *FileStore) CreateAppointment(ctx context.Context, patientID string, doctorID int, date, timeOfDay string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[patientID]; !ok {
		return nil, fmt.Errorf("schedstore: patient %s: %w", patientID, ErrNotFound)
	}
	if _, ok := s.doctors[doctorID]; !ok {
		return nil, fmt.Errorf("schedstore: doctor %d: %w", doctorID, ErrNotFound)
	}
	if !s.slotFreeLocked(doctorID, date, timeOfDay) {
		return nil, fmt.Errorf("schedstore: doctor %d at %s %s: %w", doctorID, date, timeOfDay, ErrConflict)
	}

	a := &Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      timeOfDay,
		Status:    StatusScheduled,
		CreatedAt: time.Now().UTC(),
	}
	s.appointments[a.ID] = a
	if err := s.saveLocked(); err != nil {
		delete(s.appointments, a.ID)
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (s *FileStore) UpdateAppointment(ctx context.Context, appointmentID, newDate, newTime string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[appointmentID]
	if !ok || a.Status == StatusCancelled {
		return nil, fmt.Errorf("schedstore: appointment %s: %w", appointmentID, ErrNotFound)
	}
	if !s.slotFreeLocked(a.DoctorID, newDate, newTime) {
		return nil, fmt.Errorf("schedstore: doctor %d at %s %s: %w", a.DoctorID, newDate, newTime, ErrConflict)
	}

	oldDate, oldTime, oldUpdated := a.Date, a.Time, a.UpdatedAt
	a.Date = newDate
	a.Time = newTime
	a.UpdatedAt = time.Now().UTC()
	if err := s.saveLocked(); err != nil {
		a.Date, a.Time, a.UpdatedAt = oldDate, oldTime, oldUpdated
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (s *FileStore) CancelAppointment(ctx context.Context, appointmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[appointmentID]
	if !ok || a.Status == StatusCancelled {
		return fmt.Errorf("schedstore: appointment %s: %w", appointmentID, ErrNotFound)
	}
	prev := a.Status
	a.Status = StatusCancelled
	a.UpdatedAt = time.Now().UTC()
	if err := s.saveLocked(); err != nil {
		a.Status = prev
		return err
	}
	return nil
}

func (s *FileStore) IsSlotAvailable(ctx context.Context, doctorID int, date, timeOfDay string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotFreeLocked(doctorID, date, timeOfDay), nil
}

func (s *FileStore) slotFreeLocked(doctorID int, date, timeOfDay string) bool {
	for _, a := range s.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Time == timeOfDay && a.Status == StatusScheduled {
			return false
		}
	}
	return true
}

func (s *FileStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, a := range s.appointments {
		at, err := SlotTime(a.Date, a.Time)
		if err != nil {
			continue
		}
		if at.Before(now) {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(s.appointments, id)
	}
	if len(removed) > 0 {
		if err := s.saveLocked(); err != nil {
			return 0, err
		}
		s.logger.Info("schedstore: removed expired appointments", "count", len(removed))
	}
	return len(removed), nil
}

func (s *FileStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{
		TotalPatients: len(s.patients),
		TotalDoctors:  len(s.doctors),
	}
	now := time.Now()
	for _, a := range s.appointments {
		switch a.Status {
		case StatusCancelled:
			st.CancelledAppointments++
		case StatusCompleted:
			st.CompletedAppointments++
		case StatusScheduled:
			if at, err := SlotTime(a.Date, a.Time); err == nil && at.Before(now) {
				st.ExpiredAppointments++
			} else {
				st.ActiveAppointments++
			}
		}
	}
	return st, nil
}

var _ Store = (*FileStore)(nil)
