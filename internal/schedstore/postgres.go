package schedstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// PostgresStore persists the clinic data in Postgres. Slot uniqueness is a
// partial unique index on (doctor_id, date, time) where status='scheduled',
// so concurrent writers cannot double-book.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// NewPostgresStore wraps an existing pgx pool and seeds the doctor roster
// when the doctors table is empty.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, logger *logging.Logger) (*PostgresStore, error) {
	if pool == nil {
		panic("schedstore: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.seedDoctors(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) seedDoctors(ctx context.Context) error {
	for _, d := range SeedDoctors {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO doctors (id, name, specialty) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			d.ID, d.Name, d.Specialty,
		)
		if err != nil {
			return fmt.Errorf("schedstore: seed doctors: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindPatient(ctx context.Context, patientID string) (*Patient, error) {
	var p Patient
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, age, condition, COALESCE(email, ''), created_at FROM patients WHERE id = $1`,
		patientID,
	).Scan(&p.ID, &p.Name, &p.Age, &p.Condition, &p.Email, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("schedstore: patient %s: %w", patientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("schedstore: find patient: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) CreatePatient(ctx context.Context, name string, age int, condition, email string) (*Patient, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	p := Patient{
		Name:      name,
		Age:       age,
		Condition: condition,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	// Retry on the rare id collision; the primary key keeps us honest.
	for attempt := 0; attempt < 10; attempt++ {
		p.ID = fmt.Sprintf("P%c%c%04d",
			letters[rand.Intn(len(letters))],
			letters[rand.Intn(len(letters))],
			rand.Intn(10000),
		)
		_, err := s.pool.Exec(ctx,
			`INSERT INTO patients (id, name, age, condition, email, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.Name, p.Age, p.Condition, nullable(p.Email), p.CreatedAt,
		)
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("schedstore: create patient: %w", err)
		}
		return &p, nil
	}
	return nil, fmt.Errorf("schedstore: could not allocate a unique patient id")
}

func (s *PostgresStore) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, age, condition, COALESCE(email, ''), created_at FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("schedstore: list patients: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Condition, &p.Email, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("schedstore: scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, specialty FROM doctors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("schedstore: list doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty); err != nil {
			return nil, fmt.Errorf("schedstore: scan doctor: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindDoctor(ctx context.Context, query string) (*Doctor, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, fmt.Errorf("schedstore: doctor %q: %w", query, ErrNotFound)
	}
	if alias, ok := specialtyAliases[q]; ok {
		q = alias
	}

	var d Doctor
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, specialty FROM doctors
		 WHERE lower(name) LIKE '%' || $1 || '%' OR lower(specialty) LIKE '%' || $1 || '%'
		 ORDER BY (lower(name) LIKE '%' || $1 || '%') DESC, id
		 LIMIT 1`,
		q,
	).Scan(&d.ID, &d.Name, &d.Specialty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("schedstore: doctor %q: %w", query, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("schedstore: find doctor: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		conds = []string{`status <> 'cancelled'`}
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != "" {
		add(`patient_id = $%d`, f.PatientID)
	}
	if f.DoctorID != 0 {
		add(`doctor_id = $%d`, f.DoctorID)
	}
	if f.Date != "" {
		add(`date = $%d`, f.Date)
	}
	if !f.IncludePast {
		add(`(date || ' ' || time) >= $%d`, time.Now().Format("2006-01-02 15:04"))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, patient_id, doctor_id, date, time, status, created_at, COALESCE(updated_at, created_at)
		 FROM appointments WHERE `+strings.Join(conds, " AND ")+` ORDER BY date, time`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("schedstore: list appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("schedstore: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, patientID string, doctorID int, date, timeOfDay string) (*Appointment, error) {
	if _, err := s.FindPatient(ctx, patientID); err != nil {
		return nil, err
	}
	a := Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      timeOfDay,
		Status:    StatusScheduled,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (id, patient_id, doctor_id, date, time, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Status, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("schedstore: doctor %d at %s %s: %w", doctorID, date, timeOfDay, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("schedstore: create appointment: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) UpdateAppointment(ctx context.Context, appointmentID, newDate, newTime string) (*Appointment, error) {
	var a Appointment
	err := s.pool.QueryRow(ctx,
		`UPDATE appointments SET date = $2, time = $3, updated_at = now()
		 WHERE id = $1 AND status = 'scheduled'
		 RETURNING id, patient_id, doctor_id, date, time, status, created_at, updated_at`,
		appointmentID, newDate, newTime,
	).Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("schedstore: appointment %s: %w", appointmentID, ErrNotFound)
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("schedstore: slot %s %s: %w", newDate, newTime, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("schedstore: update appointment: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) CancelAppointment(ctx context.Context, appointmentID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status = 'cancelled', updated_at = now()
		 WHERE id = $1 AND status = 'scheduled'`,
		appointmentID,
	)
	if err != nil {
		return fmt.Errorf("schedstore: cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedstore: appointment %s: %w", appointmentID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) IsSlotAvailable(ctx context.Context, doctorID int, date, timeOfDay string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM appointments
		 WHERE doctor_id = $1 AND date = $2 AND time = $3 AND status = 'scheduled'`,
		doctorID, date, timeOfDay,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("schedstore: check slot: %w", err)
	}
	return count == 0, nil
}

func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM appointments WHERE (date || ' ' || time) < $1`,
		now.Format("2006-01-02 15:04"),
	)
	if err != nil {
		return 0, fmt.Errorf("schedstore: cleanup expired: %w", err)
	}
	removed := int(tag.RowsAffected())
	if removed > 0 {
		s.logger.Info("schedstore: removed expired appointments", "count", removed)
	}
	return removed, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	cutoff := time.Now().Format("2006-01-02 15:04")
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM patients),
			(SELECT count(*) FROM doctors),
			(SELECT count(*) FROM appointments WHERE status = 'scheduled' AND (date || ' ' || time) >= $1),
			(SELECT count(*) FROM appointments WHERE status = 'scheduled' AND (date || ' ' || time) < $1),
			(SELECT count(*) FROM appointments WHERE status = 'completed'),
			(SELECT count(*) FROM appointments WHERE status = 'cancelled')`,
		cutoff,
	).Scan(
		&st.TotalPatients, &st.TotalDoctors,
		&st.ActiveAppointments, &st.ExpiredAppointments,
		&st.CompletedAppointments, &st.CancelledAppointments,
	)
	if err != nil {
		return nil, fmt.Errorf("schedstore: stats: %w", err)
	}
	return st, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
