package schedstore

import (
	"context"
	"time"
)

// Store is the narrow persistence contract the conversation core depends on.
// Implementations must enforce slot uniqueness on create and update so a
// read-then-act race between two bookings resolves to exactly one winner.
type Store interface {
	FindPatient(ctx context.Context, patientID string) (*Patient, error)
	CreatePatient(ctx context.Context, name string, age int, condition, email string) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)

	ListDoctors(ctx context.Context) ([]Doctor, error)
	// FindDoctor matches by (partial) name or by specialty, including the
	// common aliases ("dermatologist" -> Dermatology).
	FindDoctor(ctx context.Context, query string) (*Doctor, error)

	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)
	CreateAppointment(ctx context.Context, patientID string, doctorID int, date, timeOfDay string) (*Appointment, error)
	UpdateAppointment(ctx context.Context, appointmentID, newDate, newTime string) (*Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID string) error
	IsSlotAvailable(ctx context.Context, doctorID int, date, timeOfDay string) (bool, error)

	// CleanupExpired removes appointments whose slot has passed and reports
	// how many were removed.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// specialtyAliases maps colloquial names to roster specialties, shared by the
// file and Postgres stores.
var specialtyAliases = map[string]string{
	"dermatologist":   "dermatology",
	"pediatrician":    "pediatrics",
	"general":         "general medicine",
	"endocrinologist": "endocrinology",
}

// SeedDoctors is the default roster installed into an empty store.
var SeedDoctors = []Doctor{
	{ID: 1, Name: "Dr. Adams", Specialty: "General Medicine"},
	{ID: 2, Name: "Dr. Baker", Specialty: "Pediatrics"},
	{ID: 3, Name: "Dr. Clark", Specialty: "Dermatology"},
	{ID: 4, Name: "Dr. Davis", Specialty: "Endocrinology"},
}
