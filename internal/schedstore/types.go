package schedstore

import (
	"errors"
	"regexp"
	"time"
)

// Sentinel errors every Store implementation must surface so callers can
// branch without knowing the backend.
var (
	ErrNotFound = errors.New("schedstore: not found")
	ErrConflict = errors.New("schedstore: slot already booked")
)

// AppointmentStatus tracks the lifecycle of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Patient is a registered patient. IDs follow the fixed format
// P + 2 uppercase letters + 4 digits (e.g. PVY3830).
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Condition string    `json:"condition"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Doctor is a member of the clinic roster.
type Doctor struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// Appointment references a patient and a doctor at a concrete slot.
// Date is YYYY-MM-DD and Time is HH:MM, both clinic-local.
type Appointment struct {
	ID        string            `json:"id"`
	PatientID string            `json:"patient_id"`
	DoctorID  int               `json:"doctor_id"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Status    AppointmentStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// Filter narrows ListAppointments. Zero values mean "any".
type Filter struct {
	PatientID   string
	DoctorID    int
	Date        string
	IncludePast bool
}

// Stats summarizes the store contents for the dashboard endpoint.
type Stats struct {
	TotalPatients         int `json:"total_patients"`
	TotalDoctors          int `json:"total_doctors"`
	ActiveAppointments    int `json:"active_appointments"`
	ExpiredAppointments   int `json:"expired_appointments"`
	CompletedAppointments int `json:"completed_appointments"`
	CancelledAppointments int `json:"cancelled_appointments"`
}

// StandardSlotTimes is the clinic's bookable grid on weekdays.
var StandardSlotTimes = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}

var patientIDPattern = regexp.MustCompile(`^P[A-Z]{2}[0-9]{4}$`)

// ValidPatientID reports whether id matches the fixed patient-id format.
func ValidPatientID(id string) bool {
	return patientIDPattern.MatchString(id)
}

// SlotTime combines an appointment's date and time into a clinic-local instant.
func SlotTime(date, timeOfDay string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, time.Local)
}
