package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// Service sends appointment notifications to patients. It satisfies the
// dispatcher's Notifier contract.
type Service struct {
	email      EmailSender
	clinicName string
	logger     *logging.Logger
}

// NewService creates a notification service. A nil sender disables delivery.
func NewService(email EmailSender, clinicName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if clinicName == "" {
		clinicName = "Clinic Concierge"
	}
	return &Service{email: email, clinicName: clinicName, logger: logger}
}

// BookingConfirmed emails the patient their appointment details. Patients
// without an email address on file are skipped silently.
func (s *Service) BookingConfirmed(ctx context.Context, patient *schedstore.Patient, doctor *schedstore.Doctor, appt *schedstore.Appointment) error {
	if s.email == nil || patient == nil || patient.Email == "" || appt == nil {
		return nil
	}

	doctorLine := "your doctor"
	if doctor != nil {
		doctorLine = fmt.Sprintf("%s (%s)", doctor.Name, doctor.Specialty)
	}
	when := formatSlot(appt.Date, appt.Time)

	subject := fmt.Sprintf("Appointment confirmed for %s", when)
	body := fmt.Sprintf(`Hi %s,

Your appointment is confirmed.

Doctor: %s
When: %s
Confirmation ID: %s

If you need to reschedule or cancel, just reply in the chat with your patient ID (%s).

— %s`, patient.Name, doctorLine, when, appt.ID, patient.ID, s.clinicName)

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #2563eb;">Appointment Confirmed</h2>
<p>Hi <strong>%s</strong>, your appointment is booked.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Doctor:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>When:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Confirmation ID:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
</table>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— %s</p>
</div>`, patient.Name, doctorLine, when, appt.ID, s.clinicName)

	msg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: subject,
		Body:    body,
		HTML:    html,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	s.logger.Info("booking confirmation sent", "appointment_id", appt.ID, "to", patient.Email)
	return nil
}

func formatSlot(date, timeOfDay string) string {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, time.Local)
	if err != nil {
		return date + " " + timeOfDay
	}
	return t.Format("Monday, January 2, 2006 at 3:04 PM")
}
