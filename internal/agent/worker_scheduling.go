package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// SchedulingWorker books new appointments once the dispatcher has a complete
// slot set. Conflicts come back with concrete open alternatives instead of a
// bare refusal.
type SchedulingWorker struct {
	store  schedstore.Store
	logger *logging.Logger
}

func NewSchedulingWorker(store schedstore.Store, logger *logging.Logger) *SchedulingWorker {
	if store == nil {
		panic("agent: store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulingWorker{store: store, logger: logger}
}

// Book creates the appointment described by st. All four slots must already
// be filled and canonical.
func (w *SchedulingWorker) Book(ctx context.Context, st SessionState, now time.Time) (WorkerResult, error) {
	patient, err := w.store.FindPatient(ctx, st.Slots.PatientID)
	if errors.Is(err, schedstore.ErrNotFound) {
		return WorkerResult{
			Outcome:    OutcomeNotFound,
			FailedSlot: SlotPatientID,
			Message:    fmt.Sprintf("I couldn't find a patient with ID %s. Could you double-check it?", st.Slots.PatientID),
		}, nil
	}
	if err != nil {
		return WorkerResult{}, fmt.Errorf("agent: find patient: %w", err)
	}

	doctor, err := w.store.FindDoctor(ctx, st.Slots.Doctor)
	if errors.Is(err, schedstore.ErrNotFound) {
		return WorkerResult{
			Outcome:    OutcomeNotFound,
			FailedSlot: SlotDoctor,
			Message:    fmt.Sprintf("I couldn't find a doctor matching %q. We have Dr. Adams (General Medicine), Dr. Baker (Pediatrics), Dr. Clark (Dermatology), and Dr. Davis (Endocrinology).", st.Slots.Doctor),
		}, nil
	}
	if err != nil {
		return WorkerResult{}, fmt.Errorf("agent: find doctor: %w", err)
	}

	if isWeekend(st.Slots.Date) {
		return WorkerResult{
			Outcome:    OutcomeNeedDate,
			FailedSlot: SlotDate,
			Message:    fmt.Sprintf("%s falls on a weekend and the clinic is closed. Which weekday works for you?", FormatDate(st.Slots.Date)),
		}, nil
	}
	if slot, err := schedstore.SlotTime(st.Slots.Date, st.Slots.Time); err == nil && slot.Before(now) {
		return WorkerResult{
			Outcome:    OutcomeNeedDate,
			FailedSlot: SlotDate,
			Message:    "That time has already passed. Which upcoming day would you like instead?",
		}, nil
	}

	appt, err := w.store.CreateAppointment(ctx, patient.ID, doctor.ID, st.Slots.Date, st.Slots.Time)
	if errors.Is(err, schedstore.ErrConflict) {
		msg := fmt.Sprintf("%s is already booked on %s at %s.", doctor.Name, FormatDate(st.Slots.Date), FormatTime(st.Slots.Time))
		sugg, serr := suggestAlternatives(ctx, w.store, doctor.ID, st.Slots.Date, now, 3)
		if serr != nil {
			w.logger.Warn("alternative lookup failed", "error", serr)
		} else if len(sugg) > 0 {
			msg += " " + formatSuggestions(sugg)
		}
		return WorkerResult{
			Outcome:    OutcomeConflict,
			FailedSlot: SlotTime,
			Message:    msg,
			Doctor:     doctor,
			Patient:    patient,
		}, nil
	}
	if err != nil {
		return WorkerResult{}, fmt.Errorf("agent: create appointment: %w", err)
	}

	w.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"patient_id", patient.ID,
		"doctor_id", doctor.ID,
		"date", appt.Date,
		"time", appt.Time,
	)
	return WorkerResult{
		Outcome: OutcomeBooked,
		Message: fmt.Sprintf("You're all set, %s. Your appointment with %s (%s) is booked for %s at %s. Your confirmation ID is %s.",
			patient.Name, doctor.Name, doctor.Specialty, FormatDate(appt.Date), FormatTime(appt.Time), appt.ID),
		Appointment: appt,
		Patient:     patient,
		Doctor:      doctor,
	}, nil
}
