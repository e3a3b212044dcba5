package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// ManagementWorker reschedules and cancels existing appointments. When a
// patient has several upcoming appointments the most recently created one is
// the target; a date slot narrows the candidates first.
type ManagementWorker struct {
	store  schedstore.Store
	logger *logging.Logger
}

func NewManagementWorker(store schedstore.Store, logger *logging.Logger) *ManagementWorker {
	if store == nil {
		panic("agent: store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ManagementWorker{store: store, logger: logger}
}

// target resolves the patient and picks the appointment to act on.
func (w *ManagementWorker) target(ctx context.Context, st SessionState, narrowByDate bool) (*schedstore.Patient, *schedstore.Appointment, *WorkerResult, error) {
	patient, err := w.store.FindPatient(ctx, st.Slots.PatientID)
	if errors.Is(err, schedstore.ErrNotFound) {
		return nil, nil, &WorkerResult{
			Outcome:    OutcomeNotFound,
			FailedSlot: SlotPatientID,
			Message:    fmt.Sprintf("I couldn't find a patient with ID %s. Could you double-check it?", st.Slots.PatientID),
		}, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("agent: find patient: %w", err)
	}

	f := schedstore.Filter{PatientID: patient.ID}
	if narrowByDate && st.Slots.Date != "" {
		f.Date = st.Slots.Date
	}
	appts, err := w.store.ListAppointments(ctx, f)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("agent: list appointments: %w", err)
	}
	var active []schedstore.Appointment
	for _, a := range appts {
		if a.Status == schedstore.StatusScheduled {
			active = append(active, a)
		}
	}
	if len(active) == 0 && f.Date != "" {
		// Nothing on the named day; fall back to any upcoming appointment.
		f.Date = ""
		appts, err = w.store.ListAppointments(ctx, f)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("agent: list appointments: %w", err)
		}
		for _, a := range appts {
			if a.Status == schedstore.StatusScheduled {
				active = append(active, a)
			}
		}
	}
	if len(active) == 0 {
		return nil, nil, &WorkerResult{
			Outcome: OutcomeNotFound,
			Message: fmt.Sprintf("%s, I don't see any upcoming appointments on file for you.", patient.Name),
		}, nil
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return patient, &active[0], nil, nil
}

// Reschedule moves the patient's appointment to the new date and/or time in
// st. A missing date or time keeps the appointment's current value.
func (w *ManagementWorker) Reschedule(ctx context.Context, st SessionState, now time.Time) (WorkerResult, error) {
	patient, appt, early, err := w.target(ctx, st, false)
	if err != nil || early != nil {
		if early != nil {
			return *early, nil
		}
		return WorkerResult{}, err
	}

	newDate := st.Slots.Date
	if newDate == "" {
		newDate = appt.Date
	}
	newTime := st.Slots.Time
	if newTime == "" {
		newTime = appt.Time
	}
	if newDate == appt.Date && newTime == appt.Time {
		return WorkerResult{
			Outcome:    OutcomeNeedDate,
			FailedSlot: SlotDate,
			Message: fmt.Sprintf("Your appointment is already set for %s at %s. What day or time would you like instead?",
				FormatDate(appt.Date), FormatTime(appt.Time)),
		}, nil
	}
	if isWeekend(newDate) {
		return WorkerResult{
			Outcome:    OutcomeNeedDate,
			FailedSlot: SlotDate,
			Message:    fmt.Sprintf("%s falls on a weekend and the clinic is closed. Which weekday works for you?", FormatDate(newDate)),
		}, nil
	}
	if slot, err := schedstore.SlotTime(newDate, newTime); err == nil && slot.Before(now) {
		return WorkerResult{
			Outcome:    OutcomeNeedDate,
			FailedSlot: SlotDate,
			Message:    "That time has already passed. Which upcoming day would you like instead?",
		}, nil
	}

	updated, err := w.store.UpdateAppointment(ctx, appt.ID, newDate, newTime)
	if errors.Is(err, schedstore.ErrConflict) {
		msg := fmt.Sprintf("That slot on %s at %s is already taken.", FormatDate(newDate), FormatTime(newTime))
		sugg, serr := suggestAlternatives(ctx, w.store, appt.DoctorID, newDate, now, 3)
		if serr != nil {
			w.logger.Warn("alternative lookup failed", "error", serr)
		} else if len(sugg) > 0 {
			msg += " " + formatSuggestions(sugg)
		}
		return WorkerResult{
			Outcome:    OutcomeConflict,
			FailedSlot: SlotTime,
			Message:    msg,
			Patient:    patient,
		}, nil
	}
	if errors.Is(err, schedstore.ErrNotFound) {
		return WorkerResult{
			Outcome: OutcomeNotFound,
			Message: fmt.Sprintf("%s, I don't see any upcoming appointments on file for you.", patient.Name),
		}, nil
	}
	if err != nil {
		return WorkerResult{}, fmt.Errorf("agent: update appointment: %w", err)
	}

	w.logger.Info("appointment rescheduled",
		"appointment_id", updated.ID,
		"patient_id", patient.ID,
		"date", updated.Date,
		"time", updated.Time,
	)
	return WorkerResult{
		Outcome: OutcomeRescheduled,
		Message: fmt.Sprintf("Done, %s. Your appointment has been moved to %s at %s.",
			patient.Name, FormatDate(updated.Date), FormatTime(updated.Time)),
		Appointment: updated,
		Patient:     patient,
	}, nil
}

// Cancel cancels the patient's targeted appointment.
func (w *ManagementWorker) Cancel(ctx context.Context, st SessionState, now time.Time) (WorkerResult, error) {
	patient, appt, early, err := w.target(ctx, st, true)
	if err != nil || early != nil {
		if early != nil {
			return *early, nil
		}
		return WorkerResult{}, err
	}

	if err := w.store.CancelAppointment(ctx, appt.ID); err != nil {
		if errors.Is(err, schedstore.ErrNotFound) {
			return WorkerResult{
				Outcome: OutcomeNotFound,
				Message: fmt.Sprintf("%s, I don't see any upcoming appointments on file for you.", patient.Name),
			}, nil
		}
		return WorkerResult{}, fmt.Errorf("agent: cancel appointment: %w", err)
	}

	w.logger.Info("appointment cancelled",
		"appointment_id", appt.ID,
		"patient_id", patient.ID,
	)
	return WorkerResult{
		Outcome: OutcomeCancelled,
		Message: fmt.Sprintf("Your appointment on %s at %s has been cancelled, %s. Feel free to book a new one any time.",
			FormatDate(appt.Date), FormatTime(appt.Time), patient.Name),
		Appointment: appt,
		Patient:     patient,
	}, nil
}
