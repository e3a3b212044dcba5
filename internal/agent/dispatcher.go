package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// Notifier delivers out-of-band confirmations after a successful booking.
// Failures must not fail the turn; the dispatcher only logs them.
type Notifier interface {
	BookingConfirmed(ctx context.Context, patient *schedstore.Patient, doctor *schedstore.Doctor, appt *schedstore.Appointment) error
}

// Metrics records per-turn observability signals. Nil-safe wrappers in the
// dispatcher let tests pass nil.
type Metrics interface {
	ObserveTurn(intent, outcome string)
	ObserveExtractorLatency(d time.Duration)
	ObserveExtractorFailure()
}

// TurnRequest is one user utterance addressed to a conversation.
type TurnRequest struct {
	SessionKey    string
	Utterance     string
	ReferenceDate time.Time
}

// TurnResult is the agent's reply to one turn.
type TurnResult struct {
	Message string     `json:"message"`
	Outcome Outcome    `json:"outcome"`
	Intent  IntentKind `json:"intent"`
}

// Dispatcher runs the turn loop: extract, merge into session state, re-prompt
// for whatever required slot is still missing, and hand complete intents to
// the matching worker. Sessions move Empty -> Collecting -> Ready and reset
// to Empty once a worker finishes the request.
type Dispatcher struct {
	extractor  Extractor
	sessions   SessionStore
	store      schedstore.Store
	scheduling *SchedulingWorker
	query      *QueryWorker
	management *ManagementWorker
	notifier   Notifier
	metrics    Metrics
	logger     *logging.Logger
}

// DispatcherConfig carries the dispatcher's collaborators. Notifier and
// Metrics are optional.
type DispatcherConfig struct {
	Extractor Extractor
	Sessions  SessionStore
	Store     schedstore.Store
	Notifier  Notifier
	Metrics   Metrics
	Logger    *logging.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Extractor == nil {
		panic("agent: extractor is required")
	}
	if cfg.Sessions == nil {
		panic("agent: session store is required")
	}
	if cfg.Store == nil {
		panic("agent: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		extractor:  cfg.Extractor,
		sessions:   cfg.Sessions,
		store:      cfg.Store,
		scheduling: NewSchedulingWorker(cfg.Store, logger),
		query:      NewQueryWorker(cfg.Store, logger),
		management: NewManagementWorker(cfg.Store, logger),
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// HandleTurn processes one utterance and returns the reply.
func (d *Dispatcher) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Utterance) == "" {
		return &TurnResult{
			Outcome: OutcomeUnclear,
			Intent:  IntentUnknown,
			Message: "I didn't catch that. I can book, reschedule, or cancel appointments, or check availability.",
		}, nil
	}
	now := req.ReferenceDate
	if now.IsZero() {
		now = time.Now()
	}

	pending, err := d.sessions.Get(ctx, req.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("agent: load session: %w", err)
	}

	started := time.Now()
	ext, err := d.extractor.Extract(ctx, req.Utterance, pending, now)
	if d.metrics != nil {
		d.metrics.ObserveExtractorLatency(time.Since(started))
	}
	if err != nil {
		if !errors.Is(err, ErrExtraction) {
			return nil, err
		}
		// Pending state is left exactly as it was; the user just retries.
		if d.metrics != nil {
			d.metrics.ObserveExtractorFailure()
		}
		d.logger.Warn("extraction failed", "session", req.SessionKey, "error", err)
		res := &TurnResult{
			Outcome: OutcomeRetry,
			Intent:  pending.Kind,
			Message: "Sorry, I'm having trouble understanding right now. Could you rephrase that?",
		}
		d.observe(res)
		return res, nil
	}

	st, err := d.sessions.Mutate(ctx, req.SessionKey, func(s *SessionState) {
		Merge(s, ext)
		s.Turns++
	})
	if err != nil {
		return nil, fmt.Errorf("agent: update session: %w", err)
	}

	if st.Slots.PatientID != "" && !schedstore.ValidPatientID(st.Slots.PatientID) {
		bad := st.Slots.PatientID
		if _, err := d.sessions.Mutate(ctx, req.SessionKey, func(s *SessionState) {
			s.Slots.PatientID = ""
		}); err != nil {
			return nil, fmt.Errorf("agent: update session: %w", err)
		}
		res := &TurnResult{
			Outcome: OutcomeNeedPatientID,
			Intent:  st.Kind,
			Message: fmt.Sprintf("%s doesn't look like a valid patient ID. It should be a P followed by two letters and four digits, like PVY3830.", bad),
		}
		d.observe(res)
		return res, nil
	}

	res, err := d.route(ctx, req.SessionKey, st, now)
	if err != nil {
		// Backend failure: keep the session so the user can simply retry.
		d.logger.Error("turn failed", "session", req.SessionKey, "intent", string(st.Kind), "error", err)
		res = &TurnResult{
			Outcome: OutcomeError,
			Intent:  st.Kind,
			Message: "Something went wrong on our end. Please try again in a moment.",
		}
	}
	d.observe(res)
	return res, nil
}

func (d *Dispatcher) observe(res *TurnResult) {
	if d.metrics != nil {
		d.metrics.ObserveTurn(string(res.Intent), string(res.Outcome))
	}
}

func (d *Dispatcher) route(ctx context.Context, key string, st SessionState, now time.Time) (*TurnResult, error) {
	switch st.Kind {
	case IntentGreeting:
		return d.greet(ctx, key, st)
	case IntentBook, IntentReschedule, IntentCancel, IntentQuery:
		if missing := firstMissingSlot(st); missing != "" {
			return d.prompt(st, missing), nil
		}
		return d.dispatch(ctx, key, st, now)
	default:
		return &TurnResult{
			Outcome: OutcomeUnclear,
			Intent:  IntentUnknown,
			Message: "I can help you book, reschedule, or cancel an appointment, or check a doctor's availability. What would you like to do?",
		}, nil
	}
}

// requiredSlots names what each intent needs before a worker can run.
// Reschedule also needs a new date or time, checked separately since either
// satisfies it.
func requiredSlots(kind IntentKind) []Slot {
	switch kind {
	case IntentBook:
		return []Slot{SlotPatientID, SlotDoctor, SlotDate, SlotTime}
	case IntentReschedule, IntentCancel:
		return []Slot{SlotPatientID}
	}
	return nil
}

func firstMissingSlot(st SessionState) Slot {
	required := requiredSlots(st.Kind)
	for _, name := range slotPriority {
		for _, req := range required {
			if name == req && st.Slots.Get(name) == "" {
				return name
			}
		}
	}
	if st.Kind == IntentReschedule && st.Slots.Date == "" && st.Slots.Time == "" {
		return SlotDate
	}
	return ""
}

var slotPrompts = map[Slot]string{
	SlotPatientID: "Could you give me your patient ID? It looks like PVY3830.",
	SlotDoctor:    "Which doctor would you like to see? We have Dr. Adams (General Medicine), Dr. Baker (Pediatrics), Dr. Clark (Dermatology), and Dr. Davis (Endocrinology).",
	SlotDate:      "What day works for you?",
	SlotTime:      "What time works for you? The clinic sees patients at 9, 10, and 11 in the morning and 2, 3, and 4 in the afternoon.",
}

var slotOutcomes = map[Slot]Outcome{
	SlotPatientID: OutcomeNeedPatientID,
	SlotDoctor:    OutcomeNeedDoctor,
	SlotDate:      OutcomeNeedDate,
	SlotTime:      OutcomeNeedTime,
}

// prompt asks for exactly one missing slot, prefixed with a summary of what
// is already held so multi-turn collection feels coherent.
func (d *Dispatcher) prompt(st SessionState, missing Slot) *TurnResult {
	msg := slotPrompts[missing]
	if missing == SlotDate && st.Kind == IntentReschedule {
		msg = "What new day or time would you like for your appointment?"
	}
	if summary := heldSummary(st); summary != "" {
		msg = summary + " " + msg
	}
	return &TurnResult{
		Outcome: slotOutcomes[missing],
		Intent:  st.Kind,
		Message: msg,
	}
}

func heldSummary(st SessionState) string {
	var parts []string
	if st.Slots.Doctor != "" {
		parts = append(parts, st.Slots.Doctor)
	}
	if st.Slots.Date != "" {
		parts = append(parts, FormatDate(st.Slots.Date))
	}
	if st.Slots.Time != "" {
		parts = append(parts, FormatTime(st.Slots.Time))
	}
	if len(parts) == 0 {
		return ""
	}
	return "So far I have: " + strings.Join(parts, ", ") + "."
}

func (d *Dispatcher) greet(ctx context.Context, key string, st SessionState) (*TurnResult, error) {
	msg := "Hello! I can book, reschedule, or cancel appointments, or check a doctor's availability. How can I help?"
	if st.Slots.PatientID != "" {
		if p, err := d.store.FindPatient(ctx, st.Slots.PatientID); err == nil {
			msg = fmt.Sprintf("Hello %s! How can I help you today?", p.Name)
		}
	}
	// The greeting is resolved; drop the kind but keep any slots already
	// gathered so a follow-up request reuses them.
	if _, err := d.sessions.Mutate(ctx, key, func(s *SessionState) {
		s.Kind = IntentUnknown
	}); err != nil {
		return nil, fmt.Errorf("agent: update session: %w", err)
	}
	return &TurnResult{Outcome: OutcomeGreeting, Intent: IntentGreeting, Message: msg}, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, key string, st SessionState, now time.Time) (*TurnResult, error) {
	var (
		wr  WorkerResult
		err error
	)
	switch st.Kind {
	case IntentBook:
		wr, err = d.scheduling.Book(ctx, st, now)
	case IntentReschedule:
		wr, err = d.management.Reschedule(ctx, st, now)
	case IntentCancel:
		wr, err = d.management.Cancel(ctx, st, now)
	case IntentQuery:
		wr, err = d.query.Availability(ctx, st, now)
	}
	if err != nil {
		return nil, err
	}

	switch wr.Outcome {
	case OutcomeBooked, OutcomeRescheduled, OutcomeCancelled, OutcomeAvailability:
		if err := d.sessions.Clear(ctx, key); err != nil {
			return nil, fmt.Errorf("agent: clear session: %w", err)
		}
	default:
		if wr.FailedSlot != "" {
			if _, err := d.sessions.Mutate(ctx, key, func(s *SessionState) {
				s.Slots.Set(wr.FailedSlot, "")
			}); err != nil {
				return nil, fmt.Errorf("agent: update session: %w", err)
			}
		}
	}

	if wr.Outcome == OutcomeBooked && d.notifier != nil && wr.Patient != nil && wr.Patient.Email != "" {
		if err := d.notifier.BookingConfirmed(ctx, wr.Patient, wr.Doctor, wr.Appointment); err != nil {
			d.logger.Warn("confirmation email failed", "patient_id", wr.Patient.ID, "error", err)
		}
	}

	return &TurnResult{Outcome: wr.Outcome, Intent: st.Kind, Message: wr.Message}, nil
}
