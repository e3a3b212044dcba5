// Package agent implements the conversation core: an LLM-backed slot
// extractor, a per-session state store, and the dispatcher that turns
// free-text utterances into appointment operations.
package agent

import (
	"errors"
	"time"
)

// IntentKind is the inferred purpose of a user turn.
type IntentKind string

const (
	IntentUnknown    IntentKind = "unknown"
	IntentBook       IntentKind = "book"
	IntentReschedule IntentKind = "reschedule"
	IntentCancel     IntentKind = "cancel"
	IntentQuery      IntentKind = "query"
	IntentGreeting   IntentKind = "greeting"
)

// Slot names, in re-prompt priority order.
type Slot string

const (
	SlotPatientID Slot = "patient_id"
	SlotDoctor    Slot = "doctor"
	SlotDate      Slot = "date"
	SlotTime      Slot = "time"
)

// slotPriority fixes the order in which missing slots are requested.
var slotPriority = []Slot{SlotPatientID, SlotDoctor, SlotDate, SlotTime}

// Slots holds the extracted values for a (possibly partial) intent.
// Date is canonical YYYY-MM-DD and Time canonical HH:MM once merged into
// session state; the extractor normalizes before handing them over.
type Slots struct {
	PatientID string `json:"patient_id,omitempty"`
	Doctor    string `json:"doctor,omitempty"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
}

// Get returns the value for a named slot.
func (s Slots) Get(name Slot) string {
	switch name {
	case SlotPatientID:
		return s.PatientID
	case SlotDoctor:
		return s.Doctor
	case SlotDate:
		return s.Date
	case SlotTime:
		return s.Time
	}
	return ""
}

// Set assigns the value for a named slot.
func (s *Slots) Set(name Slot, value string) {
	switch name {
	case SlotPatientID:
		s.PatientID = value
	case SlotDoctor:
		s.Doctor = value
	case SlotDate:
		s.Date = value
	case SlotTime:
		s.Time = value
	}
}

// IsZero reports whether no slot is filled.
func (s Slots) IsZero() bool {
	return s == Slots{}
}

// Extraction is the tagged result of one extractor run: a candidate intent
// kind plus whichever slots the utterance actually mentioned.
type Extraction struct {
	Kind  IntentKind
	Slots Slots
}

// SessionState is the pending intent accumulated across turns for one
// conversation key.
type SessionState struct {
	Kind         IntentKind `json:"kind"`
	Slots        Slots      `json:"slots"`
	Turns        int        `json:"turns"`
	LastActivity time.Time  `json:"last_activity"`
}

// Merge folds an extraction into existing state. Non-empty new slot values
// overwrite; empty values never erase. The intent kind only moves when the
// extraction is not Unknown, and a Greeting never displaces an actionable
// pending intent mid-collection.
func Merge(st *SessionState, ext Extraction) {
	if ext.Kind != IntentUnknown && ext.Kind != "" {
		if !(ext.Kind == IntentGreeting && st.Kind.actionable()) {
			st.Kind = ext.Kind
		}
	}
	for _, name := range slotPriority {
		if v := ext.Slots.Get(name); v != "" {
			st.Slots.Set(name, v)
		}
	}
}

func (k IntentKind) actionable() bool {
	switch k {
	case IntentBook, IntentReschedule, IntentCancel, IntentQuery:
		return true
	}
	return false
}

// Outcome is the structured code accompanying every response so transports
// can branch without parsing prose.
type Outcome string

const (
	OutcomeNeedPatientID Outcome = "need_patient_id"
	OutcomeNeedDoctor    Outcome = "need_doctor"
	OutcomeNeedDate      Outcome = "need_date"
	OutcomeNeedTime      Outcome = "need_time"
	OutcomeBooked        Outcome = "booked"
	OutcomeRescheduled   Outcome = "rescheduled"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeConflict      Outcome = "conflict"
	OutcomeAvailability  Outcome = "availability"
	OutcomeGreeting      Outcome = "greeting"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeRetry         Outcome = "retry"
	OutcomeUnclear       Outcome = "unclear"
	OutcomeError         Outcome = "error"
)

// ErrExtraction tags any failure of the slot-extraction call (network,
// timeout, malformed model output). The dispatcher treats it as recoverable
// and asks the user to rephrase without touching session state.
var ErrExtraction = errors.New("agent: extraction failed")
