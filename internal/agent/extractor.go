package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

const extractorSystemPrompt = `You are the intent analyzer for a medical appointment scheduling assistant.
Read the user's message together with the pending request context and respond with ONLY a JSON object:

{"intent": "book|reschedule|cancel|query|greeting|unknown", "slots": {"patient_id": null, "doctor": null, "date": null, "time": null}}

Rules:
- "intent" is what the user wants overall. If the user is answering a question mid-request, keep the pending intent.
- Fill a slot only when the message explicitly mentions it or it is clearly implied. Never guess or invent values.
- patient_id is a 7-character code: P followed by 2 letters and 4 digits (e.g. PVY3830).
- Copy date and time expressions verbatim as the user said them ("next Monday", "2pm"). Do not resolve them yourself.
- Use null for any slot the message does not provide.`

// Extractor turns a raw utterance plus the pending session state into a
// candidate extraction.
type Extractor interface {
	Extract(ctx context.Context, utterance string, pending SessionState, refDate time.Time) (Extraction, error)
}

// LLMExtractor runs the extraction prompt against an LLMClient and
// normalizes the answer. Any transport or parse failure surfaces as
// ErrExtraction so the dispatcher can re-prompt instead of guessing.
type LLMExtractor struct {
	client  LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

func NewLLMExtractor(client LLMClient, model string, timeout time.Duration, logger *logging.Logger) *LLMExtractor {
	if client == nil {
		panic("agent: llm client cannot be nil")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMExtractor{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

type extractorWire struct {
	Intent string `json:"intent"`
	Slots  struct {
		PatientID *string `json:"patient_id"`
		Doctor    *string `json:"doctor"`
		Date      *string `json:"date"`
		Time      *string `json:"time"`
	} `json:"slots"`
}

func (e *LLMExtractor) Extract(ctx context.Context, utterance string, pending SessionState, refDate time.Time) (Extraction, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Complete(callCtx, LLMRequest{
		Model:       e.model,
		System:      []string{extractorSystemPrompt, pendingContext(pending, refDate)},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: utterance}},
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var wire extractorWire
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Text)), &wire); err != nil {
		e.logger.Warn("extractor returned unparseable output", "output", resp.Text)
		return Extraction{}, fmt.Errorf("%w: malformed model output: %v", ErrExtraction, err)
	}

	ext := Extraction{Kind: normalizeKind(wire.Intent)}
	ext.Slots.PatientID = strings.ToUpper(deref(wire.Slots.PatientID))
	ext.Slots.Doctor = deref(wire.Slots.Doctor)

	// Date and time come back verbatim; resolve them here against the
	// caller's reference date so the model never decides what "tomorrow" is.
	if raw := deref(wire.Slots.Date); raw != "" {
		if date, ok := NormalizeDate(raw, refDate); ok {
			ext.Slots.Date = date
		} else {
			e.logger.Debug("dropping unparseable date slot", "raw", raw)
		}
	}
	if raw := deref(wire.Slots.Time); raw != "" {
		if t, ok := NormalizeTime(raw); ok {
			ext.Slots.Time = t
		} else {
			e.logger.Debug("dropping unparseable time slot", "raw", raw)
		}
	}
	return ext, nil
}

// pendingContext tells the model what is already collected so follow-up
// answers ("PVY3830", "make it 3pm") land on the right intent.
func pendingContext(pending SessionState, refDate time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s, %s.\n", refDate.Weekday(), refDate.Format("2006-01-02"))
	if pending.Kind == IntentUnknown || pending.Kind == "" {
		b.WriteString("No request is in progress.")
		return b.String()
	}
	fmt.Fprintf(&b, "Pending intent: %s\n", pending.Kind)
	for _, name := range slotPriority {
		if v := pending.Slots.Get(name); v != "" {
			fmt.Fprintf(&b, "Already provided %s: %s\n", name, v)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func normalizeKind(s string) IntentKind {
	switch IntentKind(strings.ToLower(strings.TrimSpace(s))) {
	case IntentBook:
		return IntentBook
	case IntentReschedule:
		return IntentReschedule
	case IntentCancel:
		return IntentCancel
	case IntentQuery:
		return IntentQuery
	case IntentGreeting:
		return IntentGreeting
	}
	return IntentUnknown
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// stripCodeFences unwraps ```json fenced blocks some models insist on.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
