package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeLLMClient struct {
	resp    LLMResponse
	err     error
	lastReq LLMRequest
}

func (f *fakeLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func TestLLMExtractorNormalizesSlots(t *testing.T) {
	client := &fakeLLMClient{resp: LLMResponse{
		Text: `{"intent": "book", "slots": {"patient_id": "pvy3830", "doctor": "Dr. Clark", "date": "next Monday", "time": "2pm"}}`,
	}}
	ex := NewLLMExtractor(client, "gpt-4o-mini", time.Second, nil)

	got, err := ex.Extract(context.Background(), "Book me with Dr. Clark next Monday at 2pm, I'm pvy3830", SessionState{}, refThursday)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Kind != IntentBook {
		t.Errorf("kind = %q", got.Kind)
	}
	want := Slots{PatientID: "PVY3830", Doctor: "Dr. Clark", Date: "2025-09-01", Time: "14:00"}
	if got.Slots != want {
		t.Errorf("slots = %+v, want %+v", got.Slots, want)
	}
}

func TestLLMExtractorFencedOutput(t *testing.T) {
	client := &fakeLLMClient{resp: LLMResponse{
		Text: "```json\n{\"intent\": \"query\", \"slots\": {\"patient_id\": null, \"doctor\": \"dermatologist\", \"date\": null, \"time\": null}}\n```",
	}}
	ex := NewLLMExtractor(client, "gpt-4o-mini", time.Second, nil)

	got, err := ex.Extract(context.Background(), "any dermatologist slots?", SessionState{}, refThursday)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Kind != IntentQuery || got.Slots.Doctor != "dermatologist" {
		t.Errorf("got %+v", got)
	}
}

func TestLLMExtractorMalformedOutput(t *testing.T) {
	client := &fakeLLMClient{resp: LLMResponse{Text: "I'd be happy to help you book an appointment!"}}
	ex := NewLLMExtractor(client, "gpt-4o-mini", time.Second, nil)

	_, err := ex.Extract(context.Background(), "book me in", SessionState{}, refThursday)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestLLMExtractorClientError(t *testing.T) {
	client := &fakeLLMClient{err: errors.New("rate limited")}
	ex := NewLLMExtractor(client, "gpt-4o-mini", time.Second, nil)

	_, err := ex.Extract(context.Background(), "book me in", SessionState{}, refThursday)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestLLMExtractorDropsUnparseableDate(t *testing.T) {
	client := &fakeLLMClient{resp: LLMResponse{
		Text: `{"intent": "book", "slots": {"patient_id": null, "doctor": null, "date": "whenever suits", "time": "sometime"}}`,
	}}
	ex := NewLLMExtractor(client, "gpt-4o-mini", time.Second, nil)

	got, err := ex.Extract(context.Background(), "book me whenever", SessionState{}, refThursday)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Slots.Date != "" || got.Slots.Time != "" {
		t.Errorf("unparseable slots should be dropped, got %+v", got.Slots)
	}
}

func TestLLMExtractorSendsPendingContext(t *testing.T) {
	client := &fakeLLMClient{resp: LLMResponse{
		Text: `{"intent": "book", "slots": {"patient_id": "PVY3830", "doctor": null, "date": null, "time": null}}`,
	}}
	ex := NewLLMExtractor(client, "gpt-4o-mini", time.Second, nil)

	pending := SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}}
	if _, err := ex.Extract(context.Background(), "PVY3830", pending, refThursday); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	joined := strings.Join(client.lastReq.System, "\n")
	if !strings.Contains(joined, "Today is Thursday, 2025-08-28") {
		t.Errorf("system prompt missing reference date:\n%s", joined)
	}
	if !strings.Contains(joined, "Pending intent: book") {
		t.Errorf("system prompt missing pending intent:\n%s", joined)
	}
	if !strings.Contains(joined, "Already provided doctor: Dr. Clark") {
		t.Errorf("system prompt missing held slot:\n%s", joined)
	}
}
