package score

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/llm"
)

type stubCompleter struct {
	response string
	err      error
	requests []llm.Request
}

func (s *stubCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTranscript() domain.Transcript {
	return domain.Transcript{
		{Speaker: domain.SpeakerAgent, Message: "Hello, this is Sarah from First National Bank."},
		{Speaker: domain.SpeakerCustomer, Message: "I can't pay right now."},
		{Speaker: domain.SpeakerAgent, Message: "I understand. We can set up a payment plan."},
	}
}

func TestScoreParsesAnalysis(t *testing.T) {
	completer := &stubCompleter{response: `Here is my analysis.
{
  "metrics": {
    "repetitionScore": 20,
    "negotiationScore": 85,
    "relevanceScore": 90,
    "empathyScore": 80,
    "overallScore": 84
  },
  "issues": ["Opening was abrupt"],
  "recommendations": ["Soften the opening"]
}`}
	s := NewScorer(completer, discardLogger())

	card, err := s.Score(context.Background(), sampleTranscript(), Subject{}, "script")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if card.Metrics.Overall != 84 || card.Metrics.Repetition != 20 {
		t.Errorf("metrics = %+v", card.Metrics)
	}
	if card.Degraded {
		t.Error("parsed card must not be degraded")
	}
	if len(card.Issues) != 1 || card.Issues[0] != "Opening was abrupt" {
		t.Errorf("issues = %v", card.Issues)
	}

	req := completer.requests[0]
	if req.Temperature != 0.3 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if !strings.Contains(req.User, "AGENT: Hello, this is Sarah from First National Bank.") {
		t.Errorf("transcript missing from prompt: %s", req.User)
	}
	if !strings.Contains(req.User, "AGENT SCRIPT: script") {
		t.Errorf("script missing from prompt: %s", req.User)
	}
}

func TestScorePersonaMetadataInPrompt(t *testing.T) {
	completer := &stubCompleter{response: `{"metrics":{"overallScore":50}}`}
	s := NewScorer(completer, discardLogger())

	p := &domain.Persona{Name: "Alex Morgan", Age: 31, Occupation: "Nurse", Personality: "Calm", EmotionalState: "Worried"}
	if _, err := s.Score(context.Background(), sampleTranscript(), Subject{Persona: p}, "script"); err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !strings.Contains(completer.requests[0].User, "PERSONA: Alex Morgan (31, Nurse)") {
		t.Errorf("persona missing from prompt: %s", completer.requests[0].User)
	}
}

func TestScoreFallbackOnUnparseable(t *testing.T) {
	completer := &stubCompleter{response: "The agent did fine overall."}
	s := NewScorer(completer, discardLogger())

	card, err := s.Score(context.Background(), sampleTranscript(), Subject{}, "script")
	if err != nil {
		t.Fatalf("fallback path should not error: %v", err)
	}
	want := domain.Metrics{Repetition: 70, Negotiation: 60, Relevance: 75, Empathy: 65, Overall: 68}
	if card.Metrics != want {
		t.Errorf("fallback metrics = %+v, want %+v", card.Metrics, want)
	}
	if !card.Degraded {
		t.Error("fallback card must be flagged degraded")
	}
	if len(card.Issues) != 2 || len(card.Recommendations) != 2 {
		t.Errorf("fallback card should carry generic findings: %+v", card)
	}
}

func TestScoreEmptyTranscriptShortCircuits(t *testing.T) {
	completer := &stubCompleter{response: "should not be called"}
	s := NewScorer(completer, discardLogger())

	card, err := s.Score(context.Background(), domain.Transcript{}, Subject{SessionID: "sess1"}, "script")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(completer.requests) != 0 {
		t.Error("empty transcript must not reach the completion capability")
	}
	if card.Metrics != (domain.Metrics{}) {
		t.Errorf("expected all-zero metrics, got %+v", card.Metrics)
	}
	if len(card.Issues) == 0 {
		t.Error("empty transcript card should explain that no data was captured")
	}
}

func TestScoreCompletionError(t *testing.T) {
	completer := &stubCompleter{err: errors.New("provider down")}
	s := NewScorer(completer, discardLogger())

	if _, err := s.Score(context.Background(), sampleTranscript(), Subject{}, "script"); err == nil {
		t.Fatal("completion failure should surface as an error")
	}
}
