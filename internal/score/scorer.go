// Package score evaluates conversation transcripts against a fixed
// five-metric rubric using the completion capability.
package score

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/llm"
)

const (
	scoreMaxTokens   = 1000
	scoreTemperature = 0.3
)

const scoreSystemPrompt = `You are an expert evaluator of debt collection voice agent conversations. Analyze the conversation and provide metrics and feedback.

EVALUATION CRITERIA:
1. Repetition Score (0-100): How often does the agent repeat the same information?
2. Negotiation Score (0-100): How well does the agent negotiate and offer solutions?
3. Relevance Score (0-100): How relevant are the agent's responses to customer concerns?
4. Empathy Score (0-100): How empathetic and understanding is the agent?
5. Overall Score (0-100): Overall effectiveness of the conversation

Return your analysis as JSON with the following structure:
{
  "metrics": {
    "repetitionScore": number,
    "negotiationScore": number,
    "relevanceScore": number,
    "empathyScore": number,
    "overallScore": number
  },
  "issues": ["issue1", "issue2"],
  "recommendations": ["recommendation1", "recommendation2"]
}`

// Subject carries the metadata that accompanies a transcript into the
// rubric prompt. Persona is set for simulated conversations, SessionID for
// real calls.
type Subject struct {
	Persona   *domain.Persona
	SessionID string
}

// Scorer maps transcripts to score cards. It never fails on model output:
// unparseable analysis is replaced with a deterministic mid-range card so
// the testing pipeline always has a number to aggregate.
type Scorer struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewScorer(completer llm.Completer, logger *slog.Logger) *Scorer {
	return &Scorer{completer: completer, logger: logger}
}

// Score evaluates one conversation. An empty transcript short-circuits to an
// all-zero card without touching the completion capability. A failed
// completion call is the only error path.
func (s *Scorer) Score(ctx context.Context, transcript domain.Transcript, subject Subject, script string) (domain.ScoreCard, error) {
	if len(transcript) == 0 {
		return domain.ScoreCard{
			Issues:          []string{"No conversation data was captured", "Call may not have connected or no speech was recognized"},
			Recommendations: []string{"Verify the call connected and speech recognition is working"},
		}, nil
	}

	text, err := s.completer.Complete(ctx, llm.Request{
		System:      scoreSystemPrompt,
		User:        s.analysisPrompt(transcript, subject, script),
		MaxTokens:   scoreMaxTokens,
		Temperature: scoreTemperature,
	})
	if err != nil {
		return domain.ScoreCard{}, fmt.Errorf("score conversation: %w", err)
	}

	card, err := parseScoreCard(text)
	if err != nil {
		s.logger.Warn("score response unparseable, using fallback card", "error", err.Error())
		return fallbackCard(), nil
	}
	return card, nil
}

func (s *Scorer) analysisPrompt(transcript domain.Transcript, subject Subject, script string) string {
	var b strings.Builder
	b.WriteString("Analyze this debt collection conversation:\n\n")

	if p := subject.Persona; p != nil {
		fmt.Fprintf(&b, "PERSONA: %s (%d, %s)\n", p.Name, p.Age, p.Occupation)
		fmt.Fprintf(&b, "PERSONALITY: %s\n", p.Personality)
		fmt.Fprintf(&b, "EMOTIONAL STATE: %s\n", p.EmotionalState)
	} else if subject.SessionID != "" {
		fmt.Fprintf(&b, "SESSION: %s (live call)\n", subject.SessionID)
	}

	b.WriteString("\nCONVERSATION:\n")
	for _, turn := range transcript {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(turn.Speaker)), turn.Message)
	}

	fmt.Fprintf(&b, "\nAGENT SCRIPT: %s\n", script)
	b.WriteString("\nProvide detailed analysis with metrics, issues, and recommendations.")
	return b.String()
}

// parseScoreCard extracts the first JSON object in text and decodes it.
func parseScoreCard(text string) (domain.ScoreCard, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return domain.ScoreCard{}, fmt.Errorf("no JSON object in response")
	}

	var card domain.ScoreCard
	if err := json.Unmarshal([]byte(text[start:end+1]), &card); err != nil {
		return domain.ScoreCard{}, fmt.Errorf("decode score card: %w", err)
	}
	return card, nil
}

func fallbackCard() domain.ScoreCard {
	return domain.ScoreCard{
		Metrics: domain.Metrics{
			Repetition:  70,
			Negotiation: 60,
			Relevance:   75,
			Empathy:     65,
			Overall:     68,
		},
		Issues:          []string{"Agent could be more empathetic", "Limited negotiation options offered"},
		Recommendations: []string{"Add more empathy to responses", "Offer more flexible payment options"},
		Degraded:        true,
	}
}
