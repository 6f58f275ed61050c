// Package persona generates synthetic customer profiles and drives
// simulated conversations against an agent script, entirely offline.
package persona

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
	generateMaxTokens   = 2000
	generateTemperature = 0.8
)

const generateSystemPrompt = `You are an expert in creating realistic loan defaulter personas for testing debt collection voice agents. Generate diverse personas with different backgrounds, reasons for defaulting, and communication styles.

Each persona should include:
- Realistic personal details (name, age, occupation)
- Financial situation and reason for defaulting
- Personality traits and communication style
- Common objections they would raise
- Emotional state during debt collection calls
- Sample conversation responses they would give

Make the personas diverse and realistic to thoroughly test the voice agent's capabilities.`

// Generator produces persona sets from the completion capability, falling
// back to a small built-in set when the model's output cannot be parsed.
type Generator struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewGenerator(completer llm.Completer, logger *slog.Logger) *Generator {
	return &Generator{completer: completer, logger: logger}
}

// GeneratePersonas asks the model for count diverse personas. Malformed
// model output is not an error: the fixed fallback set (at most 3 personas,
// truncated to count) is returned instead so testing always has material to
// work with. Only a failed completion call surfaces as an error.
func (g *Generator) GeneratePersonas(ctx context.Context, count int) ([]domain.Persona, error) {
	user := fmt.Sprintf(`Generate %d diverse loan defaulter personas for testing a debt collection voice agent. Return the response as a valid JSON array with each persona having the following structure:
{
  "id": "unique_id",
  "name": "Full Name",
  "age": number,
  "occupation": "job title",
  "financialSituation": "description of current financial state",
  "defaultReason": "why they defaulted on the loan",
  "personality": "personality traits",
  "communicationStyle": "how they communicate",
  "objections": ["objection1", "objection2", "objection3"],
  "emotionalState": "emotional state during calls",
  "conversationScript": ["response1", "response2", "response3"]
}`, count)

	text, err := g.completer.Complete(ctx, llm.Request{
		System:      generateSystemPrompt,
		User:        user,
		MaxTokens:   generateMaxTokens,
		Temperature: generateTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate personas: %w", err)
	}

	personas, err := parsePersonas(text)
	if err != nil {
		g.logger.Warn("persona response unparseable, using fallback set", "error", err.Error())
		return FallbackPersonas(count), nil
	}
	return personas, nil
}

// parsePersonas extracts the first JSON array in text and decodes it.
func parsePersonas(text string) ([]domain.Persona, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var personas []domain.Persona
	if err := json.Unmarshal([]byte(text[start:end+1]), &personas); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("empty persona array")
	}
	return personas, nil
}

// FallbackPersonas returns the fixed built-in set, truncated to count.
func FallbackPersonas(count int) []domain.Persona {
	base := []domain.Persona{
		{
			ID:                 "persona_1",
			Name:               "John Smith",
			Age:                35,
			Occupation:         "Construction Worker",
			FinancialSituation: "Recently laid off, struggling with bills",
			DefaultReason:      "Lost job due to construction slowdown",
			Personality:        "Frustrated but willing to work things out",
			CommunicationStyle: "Direct and honest",
			Objections:         []string{"I don't have the money right now", "Can you give me more time?", "I'm looking for work"},
			EmotionalState:     "Stressed but cooperative",
			SampleResponses:    []string{"I understand I owe money, but I'm in a tough spot", "I'm actively looking for work", "Can we work out a payment plan?"},
		},
		{
			ID:                 "persona_2",
			Name:               "Maria Rodriguez",
			Age:                28,
			Occupation:         "Single Mother",
			FinancialSituation: "Living paycheck to paycheck with medical bills",
			DefaultReason:      "Medical emergency for child",
			Personality:        "Defensive and overwhelmed",
			CommunicationStyle: "Emotional and sometimes confrontational",
			Objections:         []string{"I have to take care of my kids first", "Medical bills are more important", "You don't understand my situation"},
			EmotionalState:     "Overwhelmed and defensive",
			SampleResponses:    []string{"My child's health comes first", "I'm doing the best I can", "You're not being fair to me"},
		},
		{
			ID:                 "persona_3",
			Name:               "David Chen",
			Age:                42,
			Occupation:         "Small Business Owner",
			FinancialSituation: "Business struggling, personal finances mixed with business",
			DefaultReason:      "Business downturn affecting personal finances",
			Personality:        "Prideful but realistic about situation",
			CommunicationStyle: "Professional but frustrated",
			Objections:         []string{"My business is struggling", "I'm working on turning things around", "Can you work with me on this?"},
			EmotionalState:     "Frustrated but hopeful",
			SampleResponses:    []string{"I'm working hard to turn my business around", "I want to pay this debt", "Can we find a solution that works for both of us?"},
		},
	}

	if count < len(base) {
		if count < 0 {
			count = 0
		}
		return base[:count]
	}
	return base
}
