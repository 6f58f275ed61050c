package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
)

// Role selects which side of the conversation the responder speaks for.
type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// Generation parameters per role. The customer side runs hotter so personas
// produce varied, persona-consistent replies; the agent stays conversational.
const (
	agentTemperature    = 0.7
	customerTemperature = 0.8

	agentLiveMaxTokens      = 200
	agentSimulatedMaxTokens = 150
	customerMaxTokens       = 100
)

// Conditioning is the tagged payload that shapes an utterance: the agent
// role reads Script, the customer role reads Persona.
type Conditioning struct {
	Script  string
	Persona *domain.Persona
}

// Responder produces one piece of dialogue per call. It does not retry: a
// failed or empty completion surfaces as an error and the caller supplies
// its own fallback utterance.
type Responder struct {
	completer Completer
	contexts  *ContextBuilder
}

// NewResponder creates a responder over the given completion capability.
func NewResponder(completer Completer) *Responder {
	return &Responder{
		completer: completer,
		contexts:  NewContextBuilder(0),
	}
}

// Generate produces the next utterance for role given the conversation so
// far. Used by the simulation path, where both sides are model-played.
func (r *Responder) Generate(ctx context.Context, role Role, cond Conditioning, transcript domain.Transcript) (string, error) {
	switch role {
	case RoleAgent:
		return r.generateAgent(ctx, cond.Script, transcript)
	case RoleCustomer:
		if cond.Persona == nil {
			return "", fmt.Errorf("customer role requires a persona")
		}
		return r.generateCustomer(ctx, cond.Persona, transcript)
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

// ReplyToCustomer produces the agent's reply to a single recognized
// utterance. Used by the live-call path, where only the latest speech result
// is in hand.
func (r *Responder) ReplyToCustomer(ctx context.Context, script, speech string) (string, error) {
	return r.completer.Complete(ctx, Request{
		System:      agentSystemPrompt(script),
		User:        fmt.Sprintf("Customer said: %q. Respond naturally as a debt collection agent. Keep your response under 2 sentences.", speech),
		MaxTokens:   agentLiveMaxTokens,
		Temperature: agentTemperature,
	})
}

func (r *Responder) generateAgent(ctx context.Context, script string, transcript domain.Transcript) (string, error) {
	return r.completer.Complete(ctx, Request{
		System: agentSystemPrompt(script),
		User: fmt.Sprintf("Conversation context:\n%s\n\nRespond as the debt collection agent to continue the conversation naturally. Keep your response under 2 sentences.",
			r.contexts.Render(transcript)),
		MaxTokens:   agentSimulatedMaxTokens,
		Temperature: agentTemperature,
	})
}

func (r *Responder) generateCustomer(ctx context.Context, p *domain.Persona, transcript domain.Transcript) (string, error) {
	system := fmt.Sprintf(`You are %s, a %d-year-old %s.

PERSONA DETAILS:
- Financial Situation: %s
- Default Reason: %s
- Personality: %s
- Communication Style: %s
- Emotional State: %s
- Common Objections: %s

Respond naturally as this person would during a debt collection call. Be consistent with their personality and situation.`,
		p.Name, p.Age, p.Occupation,
		p.FinancialSituation, p.DefaultReason, p.Personality,
		p.CommunicationStyle, p.EmotionalState, strings.Join(p.Objections, ", "))

	return r.completer.Complete(ctx, Request{
		System: system,
		User: fmt.Sprintf("Conversation context:\n%s\n\nRespond as %s to the debt collection agent. Keep your response under 2 sentences and be consistent with your persona.",
			r.contexts.Render(transcript), p.Name),
		MaxTokens:   customerMaxTokens,
		Temperature: customerTemperature,
	})
}

func agentSystemPrompt(script string) string {
	if script == "" {
		script = domain.DefaultAgentScript
	}
	return fmt.Sprintf(`You are Sarah, a professional debt collection agent from First National Bank. You are calling about an overdue credit card payment of $1,250.00.

AGENT SCRIPT: %s

Be polite, professional, and helpful. Keep responses concise and natural for phone conversation. Don't be too pushy, but be firm about the payment.`, script)
}
