package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
)

// DefaultContextBudget is the token budget for the transcript context block
// of a prompt. Long calls get their oldest turns dropped to stay inside it.
const DefaultContextBudget = 2000

// ContextBuilder renders a transcript into the "Agent: ... / Customer: ..."
// context block used in prompts, trimming oldest turns to a token budget.
// Counts use cl100k_base, which is an approximation for non-OpenAI models
// but errs consistently, so the budget still bounds prompt growth.
type ContextBuilder struct {
	budget int

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewContextBuilder creates a builder with the given token budget; zero or
// negative means DefaultContextBudget.
func NewContextBuilder(budget int) *ContextBuilder {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	return &ContextBuilder{budget: budget}
}

// Render returns the context block for a transcript. When the full rendering
// exceeds the budget, oldest turns are dropped (never reordered) until it
// fits; the most recent turn is always kept.
func (b *ContextBuilder) Render(t domain.Transcript) string {
	lines := make([]string, len(t))
	for i, turn := range t {
		lines[i] = fmt.Sprintf("%s: %s", speakerLabel(turn.Speaker), turn.Message)
	}

	start := 0
	for start < len(lines)-1 {
		if b.countTokens(strings.Join(lines[start:], "\n")) <= b.budget {
			break
		}
		start++
	}
	return strings.Join(lines[start:], "\n")
}

func (b *ContextBuilder) countTokens(s string) int {
	b.once.Do(func() {
		b.codec, b.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if b.err != nil {
		// Tokenizer unavailable: fall back to a chars/4 estimate.
		return len(s) / 4
	}
	ids, _, err := b.codec.Encode(s)
	if err != nil {
		return len(s) / 4
	}
	return len(ids)
}

func speakerLabel(s domain.Speaker) string {
	if s == domain.SpeakerAgent {
		return "Agent"
	}
	return "Customer"
}
