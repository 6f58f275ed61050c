package llm

import (
	"strings"
	"testing"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
)

func TestRenderKeepsOrder(t *testing.T) {
	b := NewContextBuilder(0)
	out := b.Render(domain.Transcript{
		{Speaker: domain.SpeakerAgent, Message: "Hello, this is Sarah."},
		{Speaker: domain.SpeakerCustomer, Message: "Who is this?"},
		{Speaker: domain.SpeakerAgent, Message: "I'm calling about your account."},
	})

	want := "Agent: Hello, this is Sarah.\nCustomer: Who is this?\nAgent: I'm calling about your account."
	if out != want {
		t.Errorf("Render = %q, want %q", out, want)
	}
}

func TestRenderTrimsOldestWhenOverBudget(t *testing.T) {
	// Tiny budget forces trimming down to the final turn.
	b := NewContextBuilder(5)

	long := strings.Repeat("payment plan options ", 20)
	out := b.Render(domain.Transcript{
		{Speaker: domain.SpeakerAgent, Message: long},
		{Speaker: domain.SpeakerCustomer, Message: long},
		{Speaker: domain.SpeakerAgent, Message: "Final turn."},
	})

	if !strings.HasSuffix(out, "Agent: Final turn.") {
		t.Errorf("most recent turn must survive trimming, got %q", out)
	}
	if strings.Count(out, "\n") != 0 {
		t.Errorf("expected only the final turn to remain, got %q", out)
	}
}

func TestRenderEmptyTranscript(t *testing.T) {
	if out := NewContextBuilder(0).Render(nil); out != "" {
		t.Errorf("Render(nil) = %q, want empty", out)
	}
}
