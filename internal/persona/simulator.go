package persona

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/llm"
)

// Simulator plays both sides of a collection call: the responder speaks the
// agent lines from the script and the customer lines from the persona.
type Simulator struct {
	responder *llm.Responder
	logger    *slog.Logger
}

func NewSimulator(responder *llm.Responder, logger *slog.Logger) *Simulator {
	return &Simulator{responder: responder, logger: logger}
}

// SimulateConversation runs exactly maxTurns rounds. Round 0 is the agent's
// opener; each later round appends a customer turn then an agent turn. The
// loop does not react to natural conversation closure, so the resulting
// transcript always has 2*maxTurns-1 turns.
func (s *Simulator) SimulateConversation(ctx context.Context, p domain.Persona, script string, maxTurns int) (domain.Transcript, error) {
	var transcript domain.Transcript

	agentCond := llm.Conditioning{Script: script}
	customerCond := llm.Conditioning{Persona: &p}

	for turn := 0; turn < maxTurns; turn++ {
		if turn > 0 {
			msg, err := s.responder.Generate(ctx, llm.RoleCustomer, customerCond, transcript)
			if err != nil {
				return nil, fmt.Errorf("simulate customer turn %d for %s: %w", turn, p.Name, err)
			}
			transcript = append(transcript, domain.Turn{
				Timestamp: time.Now(),
				Speaker:   domain.SpeakerCustomer,
				Message:   msg,
			})
		}

		msg, err := s.responder.Generate(ctx, llm.RoleAgent, agentCond, transcript)
		if err != nil {
			return nil, fmt.Errorf("simulate agent turn %d for %s: %w", turn, p.Name, err)
		}
		transcript = append(transcript, domain.Turn{
			Timestamp: time.Now(),
			Speaker:   domain.SpeakerAgent,
			Message:   msg,
		})
	}

	s.logger.Info("conversation simulated",
		"persona", p.Name, "rounds", maxTurns, "turns", len(transcript))
	return transcript, nil
}
