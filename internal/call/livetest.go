package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/tracker"
)

// WaitPolicy decides when a live test call has collected enough
// conversation to score. The wait ends as soon as the transcript holds
// MinExchanges agent/customer exchange pairs, two turns each, or when
// MaxWait elapses, whichever comes first.
type WaitPolicy struct {
	MinExchanges int
	MaxWait      time.Duration
	PollInterval time.Duration
}

// WaitForTranscript polls the tracker until the policy is satisfied or the
// context is cancelled, then returns the transcript accumulated so far. A
// short or empty transcript is not an error; the scorer handles both.
func WaitForTranscript(ctx context.Context, trk *tracker.Tracker, sessionID string, policy WaitPolicy, logger *slog.Logger) domain.Transcript {
	deadline := time.Now().Add(policy.MaxWait)
	ticker := time.NewTicker(policy.PollInterval)
	defer ticker.Stop()

	for {
		transcript := trk.Transcript(sessionID)
		if len(transcript) >= policy.MinExchanges*2 {
			logger.Info("live test reached exchange minimum",
				"session_id", sessionID, "turns", len(transcript))
			return transcript
		}
		if time.Now().After(deadline) {
			logger.Info("live test wait deadline elapsed",
				"session_id", sessionID, "turns", len(transcript))
			return transcript
		}

		select {
		case <-ctx.Done():
			logger.Info("live test wait cancelled",
				"session_id", sessionID, "turns", len(transcript))
			return transcript
		case <-ticker.C:
		}
	}
}
