// Package call holds the live-call path: converting inbound speech webhooks
// into transcript turns plus a spoken-response document, and the wait policy
// that decides when a live test call has collected enough conversation.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/llm"
	"github.com/ShivankK26/ai-voice-agent/internal/telephony"
	"github.com/ShivankK26/ai-voice-agent/internal/tracker"
)

const (
	clarificationPrompt = "I didn't catch that clearly. You have an outstanding balance of $1,250.00. Would you like to make a full payment or set up a payment plan?"
	clarificationListen = "Please let me know how you would like to proceed."
	replyListen         = "Please let me know your preference for payment arrangements."
	closingStatement    = "Thank you for your time. Please call us back when you are ready to discuss payment arrangements. Have a great day."
	catchAllStatement   = "I apologize for the technical difficulties. Please call us back later. Thank you."
)

// SpeechEvent is one inbound speech-recognition webhook, already decoded
// from the provider's form encoding.
type SpeechEvent struct {
	CallSID    string
	Speech     string
	Confidence float64
	Script     string
}

// Recorder turns speech events into transcript turns and TwiML replies.
type Recorder struct {
	tracker             *tracker.Tracker
	responder           *llm.Responder
	logger              *slog.Logger
	confidenceThreshold float64
	listenTimeout       int
	interactiveURL      string
}

func NewRecorder(trk *tracker.Tracker, responder *llm.Responder, logger *slog.Logger, confidenceThreshold float64, listenTimeout int, baseURL string) *Recorder {
	return &Recorder{
		tracker:             trk,
		responder:           responder,
		logger:              logger,
		confidenceThreshold: confidenceThreshold,
		listenTimeout:       listenTimeout,
		interactiveURL:      baseURL + "/call/interactive",
	}
}

// HandleSpeech processes one recognized utterance and returns the TwiML to
// speak back. It never returns an error: Responder failures downgrade to a
// scripted fallback, and tracker drops are logged only, because the webhook
// must always answer the caller.
func (r *Recorder) HandleSpeech(ctx context.Context, ev SpeechEvent) string {
	r.logger.Info("speech event",
		"call_sid", ev.CallSID,
		"speech", ev.Speech,
		"confidence", ev.Confidence,
		"tracked", r.tracker.IsCallTracked(ev.CallSID),
	)

	var utterance, listenPrompt string

	if ev.Speech == "" || ev.Confidence <= r.confidenceThreshold {
		r.logger.Info("speech below confidence threshold, asking to repeat",
			"call_sid", ev.CallSID, "confidence", ev.Confidence)
		utterance = clarificationPrompt
		listenPrompt = clarificationListen
	} else {
		r.tracker.AppendTurnForCall(ev.CallSID, domain.Turn{
			Timestamp:  time.Now(),
			Speaker:    domain.SpeakerCustomer,
			Message:    ev.Speech,
			Confidence: ev.Confidence,
		})

		reply, err := r.responder.ReplyToCustomer(ctx, ev.Script, ev.Speech)
		if err != nil {
			r.logger.Error("responder failed, using scripted fallback",
				"call_sid", ev.CallSID, "error", err.Error())
			utterance = fmt.Sprintf("I understand you said: %s. Let me help you with payment options for your outstanding balance of $1,250.00. We can arrange for a full payment or set up a payment plan. What would you prefer?", ev.Speech)
		} else {
			utterance = reply
			r.tracker.AppendTurnForCall(ev.CallSID, domain.Turn{
				Timestamp: time.Now(),
				Speaker:   domain.SpeakerAgent,
				Message:   reply,
			})
		}
		listenPrompt = replyListen
	}

	doc, err := telephony.RenderSpokenResponse(
		[]string{utterance},
		&telephony.Listen{
			Prompt:         listenPrompt,
			TimeoutSeconds: r.listenTimeout,
			ActionURL:      r.interactiveURL,
		},
		closingStatement,
	)
	if err != nil {
		r.logger.Error("twiml render failed", "call_sid", ev.CallSID, "error", err.Error())
		return CatchAllDocument()
	}
	return doc
}

// CatchAllDocument is the last-resort reply when request handling itself
// fails before a normal response can be rendered.
func CatchAllDocument() string {
	doc, err := telephony.RenderSpokenResponse([]string{catchAllStatement}, nil, "")
	if err != nil {
		// twiml marshalling of static verbs cannot realistically fail
		return ""
	}
	return doc
}
