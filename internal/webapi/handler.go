package webapi

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/ShivankK26/ai-voice-agent/internal/call"
	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/score"
	"github.com/ShivankK26/ai-voice-agent/internal/selftest"
	"github.com/ShivankK26/ai-voice-agent/internal/telephony"
	"github.com/ShivankK26/ai-voice-agent/internal/tracker"
)

// CallPlacer is the telephony surface the handlers depend on, satisfied by
// telephony.Dialer.
type CallPlacer interface {
	PlaceCall(req telephony.CallRequest) (*telephony.CallInfo, error)
	CallStatus(sid string) (*telephony.CallInfo, error)
}

// PersonaGenerator produces synthetic customer profiles.
type PersonaGenerator interface {
	GeneratePersonas(ctx context.Context, count int) ([]domain.Persona, error)
}

// ConversationSimulator plays a scripted conversation against a persona.
type ConversationSimulator interface {
	SimulateConversation(ctx context.Context, p domain.Persona, script string, maxTurns int) (domain.Transcript, error)
}

// ConversationScorer evaluates a transcript.
type ConversationScorer interface {
	Score(ctx context.Context, transcript domain.Transcript, subject score.Subject, script string) (domain.ScoreCard, error)
}

// ScriptImprover diagnoses and rewrites the agent script.
type ScriptImprover interface {
	Analyze(ctx context.Context, results []domain.TestResult, script string) (domain.Diagnosis, error)
	Rewrite(ctx context.Context, diagnosis domain.Diagnosis, script string, iteration int) domain.RewriteResult
}

// TestRunner drives a full self-correction session.
type TestRunner interface {
	Run(ctx context.Context, opts selftest.Options) (*domain.TestSession, *domain.TestSummary, error)
}

// Handler holds the wired components behind the HTTP surface.
type Handler struct {
	dialer        CallPlacer
	recorder      *call.Recorder
	tracker       *tracker.Tracker
	personas      PersonaGenerator
	simulator     ConversationSimulator
	scorer        ConversationScorer
	improver      ScriptImprover
	runner        TestRunner
	logger        *slog.Logger
	baseURL       string
	listenTimeout int
	waitPolicy    call.WaitPolicy
	defaults      selftest.Options
}

// Config carries the handler's request-independent settings.
type Config struct {
	BaseURL       string
	ListenTimeout int
	WaitPolicy    call.WaitPolicy
	Defaults      selftest.Options
}

func NewHandler(dialer CallPlacer, recorder *call.Recorder, trk *tracker.Tracker, personas PersonaGenerator, simulator ConversationSimulator, scorer ConversationScorer, improver ScriptImprover, runner TestRunner, logger *slog.Logger, cfg Config) *Handler {
	return &Handler{
		dialer:        dialer,
		recorder:      recorder,
		tracker:       trk,
		personas:      personas,
		simulator:     simulator,
		scorer:        scorer,
		improver:      improver,
		runner:        runner,
		logger:        logger,
		baseURL:       cfg.BaseURL,
		listenTimeout: cfg.ListenTimeout,
		waitPolicy:    cfg.WaitPolicy,
		defaults:      cfg.Defaults,
	}
}

// Routes mounts every endpoint on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/call", func(r chi.Router) {
		r.Post("/", h.handlePlaceCall)
		r.Post("/interactive", h.handleInteractive)
		r.Get("/status", h.handleCallStatusQuery)
		r.Post("/status", h.handleCallStatusCallback)
		r.Post("/recording", h.handleCallRecording)
	})

	r.Route("/testing", func(r chi.Router) {
		r.Post("/generate-personas", h.handleGeneratePersonas)
		r.Post("/conversation-test", h.handleConversationTest)
		r.Post("/self-correct", h.handleSelfCorrect)
		r.Post("/run-full-test", h.handleRunFullTest)
		r.Post("/voice-test", h.handleVoiceTest)
		r.Put("/voice-test", h.handleVoiceTestCapture)
		r.Get("/tracker", h.handleTrackerDebug)
	})
}
