// Package selftest drives the improve-until-good-enough loop: generate
// personas, simulate conversations against the current script, score them,
// and rewrite the script until the target average is reached or the
// iteration budget runs out.
package selftest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/score"
)

// PersonaGenerator produces synthetic customer profiles.
type PersonaGenerator interface {
	GeneratePersonas(ctx context.Context, count int) ([]domain.Persona, error)
}

// ConversationSimulator plays a bounded conversation between the scripted
// agent and a persona.
type ConversationSimulator interface {
	SimulateConversation(ctx context.Context, p domain.Persona, script string, maxTurns int) (domain.Transcript, error)
}

// ConversationScorer evaluates a transcript against the rubric.
type ConversationScorer interface {
	Score(ctx context.Context, transcript domain.Transcript, subject score.Subject, script string) (domain.ScoreCard, error)
}

// ScriptImprover diagnoses weaknesses and rewrites the script.
type ScriptImprover interface {
	Analyze(ctx context.Context, results []domain.TestResult, script string) (domain.Diagnosis, error)
	Rewrite(ctx context.Context, diagnosis domain.Diagnosis, script string, iteration int) domain.RewriteResult
}

// Options configures one self-test run. Zero fields take the configured
// defaults supplied at construction.
type Options struct {
	MaxIterations  int
	TargetScore    float64
	PersonaCount   int
	SimulatedTurns int
	InitialScript  string
}

// Controller orchestrates self-test runs. Unlike the components it drives,
// it has no graceful degradation: a failed sub-call aborts the run, since an
// iteration that cannot be evaluated leaves the loop nothing to act on.
type Controller struct {
	personas  PersonaGenerator
	simulator ConversationSimulator
	scorer    ConversationScorer
	improver  ScriptImprover
	logger    *slog.Logger
	defaults  Options
}

func NewController(personas PersonaGenerator, simulator ConversationSimulator, scorer ConversationScorer, improver ScriptImprover, logger *slog.Logger, defaults Options) *Controller {
	return &Controller{
		personas:  personas,
		simulator: simulator,
		scorer:    scorer,
		improver:  improver,
		logger:    logger,
		defaults:  defaults,
	}
}

// Run executes the loop and returns the full session record plus a summary.
func (c *Controller) Run(ctx context.Context, opts Options) (*domain.TestSession, *domain.TestSummary, error) {
	opts = c.withDefaults(opts)

	session := &domain.TestSession{
		SessionID:   "test_" + uuid.NewString(),
		StartTime:   time.Now(),
		State:       domain.LoopPending,
		FinalScript: opts.InitialScript,
	}
	c.logger.Info("self-test session starting",
		"session_id", session.SessionID,
		"target_score", opts.TargetScore,
		"max_iterations", opts.MaxIterations)

	currentScript := opts.InitialScript
	session.State = domain.LoopRunning

	for iteration := 1; iteration <= opts.MaxIterations; iteration++ {
		record, err := c.runIteration(ctx, iteration, currentScript, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}

		converged := record.AverageScore >= opts.TargetScore
		if !converged && iteration < opts.MaxIterations {
			diagnosis, err := c.improver.Analyze(ctx, record.TestResults, currentScript)
			if err != nil {
				return nil, nil, fmt.Errorf("iteration %d: %w", iteration, err)
			}
			rewrite := c.improver.Rewrite(ctx, diagnosis, currentScript, iteration)
			currentScript = rewrite.Script
			record.Improvements = diagnosis.KeyChanges
		}

		session.Iterations = append(session.Iterations, *record)
		session.ImprovementHistory = append(session.ImprovementHistory, domain.ImprovementEntry{
			Iteration:    record.Iteration,
			AverageScore: record.AverageScore,
			Improvements: record.Improvements,
		})

		c.logger.Info("iteration complete",
			"session_id", session.SessionID,
			"iteration", iteration,
			"average_score", record.AverageScore,
			"converged", converged)

		if converged {
			session.State = domain.LoopConverged
			break
		}
	}
	if session.State != domain.LoopConverged {
		session.State = domain.LoopExhausted
	}

	session.EndTime = time.Now()
	session.FinalScript = currentScript

	summary := summarize(session, opts.TargetScore)
	c.logger.Info("self-test session finished",
		"session_id", session.SessionID,
		"state", session.State,
		"final_score", summary.FinalScore,
		"improvement", summary.Improvement)
	return session, summary, nil
}

func (c *Controller) runIteration(ctx context.Context, iteration int, script string, opts Options) (*domain.IterationRecord, error) {
	ctx, span := otel.Tracer("selftest").Start(ctx, "selftest.iteration")
	defer span.End()
	span.SetAttributes(attribute.Int("selftest.iteration", iteration))

	personas, err := c.personas.GeneratePersonas(ctx, opts.PersonaCount)
	if err != nil {
		return nil, err
	}

	results := make([]domain.TestResult, 0, len(personas))
	for i := range personas {
		p := personas[i]
		transcript, err := c.simulator.SimulateConversation(ctx, p, script, opts.SimulatedTurns)
		if err != nil {
			return nil, err
		}
		card, err := c.scorer.Score(ctx, transcript, score.Subject{Persona: &p}, script)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.TestResult{
			PersonaID:    p.ID,
			PersonaName:  p.Name,
			Conversation: transcript,
			ScoreCard:    card,
		})
	}

	return &domain.IterationRecord{
		Iteration:    iteration,
		Personas:     personas,
		TestResults:  results,
		Script:       script,
		AverageScore: meanOverall(results),
	}, nil
}

func (c *Controller) withDefaults(opts Options) Options {
	d := c.defaults
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = d.MaxIterations
	}
	if opts.TargetScore <= 0 {
		opts.TargetScore = d.TargetScore
	}
	if opts.PersonaCount <= 0 {
		opts.PersonaCount = d.PersonaCount
	}
	if opts.SimulatedTurns <= 0 {
		opts.SimulatedTurns = d.SimulatedTurns
	}
	if opts.InitialScript == "" {
		opts.InitialScript = domain.DefaultAgentScript
	}
	return opts
}

// meanOverall is the arithmetic mean of the model-reported overall scores,
// rounded to one decimal place.
func meanOverall(results []domain.TestResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Metrics.Overall
	}
	return math.Round(sum/float64(len(results))*10) / 10
}

func summarize(session *domain.TestSession, target float64) *domain.TestSummary {
	summary := &domain.TestSummary{
		SessionID:       session.SessionID,
		TotalIterations: len(session.Iterations),
	}
	if len(session.Iterations) > 0 {
		summary.InitialScore = session.Iterations[0].AverageScore
		summary.FinalScore = session.Iterations[len(session.Iterations)-1].AverageScore
		summary.Improvement = summary.FinalScore - summary.InitialScore
	}
	summary.TargetReached = summary.FinalScore >= target
	return summary
}
