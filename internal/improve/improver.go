// Package improve turns scored test results into a diagnosis of the agent
// script's weaknesses and a rewritten script.
package improve

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
	analyzeMaxTokens   = 1500
	analyzeTemperature = 0.3

	rewriteMaxTokens   = 1000
	rewriteTemperature = 0.4
)

const analyzeSystemPrompt = `You are an expert AI coach for debt collection agents. Analyze test results to identify patterns and provide specific improvements.

ANALYSIS CRITERIA:
1. Common Issues: What problems appear across multiple tests?
2. Score Patterns: Which metrics are consistently low?
3. Persona-Specific Issues: How does the agent perform with different customer types?
4. Script Weaknesses: What parts of the current script are failing?

Return analysis in JSON format:
{
  "averageScore": number,
  "commonIssues": ["issue1", "issue2"],
  "lowestMetrics": ["metric1", "metric2"],
  "keyChanges": ["change1", "change2"],
  "recommendations": ["rec1", "rec2"]
}`

const rewriteSystemPrompt = `You are an expert script writer for debt collection agents. Generate a DETAILED but concise improved script based on test analysis.

CRITICAL REQUIREMENTS:
1. Keep the script under 800 characters to avoid markup size limits
2. Make it comprehensive and detailed
3. Include specific conversation flow and techniques
4. Address empathy, verification, payment options, and objection handling
5. Provide clear guidance for different scenarios

SCRIPT FORMAT:
- Start with empathy and rapport building
- Include verification process
- Detail payment options and negotiation
- Add objection handling techniques
- Include closing and confirmation steps
- Use clear, actionable language
- Keep under 800 characters total

Return only the improved script text.`

// Improver diagnoses weaknesses across scored conversations and rewrites
// the agent script.
type Improver struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewImprover(completer llm.Completer, logger *slog.Logger) *Improver {
	return &Improver{completer: completer, logger: logger}
}

// Analyze asks the model to find cross-test patterns. Unparseable output
// degrades to a deterministic diagnosis whose average score is the exact
// arithmetic mean of the result overalls.
func (im *Improver) Analyze(ctx context.Context, results []domain.TestResult, script string) (domain.Diagnosis, error) {
	text, err := im.completer.Complete(ctx, llm.Request{
		System:      analyzeSystemPrompt,
		User:        analyzePrompt(results, script),
		MaxTokens:   analyzeMaxTokens,
		Temperature: analyzeTemperature,
	})
	if err != nil {
		return domain.Diagnosis{}, fmt.Errorf("analyze test results: %w", err)
	}

	diagnosis, err := parseDiagnosis(text)
	if err != nil {
		im.logger.Warn("analysis unparseable, using fallback diagnosis", "error", err.Error())
		return fallbackDiagnosis(results), nil
	}
	return diagnosis, nil
}

// Rewrite produces a new script from the diagnosis. It never returns an
// error: when the rewrite cannot be produced the current script comes back
// unchanged with a note. The returned script is clamped to the ceiling the
// telephony rendering path tolerates.
func (im *Improver) Rewrite(ctx context.Context, diagnosis domain.Diagnosis, script string, iteration int) domain.RewriteResult {
	text, err := im.completer.Complete(ctx, llm.Request{
		System:      rewriteSystemPrompt,
		User:        rewritePrompt(diagnosis, script, iteration),
		MaxTokens:   rewriteMaxTokens,
		Temperature: rewriteTemperature,
	})
	if err != nil {
		im.logger.Warn("script rewrite failed, keeping current script",
			"iteration", iteration, "error", err.Error())
		return domain.RewriteResult{
			Script:   script,
			Note:     "rewrite failed, script unchanged",
			Degraded: true,
		}
	}

	return domain.RewriteResult{Script: domain.ClampScript(text)}
}

func analyzePrompt(results []domain.TestResult, script string) string {
	var b strings.Builder
	b.WriteString("Analyze these voice agent test results and identify improvement opportunities:\n\n")
	fmt.Fprintf(&b, "CURRENT SCRIPT:\n%s\n\nTEST RESULTS:\n", script)

	for i, r := range results {
		fmt.Fprintf(&b, `
Test %d - %s:
- Overall Score: %.0f/100
- Repetition: %.0f
- Negotiation: %.0f
- Relevance: %.0f
- Empathy: %.0f
- Issues: %s
- Recommendations: %s
`,
			i+1, r.PersonaName,
			r.Metrics.Overall, r.Metrics.Repetition, r.Metrics.Negotiation,
			r.Metrics.Relevance, r.Metrics.Empathy,
			strings.Join(r.Issues, ", "), strings.Join(r.Recommendations, ", "))
	}

	b.WriteString("\nProvide detailed analysis of patterns and specific improvements needed.")
	return b.String()
}

func rewritePrompt(d domain.Diagnosis, script string, iteration int) string {
	return fmt.Sprintf(`Generate a CONCISE improved debt collection agent script based on this analysis:

ANALYSIS:
- Average Score: %.1f/100
- Common Issues: %s
- Lowest Metrics: %s
- Key Changes Needed: %s

CURRENT SCRIPT:
%s

ITERATION: %d

IMPORTANT: Create a DETAILED script under 800 characters that addresses the main issues. Include:

1. EMPATHY & RAPPORT: Start with genuine concern and understanding
2. VERIFICATION: Confirm customer identity before proceeding
3. FINANCIAL ASSESSMENT: Understand their current situation
4. PAYMENT OPTIONS: Offer multiple solutions (full payment, monthly plan, hardship program)
5. NEGOTIATION: Be flexible and adapt to their needs
6. OBJECTION HANDLING: Address common concerns professionally
7. CONFIRMATION: Verify agreements are realistic and sustainable

Make it comprehensive but stay within size limits.`,
		d.AverageScore,
		strings.Join(d.CommonIssues, ", "),
		strings.Join(d.LowestMetrics, ", "),
		strings.Join(d.KeyChanges, ", "),
		script, iteration)
}

func parseDiagnosis(text string) (domain.Diagnosis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return domain.Diagnosis{}, fmt.Errorf("no JSON object in response")
	}

	var d domain.Diagnosis
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return domain.Diagnosis{}, fmt.Errorf("decode diagnosis: %w", err)
	}
	return d, nil
}

func fallbackDiagnosis(results []domain.TestResult) domain.Diagnosis {
	var sum float64
	for _, r := range results {
		sum += r.Metrics.Overall
	}
	avg := 0.0
	if len(results) > 0 {
		avg = sum / float64(len(results))
	}

	return domain.Diagnosis{
		AverageScore:    avg,
		CommonIssues:    []string{"Generic issues detected", "Need more specific analysis"},
		LowestMetrics:   []string{"empathy", "negotiation"},
		KeyChanges:      []string{"Improve empathy", "Enhance negotiation skills"},
		Recommendations: []string{"Focus on customer understanding", "Add more payment options"},
		Degraded:        true,
	}
}
