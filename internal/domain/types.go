// Package domain holds the shared types of the voice-agent service:
// transcripts, personas, score cards, and the self-test session records.
package domain

import "time"

// Speaker identifies which side of a conversation produced a turn.
type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// Turn is one utterance inside a tracked conversation.
type Turn struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   Speaker   `json:"speaker"`
	Message   string    `json:"message"`
	// Confidence is the speech-recognition confidence reported by the
	// telephony provider. Only set on customer turns.
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcript is the ordered turn history of one session. Turns are appended
// in arrival order and never reordered or removed.
type Transcript []Turn

// Clone returns an independent copy of the transcript.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// BySpeaker returns the messages spoken by one side, in order.
func (t Transcript) BySpeaker(s Speaker) []string {
	var msgs []string
	for _, turn := range t {
		if turn.Speaker == s {
			msgs = append(msgs, turn.Message)
		}
	}
	return msgs
}

// Persona is a synthetic customer profile used to drive simulated
// conversations against the agent script.
type Persona struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Age                int      `json:"age"`
	Occupation         string   `json:"occupation"`
	FinancialSituation string   `json:"financialSituation"`
	DefaultReason      string   `json:"defaultReason"`
	Personality        string   `json:"personality"`
	CommunicationStyle string   `json:"communicationStyle"`
	Objections         []string `json:"objections"`
	EmotionalState     string   `json:"emotionalState"`
	// SampleResponses are representative lines the persona might say,
	// produced alongside the profile for operator review.
	SampleResponses []string `json:"conversationScript,omitempty"`
}

// Metrics is the five-metric rubric a transcript is evaluated against.
// Repetition is scored lower-is-better; the rest higher-is-better. Overall is
// model-produced and is not guaranteed to be any function of the other four.
type Metrics struct {
	Repetition  float64 `json:"repetitionScore"`
	Negotiation float64 `json:"negotiationScore"`
	Relevance   float64 `json:"relevanceScore"`
	Empathy     float64 `json:"empathyScore"`
	Overall     float64 `json:"overallScore"`
}

// ScoreCard is the evaluation of one conversation.
type ScoreCard struct {
	Metrics         Metrics  `json:"metrics"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
	// Degraded is set when the card was substituted after the evaluator's
	// response could not be parsed. A degraded card carries deterministic
	// mid-range values; by metric value alone it is indistinguishable from a
	// genuine score, so consumers that care must check this flag.
	Degraded bool `json:"degraded,omitempty"`
}

// TestResult pairs a scored simulated conversation with the persona that
// drove it.
type TestResult struct {
	PersonaID    string     `json:"personaId"`
	PersonaName  string     `json:"personaName"`
	Conversation Transcript `json:"conversation"`
	ScoreCard
}

// Diagnosis is the cross-transcript analysis produced by the script improver.
type Diagnosis struct {
	AverageScore    float64  `json:"averageScore"`
	CommonIssues    []string `json:"commonIssues"`
	LowestMetrics   []string `json:"lowestMetrics"`
	KeyChanges      []string `json:"keyChanges"`
	Recommendations []string `json:"recommendations"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// RewriteResult is the outcome of one script rewrite. Rewrite never fails:
// when the model's output is unusable the previous script comes back
// unchanged with Note explaining why.
type RewriteResult struct {
	Script   string `json:"script"`
	Note     string `json:"note,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// IterationRecord captures one round of the self-correction loop.
type IterationRecord struct {
	Iteration    int          `json:"iteration"`
	Personas     []Persona    `json:"personas"`
	TestResults  []TestResult `json:"testResults"`
	Script       string       `json:"script"`
	AverageScore float64      `json:"averageScore"`
	Improvements []string     `json:"improvements"`
}

// ImprovementEntry is one element of a session's append-only history.
type ImprovementEntry struct {
	Iteration    int      `json:"iteration"`
	AverageScore float64  `json:"averageScore"`
	Improvements []string `json:"improvements"`
}

// LoopState is the state of the self-correction loop.
type LoopState string

const (
	LoopPending   LoopState = "pending"
	LoopRunning   LoopState = "running"
	LoopConverged LoopState = "converged"
	LoopExhausted LoopState = "exhausted"
)

// TestSession is the full record of one self-correction run.
type TestSession struct {
	SessionID          string             `json:"sessionId"`
	StartTime          time.Time          `json:"startTime"`
	EndTime            time.Time          `json:"endTime,omitzero"`
	State              LoopState          `json:"state"`
	Iterations         []IterationRecord  `json:"iterations"`
	FinalScript        string             `json:"finalScript"`
	ImprovementHistory []ImprovementEntry `json:"improvementHistory"`
}

// TestSummary is the caller-facing digest of a finished session.
type TestSummary struct {
	SessionID       string  `json:"sessionId"`
	TotalIterations int     `json:"totalIterations"`
	InitialScore    float64 `json:"initialScore"`
	FinalScore      float64 `json:"finalScore"`
	Improvement     float64 `json:"improvement"`
	TargetReached   bool    `json:"targetReached"`
}
