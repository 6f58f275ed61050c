package webapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ShivankK26/ai-voice-agent/internal/call"
	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/score"
	"github.com/ShivankK26/ai-voice-agent/internal/selftest"
	"github.com/ShivankK26/ai-voice-agent/internal/server"
	"github.com/ShivankK26/ai-voice-agent/internal/telephony"
)

func (h *Handler) handleGeneratePersonas(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	if req.Count <= 0 {
		req.Count = h.defaults.PersonaCount
	}

	personas, err := h.personas.GeneratePersonas(r.Context(), req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"personas": personas,
		"count":    len(personas),
	})
}

func (h *Handler) handleConversationTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Persona     domain.Persona `json:"persona"`
		AgentScript string         `json:"agentScript"`
		MaxTurns    int            `json:"maxTurns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	if req.Persona.Name == "" {
		writeError(w, r, domain.ErrInvalidRequest("persona is required"))
		return
	}
	if req.MaxTurns <= 0 {
		req.MaxTurns = h.defaults.SimulatedTurns
	}

	transcript, err := h.simulator.SimulateConversation(r.Context(), req.Persona, req.AgentScript, req.MaxTurns)
	if err != nil {
		writeError(w, r, err)
		return
	}

	card, err := h.scorer.Score(r.Context(), transcript, score.Subject{Persona: &req.Persona}, req.AgentScript)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result": domain.TestResult{
			PersonaID:    req.Persona.ID,
			PersonaName:  req.Persona.Name,
			Conversation: transcript,
			ScoreCard:    card,
		},
	})
}

func (h *Handler) handleSelfCorrect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TestResults   []domain.TestResult `json:"testResults"`
		CurrentScript string              `json:"currentScript"`
		Iteration     int                 `json:"iteration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	if len(req.TestResults) == 0 {
		writeError(w, r, domain.ErrInvalidRequest("testResults are required"))
		return
	}
	if req.Iteration <= 0 {
		req.Iteration = 1
	}

	diagnosis, err := h.improver.Analyze(r.Context(), req.TestResults, req.CurrentScript)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rewrite := h.improver.Rewrite(r.Context(), diagnosis, req.CurrentScript, req.Iteration)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result": map[string]any{
			"iteration":       req.Iteration,
			"averageScore":    diagnosis.AverageScore,
			"commonIssues":    diagnosis.CommonIssues,
			"changes":         diagnosis.KeyChanges,
			"recommendations": diagnosis.Recommendations,
			"improvedScript":  rewrite.Script,
			"note":            rewrite.Note,
			"degraded":        diagnosis.Degraded || rewrite.Degraded,
		},
	})
}

func (h *Handler) handleRunFullTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxIterations int     `json:"maxIterations"`
		TargetScore   float64 `json:"targetScore"`
		PersonasCount int     `json:"personasCount"`
		InitialScript string  `json:"initialScript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body"))
		return
	}

	session, summary, err := h.runner.Run(r.Context(), selftest.Options{
		MaxIterations: req.MaxIterations,
		TargetScore:   req.TargetScore,
		PersonaCount:  req.PersonasCount,
		InitialScript: req.InitialScript,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "session_id", session.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": session,
		"summary": summary,
	})
}

// handleVoiceTest places a real call to the given number, tracks its
// conversation, waits per the configured policy, and scores whatever
// transcript accumulated.
func (h *Handler) handleVoiceTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Persona     domain.Persona `json:"persona"`
		PhoneNumber string         `json:"phoneNumber"`
		Script      string         `json:"script,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, r, domain.ErrInvalidRequest("phone number is required"))
		return
	}

	testID := "voice_test_" + uuid.NewString()
	start := time.Now()
	h.tracker.StartSession(testID)

	greeting, err := telephony.RenderGreeting(greetingOpening, greetingFollowUp, &telephony.Listen{
		TimeoutSeconds: h.listenTimeout,
		ActionURL:      h.baseURL + "/call/interactive",
	})
	if err != nil {
		h.tracker.EndSession(testID)
		writeError(w, r, domain.ErrServer(err.Error()))
		return
	}

	info, err := h.dialer.PlaceCall(telephony.CallRequest{To: req.PhoneNumber, Greeting: greeting})
	if err != nil {
		h.tracker.EndSession(testID)
		writeError(w, r, err)
		return
	}
	h.tracker.MapCallToSession(info.SID, testID)
	server.AddLogField(r.Context(), "call_sid", info.SID)
	server.AddLogField(r.Context(), "test_id", testID)

	call.WaitForTranscript(r.Context(), h.tracker, testID, h.waitPolicy, h.logger)
	transcript := h.tracker.EndSession(testID)

	card, err := h.scorer.Score(r.Context(), transcript, score.Subject{Persona: &req.Persona, SessionID: testID}, req.Script)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"callSid": info.SID,
		"result": map[string]any{
			"testId":          testID,
			"personaId":       req.Persona.ID,
			"personaName":     req.Persona.Name,
			"conversationLog": transcript,
			"metrics":         card.Metrics,
			"issues":          card.Issues,
			"recommendations": card.Recommendations,
			"degraded":        card.Degraded,
			"testDuration":    time.Since(start).Seconds(),
		},
	})
}

// handleVoiceTestCapture appends one turn to an in-flight voice test. An
// unknown test id is a silent drop, matching the tracker's best-effort
// contract.
func (h *Handler) handleVoiceTestCapture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TestID     string         `json:"testId"`
		Speaker    domain.Speaker `json:"speaker"`
		Message    string         `json:"message"`
		Confidence float64        `json:"confidence,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	if req.TestID == "" || req.Message == "" {
		writeError(w, r, domain.ErrInvalidRequest("testId and message are required"))
		return
	}
	if req.Speaker != domain.SpeakerAgent && req.Speaker != domain.SpeakerCustomer {
		writeError(w, r, domain.ErrInvalidRequest("speaker must be agent or customer"))
		return
	}

	h.tracker.AppendTurnForSession(req.TestID, domain.Turn{
		Timestamp:  time.Now(),
		Speaker:    req.Speaker,
		Message:    req.Message,
		Confidence: req.Confidence,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleTrackerDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Debug())
}
