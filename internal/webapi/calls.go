package webapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ShivankK26/ai-voice-agent/internal/call"
	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/server"
	"github.com/ShivankK26/ai-voice-agent/internal/telephony"
)

const (
	greetingOpening  = "Hello, this is Sarah from First National Bank. I am calling regarding your overdue credit card payment of $1,250.00. May I speak with you?"
	greetingFollowUp = "I understand this may be a difficult situation. We have several payment options available to help you resolve this account. Would you like to discuss payment arrangements?"
)

type placeCallRequest struct {
	PhoneNumber  string  `json:"phoneNumber"`
	CustomerName string  `json:"customerName,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Script       string  `json:"script,omitempty"`
}

// handlePlaceCall dials the requested number with the greeting document.
func (h *Handler) handlePlaceCall(w http.ResponseWriter, r *http.Request) {
	var req placeCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, r, domain.ErrInvalidRequest("phone number is required"))
		return
	}

	greeting, err := telephony.RenderGreeting(greetingOpening, greetingFollowUp, &telephony.Listen{
		TimeoutSeconds: h.listenTimeout,
		ActionURL:      h.baseURL + "/call/interactive",
	})
	if err != nil {
		writeError(w, r, domain.ErrServer(fmt.Sprintf("render greeting: %v", err)))
		return
	}

	info, err := h.dialer.PlaceCall(telephony.CallRequest{To: req.PhoneNumber, Greeting: greeting})
	if err != nil {
		writeError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "call_sid", info.SID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"callSid": info.SID,
		"status":  info.Status,
		"message": "Call initiated to " + req.PhoneNumber,
	})
}

// handleInteractive is the speech-recognition webhook. It always answers
// with a spoken-response document, falling back to the catch-all when the
// request cannot even be parsed.
func (h *Handler) handleInteractive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		server.AddError(r.Context(), err)
		writeTwiML(w, call.CatchAllDocument())
		return
	}

	confidence, _ := strconv.ParseFloat(r.PostFormValue("Confidence"), 64)
	ev := call.SpeechEvent{
		CallSID:    r.PostFormValue("CallSid"),
		Speech:     r.PostFormValue("SpeechResult"),
		Confidence: confidence,
		Script:     r.PostFormValue("Script"),
	}
	server.AddLogField(r.Context(), "call_sid", ev.CallSID)

	writeTwiML(w, h.recorder.HandleSpeech(r.Context(), ev))
}

// handleCallStatusQuery returns the provider's current view of a call.
func (h *Handler) handleCallStatusQuery(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("callSid")
	if sid == "" {
		writeError(w, r, domain.ErrInvalidRequest("callSid is required"))
		return
	}

	info, err := h.dialer.CallStatus(sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleCallStatusCallback receives call lifecycle events from the
// provider. The events are logged only; the provider requires a successful
// XML response regardless.
func (h *Handler) handleCallStatusCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		h.logger.Info("call status update",
			"call_sid", r.PostFormValue("CallSid"),
			"status", r.PostFormValue("CallStatus"),
			"from", r.PostFormValue("From"),
			"to", r.PostFormValue("To"),
			"duration", r.PostFormValue("CallDuration"),
		)
	}
	writeTwiML(w, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

// handleCallRecording receives recording lifecycle events for recorded
// calls. Recordings stay with the provider; the URL is logged so a
// completed call can be reviewed, nothing is persisted here.
func (h *Handler) handleCallRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		h.logger.Info("recording status update",
			"call_sid", r.PostFormValue("CallSid"),
			"recording_sid", r.PostFormValue("RecordingSid"),
			"status", r.PostFormValue("RecordingStatus"),
			"url", r.PostFormValue("RecordingUrl"),
			"duration", r.PostFormValue("RecordingDuration"),
		)
	}
	writeTwiML(w, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}
