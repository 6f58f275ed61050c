package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ShivankK26/ai-voice-agent/internal/call"
	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/llm"
	"github.com/ShivankK26/ai-voice-agent/internal/score"
	"github.com/ShivankK26/ai-voice-agent/internal/selftest"
	"github.com/ShivankK26/ai-voice-agent/internal/telephony"
	"github.com/ShivankK26/ai-voice-agent/internal/tracker"
)

type fakeDialer struct {
	placed   []telephony.CallRequest
	placeErr error
	status   *telephony.CallInfo
}

func (f *fakeDialer) PlaceCall(req telephony.CallRequest) (*telephony.CallInfo, error) {
	if err := telephony.ValidatePhoneNumber(req.To); err != nil {
		return nil, err
	}
	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return &telephony.CallInfo{SID: "CA123", Status: "queued"}, nil
}

func (f *fakeDialer) CallStatus(sid string) (*telephony.CallInfo, error) {
	if f.status == nil {
		return nil, domain.ErrUpstream("no such call")
	}
	return f.status, nil
}

type fakePersonas struct{ err error }

func (f *fakePersonas) GeneratePersonas(ctx context.Context, count int) ([]domain.Persona, error) {
	if f.err != nil {
		return nil, f.err
	}
	personas := make([]domain.Persona, count)
	for i := range personas {
		personas[i] = domain.Persona{ID: "p1", Name: "Alex Morgan"}
	}
	return personas, nil
}

type fakeSimulator struct{ err error }

func (f *fakeSimulator) SimulateConversation(ctx context.Context, p domain.Persona, script string, maxTurns int) (domain.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.Transcript{
		{Speaker: domain.SpeakerAgent, Message: "hello"},
		{Speaker: domain.SpeakerCustomer, Message: "hi"},
	}, nil
}

type fakeScorer struct{ card domain.ScoreCard }

func (f *fakeScorer) Score(ctx context.Context, transcript domain.Transcript, subject score.Subject, script string) (domain.ScoreCard, error) {
	return f.card, nil
}

type fakeImprover struct{}

func (f *fakeImprover) Analyze(ctx context.Context, results []domain.TestResult, script string) (domain.Diagnosis, error) {
	return domain.Diagnosis{AverageScore: 60, KeyChanges: []string{"lead with empathy"}}, nil
}

func (f *fakeImprover) Rewrite(ctx context.Context, d domain.Diagnosis, script string, iteration int) domain.RewriteResult {
	return domain.RewriteResult{Script: "improved script"}
}

type fakeRunner struct{ err error }

func (f *fakeRunner) Run(ctx context.Context, opts selftest.Options) (*domain.TestSession, *domain.TestSummary, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &domain.TestSession{SessionID: "test_1", State: domain.LoopConverged},
		&domain.TestSummary{SessionID: "test_1", TargetReached: true, FinalScore: 90}, nil
}

type stubCompleter struct{ reply string }

func (s *stubCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.reply, nil
}

type harness struct {
	router  chi.Router
	dialer  *fakeDialer
	tracker *tracker.Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trk := tracker.New(logger, tracker.WithTTL(0))
	t.Cleanup(trk.Close)

	responder := llm.NewResponder(&stubCompleter{reply: "Let me help with that."})
	recorder := call.NewRecorder(trk, responder, logger, 0.3, 8, "https://example.com")
	dialer := &fakeDialer{}

	h := NewHandler(dialer, recorder, trk, &fakePersonas{}, &fakeSimulator{},
		&fakeScorer{card: domain.ScoreCard{Metrics: domain.Metrics{Overall: 80}}},
		&fakeImprover{}, &fakeRunner{}, logger, Config{
			BaseURL:       "https://example.com",
			ListenTimeout: 8,
			WaitPolicy:    call.WaitPolicy{MinExchanges: 1, MaxWait: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond},
			Defaults:      selftest.Options{MaxIterations: 5, TargetScore: 85, PersonaCount: 5, SimulatedTurns: 8},
		})

	router := chi.NewRouter()
	h.Routes(router)
	return &harness{router: router, dialer: dialer, tracker: trk}
}

func (h *harness) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestPlaceCall(t *testing.T) {
	h := newHarness(t)

	rec := h.postJSON(t, "/call", map[string]any{"phoneNumber": "+15551234567"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["callSid"] != "CA123" || body["status"] != "queued" {
		t.Errorf("body = %v", body)
	}
	if len(h.dialer.placed) != 1 {
		t.Fatal("dialer not invoked")
	}
	if !strings.Contains(h.dialer.placed[0].Greeting, "Hello, this is Sarah from First National Bank.") {
		t.Errorf("greeting = %s", h.dialer.placed[0].Greeting)
	}
}

func TestPlaceCallMissingNumber(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/call", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestPlaceCallInvalidNumber(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/call", map[string]any{"phoneNumber": "555-1234"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["type"] != string(domain.ErrorTypeInvalidDestination) {
		t.Errorf("error type = %v", body["type"])
	}
}

func TestInteractiveWebhook(t *testing.T) {
	h := newHarness(t)
	h.tracker.StartSession("sess1")
	h.tracker.MapCallToSession("CA1", "sess1")

	form := url.Values{
		"CallSid":      {"CA1"},
		"SpeechResult": {"I need more time"},
		"Confidence":   {"0.9"},
	}
	req := httptest.NewRequest(http.MethodPost, "/call/interactive", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Let me help with that.") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if got := h.tracker.Transcript("sess1"); len(got) != 2 {
		t.Errorf("expected both turns tracked, got %d", len(got))
	}
}

func TestCallStatusQuery(t *testing.T) {
	h := newHarness(t)
	h.dialer.status = &telephony.CallInfo{SID: "CA123", Status: "completed", Duration: "42"}

	req := httptest.NewRequest(http.MethodGet, "/call/status?callSid=CA123", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "completed" {
		t.Errorf("body = %v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/call/status", nil)
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing callSid should 400, got %d", rec.Code)
	}
}

func TestCallStatusCallback(t *testing.T) {
	h := newHarness(t)

	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/call/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Errorf("provider expects an XML response: %s", rec.Body.String())
	}
}

func TestCallRecordingCallback(t *testing.T) {
	h := newHarness(t)

	// The dialer registers this callback when it places a recorded call,
	// so the route must answer with XML like the status callback does.
	form := url.Values{
		"CallSid":           {"CA1"},
		"RecordingSid":      {"RE1"},
		"RecordingStatus":   {"completed"},
		"RecordingUrl":      {"https://api.twilio.com/recordings/RE1"},
		"RecordingDuration": {"42"},
	}
	req := httptest.NewRequest(http.MethodPost, "/call/recording", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Errorf("provider expects an XML response: %s", rec.Body.String())
	}
}

func TestGeneratePersonasDefaultCount(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/testing/generate-personas", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(5) {
		t.Errorf("count = %v, want the configured default 5", body["count"])
	}
}

func TestConversationTest(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/testing/conversation-test", map[string]any{
		"persona":     map[string]any{"id": "p1", "name": "Alex Morgan"},
		"agentScript": "script",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	result := body["result"].(map[string]any)
	if result["personaName"] != "Alex Morgan" {
		t.Errorf("result = %v", result)
	}
	metrics := result["metrics"].(map[string]any)
	if metrics["overallScore"] != float64(80) {
		t.Errorf("metrics = %v", metrics)
	}
}

func TestConversationTestRequiresPersona(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/testing/conversation-test", map[string]any{"agentScript": "script"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSelfCorrect(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/testing/self-correct", map[string]any{
		"testResults":   []map[string]any{{"personaName": "Alex", "metrics": map[string]any{"overallScore": 60}}},
		"currentScript": "old",
		"iteration":     2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	result := body["result"].(map[string]any)
	if result["improvedScript"] != "improved script" {
		t.Errorf("result = %v", result)
	}
	if result["iteration"] != float64(2) {
		t.Errorf("iteration = %v", result["iteration"])
	}
}

func TestSelfCorrectRequiresResults(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/testing/self-correct", map[string]any{"currentScript": "old"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRunFullTest(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON(t, "/testing/run-full-test", map[string]any{"targetScore": 85})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	summary := body["summary"].(map[string]any)
	if summary["targetReached"] != true {
		t.Errorf("summary = %v", summary)
	}
}

func TestVoiceTestCapture(t *testing.T) {
	h := newHarness(t)
	h.tracker.StartSession("voice_test_1")

	raw, _ := json.Marshal(map[string]any{
		"testId":     "voice_test_1",
		"speaker":    "customer",
		"message":    "I can pay half",
		"confidence": 0.8,
	})
	req := httptest.NewRequest(http.MethodPut, "/testing/voice-test", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := h.tracker.Transcript("voice_test_1")
	if len(got) != 1 || got[0].Message != "I can pay half" {
		t.Errorf("transcript = %+v", got)
	}
}

func TestVoiceTestCaptureRejectsBadSpeaker(t *testing.T) {
	h := newHarness(t)
	raw, _ := json.Marshal(map[string]any{"testId": "t", "speaker": "narrator", "message": "hi"})
	req := httptest.NewRequest(http.MethodPut, "/testing/voice-test", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestVoiceTestEndToEnd(t *testing.T) {
	h := newHarness(t)

	rec := h.postJSON(t, "/testing/voice-test", map[string]any{
		"persona":     map[string]any{"id": "p1", "name": "Alex Morgan"},
		"phoneNumber": "+15551234567",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["callSid"] != "CA123" {
		t.Errorf("body = %v", body)
	}
	result := body["result"].(map[string]any)
	if !strings.HasPrefix(result["testId"].(string), "voice_test_") {
		t.Errorf("testId = %v", result["testId"])
	}

	// the test session is ended and its call mapping removed
	if len(h.tracker.ActiveSessions()) != 0 {
		t.Errorf("sessions still active: %v", h.tracker.ActiveSessions())
	}
	if h.tracker.IsCallTracked("CA123") {
		t.Error("call mapping should be removed when the test ends")
	}
}

func TestVoiceTestDialFailureEndsSession(t *testing.T) {
	h := newHarness(t)
	h.dialer.placeErr = errors.New("twilio unavailable")

	rec := h.postJSON(t, "/testing/voice-test", map[string]any{
		"persona":     map[string]any{"id": "p1", "name": "Alex Morgan"},
		"phoneNumber": "+15551234567",
	})
	if rec.Code == http.StatusOK {
		t.Fatal("expected failure status")
	}
	if len(h.tracker.ActiveSessions()) != 0 {
		t.Errorf("failed voice test must not leak sessions: %v", h.tracker.ActiveSessions())
	}
}

func TestTrackerDebug(t *testing.T) {
	h := newHarness(t)
	h.tracker.StartSession("sess1")
	h.tracker.MapCallToSession("CA1", "sess1")

	req := httptest.NewRequest(http.MethodGet, "/testing/tracker", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sess1") {
		t.Errorf("snapshot missing session: %s", rec.Body.String())
	}
}
