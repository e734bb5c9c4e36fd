package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/aicare/intake-platform/internal/events"
	"github.com/aicare/intake-platform/internal/identity"
	"github.com/aicare/intake-platform/internal/intake"
	"github.com/aicare/intake-platform/internal/report"
	"github.com/aicare/intake-platform/internal/voice"
	"github.com/aicare/intake-platform/pkg/logging"
)

type webhookFixture struct {
	handler  *TelephonyWebhookHandler
	registry *voice.Registry
	repo     *report.InMemoryRepository
	eventSeq int
}

func newWebhookFixture(t *testing.T, transcripts *voice.TranscriptStore) *webhookFixture {
	t.Helper()
	repo := report.NewInMemoryRepository()
	logger := logging.Default()
	registry := voice.NewRegistry()

	h := NewTelephonyWebhookHandler(TelephonyWebhookConfig{
		Registry:    registry,
		Machine:     voice.NewMachine(voice.DefaultRetryLimit),
		Intake:      intake.NewService(repo, report.DefaultPolicy(), nil, logger),
		Resolver:    identity.NewStaticResolver(map[string]string{"+15551230001": "P001"}),
		Deduper:     events.NewInMemoryProcessedStore(),
		Transcripts: transcripts,
		Logger:      logger,
	})
	return &webhookFixture{handler: h, registry: registry, repo: repo}
}

func (f *webhookFixture) post(t *testing.T, event TelephonyEvent) TelephonyResponse {
	t.Helper()
	if event.EventID == "" {
		f.eventSeq++
		event.EventID = fmt.Sprintf("evt-%d", f.eventSeq)
	}
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telephony/voice", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	f.handler.HandleEvent(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp TelephonyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func (f *webhookFixture) speak(t *testing.T, sessionID, text string) TelephonyResponse {
	t.Helper()
	return f.post(t, TelephonyEvent{
		EventType:  EventCallSpeech,
		SessionID:  sessionID,
		SpeechText: text,
	})
}

// A full scripted call: resolve the caller, ask all five questions, read
// back the summary, persist the complete report.
func TestTelephonyFullCall(t *testing.T) {
	f := newWebhookFixture(t, nil)

	resp := f.post(t, TelephonyEvent{
		EventType: EventCallInitiated,
		SessionID: "call-1",
		Phone:     "+15551230001",
	})
	if resp.PromptToSpeak != voice.GreetingPrompt() {
		t.Errorf("greeting = %q", resp.PromptToSpeak)
	}
	if f.registry.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", f.registry.Len())
	}

	// Silence after the greeting moves to the first question.
	f.speak(t, "call-1", "")
	for _, answer := range []string{"3", "2", "1", "no"} {
		resp = f.speak(t, "call-1", answer)
		if resp.Terminated {
			t.Fatalf("call terminated early after %q", answer)
		}
	}
	// Last answer lands on the summary readback.
	resp = f.speak(t, "call-1", "no")
	if !strings.Contains(resp.PromptToSpeak, "I recorded") {
		t.Errorf("summary prompt = %q", resp.PromptToSpeak)
	}
	// Any next event closes the call and persists the report.
	resp = f.speak(t, "call-1", "")
	if !resp.Terminated {
		t.Fatal("call not terminated after summary")
	}

	if f.registry.Len() != 0 {
		t.Errorf("session not removed after finalize")
	}
	stored, err := f.repo.FindReport(context.Background(), "P001", f.handler.now())
	if err != nil {
		t.Fatalf("FindReport: %v", err)
	}
	if !stored.Complete {
		t.Error("fully answered call persisted as partial")
	}
	if stored.Channel != report.ChannelVoiceCall {
		t.Errorf("channel = %q", stored.Channel)
	}
	if report.Classify(stored) != report.AlertGreen {
		t.Errorf("alert = %s, want GREEN", report.Classify(stored))
	}
}

// Hangup mid-call freezes and persists whatever was answered; the partial
// record classifies fail-safe RED.
func TestTelephonyHangupPersistsPartialReport(t *testing.T) {
	f := newWebhookFixture(t, nil)

	f.post(t, TelephonyEvent{EventType: EventCallInitiated, SessionID: "call-1", PatientID: "P002"})
	f.speak(t, "call-1", "")  // greeting -> overall
	f.speak(t, "call-1", "4") // overall answered
	resp := f.post(t, TelephonyEvent{EventType: EventCallHangup, SessionID: "call-1"})
	if !resp.Terminated {
		t.Fatal("hangup response not terminated")
	}

	stored, err := f.repo.FindReport(context.Background(), "P002", f.handler.now())
	if err != nil {
		t.Fatalf("FindReport: %v", err)
	}
	if stored.Complete {
		t.Error("partial call persisted as complete")
	}
	if stored.Overall == nil || *stored.Overall != 4 {
		t.Errorf("overall = %v, want 4", stored.Overall)
	}
	if report.Classify(stored) != report.AlertRed {
		t.Errorf("alert = %s, want RED for partial report", report.Classify(stored))
	}
	if f.registry.Len() != 0 {
		t.Error("session not removed after hangup")
	}
}

// Redelivered events are answered with an empty prompt and change nothing.
func TestTelephonyDuplicateEventIgnored(t *testing.T) {
	f := newWebhookFixture(t, nil)

	f.post(t, TelephonyEvent{EventID: "evt-init", EventType: EventCallInitiated, SessionID: "call-1", PatientID: "P001"})
	f.post(t, TelephonyEvent{EventID: "evt-s1", EventType: EventCallSpeech, SessionID: "call-1"})
	f.post(t, TelephonyEvent{EventID: "evt-s2", EventType: EventCallSpeech, SessionID: "call-1", SpeechText: "7"})

	resp := f.post(t, TelephonyEvent{EventID: "evt-s2", EventType: EventCallSpeech, SessionID: "call-1", SpeechText: "7"})
	if resp.PromptToSpeak != "" || resp.Terminated {
		t.Errorf("duplicate response = %+v, want empty no-op", resp)
	}

	sess, err := f.registry.Get("call-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Report.Overall == nil || *sess.Report.Overall != 7 {
		t.Errorf("overall = %v, want 7 exactly once", sess.Report.Overall)
	}
	if sess.Report.Pain != nil {
		t.Error("duplicate event advanced the call")
	}
}

func TestTelephonyUnknownCallerEndsCall(t *testing.T) {
	f := newWebhookFixture(t, nil)

	resp := f.post(t, TelephonyEvent{
		EventType: EventCallInitiated,
		SessionID: "call-1",
		Phone:     "+15550009999",
	})
	if !resp.Terminated {
		t.Error("unenrolled caller not terminated")
	}
	if f.registry.Len() != 0 {
		t.Error("session created for unenrolled caller")
	}
}

func TestTelephonySpeechAfterCallEnded(t *testing.T) {
	f := newWebhookFixture(t, nil)

	f.post(t, TelephonyEvent{EventType: EventCallInitiated, SessionID: "call-1", PatientID: "P001"})
	f.post(t, TelephonyEvent{EventType: EventCallHangup, SessionID: "call-1"})

	resp := f.speak(t, "call-1", "hello?")
	if !resp.Terminated {
		t.Error("speech for a finished session should report terminated")
	}
}

// flakyFinalizer fails the first N persist attempts, then delegates to the
// real pipeline.
type flakyFinalizer struct {
	inner    voiceFinalizer
	failures int
	calls    int
}

func (f *flakyFinalizer) FinalizeVoiceSession(ctx context.Context, sess *voice.Session) (*intake.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("storage unavailable")
	}
	return f.inner.FinalizeVoiceSession(ctx, sess)
}

// A hangup whose persist fails must keep the session so the provider's
// redelivery can store the partial report.
func TestTelephonyHangupRetriesFailedPersist(t *testing.T) {
	f := newWebhookFixture(t, nil)
	flaky := &flakyFinalizer{inner: f.handler.intake, failures: 1}
	f.handler.intake = flaky

	f.post(t, TelephonyEvent{EventType: EventCallInitiated, SessionID: "call-1", PatientID: "P003"})
	f.speak(t, "call-1", "")  // greeting -> overall
	f.speak(t, "call-1", "4") // overall answered

	resp := f.post(t, TelephonyEvent{EventID: "evt-hangup", EventType: EventCallHangup, SessionID: "call-1"})
	if resp.PromptToSpeak != apologyRetryPrompt {
		t.Errorf("failed persist prompt = %q", resp.PromptToSpeak)
	}
	if _, err := f.repo.FindReport(context.Background(), "P003", f.handler.now()); !errors.Is(err, report.ErrReportNotFound) {
		t.Fatalf("report stored despite persist failure: %v", err)
	}
	if f.registry.Len() != 1 {
		t.Fatal("session dropped before the report was stored")
	}

	// Same event id: the failed attempt was never marked processed.
	resp = f.post(t, TelephonyEvent{EventID: "evt-hangup", EventType: EventCallHangup, SessionID: "call-1"})
	if !resp.Terminated {
		t.Fatal("redelivered hangup not terminated")
	}
	if flaky.calls != 2 {
		t.Errorf("finalize calls = %d, want 2", flaky.calls)
	}

	stored, err := f.repo.FindReport(context.Background(), "P003", f.handler.now())
	if err != nil {
		t.Fatalf("FindReport after redelivery: %v", err)
	}
	if stored.Overall == nil || *stored.Overall != 4 {
		t.Errorf("overall = %v, want 4", stored.Overall)
	}
	if f.registry.Len() != 0 {
		t.Error("session not removed after successful persist")
	}
}

// Same guarantee for the closing speech event: the redelivery after a failed
// persist stores the completed report instead of discarding it.
func TestTelephonyFinalSpeechRetriesFailedPersist(t *testing.T) {
	f := newWebhookFixture(t, nil)
	flaky := &flakyFinalizer{inner: f.handler.intake, failures: 1}
	f.handler.intake = flaky

	f.post(t, TelephonyEvent{EventType: EventCallInitiated, SessionID: "call-1", PatientID: "P003"})
	f.speak(t, "call-1", "")
	for _, answer := range []string{"3", "2", "1", "no", "no"} {
		f.speak(t, "call-1", answer)
	}

	// Acknowledging the summary closes the call and triggers the persist.
	resp := f.post(t, TelephonyEvent{EventID: "evt-close", EventType: EventCallSpeech, SessionID: "call-1"})
	if resp.PromptToSpeak != apologyRetryPrompt {
		t.Errorf("failed persist prompt = %q", resp.PromptToSpeak)
	}
	if f.registry.Len() != 1 {
		t.Fatal("session dropped before the report was stored")
	}

	resp = f.post(t, TelephonyEvent{EventID: "evt-close", EventType: EventCallSpeech, SessionID: "call-1"})
	if !resp.Terminated {
		t.Fatal("redelivered closing event not terminated")
	}

	stored, err := f.repo.FindReport(context.Background(), "P003", f.handler.now())
	if err != nil {
		t.Fatalf("FindReport after redelivery: %v", err)
	}
	if !stored.Complete {
		t.Error("fully answered call persisted as partial")
	}
	if f.registry.Len() != 0 {
		t.Error("session not removed after successful persist")
	}
}

func TestTelephonyRejectsMalformedEvents(t *testing.T) {
	f := newWebhookFixture(t, nil)

	for name, body := range map[string]string{
		"not json":           `{oops`,
		"missing event id":   `{"event_type":"call.speech","session_id":"call-1"}`,
		"missing session id": `{"event_id":"evt-1","event_type":"call.speech"}`,
		"unknown event type": `{"event_id":"evt-1","event_type":"call.mystery","session_id":"call-1"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/telephony/voice", strings.NewReader(body))
		rec := httptest.NewRecorder()
		f.handler.HandleEvent(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestTelephonyTranscriptRecordedAndServed(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := voice.NewTranscriptStore(rdb)

	f := newWebhookFixture(t, store)
	f.post(t, TelephonyEvent{EventType: EventCallInitiated, SessionID: "call-1", PatientID: "P001"})
	f.speak(t, "call-1", "")
	f.speak(t, "call-1", "3")

	th := NewTranscriptHandler(store, logging.Default())
	mux := chi.NewRouter()
	mux.Get("/sessions/{sessionID}/transcript", th.GetTranscript)

	req := httptest.NewRequest(http.MethodGet, "/sessions/call-1/transcript", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		SessionID string                  `json:"session_id"`
		Entries   []voice.TranscriptEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Greeting, then prompt after silence, then the patient's answer and
	// the next question.
	if len(resp.Entries) < 3 {
		t.Fatalf("entries = %d, want at least 3", len(resp.Entries))
	}
	if resp.Entries[0].Role != "assistant" {
		t.Errorf("first entry role = %q", resp.Entries[0].Role)
	}

	missing := httptest.NewRequest(http.MethodGet, "/sessions/call-404/transcript", nil)
	recMissing := httptest.NewRecorder()
	mux.ServeHTTP(recMissing, missing)
	if recMissing.Code != http.StatusNotFound {
		t.Errorf("missing transcript status = %d, want 404", recMissing.Code)
	}
}
