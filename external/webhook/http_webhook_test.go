package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foxseedlab/vcdelay/internal/webhook"
)

func TestSendPresenceEvent_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendPresenceEvent(context.Background(), webhook.PresenceEventPayload{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendPresenceEvent_Success(t *testing.T) {
	var got webhook.PresenceEventPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	joinAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := webhook.PresenceEventPayload{
		SchemaVersion:  webhook.PresenceEventSchemaVersion,
		Event:          webhook.PresenceEventJoin,
		GuildID:        "guild-1",
		VoiceChannelID: "vc-1",
		MemberID:       "user-1",
		JoinAt:         joinAt.Format(time.RFC3339),
		DelaySeconds:   60,
	}
	sender := NewHTTPSender(server.URL)
	if err := sender.SendPresenceEvent(context.Background(), payload); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != payload {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSendPresenceEvent_Non2xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendPresenceEvent(context.Background(), webhook.PresenceEventPayload{Event: webhook.PresenceEventLeave}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected client errors not to be retried, got %d calls", n)
	}
}

func TestSendPresenceEvent_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	sender.client.RetryWaitMin = time.Millisecond
	sender.client.RetryWaitMax = 5 * time.Millisecond
	if err := sender.SendPresenceEvent(context.Background(), webhook.PresenceEventPayload{Event: webhook.PresenceEventJoin}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}
