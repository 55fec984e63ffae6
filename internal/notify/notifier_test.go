package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlackNotifierDeliver(t *testing.T) {
	var captured struct {
		Channel string `json:"channel"`
		Text    string `json:"text"`
	}
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test", "C12345", server.URL, 5*time.Second, zerolog.Nop())

	message := "*Zelle Payment Received*\nFrom: John Doe\nAmount: $45.00\nTime: 2024-02-03 01:14 PM"
	if err := n.Deliver(context.Background(), message); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}

	if gotAuth != "Bearer xoxb-test" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if captured.Channel != "C12345" {
		t.Errorf("expected channel C12345, got %q", captured.Channel)
	}
	if captured.Text != message {
		t.Errorf("message altered in transit: %q", captured.Text)
	}
}

func TestSlackNotifierRejectsOKFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test", "C12345", server.URL, 5*time.Second, zerolog.Nop())

	err := n.Deliver(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for ok=false response")
	}
	if !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("expected slack error code in message, got %v", err)
	}
}

func TestSlackNotifierRejectsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test", "C12345", server.URL, 5*time.Second, zerolog.Nop())

	if err := n.Deliver(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
