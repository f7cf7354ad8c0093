package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "mk-1", "")
	if err := g.SendMessage(context.Background(), "+15551234", "hi"); err != nil {
		t.Fatal(err)
	}
	if got["to"] != "+15551234" || got["text"] != "hi" {
		t.Errorf("payload = %v", got)
	}
}

func TestSendMessageUnconfigured(t *testing.T) {
	g := NewGateway("", "", "")
	if err := g.SendMessage(context.Background(), "+1", "hi"); err == nil {
		t.Fatal("expected error when gateway unconfigured")
	}
}

func TestNotifyOperatorRoutesToChannel(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "mk-1", "#ops")
	if err := g.NotifyOperator(context.Background(), "callback failed"); err != nil {
		t.Fatal(err)
	}
	if got["to"] != "#ops" {
		t.Errorf("to = %q", got["to"])
	}
}

func TestNotifyOperatorFallsBackToLog(t *testing.T) {
	// No gateway configured: the notification must land in the log, not
	// fail the caller.
	g := NewGateway("", "", "")
	if err := g.NotifyOperator(context.Background(), "heads up"); err != nil {
		t.Fatal(err)
	}
}
