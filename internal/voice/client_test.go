package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/out-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer vk-1" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "out-1",
			"status":      "ended",
			"endedReason": "silence-timed-out",
			"transcript":  "Agent: hello?\n",
			"analysis":    map[string]string{"summary": "nobody spoke"},
			"customer":    map[string]string{"number": "+15551234"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vk-1", "num-1")
	out, err := c.GetOutcome(context.Background(), "out-1")
	if err != nil {
		t.Fatal(err)
	}
	if out.EndedReason != "silence-timed-out" {
		t.Errorf("EndedReason = %q", out.EndedReason)
	}
	if out.Contact() != "+15551234" {
		t.Errorf("Contact = %q", out.Contact())
	}
	if out.Analysis.Summary != "nobody spoke" {
		t.Errorf("Summary = %q", out.Analysis.Summary)
	}
}

func TestProfileRoundTripPreservesUnknownFields(t *testing.T) {
	live := map[string]any{
		"name":        "support-agent",
		"customField": map[string]any{"nested": true},
	}
	var patched map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(live)
		case http.MethodPatch:
			if err := json.NewDecoder(r.Body).Decode(&patched); err != nil {
				t.Errorf("decode patch: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vk-1", "num-1")
	profile, err := c.GetProfileRaw(context.Background(), "prof-1")
	if err != nil {
		t.Fatal(err)
	}
	profile["firstMessage"] = "Hello!"
	if err := c.UpdateProfileRaw(context.Background(), "prof-1", profile); err != nil {
		t.Fatal(err)
	}

	if patched["name"] != "support-agent" {
		t.Errorf("name = %v", patched["name"])
	}
	if _, ok := patched["customField"]; !ok {
		t.Error("provider-specific field dropped")
	}
	if patched["firstMessage"] != "Hello!" {
		t.Errorf("firstMessage = %v", patched["firstMessage"])
	}
}

func TestStartCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["assistantId"] != "prof-1" || req["phoneNumberId"] != "num-1" {
			t.Errorf("req = %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "call-9"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vk-1", "num-1")
	id, err := c.StartCall(context.Background(), "prof-1", "+15551234")
	if err != nil {
		t.Fatal(err)
	}
	if id != "call-9" {
		t.Errorf("id = %q", id)
	}
}

func TestProviderErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such call", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vk-1", "num-1")
	if _, err := c.GetOutcome(context.Background(), "nope"); err == nil {
		t.Fatal("expected provider error")
	}
}
