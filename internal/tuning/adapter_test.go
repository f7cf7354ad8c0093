package tuning

import (
	"context"
	"errors"
	"testing"
)

type fakeProfileStore struct {
	profile map[string]any
	getErr  error
	putErr  error

	gets int
	puts int
	last map[string]any
}

func (f *fakeProfileStore) GetProfileRaw(_ context.Context, _ string) (map[string]any, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.profile, nil
}

func (f *fakeProfileStore) UpdateProfileRaw(_ context.Context, _ string, profile map[string]any) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.last = profile
	return nil
}

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }

func liveProfile() map[string]any {
	return map[string]any{
		"name":         "support-agent",
		"firstMessage": "Hi there!",
		"model": map[string]any{
			"provider":  "openai",
			"model":     "gpt-4o",
			"maxTokens": float64(300),
			"messages": []any{
				map[string]any{"role": "system", "content": "Be helpful."},
			},
		},
		"voice": map[string]any{
			"provider": "11labs",
			"voiceId":  "abc",
			"speed":    float64(1.0),
		},
		"silenceTimeoutSeconds": float64(20),
		"serverUrl":             "https://hooks.example.com/interaction",
	}
}

func TestApplyEmptyChangesPerformsNoIO(t *testing.T) {
	store := &fakeProfileStore{profile: liveProfile()}
	a := NewAdapter(store)

	if err := a.Apply(context.Background(), "prof-1", Changes{}); err != nil {
		t.Fatal(err)
	}
	if store.gets != 0 || store.puts != 0 {
		t.Errorf("gets = %d, puts = %d, want zero external calls", store.gets, store.puts)
	}
}

func TestApplyFailsWhenReadFails(t *testing.T) {
	store := &fakeProfileStore{getErr: errors.New("provider down")}
	a := NewAdapter(store)

	err := a.Apply(context.Background(), "prof-1", Changes{Greeting: "Hello"})
	if err == nil {
		t.Fatal("expected error when live read fails")
	}
	if store.puts != 0 {
		t.Error("must never write a partial patch after a failed read")
	}
}

func TestApplyPreservesUntouchedFields(t *testing.T) {
	store := &fakeProfileStore{profile: liveProfile()}
	a := NewAdapter(store)

	err := a.Apply(context.Background(), "prof-1", Changes{GenerationLimit: intPtr(500)})
	if err != nil {
		t.Fatal(err)
	}
	if store.last == nil {
		t.Fatal("no profile written")
	}

	model := store.last["model"].(map[string]any)
	if model["maxTokens"] != 500 {
		t.Errorf("maxTokens = %v", model["maxTokens"])
	}

	// Read-merge-write must keep every sibling field intact.
	if store.last["name"] != "support-agent" {
		t.Errorf("name = %v", store.last["name"])
	}
	if store.last["firstMessage"] != "Hi there!" {
		t.Errorf("firstMessage = %v", store.last["firstMessage"])
	}
	if store.last["serverUrl"] != "https://hooks.example.com/interaction" {
		t.Errorf("serverUrl = %v", store.last["serverUrl"])
	}
	if store.last["silenceTimeoutSeconds"] != float64(20) {
		t.Errorf("silenceTimeoutSeconds = %v", store.last["silenceTimeoutSeconds"])
	}
	if model["provider"] != "openai" || model["model"] != "gpt-4o" {
		t.Errorf("model siblings clobbered: %v", model)
	}
	voice := store.last["voice"].(map[string]any)
	if voice["voiceId"] != "abc" {
		t.Errorf("voice siblings clobbered: %v", voice)
	}
}

func TestMergeAllFields(t *testing.T) {
	profile := liveProfile()
	Merge(profile, Changes{
		Instructions:          "Be brief.",
		GenerationLimit:       intPtr(150),
		VoiceRate:             floatPtr(0.9),
		Greeting:              "Good morning!",
		SilenceTimeoutSeconds: floatPtr(45),
		MaxDurationSeconds:    intPtr(900),
		IdlePlan:              map[string]any{"idleMessages": []any{"Are you still there?"}},
	})

	model := profile["model"].(map[string]any)
	msgs := model["messages"].([]any)
	sys := msgs[0].(map[string]any)
	if sys["content"] != "Be brief." {
		t.Errorf("instructions = %v", sys["content"])
	}
	if model["maxTokens"] != 150 {
		t.Errorf("maxTokens = %v", model["maxTokens"])
	}
	if profile["voice"].(map[string]any)["speed"] != 0.9 {
		t.Errorf("speed = %v", profile["voice"].(map[string]any)["speed"])
	}
	if profile["firstMessage"] != "Good morning!" {
		t.Errorf("firstMessage = %v", profile["firstMessage"])
	}
	if profile["silenceTimeoutSeconds"] != float64(45) {
		t.Errorf("silenceTimeoutSeconds = %v", profile["silenceTimeoutSeconds"])
	}
	if profile["maxDurationSeconds"] != 900 {
		t.Errorf("maxDurationSeconds = %v", profile["maxDurationSeconds"])
	}
	plan := profile["messagePlan"].(map[string]any)
	if plan["idleMessages"] == nil {
		t.Error("idlePlan not merged")
	}
}

func TestInstructionsProbeOrder(t *testing.T) {
	// model.messages system content wins.
	p1 := map[string]any{
		"instructions": "top-level",
		"model": map[string]any{
			"systemPrompt": "prompt-slot",
			"messages": []any{
				map[string]any{"role": "system", "content": "messages-slot"},
			},
		},
	}
	if got, _ := Instructions(p1); got != "messages-slot" {
		t.Errorf("Instructions = %q", got)
	}

	// Then model.systemPrompt.
	p2 := map[string]any{
		"instructions": "top-level",
		"model":        map[string]any{"systemPrompt": "prompt-slot"},
	}
	if got, _ := Instructions(p2); got != "prompt-slot" {
		t.Errorf("Instructions = %q", got)
	}

	// Then top-level instructions.
	p3 := map[string]any{"instructions": "top-level"}
	if got, _ := Instructions(p3); got != "top-level" {
		t.Errorf("Instructions = %q", got)
	}

	if _, ok := Instructions(map[string]any{}); ok {
		t.Error("expected no instructions found")
	}
}

func TestSetInstructionsCreatesMessagesForm(t *testing.T) {
	profile := map[string]any{}
	SetInstructions(profile, "fresh instructions")

	model, ok := profile["model"].(map[string]any)
	if !ok {
		t.Fatal("model slot not created")
	}
	msgs := model["messages"].([]any)
	sys := msgs[0].(map[string]any)
	if sys["content"] != "fresh instructions" {
		t.Errorf("content = %v", sys["content"])
	}
}

func TestSetInstructionsWritesExistingSlot(t *testing.T) {
	profile := map[string]any{
		"model": map[string]any{"systemPrompt": "old"},
	}
	SetInstructions(profile, "new")
	if profile["model"].(map[string]any)["systemPrompt"] != "new" {
		t.Errorf("systemPrompt = %v", profile["model"].(map[string]any)["systemPrompt"])
	}
}
