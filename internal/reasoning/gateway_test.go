package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/voxloop/voxloop/internal/llm"
)

type fakeLLM struct {
	content string
	err     error
	last    *llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

const goodResponse = `{
  "failures": ["agent talked too long"],
  "changes": ["shortened instructions", "lowered generation limit"],
  "configChanges": {"instructions": "Be brief.", "generationLimit": 150},
  "newCapabilities": [{
    "name": "check_hours",
    "description": "look up business hours",
    "parameterSchema": {"day": {"type": "string", "description": "weekday", "required": true}},
    "handlerSource": "function handler(args) return args.day end"
  }],
  "resourceRequests": ["CRM API key"]
}`

func profileWith(instructions string) map[string]any {
	return map[string]any{
		"model": map[string]any{
			"messages": []any{
				map[string]any{"role": "system", "content": instructions},
			},
		},
	}
}

func TestAnalyzeDecodesChangeSet(t *testing.T) {
	client := &fakeLLM{content: goodResponse}
	g := NewGateway(client, "gpt-4o", 4096)

	cs, err := g.Analyze(context.Background(), "transcript", profileWith("Be helpful."), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Failures) != 1 || cs.Failures[0] != "agent talked too long" {
		t.Errorf("Failures = %v", cs.Failures)
	}
	if cs.ConfigChanges.Instructions != "Be brief." {
		t.Errorf("Instructions = %q", cs.ConfigChanges.Instructions)
	}
	if cs.ConfigChanges.GenerationLimit == nil || *cs.ConfigChanges.GenerationLimit != 150 {
		t.Errorf("GenerationLimit = %v", cs.ConfigChanges.GenerationLimit)
	}
	if len(cs.NewCapabilities) != 1 || cs.NewCapabilities[0].Name != "check_hours" {
		t.Errorf("NewCapabilities = %v", cs.NewCapabilities)
	}
	if len(cs.ResourceRequests) != 1 {
		t.Errorf("ResourceRequests = %v", cs.ResourceRequests)
	}
	if cs.Raw != goodResponse {
		t.Error("Raw not preserved")
	}
}

func TestAnalyzeTransportErrorPropagates(t *testing.T) {
	client := &fakeLLM{err: errors.New("connection refused")}
	g := NewGateway(client, "gpt-4o", 4096)

	_, err := g.Analyze(context.Background(), "t", profileWith("x"), nil, nil)
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestAnalyzeParseFailureFallsBack(t *testing.T) {
	client := &fakeLLM{content: "I'm sorry, I can't produce JSON today."}
	g := NewGateway(client, "gpt-4o", 4096)

	cs, err := g.Analyze(context.Background(), "t", profileWith("Keep calm."), nil, nil)
	if err != nil {
		t.Fatalf("parse failure must not abort the run: %v", err)
	}
	if len(cs.Failures) != 1 || cs.Failures[0] != "could not parse output" {
		t.Errorf("Failures = %v", cs.Failures)
	}
	// Instructions stay exactly as they are.
	if cs.ConfigChanges.Instructions != "Keep calm." {
		t.Errorf("Instructions = %q", cs.ConfigChanges.Instructions)
	}
	if len(cs.NewCapabilities) != 0 || len(cs.NewAutomations) != 0 {
		t.Error("fallback must not create capabilities or automations")
	}
	if cs.Raw == "" {
		t.Error("fallback should keep the raw output for the record")
	}
}

func TestParseStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"failures\": [], \"changes\": [\"noted\"], \"configChanges\": {}}\n```"
	cs, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Changes) != 1 || cs.Changes[0] != "noted" {
		t.Errorf("Changes = %v", cs.Changes)
	}
}

func TestParseStripsSurroundingProse(t *testing.T) {
	raw := `Here is my analysis:
{"failures": ["x"], "changes": [], "configChanges": {}}
Hope that helps!`
	cs, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Failures) != 1 {
		t.Errorf("Failures = %v", cs.Failures)
	}
}

func TestParseNormalizesNilLists(t *testing.T) {
	cs, err := Parse(`{"configChanges": {}}`)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Failures == nil || cs.Changes == nil {
		t.Error("nil lists must decode to empty slices")
	}
}

func TestAnalyzeSendsSystemAndUserMessages(t *testing.T) {
	client := &fakeLLM{content: `{"failures": [], "changes": [], "configChanges": {}}`}
	g := NewGateway(client, "claude-sonnet", 2048)

	_, err := g.Analyze(context.Background(), "the caller hung up", profileWith("x"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	req := client.last
	if req.Model != "claude-sonnet" || req.MaxTokens != 2048 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d", len(req.Messages))
	}
	if req.Messages[0].Role != llm.RoleSystem || req.Messages[1].Role != llm.RoleUser {
		t.Errorf("roles = %v, %v", req.Messages[0].Role, req.Messages[1].Role)
	}
}
