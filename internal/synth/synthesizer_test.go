package synth

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/voxloop/voxloop/internal/registry"
)

type recordingContext struct {
	messages    []string
	operator    []string
	automations []string
	httpCalls   []string
	httpResult  string
	httpErr     error
}

func (r *recordingContext) SendMessage(_ context.Context, to, text string) error {
	r.messages = append(r.messages, to+": "+text)
	return nil
}

func (r *recordingContext) NotifyOperator(_ context.Context, text string) error {
	r.operator = append(r.operator, text)
	return nil
}

func (r *recordingContext) TriggerAutomation(_ context.Context, name string, _ map[string]any) (string, error) {
	r.automations = append(r.automations, name)
	return "triggered", nil
}

func (r *recordingContext) HTTPCall(_ context.Context, method, url string, _ map[string]string, body string) (string, error) {
	r.httpCalls = append(r.httpCalls, fmt.Sprintf("%s %s %s", method, url, body))
	return r.httpResult, r.httpErr
}

func TestCompileAndInvoke(t *testing.T) {
	tc := &recordingContext{}
	s := New(tc)

	def, err := s.Compile(CapabilitySpec{
		Name:        "shout",
		Description: "upper-cases the input",
		ParameterSchema: map[string]ParamSpec{
			"text": {Type: "string", Description: "input", Required: true},
		},
		HandlerSource: `function handler(args)
  return string.upper(args.text)
end`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if def.Origin != "synthesized" {
		t.Errorf("Origin = %q", def.Origin)
	}

	out, err := def.Handler(context.Background(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "HELLO" {
		t.Errorf("out = %q", out)
	}
}

func TestCompileRejectsMissingHandler(t *testing.T) {
	s := New(&recordingContext{})

	_, err := s.Compile(CapabilitySpec{
		Name:          "bad",
		HandlerSource: `local x = 1`,
	})
	if err == nil {
		t.Fatal("expected error for source without handler function")
	}
	if !strings.Contains(err.Error(), "handler") {
		t.Errorf("err = %v", err)
	}
}

func TestCompileRejectsSyntaxError(t *testing.T) {
	s := New(&recordingContext{})

	_, err := s.Compile(CapabilitySpec{
		Name:          "broken",
		HandlerSource: `function handler(args return end`,
	})
	if err == nil {
		t.Fatal("expected error for malformed source")
	}
}

func TestHandlerUsesAgentModule(t *testing.T) {
	tc := &recordingContext{}
	s := New(tc)

	def, err := s.Compile(CapabilitySpec{
		Name: "pager",
		HandlerSource: `local agent = require("agent")
function handler(args)
  agent.send_message(args.to, args.text)
  agent.notify_operator("paged " .. args.to)
  return "ok"
end`,
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := def.Handler(context.Background(), map[string]any{"to": "+15551234", "text": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" {
		t.Errorf("out = %q", out)
	}
	if len(tc.messages) != 1 || tc.messages[0] != "+15551234: hi" {
		t.Errorf("messages = %v", tc.messages)
	}
	if len(tc.operator) != 1 {
		t.Errorf("operator = %v", tc.operator)
	}
}

func TestHandlerCannotReachOS(t *testing.T) {
	s := New(&recordingContext{})

	def, err := s.Compile(CapabilitySpec{
		Name: "escape",
		HandlerSource: `function handler(args)
  return os.getenv("HOME")
end`,
	})
	if err != nil {
		t.Fatal(err)
	}

	// os is not opened in the sandbox, so the call must error instead of
	// reading process state.
	if _, err := def.Handler(context.Background(), nil); err == nil {
		t.Fatal("expected error when handler touches os")
	}
}

func TestHandlerErrorIsIsolated(t *testing.T) {
	s := New(&recordingContext{})

	def, err := s.Compile(CapabilitySpec{
		Name: "thrower",
		HandlerSource: `function handler(args)
  error("deliberate failure")
end`,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = def.Handler(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error from failing handler")
	}
	if !strings.Contains(err.Error(), "deliberate failure") {
		t.Errorf("err = %v", err)
	}
}

func TestHandlerMustReturnString(t *testing.T) {
	s := New(&recordingContext{})

	def, err := s.Compile(CapabilitySpec{
		Name: "tablereturn",
		HandlerSource: `function handler(args)
  return { 1, 2, 3 }
end`,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := def.Handler(context.Background(), nil); err == nil {
		t.Fatal("expected error for non-string return")
	}
}

func TestWiringSpecPostsToEndpoint(t *testing.T) {
	tc := &recordingContext{httpResult: "delivered"}
	s := New(tc)

	spec := WiringSpec("run_follow_up", "follow up", "https://flows.example.com/webhook/follow-up")
	def, err := s.Compile(spec)
	if err != nil {
		t.Fatal(err)
	}

	out, err := def.Handler(context.Background(), map[string]any{
		"to":      "+15550000",
		"message": "calling you back",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "delivered" {
		t.Errorf("out = %q", out)
	}
	if len(tc.httpCalls) != 1 {
		t.Fatalf("httpCalls = %v", tc.httpCalls)
	}
	call := tc.httpCalls[0]
	if !strings.HasPrefix(call, "POST https://flows.example.com/webhook/follow-up") {
		t.Errorf("call = %q", call)
	}
	if !strings.Contains(call, `"to":"+15550000"`) || !strings.Contains(call, `"message":"calling you back"`) {
		t.Errorf("body missing fields: %q", call)
	}
}

func TestSmokeArgs(t *testing.T) {
	args := SmokeArgs([]registry.Parameter{
		{Name: "who", Type: "string"},
		{Name: "count", Type: "number"},
		{Name: "urgent", Type: "boolean"},
	})
	if args["who"] != "test" {
		t.Errorf("who = %v", args["who"])
	}
	if args["count"] != float64(0) {
		t.Errorf("count = %v", args["count"])
	}
	if args["urgent"] != false {
		t.Errorf("urgent = %v", args["urgent"])
	}
}
