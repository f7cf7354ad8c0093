package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Context is the fixed trusted surface exposed to synthesized handlers.
// Handlers see nothing else: no process state, no registry, no other
// capabilities.
type Context interface {
	SendMessage(ctx context.Context, to, text string) error
	NotifyOperator(ctx context.Context, text string) error
	TriggerAutomation(ctx context.Context, name string, payload map[string]any) (string, error)
	HTTPCall(ctx context.Context, method, url string, headers map[string]string, body string) (string, error)
}

// Messenger is the messaging-gateway slice the trusted context needs.
type Messenger interface {
	SendMessage(ctx context.Context, to, text string) error
	NotifyOperator(ctx context.Context, text string) error
}

// AutomationIndex resolves a deployed automation name to its endpoint.
type AutomationIndex interface {
	Endpoint(name string) (string, bool)
}

// GatewayContext is the production Context: messages go through the
// messaging gateway, automation triggers POST to the deployed endpoint,
// and http_call is a plain outbound request.
type GatewayContext struct {
	Messenger   Messenger
	Automations AutomationIndex
	Client      *http.Client
}

func NewGatewayContext(m Messenger, a AutomationIndex) *GatewayContext {
	return &GatewayContext{
		Messenger:   m,
		Automations: a,
		Client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GatewayContext) SendMessage(ctx context.Context, to, text string) error {
	return g.Messenger.SendMessage(ctx, to, text)
}

func (g *GatewayContext) NotifyOperator(ctx context.Context, text string) error {
	return g.Messenger.NotifyOperator(ctx, text)
}

func (g *GatewayContext) TriggerAutomation(ctx context.Context, name string, payload map[string]any) (string, error) {
	endpoint, ok := g.Automations.Endpoint(name)
	if !ok {
		return "", fmt.Errorf("automation %q not deployed", name)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return g.HTTPCall(ctx, http.MethodPost, endpoint,
		map[string]string{"Content-Type": "application/json"}, string(body))
}

func (g *GatewayContext) HTTPCall(ctx context.Context, method, url string, headers map[string]string, body string) (string, error) {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("http %s %s: status %d: %s", method, url, resp.StatusCode, respBody)
	}
	return string(respBody), nil
}
