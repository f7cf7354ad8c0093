// Package messaging is the thin client for the external messaging
// gateway: outbound texts to contacts and notifications to the operator
// channel.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type Gateway struct {
	baseURL         string
	apiKey          string
	operatorChannel string
	client          *http.Client
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

func NewGateway(baseURL, apiKey, operatorChannel string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		operatorChannel: operatorChannel,
		client:          &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Configured() bool {
	return g.baseURL != ""
}

// SendMessage delivers a text to an address through the gateway.
func (g *Gateway) SendMessage(ctx context.Context, to, text string) error {
	if !g.Configured() {
		return fmt.Errorf("messaging gateway not configured")
	}
	payload, err := json.Marshal(map[string]string{"to": to, "text": text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, body)
	}
	return nil
}

// NotifyOperator sends a text to the configured operator channel. When no
// gateway or channel is configured the notification lands in the log
// instead; operator notifications are best-effort by contract.
func (g *Gateway) NotifyOperator(ctx context.Context, text string) error {
	if !g.Configured() || g.operatorChannel == "" {
		log.Printf("operator: %s", text)
		return nil
	}
	return g.SendMessage(ctx, g.operatorChannel, text)
}
