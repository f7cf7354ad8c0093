// Package voice is the HTTP client for the external telephony/session
// provider that hosts the agent: interaction outcomes, agent profiles,
// and outbound calls. The provider owns the profile; this system reads
// and partially rewrites it, so profiles travel as raw maps to keep
// provider-specific fields intact.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Outcome is the terminal record of one completed interaction.
// Read-only to this system.
type Outcome struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	EndedReason string   `json:"endedReason"`
	Transcript  string   `json:"transcript"`
	Analysis    Analysis `json:"analysis"`
	Customer    Customer `json:"customer"`
}

type Analysis struct {
	Summary string `json:"summary"`
}

type Customer struct {
	Number string `json:"number"`
}

// Contact returns the callback address, if the outcome carried one.
func (o *Outcome) Contact() string {
	return o.Customer.Number
}

type Client struct {
	baseURL       string
	apiKey        string
	phoneNumberID string
	client        *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

func NewClient(baseURL, apiKey, phoneNumberID string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		phoneNumberID: phoneNumberID,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) GetOutcome(ctx context.Context, id string) (*Outcome, error) {
	body, err := c.do(ctx, http.MethodGet, "/call/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch outcome %s: %w", id, err)
	}
	var out Outcome
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode outcome %s: %w", id, err)
	}
	return &out, nil
}

// GetProfileRaw returns the live agent profile as a raw map so that a
// partial update never drops fields it did not intend to change.
func (c *Client) GetProfileRaw(ctx context.Context, id string) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, "/assistant/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", id, err)
	}
	var profile map[string]any
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return profile, nil
}

func (c *Client) UpdateProfileRaw(ctx context.Context, id string, profile map[string]any) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", id, err)
	}
	if _, err := c.do(ctx, http.MethodPatch, "/assistant/"+id, payload); err != nil {
		return fmt.Errorf("update profile %s: %w", id, err)
	}
	return nil
}

// StartCall issues an outbound interaction from the given profile to the
// contact. Returns the new interaction id.
func (c *Client) StartCall(ctx context.Context, profileID, contact string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"assistantId":   profileID,
		"phoneNumberId": c.phoneNumberID,
		"customer":      map[string]string{"number": contact},
	})
	if err != nil {
		return "", fmt.Errorf("marshal call request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/call", payload)
	if err != nil {
		return "", fmt.Errorf("start call to %s: %w", contact, err)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode call response: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider error (status %d): %s", resp.StatusCode, body)
	}
	return body, nil
}
