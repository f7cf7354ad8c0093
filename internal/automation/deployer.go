// Package automation turns abstract ordered-step automation specs into
// deployed, webhook-addressable workflows on the external automation
// platform.
package automation

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

// Step is one sequential HTTP call in an automation. BodyTemplate may
// reference fields of the triggering payload as {{payload.field}}.
type Step struct {
	Name         string            `json:"name"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate string            `json:"bodyTemplate,omitempty"`
}

// Spec is an abstract automation: a unique trigger path and an ordered
// list of HTTP steps.
type Spec struct {
	Name        string `json:"name"`
	TriggerPath string `json:"triggerPath"`
	Steps       []Step `json:"steps"`
}

// Deployment is a spec that has been deployed and activated.
type Deployment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EndpointURL string `json:"endpointUrl"`
	Active      bool   `json:"active"`
}

type Deployer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type Option func(*Deployer)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Deployer) { d.client = c }
}

func NewDeployer(baseURL, apiKey string, opts ...Option) *Deployer {
	d := &Deployer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Configured reports whether the platform credentials are present. When
// false, deployment is skipped and the pipeline files a resource request
// instead of failing the run.
func (d *Deployer) Configured() bool {
	return d.baseURL != "" && d.apiKey != ""
}

// Deploy builds the workflow graph (webhook trigger → sequential HTTP
// steps → respond), creates and activates it, and resolves the public
// callable endpoint for the trigger path.
func (d *Deployer) Deploy(ctx context.Context, spec Spec) (Deployment, error) {
	if spec.Name == "" || spec.TriggerPath == "" {
		return Deployment{}, fmt.Errorf("automation spec needs name and trigger path")
	}
	if len(spec.Steps) == 0 {
		return Deployment{}, fmt.Errorf("automation %q has no steps", spec.Name)
	}

	graph := buildGraph(spec)
	body, err := json.Marshal(graph)
	if err != nil {
		return Deployment{}, fmt.Errorf("marshal workflow: %w", err)
	}

	respBody, err := d.do(ctx, http.MethodPost, "/api/v1/workflows", body)
	if err != nil {
		return Deployment{}, fmt.Errorf("create workflow %q: %w", spec.Name, err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return Deployment{}, fmt.Errorf("decode workflow response: %w", err)
	}
	if created.ID == "" {
		return Deployment{}, fmt.Errorf("platform returned no workflow id for %q", spec.Name)
	}

	if _, err := d.do(ctx, http.MethodPost, "/api/v1/workflows/"+created.ID+"/activate", nil); err != nil {
		return Deployment{}, fmt.Errorf("activate workflow %q: %w", spec.Name, err)
	}

	dep := Deployment{
		ID:          created.ID,
		Name:        spec.Name,
		EndpointURL: d.baseURL + "/webhook/" + strings.TrimLeft(spec.TriggerPath, "/"),
		Active:      true,
	}
	log.Printf("automation: deployed %q as %s (%s)", spec.Name, dep.ID, dep.EndpointURL)
	return dep, nil
}

// List enumerates deployed workflows. Best-effort: callers presenting the
// result to the reasoning service tolerate an empty list on error.
func (d *Deployer) List(ctx context.Context) ([]Deployment, error) {
	respBody, err := d.do(ctx, http.MethodGet, "/api/v1/workflows", nil)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	var resp struct {
		Data []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Active bool   `json:"active"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode workflow list: %w", err)
	}
	out := make([]Deployment, 0, len(resp.Data))
	for _, wf := range resp.Data {
		out = append(out, Deployment{ID: wf.ID, Name: wf.Name, Active: wf.Active})
	}
	return out, nil
}

func (d *Deployer) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("platform error (status %d): %s", resp.StatusCode, respBody)
	}
	return respBody, nil
}
