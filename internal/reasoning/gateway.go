// Package reasoning wraps the external reasoning service in a single-call
// contract: transcript plus current state in, validated ChangeSet out.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/voxloop/voxloop/internal/automation"
	"github.com/voxloop/voxloop/internal/llm"
	"github.com/voxloop/voxloop/internal/registry"
	"github.com/voxloop/voxloop/internal/tuning"
)

type Gateway struct {
	client    llm.Client
	model     string
	maxTokens int
}

func NewGateway(client llm.Client, model string, maxTokens int) *Gateway {
	return &Gateway{client: client, model: model, maxTokens: maxTokens}
}

// Analyze sends the transcript, the live profile, and the current
// capability/automation inventory to the reasoning service and decodes
// its ChangeSet. A transport failure returns an error; a structural
// decode failure returns the safe no-op fallback with a nil error — the
// pipeline never applies an undefined or partially decoded change set.
func (g *Gateway) Analyze(
	ctx context.Context,
	transcript string,
	profile map[string]any,
	caps []registry.Definition,
	autos []automation.Deployment,
) (*ChangeSet, error) {
	prompt := buildUserPrompt(transcript, profile, caps, autos)

	resp, err := g.client.Complete(ctx, &llm.Request{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning completion: %w", err)
	}

	cs, err := Parse(resp.Content)
	if err != nil {
		currentInstructions, _ := tuning.Instructions(profile)
		log.Printf("reasoning: falling back to no-op change set: %v", err)
		return fallback(resp.Content, currentInstructions), nil
	}
	return cs, nil
}

// Parse strips incidental formatting wrappers and structurally decodes
// the ChangeSet.
func Parse(raw string) (*ChangeSet, error) {
	body := stripWrappers(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in reasoning output")
	}

	var cs ChangeSet
	if err := json.Unmarshal([]byte(body), &cs); err != nil {
		return nil, fmt.Errorf("decode change set: %w", err)
	}
	if cs.Failures == nil {
		cs.Failures = []string{}
	}
	if cs.Changes == nil {
		cs.Changes = []string{}
	}
	cs.Raw = raw
	return &cs, nil
}

// stripWrappers removes markdown fences and anything outside the
// outermost JSON object.
func stripWrappers(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
