// Package tuning merges partial profile changes into a live agent profile
// without clobbering untouched fields. The apply is read-merge-write: fetch
// the raw profile, locate provider-specific structural slots by probing
// known schema variants, write the merged object back.
package tuning

import (
	"context"
	"fmt"
	"log"
)

// Changes is a partial profile update. Zero-valued fields mean "no change
// requested" for that aspect.
type Changes struct {
	Instructions          string         `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	GenerationLimit       *int           `json:"generationLimit,omitempty" yaml:"generation_limit,omitempty"`
	VoiceRate             *float64       `json:"voiceRate,omitempty" yaml:"voice_rate,omitempty"`
	Greeting              string         `json:"greeting,omitempty" yaml:"greeting,omitempty"`
	SilenceTimeoutSeconds *float64       `json:"silenceTimeoutSeconds,omitempty" yaml:"silence_timeout_seconds,omitempty"`
	MaxDurationSeconds    *int           `json:"maxDurationSeconds,omitempty" yaml:"max_duration_seconds,omitempty"`
	IdlePlan              map[string]any `json:"idlePlan,omitempty" yaml:"idle_plan,omitempty"`
}

func (c Changes) Empty() bool {
	return c.Instructions == "" &&
		c.GenerationLimit == nil &&
		c.VoiceRate == nil &&
		c.Greeting == "" &&
		c.SilenceTimeoutSeconds == nil &&
		c.MaxDurationSeconds == nil &&
		len(c.IdlePlan) == 0
}

// ProfileStore is the provider slice the adapter needs.
type ProfileStore interface {
	GetProfileRaw(ctx context.Context, id string) (map[string]any, error)
	UpdateProfileRaw(ctx context.Context, id string, profile map[string]any) error
}

type Adapter struct {
	store ProfileStore
}

func NewAdapter(store ProfileStore) *Adapter {
	return &Adapter{store: store}
}

// Apply merges the changes into the live profile. An empty change set
// performs zero network writes. If the live-profile read fails, the whole
// apply fails; it never writes a partial patch.
func (a *Adapter) Apply(ctx context.Context, profileID string, changes Changes) error {
	if changes.Empty() {
		return nil
	}

	profile, err := a.store.GetProfileRaw(ctx, profileID)
	if err != nil {
		return fmt.Errorf("read live profile: %w", err)
	}

	Merge(profile, changes)

	if err := a.store.UpdateProfileRaw(ctx, profileID, profile); err != nil {
		return fmt.Errorf("write merged profile: %w", err)
	}
	log.Printf("tuning: applied changes to profile %s", profileID)
	return nil
}

// Merge writes the changes into the raw profile map in place, preserving
// every untouched sibling field.
func Merge(profile map[string]any, changes Changes) {
	if changes.Instructions != "" {
		SetInstructions(profile, changes.Instructions)
	}
	if changes.GenerationLimit != nil {
		subMap(profile, "model")["maxTokens"] = *changes.GenerationLimit
	}
	if changes.VoiceRate != nil {
		subMap(profile, "voice")["speed"] = *changes.VoiceRate
	}
	if changes.Greeting != "" {
		profile["firstMessage"] = changes.Greeting
	}
	if changes.SilenceTimeoutSeconds != nil {
		profile["silenceTimeoutSeconds"] = *changes.SilenceTimeoutSeconds
	}
	if changes.MaxDurationSeconds != nil {
		profile["maxDurationSeconds"] = *changes.MaxDurationSeconds
	}
	if len(changes.IdlePlan) > 0 {
		plan := subMap(profile, "messagePlan")
		for k, v := range changes.IdlePlan {
			plan[k] = v
		}
	}
}

// Instructions locates the instructions text in the raw profile by probing
// known schema variants in fixed priority order:
//
//  1. model.messages[*].content where role == "system"
//  2. model.systemPrompt
//  3. top-level instructions
func Instructions(profile map[string]any) (string, bool) {
	if model, ok := profile["model"].(map[string]any); ok {
		if msgs, ok := model["messages"].([]any); ok {
			for _, m := range msgs {
				msg, ok := m.(map[string]any)
				if !ok {
					continue
				}
				if msg["role"] == "system" {
					if content, ok := msg["content"].(string); ok {
						return content, true
					}
				}
			}
		}
		if prompt, ok := model["systemPrompt"].(string); ok {
			return prompt, true
		}
	}
	if instr, ok := profile["instructions"].(string); ok {
		return instr, true
	}
	return "", false
}

// SetInstructions writes the instructions text into whichever structural
// slot the profile already uses; if none exists, it creates the
// model.messages form.
func SetInstructions(profile map[string]any, text string) {
	if model, ok := profile["model"].(map[string]any); ok {
		if msgs, ok := model["messages"].([]any); ok {
			for _, m := range msgs {
				msg, ok := m.(map[string]any)
				if !ok {
					continue
				}
				if msg["role"] == "system" {
					msg["content"] = text
					return
				}
			}
		}
		if _, ok := model["systemPrompt"]; ok {
			model["systemPrompt"] = text
			return
		}
	}
	if _, ok := profile["instructions"]; ok {
		profile["instructions"] = text
		return
	}
	model := subMap(profile, "model")
	model["messages"] = []any{
		map[string]any{"role": "system", "content": text},
	}
}

func subMap(profile map[string]any, key string) map[string]any {
	if m, ok := profile[key].(map[string]any); ok {
		return m
	}
	m := make(map[string]any)
	profile[key] = m
	return m
}
