// Package baseline restores the agent to a known-good configuration,
// discarding everything the improvement pipeline has accumulated.
package baseline

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxloop/voxloop/internal/tuning"
)

// Baseline is the full known-good profile state. It reuses the tuning
// change vocabulary so that restoring it is just one Apply.
type Baseline struct {
	Changes tuning.Changes `yaml:",inline" json:"changes"`
}

// Default is used when no baseline file is configured. Kept deliberately
// conservative for phone conversations.
func Default() Baseline {
	limit := 250
	rate := 1.0
	silence := 30.0
	maxDur := 600
	return Baseline{Changes: tuning.Changes{
		Instructions: "You are a polite, concise phone assistant. Answer in one or " +
			"two short sentences, confirm what the caller asked before acting, and " +
			"hand off to a human operator when you are unsure.",
		Greeting:              "Hello! How can I help you today?",
		GenerationLimit:       &limit,
		VoiceRate:             &rate,
		SilenceTimeoutSeconds: &silence,
		MaxDurationSeconds:    &maxDur,
	}}
}

// Load reads a baseline file. An empty path returns Default.
func Load(path string) (Baseline, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Baseline{}, fmt.Errorf("reading baseline %s: %w", path, err)
	}
	var b Baseline
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Baseline{}, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	if b.Changes.Empty() {
		return Baseline{}, fmt.Errorf("baseline %s defines no configuration", path)
	}
	return b, nil
}

type Tuner interface {
	Apply(ctx context.Context, profileID string, changes tuning.Changes) error
}

// Capabilities is the slice of the registry the reset touches.
type Capabilities interface {
	ClearSynthesized() int
}

type History interface {
	Clear() error
}

// Manager performs resets. Reset is idempotent: applying the same
// baseline twice leaves the profile in the same state.
type Manager struct {
	baseline Baseline
	tuner    Tuner
	caps     Capabilities
	history  History
}

func NewManager(b Baseline, tuner Tuner, caps Capabilities, history History) *Manager {
	return &Manager{baseline: b, tuner: tuner, caps: caps, history: history}
}

// Snapshot returns the baseline this manager restores to.
func (m *Manager) Snapshot() Baseline {
	return m.baseline
}

// Reset pushes the baseline configuration to the profile, drops every
// synthesized capability, and clears the improvement history. The
// profile write happens first: if it fails the local state is untouched
// and the reset can simply be retried.
func (m *Manager) Reset(ctx context.Context, profileID string) error {
	if err := m.tuner.Apply(ctx, profileID, m.baseline.Changes); err != nil {
		return fmt.Errorf("restoring baseline configuration: %w", err)
	}
	removed := m.caps.ClearSynthesized()
	if err := m.history.Clear(); err != nil {
		return fmt.Errorf("clearing improvement history: %w", err)
	}
	log.Printf("baseline: reset profile %s, removed %d synthesized capabilities", profileID, removed)
	return nil
}
