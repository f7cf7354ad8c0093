package reasoning

import (
	"github.com/voxloop/voxloop/internal/automation"
	"github.com/voxloop/voxloop/internal/synth"
	"github.com/voxloop/voxloop/internal/tuning"
)

// ChangeSet is the structured output of one reasoning call: what went
// wrong, what to change, and what to build. Absent optional fields mean
// "no change requested" for that aspect.
type ChangeSet struct {
	Failures         []string               `json:"failures"`
	Changes          []string               `json:"changes"`
	ConfigChanges    tuning.Changes         `json:"configChanges"`
	NewCapabilities  []synth.CapabilitySpec `json:"newCapabilities,omitempty"`
	NewAutomations   []automation.Spec      `json:"newAutomations,omitempty"`
	ResourceRequests []string               `json:"resourceRequests,omitempty"`

	// Raw is the undecoded reasoning output, kept for the record.
	Raw string `json:"-"`
}

// fallback is the safe no-op ChangeSet used when the reasoning output
// fails structural decoding: instructions stay exactly as they are and
// nothing new is built.
func fallback(raw, currentInstructions string) *ChangeSet {
	return &ChangeSet{
		Failures: []string{"could not parse output"},
		Changes:  []string{},
		ConfigChanges: tuning.Changes{
			Instructions: currentInstructions,
		},
		Raw: raw,
	}
}
