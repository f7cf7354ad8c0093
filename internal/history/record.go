package history

import "time"

// StepOutcome classifies one pipeline step.
type StepOutcome string

const (
	StepOK      StepOutcome = "ok"
	StepError   StepOutcome = "error"
	StepSkipped StepOutcome = "skipped"
)

// Step is one entry of a run's step log. Step logs are append-only; a
// step is never mutated after append.
type Step struct {
	Name    string      `json:"name"`
	Outcome StepOutcome `json:"outcome"`
	Detail  string      `json:"detail,omitempty"`
	At      time.Time   `json:"at"`
}

// DeployedRef identifies one automation deployed during a run.
type DeployedRef struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	EndpointURL string `json:"endpointUrl"`
}

// Record is the durable account of one improvement run.
type Record struct {
	ID                  string         `json:"id"`
	OutcomeID           string         `json:"outcomeId"`
	Contact             string         `json:"contact,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	Failures            []string       `json:"failures"`
	Changes             []string       `json:"changes"`
	CapabilitiesCreated []string       `json:"capabilitiesCreated"`
	AutomationsDeployed []DeployedRef  `json:"automationsDeployed"`
	ProfileBefore       map[string]any `json:"profileBefore,omitempty"`
	ProfileAfter        map[string]any `json:"profileAfter,omitempty"`
	CallbackTriggered   bool           `json:"callbackTriggered"`
	RawReasoning        string         `json:"rawReasoning,omitempty"`
	Steps               []Step         `json:"steps"`
}
