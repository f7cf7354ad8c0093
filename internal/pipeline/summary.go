package pipeline

import (
	"fmt"
	"strings"

	"github.com/voxloop/voxloop/internal/history"
)

// summarize builds the single consolidated operator message for one run.
func summarize(rec *history.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "improvement run %s (outcome %s)\n", shortID(rec.ID), rec.OutcomeID)

	if len(rec.Failures) > 0 {
		sb.WriteString("failures:\n")
		for _, f := range rec.Failures {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}
	if len(rec.Changes) > 0 {
		sb.WriteString("changes:\n")
		for _, c := range rec.Changes {
			fmt.Fprintf(&sb, "  - %s\n", c)
		}
	}
	if len(rec.CapabilitiesCreated) > 0 {
		fmt.Fprintf(&sb, "capabilities created: %s\n", strings.Join(rec.CapabilitiesCreated, ", "))
	}
	for _, dep := range rec.AutomationsDeployed {
		fmt.Fprintf(&sb, "automation deployed: %s (%s)\n", dep.Name, dep.EndpointURL)
	}
	if rec.CallbackTriggered {
		fmt.Fprintf(&sb, "callback: %s\n", rec.Contact)
	} else {
		sb.WriteString("callback: none\n")
	}

	errored := 0
	for _, st := range rec.Steps {
		if st.Outcome == history.StepError {
			errored++
		}
	}
	if errored > 0 {
		fmt.Fprintf(&sb, "%d step(s) errored; see step log\n", errored)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
