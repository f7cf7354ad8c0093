package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxloop/voxloop/internal/automation"
	"github.com/voxloop/voxloop/internal/registry"
	"github.com/voxloop/voxloop/internal/tuning"
)

// systemPrompt fixes the legal shape of the reasoning response. The
// decoder rejects anything that does not fit; keep this and the
// ChangeSet struct in sync.
const systemPrompt = `You improve a voice agent after a failed interaction.
Given the transcript, the agent's current configuration, and its current
capabilities and automations, respond with ONLY a JSON object:

{
  "failures": ["what went wrong, one item each"],
  "changes": ["human-readable description of each change you are making"],
  "configChanges": {
    "instructions": "full replacement system instructions (omit to keep current)",
    "generationLimit": 250,
    "voiceRate": 1.0,
    "greeting": "replacement greeting (omit to keep current)",
    "silenceTimeoutSeconds": 30,
    "maxDurationSeconds": 600,
    "idlePlan": {}
  },
  "newCapabilities": [{
    "name": "snake_case_name",
    "description": "when the agent should call this",
    "parameterSchema": {"field": {"type": "string", "description": "...", "required": true}},
    "handlerSource": "Lua chunk defining: function handler(args) ... return <string> end"
  }],
  "newAutomations": [{
    "name": "automation name",
    "triggerPath": "unique-path-slug",
    "steps": [{"name": "...", "method": "POST", "url": "https://...", "headers": {}, "bodyTemplate": "{{payload.message}}"}]
  }],
  "resourceRequests": ["credential or configuration you need but do not have"]
}

Tuning guidance: shorten instructions when callers hang up early; slow
voiceRate (0.8-1.0) when callers ask the agent to repeat itself; raise
silenceTimeoutSeconds when callers need time to answer; keep
generationLimit low (150-300) for phone conversations.

Capability handlers run in a sandbox. The only available module:
  local agent = require("agent")
  agent.send_message(to, text)
  agent.notify_operator(text)
  agent.trigger_automation(name, payload_table)
  agent.http_call(method, url, headers_table, body)
  agent.json_encode(value) / agent.json_decode(text)
The handler must return a string.

Automations become webhook-triggered sequences of HTTP calls; step body
templates may reference trigger payload fields as {{payload.field}}.

Omit any aspect you do not want to change. Request missing credentials in
resourceRequests instead of inventing configuration.`

func buildUserPrompt(
	transcript string,
	profile map[string]any,
	caps []registry.Definition,
	autos []automation.Deployment,
) string {
	var sb strings.Builder

	sb.WriteString("## Interaction transcript\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\n## Current configuration\n")

	instructions, _ := tuning.Instructions(profile)
	sb.WriteString("instructions:\n")
	sb.WriteString(instructions)
	sb.WriteString("\n")
	writeScalar(&sb, profile, "firstMessage")
	writeScalar(&sb, profile, "silenceTimeoutSeconds")
	writeScalar(&sb, profile, "maxDurationSeconds")
	if model, ok := profile["model"].(map[string]any); ok {
		writeScalar(&sb, model, "maxTokens")
	}
	if voice, ok := profile["voice"].(map[string]any); ok {
		writeScalar(&sb, voice, "speed")
	}

	sb.WriteString("\n## Current capabilities\n")
	if len(caps) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, def := range caps {
		sb.WriteString(fmt.Sprintf("- %s [%s]: %s\n", def.Name, def.Origin, def.Description))
		for _, p := range def.Parameters {
			req := ""
			if p.Required {
				req = " (required)"
			}
			sb.WriteString(fmt.Sprintf("  - %s (%s): %s%s\n", p.Name, p.Type, p.Description, req))
		}
	}

	sb.WriteString("\n## Deployed automations\n")
	if len(autos) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, dep := range autos {
		sb.WriteString(fmt.Sprintf("- %s (id=%s, active=%t)\n", dep.Name, dep.ID, dep.Active))
	}

	return sb.String()
}

func writeScalar(sb *strings.Builder, m map[string]any, key string) {
	v, ok := m[key]
	if !ok {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", key, data))
}
