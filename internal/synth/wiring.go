package synth

import "fmt"

// WiringSpec mints the capability spec that fronts a freshly deployed
// automation: its handler POSTs {to, message} to the automation's
// endpoint and returns the response body.
func WiringSpec(name, description, endpointURL string) CapabilitySpec {
	source := fmt.Sprintf(`local agent = require("agent")

function handler(args)
  local body = agent.json_encode({ to = args.to, message = args.message })
  return agent.http_call("POST", %q, { ["Content-Type"] = "application/json" }, body)
end
`, endpointURL)

	return CapabilitySpec{
		Name:        name,
		Description: description,
		ParameterSchema: map[string]ParamSpec{
			"to":      {Type: "string", Description: "Destination address for the automation payload", Required: true},
			"message": {Type: "string", Description: "Message body forwarded to the automation", Required: true},
		},
		HandlerSource: source,
	}
}
