package automation

import "fmt"

// node and graph mirror the platform's workflow document: a webhook
// trigger node, one HTTP-request node per step, a terminal respond node,
// and connections chaining them in order.
type node struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Position   [2]int         `json:"position"`
}

type connTarget struct {
	Node string `json:"node"`
	Type string `json:"type"`
	Idx  int    `json:"index"`
}

type graph struct {
	Name        string                               `json:"name"`
	Nodes       []node                               `json:"nodes"`
	Connections map[string]map[string][][]connTarget `json:"connections"`
	Settings    map[string]any                       `json:"settings"`
}

func buildGraph(spec Spec) graph {
	triggerName := "Webhook"
	respondName := "Respond"

	nodes := []node{{
		Name: triggerName,
		Type: "webhook",
		Parameters: map[string]any{
			"path":         spec.TriggerPath,
			"httpMethod":   "POST",
			"responseMode": "responseNode",
		},
		Position: [2]int{0, 0},
	}}

	names := make([]string, 0, len(spec.Steps))
	for i, step := range spec.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("Step %d", i+1)
		}
		names = append(names, name)

		params := map[string]any{
			"method": step.Method,
			"url":    step.URL,
		}
		if len(step.Headers) > 0 {
			params["headers"] = step.Headers
		}
		if step.BodyTemplate != "" {
			params["body"] = step.BodyTemplate
		}
		nodes = append(nodes, node{
			Name:       name,
			Type:       "httpRequest",
			Parameters: params,
			Position:   [2]int{220 * (i + 1), 0},
		})
	}

	nodes = append(nodes, node{
		Name:       respondName,
		Type:       "respondToWebhook",
		Parameters: map[string]any{},
		Position:   [2]int{220 * (len(spec.Steps) + 1), 0},
	})

	chain := append([]string{triggerName}, names...)
	chain = append(chain, respondName)

	conns := make(map[string]map[string][][]connTarget, len(chain)-1)
	for i := 0; i < len(chain)-1; i++ {
		conns[chain[i]] = map[string][][]connTarget{
			"main": {{{Node: chain[i+1], Type: "main", Idx: 0}}},
		}
	}

	return graph{
		Name:        spec.Name,
		Nodes:       nodes,
		Connections: conns,
		Settings:    map[string]any{},
	}
}
