package synth

import "github.com/voxloop/voxloop/internal/registry"

// SmokeArgs builds synthetic arguments for a freshly synthesized
// capability's one-shot self-test: a filler string for string-typed
// fields, zero for numeric fields, false for booleans.
func SmokeArgs(params []registry.Parameter) map[string]any {
	args := make(map[string]any, len(params))
	for _, p := range params {
		switch p.Type {
		case "number", "integer":
			args[p.Name] = float64(0)
		case "boolean":
			args[p.Name] = false
		default:
			args[p.Name] = "test"
		}
	}
	return args
}
