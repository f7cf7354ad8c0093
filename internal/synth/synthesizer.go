// Package synth turns declarative capability specs into executable,
// crash-isolated handlers. Handler source is a Lua chunk that must define
// a global function handler(args); it runs in an interpreter that sees
// only the trusted agent module — no os, io, network, or process access.
package synth

import (
	"context"
	"fmt"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/voxloop/voxloop/internal/registry"
)

// ParamSpec is one named field of a capability's parameter schema.
type ParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// CapabilitySpec is a capability whose handler is supplied as source text
// rather than a bound function.
type CapabilitySpec struct {
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	ParameterSchema map[string]ParamSpec `json:"parameterSchema"`
	HandlerSource   string               `json:"handlerSource"`
}

// Parameters flattens the schema into a stable, name-sorted list.
func (s CapabilitySpec) Parameters() []registry.Parameter {
	names := make([]string, 0, len(s.ParameterSchema))
	for name := range s.ParameterSchema {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]registry.Parameter, 0, len(names))
	for _, name := range names {
		p := s.ParameterSchema[name]
		params = append(params, registry.Parameter{
			Name:        name,
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required,
		})
	}
	return params
}

type Synthesizer struct {
	tc  Context
	now func() time.Time
}

func New(tc Context) *Synthesizer {
	return &Synthesizer{tc: tc, now: time.Now}
}

// Compile validates the handler source and returns a registry definition
// whose handler runs the chunk in a fresh sandboxed interpreter per call.
func (s *Synthesizer) Compile(spec CapabilitySpec) (registry.Definition, error) {
	if spec.Name == "" {
		return registry.Definition{}, fmt.Errorf("capability spec missing name")
	}
	if spec.HandlerSource == "" {
		return registry.Definition{}, fmt.Errorf("capability %q missing handler source", spec.Name)
	}
	if err := s.validate(spec.HandlerSource); err != nil {
		return registry.Definition{}, fmt.Errorf("capability %q: %w", spec.Name, err)
	}

	source := spec.HandlerSource
	return registry.Definition{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  spec.Parameters(),
		Handler:     s.handlerFor(source),
		CreatedAt:   s.now(),
		Origin:      registry.OriginSynthesized,
	}, nil
}

func (s *Synthesizer) validate(source string) error {
	lState, err := s.newState(context.Background())
	if err != nil {
		return err
	}
	defer lState.Close()

	if err := lState.DoString(source); err != nil {
		return fmt.Errorf("load handler source: %w", err)
	}
	fn := lState.GetGlobal("handler")
	if fn.Type() != lua.LTFunction {
		return fmt.Errorf("handler source must define global function handler(args), got %s", fn.Type().String())
	}
	return nil
}

func (s *Synthesizer) handlerFor(source string) registry.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		// Fresh interpreter per call: no state leaks between invocations.
		lState, err := s.newState(ctx)
		if err != nil {
			return "", err
		}
		defer lState.Close()

		if err := lState.DoString(source); err != nil {
			return "", fmt.Errorf("load handler source: %w", err)
		}
		fn := lState.GetGlobal("handler")
		if fn.Type() != lua.LTFunction {
			return "", fmt.Errorf("handler is not a function")
		}

		lState.Push(fn)
		lState.Push(goToLua(lState, args))
		if err := lState.PCall(1, 1, nil); err != nil {
			return "", fmt.Errorf("handler(): %w", err)
		}

		ret := lState.Get(-1)
		lState.Pop(1)
		switch ret.Type() {
		case lua.LTString:
			return ret.String(), nil
		case lua.LTNumber:
			return ret.String(), nil
		default:
			return "", fmt.Errorf("handler() must return a string, got %s", ret.Type().String())
		}
	}
}

// sandboxLibs is the closed set of Lua standard libraries handlers may use.
// os, io, and debug stay out.
var sandboxLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage},
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

func (s *Synthesizer) newState(ctx context.Context) (*lua.LState, error) {
	lState := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range sandboxLibs {
		if err := lState.CallByParam(lua.P{
			Fn:      lState.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			lState.Close()
			return nil, fmt.Errorf("open lua lib %s: %w", lib.name, err)
		}
	}
	lState.PreloadModule("agent", s.agentLoader(ctx))
	return lState, nil
}
