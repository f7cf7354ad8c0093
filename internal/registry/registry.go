// Package registry is the keyed store of callable capabilities, seed and
// synthesized. Re-registering a name overwrites the definition in place
// (last-write-wins, no versioning).
package registry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

type Origin string

const (
	OriginSeed        Origin = "seed"
	OriginSynthesized Origin = "synthesized"
)

type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"` // string, number, boolean
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// Handler executes a capability with a flat arguments object matching the
// declared schema and yields the spoken/displayed result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
	Origin      Origin      `json:"origin"`
}

// Registry maps capability names to definitions, preserving insertion
// order for enumeration. The pipeline runner already serializes mutation
// per profile; the mutex only keeps concurrent reads consistent.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

func New() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register inserts or overwrites by name. An overwrite keeps the original
// insertion position.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	} else {
		log.Printf("registry: overwriting capability %q", def.Name)
	}
	r.defs[def.Name] = def
	log.Printf("registry: registered %q (origin=%s)", def.Name, def.Origin)
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// List returns all definitions in insertion order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

func (r *Registry) ListSynthesized() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Definition
	for _, name := range r.order {
		if def := r.defs[name]; def.Origin == OriginSynthesized {
			out = append(out, def)
		}
	}
	return out
}

// ClearSynthesized removes every synthesized entry, leaving seed entries
// untouched. Used by reset.
func (r *Registry) ClearSynthesized() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	removed := 0
	for _, name := range r.order {
		if r.defs[name].Origin == OriginSynthesized {
			delete(r.defs, name)
			removed++
			continue
		}
		kept = append(kept, name)
	}
	r.order = kept
	return removed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Names returns the capability names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) lookupHandler(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("capability %q not found", name)
	}
	if def.Handler == nil {
		return nil, fmt.Errorf("capability %q has no handler", name)
	}
	return def.Handler, nil
}
