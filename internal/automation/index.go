package automation

import "sync"

// Index is the in-process view of deployed automations, keyed by name.
// The trusted synthesis context uses it to resolve trigger_automation
// calls to endpoints.
type Index struct {
	mu     sync.RWMutex
	byName map[string]Deployment
	order  []string
}

func NewIndex() *Index {
	return &Index{byName: make(map[string]Deployment)}
}

func (i *Index) Add(dep Deployment) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.byName[dep.Name]; !exists {
		i.order = append(i.order, dep.Name)
	}
	i.byName[dep.Name] = dep
}

func (i *Index) Endpoint(name string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	dep, ok := i.byName[name]
	if !ok || dep.EndpointURL == "" {
		return "", false
	}
	return dep.EndpointURL, true
}

func (i *Index) List() []Deployment {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Deployment, 0, len(i.order))
	for _, name := range i.order {
		out = append(out, i.byName[name])
	}
	return out
}
