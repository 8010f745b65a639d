package agentbackend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Backend from provider settings. The "model" key selects
// the concrete model when one provider serves a whole fallback chain.
type Factory func(config map[string]string) (Backend, error)

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var providers = registry{factories: make(map[string]Factory)}

// Register adds a provider factory under name. Registering the same name
// twice is a programming error and panics.
func Register(name string, factory Factory) {
	providers.mu.Lock()
	defer providers.mu.Unlock()

	if _, dup := providers.factories[name]; dup {
		panic(fmt.Sprintf("agentbackend: duplicate registration for %q", name))
	}
	providers.factories[name] = factory
}

// New builds a Backend from the named provider.
func New(name string, config map[string]string) (Backend, error) {
	providers.mu.RLock()
	factory, ok := providers.factories[name]
	providers.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("agentbackend: unknown provider %q", name)
	}
	return factory(config)
}

// Available lists registered provider names, sorted.
func Available() []string {
	providers.mu.RLock()
	defer providers.mu.RUnlock()

	names := make([]string, 0, len(providers.factories))
	for name := range providers.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
