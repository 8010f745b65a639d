// Package secrets holds the credentials for outbound services, the LLM
// proxy master key and the ops-data API key, behind a reloadable vault so
// rotated keys can be picked up without a restart.
package secrets

import (
	"fmt"
	"sync"
)

// Loader fetches the current secret set from its source.
type Loader func() (map[string]string, error)

// Vault is an in-memory secret store safe for concurrent readers. Reload
// swaps the whole set at once; readers never observe a partial update.
type Vault struct {
	mu     sync.RWMutex
	loader Loader
	values map[string]string
}

// NewVault runs the loader once and fails if that first load errors.
func NewVault(loader Loader) (*Vault, error) {
	values, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{loader: loader, values: values}, nil
}

// Get returns the value for key, or "" when the key is unknown.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Reload re-runs the loader. On loader error the vault keeps serving the
// previous values.
func (v *Vault) Reload() error {
	values, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = values
	v.mu.Unlock()
	return nil
}
