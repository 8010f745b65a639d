// Package opsdata defines the boundary to the operational data store
// (flight, crew, cargo and passenger records). The orchestration core never
// queries it directly; only agent backends consume it when building prompt
// context.
package opsdata

import (
	"context"
	"encoding/json"
)

// Record kinds understood by the ops-data service.
const (
	KindFlight    = "flight"
	KindCrew      = "crew"
	KindCargo     = "cargo"
	KindPassenger = "passenger"
)

// Record is one opaque structured record returned by the service.
type Record struct {
	Kind string          `json:"kind"`
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// Source is the port interface over the operational data service.
type Source interface {
	// Lookup returns one record by kind and key.
	// Returns domain.ErrNotFound when the record does not exist.
	Lookup(ctx context.Context, kind, key string) (*Record, error)

	// Query returns records of one kind matching the given parameters.
	Query(ctx context.Context, kind string, params map[string]string) ([]Record, error)
}
