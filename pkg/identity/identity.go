// Package identity maps gallery keys to display names.
//
// Faces are indexed under an external id (usually the seed image's object
// key). The lookup turns that key into the name shown to operators.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Placeholder is shown for gallery keys with no mapping.
const Placeholder = "Person"

// Lookup resolves an external id to a display name.
type Lookup interface {
	Lookup(externalID string) string
}

// Func adapts a plain function to Lookup.
type Func func(externalID string) string

// Lookup implements Lookup.
func (f Func) Lookup(externalID string) string { return f(externalID) }

// Static is a fixed table of external id to display name.
// The zero value maps everything to Placeholder.
type Static struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewStatic creates a table from names. The map is copied.
func NewStatic(names map[string]string) *Static {
	s := &Static{names: make(map[string]string, len(names))}
	for k, v := range names {
		s.names[k] = v
	}
	return s
}

// Lookup implements Lookup.
func (s *Static) Lookup(externalID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.names[externalID]; ok && name != "" {
		return name
	}
	return Placeholder
}

// Set adds or replaces a mapping, e.g. after indexing a new face.
func (s *Static) Set(externalID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil {
		s.names = make(map[string]string)
	}
	s.names[externalID] = name
}

// Len returns the number of mappings.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// LoadFile reads a JSON object of {"external id": "display name"}.
// An empty path yields an empty table.
func LoadFile(path string) (*Static, error) {
	if path == "" {
		return NewStatic(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identities: %w", err)
	}

	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse identities %s: %w", path, err)
	}
	return NewStatic(names), nil
}
