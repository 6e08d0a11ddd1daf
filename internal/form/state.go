// Package form holds per-session form values, their validation and the
// session lifecycle around them.
package form

import (
	"strings"
	"sync"

	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	"github.com/a3tai/mcp-form-filler/internal/fields"
)

// State holds the current field values of one editing session
type State struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewState creates an empty form state
func NewState() *State {
	return &State{values: make(map[string]string)}
}

// Set stores the value for key
func (s *State) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// SetAll stores several values at once
func (s *State) SetAll(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
}

// Get returns the stored value for key
func (s *State) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Reset clears every value
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
}

// Snapshot returns an immutable copy of the current values
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return Snapshot{values: values}
}

// Snapshot is a point-in-time copy of form values
type Snapshot struct {
	values map[string]string
}

// NewSnapshot builds a snapshot directly from values
func NewSnapshot(values map[string]string) Snapshot {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Snapshot{values: cp}
}

// Value returns the raw stored value for key
func (s Snapshot) Value(key string) string {
	return s.values[key]
}

// Values returns a copy of all stored values
func (s Snapshot) Values() map[string]string {
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// Resolve returns the value a descriptor displays. Derived fields show the
// current value of their source field instead of their own.
func (s Snapshot) Resolve(d fields.Descriptor) string {
	if d.IsDerived() {
		return s.values[d.DerivedFrom]
	}
	return s.values[d.Key]
}

// Complete reports whether every required, visible, non-signature field has
// a non-blank value. Signatures are checked by SignatureComplete.
func (s Snapshot) Complete(reg *fields.Registry) bool {
	for _, d := range reg.Fields() {
		if !d.Required || d.Hidden || d.IsSignature() {
			continue
		}
		if strings.TrimSpace(s.Resolve(d)) == "" {
			return false
		}
	}
	return true
}

// SignatureComplete reports whether every required signature holds an image
func (s Snapshot) SignatureComplete(reg *fields.Registry) bool {
	for _, d := range reg.Signatures() {
		if d.Required && !dataurl.IsImage(s.values[d.Key]) {
			return false
		}
	}
	return true
}
