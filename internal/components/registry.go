// Package components tracks the last known status of each collaborator
// subsystem observed by the tracker.
package components

import (
	"strings"
	"sync"
	"time"
)

// Status is a component's coarse health.
type Status string

const (
	StatusStandby Status = "standby"
	StatusActive  Status = "active"
	StatusError   Status = "error"
)

// Entry is a snapshot of one component.
type Entry struct {
	Status    Status     `json:"status"`
	LastCheck *time.Time `json:"lastCheck"`
	LastEvent string     `json:"lastEvent,omitempty"`
	Waiting   bool       `json:"waiting"`
}

// Registry holds entries for a fixed set of tracked components.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
}

// NewRegistry tracks names in the given order. Blank and duplicate names are ignored.
func NewRegistry(names []string) *Registry {
	r := &Registry{entries: make(map[string]*Entry, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.entries[name]; ok {
			continue
		}
		r.order = append(r.order, name)
		r.entries[name] = &Entry{Status: StatusStandby}
	}
	return r
}

// Names returns tracked component names in configuration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Reset overwrites every entry. A nil lastCheck clears the timestamp.
func (r *Registry) Reset(status Status, waiting bool, lastCheck *time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		entry.Status = status
		entry.Waiting = waiting
		entry.LastCheck = copyTime(lastCheck)
	}
}

// Observe records activity attributed to component. Untracked names are ignored.
func (r *Registry) Observe(component, event string, at time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[component]
	if !ok {
		return
	}
	entry.LastCheck = &at
	entry.LastEvent = event
}

// MarkError flags component as failing.
func (r *Registry) MarkError(component string) {
	r.setStatus(component, func(Status) Status { return StatusError })
}

// ClearError returns a failing component to active; other states are kept.
func (r *Registry) ClearError(component string) {
	r.setStatus(component, func(current Status) Status {
		if current == StatusError {
			return StatusActive
		}
		return current
	})
}

func (r *Registry) setStatus(component string, next func(Status) Status) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[component]; ok {
		entry.Status = next(entry.Status)
	}
}

// Get returns a copy of one entry.
func (r *Registry) Get(component string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[component]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(entry), true
}

// Snapshot returns copies of all entries keyed by name.
func (r *Registry) Snapshot() map[string]Entry {
	if r == nil {
		return map[string]Entry{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.entries))
	for name, entry := range r.entries {
		out[name] = copyEntry(entry)
	}
	return out
}

func copyEntry(entry *Entry) Entry {
	out := *entry
	out.LastCheck = copyTime(entry.LastCheck)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
