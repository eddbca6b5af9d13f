package upstream

import (
	"sync"
	"time"

	"github.com/etapaper/etapaper/internal/transit"
)

// Health is a point-in-time view of one operator's upstream API.
type Health struct {
	Company       transit.Company `json:"company"`
	Requests      int64           `json:"requests"`
	Failures      int64           `json:"failures"`
	LastSuccessAt *time.Time      `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time      `json:"last_failure_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// Healthy reports whether the most recent call to the operator succeeded.
func (h Health) Healthy() bool {
	if h.LastFailureAt == nil {
		return true
	}
	return h.LastSuccessAt != nil && !h.LastSuccessAt.Before(*h.LastFailureAt)
}

// Registry tracks per-operator request outcomes. The government APIs fail
// independently of each other, so health is recorded per Company even when
// the operators share one HTTP client.
type Registry struct {
	mu      sync.RWMutex
	entries map[transit.Company]*Health
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[transit.Company]*Health)}
}

// RecordSuccess records a successful upstream call for the operator.
func (r *Registry) RecordSuccess(c transit.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(c)
	now := time.Now()
	e.Requests++
	e.LastSuccessAt = &now
}

// RecordFailure records a failed upstream call for the operator.
func (r *Registry) RecordFailure(c transit.Company, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(c)
	now := time.Now()
	e.Requests++
	e.Failures++
	e.LastFailureAt = &now
	if err != nil {
		e.LastError = err.Error()
	}
}

// Snapshot returns the health of every supported operator, in stable order.
// Operators that have not been called yet appear with zero counters.
func (r *Registry) Snapshot() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(transit.Companies()))
	for _, c := range transit.Companies() {
		if e, ok := r.entries[c]; ok {
			out = append(out, *e)
			continue
		}
		out = append(out, Health{Company: c})
	}
	return out
}

func (r *Registry) entry(c transit.Company) *Health {
	e, ok := r.entries[c]
	if !ok {
		e = &Health{Company: c}
		r.entries[c] = e
	}
	return e
}
