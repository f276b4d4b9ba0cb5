package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the process-local at-most-one guard for pipeline runs. An
// entry exists while a project's run is in flight; entries are lost on
// restart, which is fine because the recovery sweep owns crashed runs.
type Registry struct {
	mu     sync.Mutex
	active map[uuid.UUID]time.Time
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[uuid.UUID]time.Time)}
}

// TryAcquire claims the project's run slot. It returns false without
// blocking when a run is already active.
func (r *Registry) TryAcquire(projectID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[projectID]; ok {
		return false
	}
	r.active[projectID] = time.Now()
	return true
}

// Release frees the project's run slot. Releasing an unheld slot is a no-op
// so cleanup paths can call it unconditionally.
func (r *Registry) Release(projectID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, projectID)
}

// Active reports whether a run is in flight for the project.
func (r *Registry) Active(projectID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[projectID]
	return ok
}

// Len returns the number of in-flight runs. Shutdown polls this to drain.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
