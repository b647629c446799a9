package job

import "sync"

// Registry tracks which jobs are currently being processed. It is the single
// same-job concurrency guard: two invocations of the same job collapse into
// one, while different jobs run freely in parallel.
//
// The registry is process-local. A horizontally scaled deployment would need
// to move this guard into the datastore (an advisory lock keyed by job ID);
// that gap is deliberate and documented rather than papered over here.
type Registry struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewRegistry returns an empty registry. Each Processor owns one; sharing a
// registry across processors extends the guard across them.
func NewRegistry() *Registry {
	return &Registry{running: make(map[string]struct{})}
}

// TryAcquire marks the job as running. It returns false when the job is
// already in flight.
func (r *Registry) TryAcquire(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[jobID]; ok {
		return false
	}
	r.running[jobID] = struct{}{}
	return true
}

// Release removes the job from the running set.
func (r *Registry) Release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, jobID)
}

// IsRunning reports whether the job is currently in flight.
func (r *Registry) IsRunning(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[jobID]
	return ok
}

// Count returns the number of jobs in flight.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
