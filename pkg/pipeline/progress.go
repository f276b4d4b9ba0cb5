package pipeline

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/google/uuid"
)

// Run phases surfaced to the status endpoint.
const (
	PhaseBriefPrefetch = "brief_prefetch"
	PhaseWriting       = "writing"
	PhaseComplete      = "complete"
	PhaseFailed        = "failed"
)

// Snapshot is one project's live run progress. It is transient by design;
// durable state lives on the job row and the page rows.
type Snapshot struct {
	Phase         string    `json:"phase"`
	TotalPages    int       `json:"total_pages"`
	BriefsFetched int       `json:"briefs_fetched"`
	Processed     int       `json:"processed"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Tracker keeps per-project progress snapshots with a TTL so a finished
// run's counters stay readable for a while and then age out on their own.
type Tracker struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{cache: gocache.New(ttl, 2*ttl)}
}

// Set replaces the project's snapshot.
func (t *Tracker) Set(projectID uuid.UUID, snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap.UpdatedAt = time.Now()
	t.cache.Set(projectID.String(), snap, gocache.DefaultExpiration)
}

// Update applies a mutation to the current snapshot (zero value if none)
// under the tracker lock, so concurrent page workers can bump counters.
func (t *Tracker) Update(projectID uuid.UUID, apply func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var snap Snapshot
	if v, ok := t.cache.Get(projectID.String()); ok {
		snap = v.(Snapshot)
	}
	apply(&snap)
	snap.UpdatedAt = time.Now()
	t.cache.Set(projectID.String(), snap, gocache.DefaultExpiration)
}

// Get returns the project's snapshot if one is still live.
func (t *Tracker) Get(projectID uuid.UUID) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.cache.Get(projectID.String())
	if !ok {
		return Snapshot{}, false
	}
	return v.(Snapshot), true
}

// Clear drops the project's snapshot immediately.
func (t *Tracker) Clear(projectID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Delete(projectID.String())
}
