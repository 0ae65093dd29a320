package lifecycle

import "sync"

// intentTracker holds the current run per asset. Starting a run on an asset
// supersedes the previous one; results of runs that are no longer current
// are discarded.
type intentTracker struct {
	mu      sync.Mutex
	current map[string]*Run // asset ID -> run
}

func newIntentTracker() *intentTracker {
	return &intentTracker{current: make(map[string]*Run)}
}

// begin makes r current for its asset and returns the run it replaced.
func (t *intentTracker) begin(r *Run) *Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.current[r.intent.AssetID]
	t.current[r.intent.AssetID] = r
	return prev
}

func (t *intentTracker) isCurrent(r *Run) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[r.intent.AssetID] == r
}

// end forgets r if it is still current.
func (t *intentTracker) end(r *Run) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current[r.intent.AssetID] == r {
		delete(t.current, r.intent.AssetID)
	}
}

// active returns the number of runs in flight.
func (t *intentTracker) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.current)
}
