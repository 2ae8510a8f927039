package gateway

import (
	"sync"
	"time"
)

// Telemetry collects the shallow counters reported by GET /healthz and
// republishes every lifecycle event it receives onto the SSE broadcaster for
// GET /events. Callers in queue, clonepool, and backport push events to it;
// it holds no reference back into those packages.
type Telemetry struct {
	broadcaster *Broadcaster
	startedAt   time.Time

	mu          sync.Mutex
	queueDepth  map[string]int
	leasesInUse map[string]int
}

// NewTelemetry builds a Telemetry. startedAt is recorded at construction
// time for the /healthz uptime field.
func NewTelemetry(startedAt time.Time) *Telemetry {
	return &Telemetry{
		broadcaster: newBroadcaster(),
		startedAt:   startedAt,
		queueDepth:  make(map[string]int),
		leasesInUse: make(map[string]int),
	}
}

// QueueEnqueued records a job entering a repo's FIFO queue and broadcasts it.
func (t *Telemetry) QueueEnqueued(repoKey string, depth int) {
	t.mu.Lock()
	t.queueDepth[repoKey] = depth
	t.mu.Unlock()
	t.broadcaster.send(SSEEvent{Type: EventQueueEnqueued, Payload: QueuePayload{RepoKey: repoKey, Depth: depth}})
}

// QueueStarted records a repo worker beginning to process its head job.
func (t *Telemetry) QueueStarted(repoKey string, depth int) {
	t.mu.Lock()
	t.queueDepth[repoKey] = depth
	t.mu.Unlock()
	t.broadcaster.send(SSEEvent{Type: EventQueueStarted, Payload: QueuePayload{RepoKey: repoKey, Depth: depth}})
}

// QueueFinished records a repo worker completing its head job.
func (t *Telemetry) QueueFinished(repoKey string, depth int) {
	t.mu.Lock()
	if depth <= 0 {
		delete(t.queueDepth, repoKey)
	} else {
		t.queueDepth[repoKey] = depth
	}
	t.mu.Unlock()
	t.broadcaster.send(SSEEvent{Type: EventQueueFinished, Payload: QueuePayload{RepoKey: repoKey, Depth: depth}})
}

// LeaseAcquired records a clone-pool lease handed to a worker.
func (t *Telemetry) LeaseAcquired(repoKey string, inUse int) {
	t.mu.Lock()
	t.leasesInUse[repoKey] = inUse
	t.mu.Unlock()
	t.broadcaster.send(SSEEvent{Type: EventLeaseAcquired, Payload: LeasePayload{RepoKey: repoKey, InUse: inUse}})
}

// LeaseReleased records a clone-pool lease returned to the roster.
func (t *Telemetry) LeaseReleased(repoKey string, inUse int) {
	t.mu.Lock()
	if inUse <= 0 {
		delete(t.leasesInUse, repoKey)
	} else {
		t.leasesInUse[repoKey] = inUse
	}
	t.mu.Unlock()
	t.broadcaster.send(SSEEvent{Type: EventLeaseReleased, Payload: LeasePayload{RepoKey: repoKey, InUse: inUse}})
}

// BackportTransition records a BackportJob state-machine transition.
func (t *Telemetry) BackportTransition(repoKey string, sourcePR int, targetBranch, state, reason string) {
	t.broadcaster.send(SSEEvent{Type: EventBackportTransition, Payload: BackportTransitionPayload{
		RepoKey:      repoKey,
		SourcePR:     sourcePR,
		TargetBranch: targetBranch,
		State:        state,
		Reason:       reason,
	}})
}

// HealthSnapshot is the body of GET /healthz.
type HealthSnapshot struct {
	Status      string         `json:"status"`
	UptimeSecs  float64        `json:"uptime_seconds"`
	QueueDepth  map[string]int `json:"queue_depth,omitempty"`
	LeasesInUse map[string]int `json:"leases_in_use,omitempty"`
}

// Snapshot returns a shallow copy of current counters for /healthz.
func (t *Telemetry) Snapshot() HealthSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	qd := make(map[string]int, len(t.queueDepth))
	for k, v := range t.queueDepth {
		qd[k] = v
	}
	li := make(map[string]int, len(t.leasesInUse))
	for k, v := range t.leasesInUse {
		li[k] = v
	}
	return HealthSnapshot{
		Status:      "ok",
		UptimeSecs:  time.Since(t.startedAt).Seconds(),
		QueueDepth:  qd,
		LeasesInUse: li,
	}
}
