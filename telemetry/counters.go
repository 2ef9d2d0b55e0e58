package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter names shared across packages.
const (
	DequeueCalls        = "queue.dequeue.calls"
	DequeueAttempts     = "queue.dequeue.attempts"
	DequeueStale        = "queue.dequeue.stale"
	DequeueRequeued     = "queue.dequeue.requeued"
	DequeueDispatched   = "queue.dequeue.dispatched"
	DequeueKilled       = "queue.dequeue.killswitch"
	QueueRegenerated    = "queue.regenerate.runs"
	AnomalyDuplicate    = "anomaly.duplicate_report"
	AnomalyDuration     = "anomaly.missing_duration"
	AnomalyAlreadyRated = "anomaly.already_rated"
	MatchesReported     = "matches.reported"
	MatchesCreated      = "matches.created"
	TournamentsDone     = "tournaments.done"
	TrophyRuns          = "trophies.runs"
)

// Counters is a set of named monotonic counters kept in process memory. They
// back the admin stats endpoint and are not exported anywhere else.
type Counters struct {
	values sync.Map // string -> *atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) Add(name string, delta int64) {
	if c == nil {
		return
	}
	v, _ := c.values.LoadOrStore(name, new(atomic.Int64))
	v.(*atomic.Int64).Add(delta)
}

func (c *Counters) Inc(name string) {
	c.Add(name, 1)
}

func (c *Counters) Get(name string) int64 {
	if c == nil {
		return 0
	}
	v, ok := c.values.Load(name)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Snapshot copies every counter.
func (c *Counters) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	if c == nil {
		return out
	}
	c.values.Range(func(k, v interface{}) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// Names returns the registered counter names in sorted order.
func (c *Counters) Names() []string {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
