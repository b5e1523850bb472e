package checker

import (
	"sync/atomic"
	"time"
)

// Run tracks one check cycle from dispatch to completion. Counters are
// updated concurrently by batch workers; Snapshot gives a consistent-enough
// view for the status endpoint.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Scheduled int       `json:"scheduled"`
	Batches   int       `json:"batches"`

	processed     atomic.Int64
	online        atomic.Int64
	offline       atomic.Int64
	failedBatches atomic.Int64
	done          atomic.Bool
	finishedAt    atomic.Int64 // unix nanos, 0 while running
}

// RunStatus is the JSON shape served by the status endpoint.
type RunStatus struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Done          bool       `json:"done"`
	Scheduled     int        `json:"scheduled"`
	Batches       int        `json:"batches"`
	Processed     int64      `json:"processed"`
	Online        int64      `json:"online"`
	Offline       int64      `json:"offline"`
	FailedBatches int64      `json:"failed_batches"`
}

func (r *Run) recordBatch(online, offline int) {
	r.processed.Add(int64(online + offline))
	r.online.Add(int64(online))
	r.offline.Add(int64(offline))
}

func (r *Run) recordFailedBatch() {
	r.failedBatches.Add(1)
}

func (r *Run) finish() {
	r.finishedAt.Store(time.Now().UTC().UnixNano())
	r.done.Store(true)
}

// Snapshot returns the current counters.
func (r *Run) Snapshot() RunStatus {
	st := RunStatus{
		ID:            r.ID,
		StartedAt:     r.StartedAt,
		Done:          r.done.Load(),
		Scheduled:     r.Scheduled,
		Batches:       r.Batches,
		Processed:     r.processed.Load(),
		Online:        r.online.Load(),
		Offline:       r.offline.Load(),
		FailedBatches: r.failedBatches.Load(),
	}
	if nanos := r.finishedAt.Load(); nanos != 0 {
		t := time.Unix(0, nanos).UTC()
		st.FinishedAt = &t
	}
	return st
}
