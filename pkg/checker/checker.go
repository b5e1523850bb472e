// Package checker runs the asynchronous health-check pipeline:
// reset the population to "testing", partition it into fixed-size
// batches, probe each batch against the health oracle with bounded
// parallelism, and persist outcomes per batch as they complete.
package checker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/db/models"
	"github.com/F4txhr/pla/pkg/probe"
	"github.com/F4txhr/pla/pkg/redis"
	"github.com/F4txhr/pla/pkg/utils"
)

// EventsChannel is the Redis Pub/Sub channel carrying check progress.
const EventsChannel = "pla:check:events"

// Event is one progress notification, streamed to dashboard clients.
type Event struct {
	Type      string    `json:"type"` // check.started, batch.completed, check.finished
	RunID     string    `json:"run_id"`
	Batch     int       `json:"batch,omitempty"`
	Processed int       `json:"processed,omitempty"`
	Online    int       `json:"online,omitempty"`
	Offline   int       `json:"offline,omitempty"`
	Scheduled int       `json:"scheduled,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config bounds the pipeline.
type Config struct {
	// BatchSize is the maximum number of proxies probed as one unit.
	BatchSize int
	// Parallelism is how many batches are in flight at once.
	Parallelism int
	// StaleAfter is how long a record may sit at "testing" before the
	// reconciler treats its batch as lost and writes it off as offline.
	StaleAfter time.Duration
}

// ConfigFromEnv reads CHECK_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		BatchSize:   utils.EnvInt("CHECK_BATCH_SIZE", 25),
		Parallelism: utils.EnvInt("CHECK_PARALLELISM", 4),
		StaleAfter:  utils.EnvDuration("CHECK_STALE_AFTER", 10*time.Minute),
	}
}

// Checker owns the check pipeline. The record store is the only shared
// mutable resource; all writes to it are bulk writes.
type Checker struct {
	store  db.Store
	prober *probe.Prober
	events *redis.Client // optional; nil disables progress events
	logger *zap.Logger
	cfg    Config

	runs *xsync.Map[string, *Run]
}

// New creates a checker. events may be nil.
func New(store db.Store, prober *probe.Prober, events *redis.Client, cfg Config, logger *zap.Logger) *Checker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	return &Checker{
		store:  store,
		prober: prober,
		events: events,
		logger: logger,
		cfg:    cfg,
		runs:   xsync.NewMap[string, *Run](),
	}
}

// Trigger starts a full check cycle. It loads the entire population,
// resets it to "testing" in one bulk write, then hands the batches to a
// detached background dispatch and returns the number of records
// scheduled. An empty population returns (0, nil) with nothing mutated.
// Load and reset failures abort the cycle before any probing starts.
func (c *Checker) Trigger(ctx context.Context) (int, error) {
	population, err := c.store.AllProxies(ctx)
	if err != nil {
		return 0, fmt.Errorf("load proxy population: %w", err)
	}
	if len(population) == 0 {
		c.logger.Info("Check trigger: no proxies to check")
		return 0, nil
	}

	if err := c.store.ResetForCheck(ctx, population); err != nil {
		return 0, fmt.Errorf("reset proxies: %w", err)
	}
	if err := c.store.SetMeta(ctx, models.MetaKeyLastUpdated, time.Now().UTC().Format(time.RFC3339)); err != nil {
		c.logger.Warn("Failed to update last-updated metadata", zap.Error(err))
	}

	batches := Partition(population, c.cfg.BatchSize)
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Scheduled: len(population),
		Batches:   len(batches),
	}
	c.rememberRun(run)

	c.logger.Info("Check cycle dispatched",
		zap.String("run_id", run.ID),
		zap.Int("scheduled", run.Scheduled),
		zap.Int("batches", run.Batches),
		zap.Int("batch_size", c.cfg.BatchSize),
		zap.Int("parallelism", c.cfg.Parallelism))

	c.publish(ctx, Event{
		Type:      "check.started",
		RunID:     run.ID,
		Scheduled: run.Scheduled,
		Timestamp: run.StartedAt,
	})

	// The trigger's HTTP response must not wait for probing, and the
	// dispatch must survive the request context being cancelled.
	bg := context.WithoutCancel(ctx)
	go c.dispatch(bg, run, batches)

	return len(population), nil
}

// dispatch processes batches on a bounded pool: at most Parallelism
// batches in flight, each persisted as soon as it completes. Batch
// failures are counted and logged, never propagated; the trigger has
// already answered its caller.
func (c *Checker) dispatch(ctx context.Context, run *Run, batches [][]*models.Proxy) {
	pool := pond.NewPool(c.cfg.Parallelism)
	group := pool.NewGroup()

	for idx, batch := range batches {
		idx, batch := idx, batch
		group.Submit(func() {
			c.runBatch(ctx, run, idx, batch)
		})
	}
	_ = group.Wait()
	pool.StopAndWait()

	run.finish()
	st := run.Snapshot()
	c.logger.Info("Check cycle finished",
		zap.String("run_id", run.ID),
		zap.Int64("processed", st.Processed),
		zap.Int64("online", st.Online),
		zap.Int64("offline", st.Offline),
		zap.Int64("failed_batches", st.FailedBatches))

	c.publish(ctx, Event{
		Type:      "check.finished",
		RunID:     run.ID,
		Processed: int(st.Processed),
		Online:    int(st.Online),
		Offline:   int(st.Offline),
		Timestamp: time.Now().UTC(),
	})
}

func (c *Checker) runBatch(ctx context.Context, run *Run, idx int, batch []*models.Proxy) {
	updates, online, offline := c.probeBatch(ctx, batch)

	if err := c.store.WriteOutcomes(ctx, updates); err != nil {
		run.recordFailedBatch()
		c.logger.Error("Failed to persist batch outcomes",
			zap.String("run_id", run.ID),
			zap.Int("batch", idx),
			zap.Int("size", len(batch)),
			zap.Error(err))
		return
	}

	run.recordBatch(online, offline)
	c.publish(ctx, Event{
		Type:      "batch.completed",
		RunID:     run.ID,
		Batch:     idx,
		Processed: len(batch),
		Online:    online,
		Offline:   offline,
		Timestamp: time.Now().UTC(),
	})
}

// CheckBatch probes the given records synchronously and persists their
// outcomes, one bulk write for the whole batch. Used by the batch-check
// endpoint; the async pipeline goes through Trigger instead.
func (c *Checker) CheckBatch(ctx context.Context, batch []*models.Proxy) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	updates, _, _ := c.probeBatch(ctx, batch)
	if err := c.store.WriteOutcomes(ctx, updates); err != nil {
		return 0, fmt.Errorf("persist batch outcomes: %w", err)
	}
	return len(updates), nil
}

// probeBatch probes one batch and folds outcomes into record updates,
// matching by proxy id.
func (c *Checker) probeBatch(ctx context.Context, batch []*models.Proxy) (updates []*models.Proxy, online, offline int) {
	outcomes := c.prober.Probe(ctx, batch)

	byID := make(map[string]probe.Outcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.ProxyID] = o
	}

	now := time.Now().UTC()
	updates = make([]*models.Proxy, 0, len(batch))
	for _, p := range batch {
		update := *p
		update.LastChecked = &now

		o, ok := byID[p.ID]
		if ok && o.Success {
			update.Status = models.StatusOnline
			update.LatencyMs = o.LatencyMs
			online++
		} else {
			update.Status = models.StatusOffline
			update.LatencyMs = 0
			offline++
		}
		updates = append(updates, &update)
	}
	return updates, online, offline
}

// ReconcileStale writes off records stuck at "testing" longer than
// StaleAfter as offline. A batch whose dispatch died before persisting
// would otherwise leave its records in-flight forever.
func (c *Checker) ReconcileStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-c.cfg.StaleAfter)
	stale, err := c.store.StaleTesting(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("load stale records: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	updates := make([]*models.Proxy, 0, len(stale))
	for _, p := range stale {
		update := *p
		update.Status = models.StatusOffline
		update.LatencyMs = 0
		updates = append(updates, &update)
	}
	if err := c.store.WriteOutcomes(ctx, updates); err != nil {
		return 0, fmt.Errorf("persist stale reconciliation: %w", err)
	}

	c.logger.Warn("Reconciled stale testing records to offline",
		zap.Int("count", len(updates)),
		zap.Duration("stale_after", c.cfg.StaleAfter))
	return len(updates), nil
}

// Status returns snapshots of recent runs, newest first.
func (c *Checker) Status() []RunStatus {
	var out []RunStatus
	c.runs.Range(func(_ string, run *Run) bool {
		out = append(out, run.Snapshot())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// rememberRun stores the run and drops completed runs older than a day.
func (c *Checker) rememberRun(run *Run) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	c.runs.Range(func(id string, r *Run) bool {
		if r.done.Load() && r.StartedAt.Before(cutoff) {
			c.runs.Delete(id)
		}
		return true
	})
	c.runs.Store(run.ID, run)
}

func (c *Checker) publish(ctx context.Context, ev Event) {
	if c.events == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.events.Publish(ctx, EventsChannel, payload)
}

// Partition slices records into contiguous batches of at most size
// elements, preserving input order. Concatenating the batches in order
// reconstructs the input exactly.
func Partition(records []*models.Proxy, size int) [][]*models.Proxy {
	if size <= 0 {
		size = 25
	}
	var batches [][]*models.Proxy
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
