// Package intake implements the alert admission, dedup, and dispatch
// pipeline: incident-level dedup, per-service serialization, a global
// concurrency cap, priority-aware ordering, and TTL-based staleness
// expiry. All mutable state lives behind a single mutex; the
// completion callback of a finished run is the only re-dispatch hook
// — there is no background scanner.
package intake

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/runtimestate"
)

// Disposition is the outcome of a Submit call.
type Disposition string

const (
	Dispatched   Disposition = "dispatched"
	Queued       Disposition = "queued"
	Deduplicated Disposition = "deduplicated"
	Rejected     Disposition = "rejected"
)

// shutdownJoinTimeout bounds how long Shutdown waits for outstanding
// agent runs before giving up and logging them as abandoned.
const shutdownJoinTimeout = 30 * time.Second

// ProcessFunc runs the agentic diagnostic loop for one admitted alert.
// It must not panic; the pipeline does not recover from it.
type ProcessFunc func(ctx context.Context, a alert.Alert, traceID string)

// Pipeline is the intake pipeline (component C). Zero value is not
// usable; construct with New.
type Pipeline struct {
	processFn     ProcessFunc
	state         *runtimestate.State
	maxConcurrent int
	queueTTL      time.Duration
	logger        *slog.Logger

	mu             sync.Mutex
	knownIncidents map[string]struct{}
	activeServices map[string]string // service_name -> incident_id
	activeCount    int
	queue          priorityQueue
	shuttingDown   bool
	outstanding    int // count of tasks not yet joined, for shutdown logging

	wg sync.WaitGroup
}

// Config bundles the tunables the pipeline needs at construction.
type Config struct {
	MaxConcurrent int
	QueueTTL      time.Duration
}

// New constructs a Pipeline. processFn is invoked once per dispatched
// alert, exactly once, from its own goroutine.
func New(cfg Config, processFn ProcessFunc, state *runtimestate.State, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		processFn:      processFn,
		state:          state,
		maxConcurrent:  cfg.MaxConcurrent,
		queueTTL:       cfg.QueueTTL,
		logger:         logger,
		knownIncidents: make(map[string]struct{}),
		activeServices: make(map[string]string),
	}
}

// Submit admits an alert for processing. See component C's contract in
// the design document for the exact disposition semantics.
func (p *Pipeline) Submit(a alert.Alert, traceID string) Disposition {
	p.mu.Lock()

	if p.shuttingDown {
		p.mu.Unlock()
		return Rejected
	}

	if _, known := p.knownIncidents[a.IncidentID]; known {
		p.mu.Unlock()
		p.logger.Info("deduplicated", "incident_id", a.IncidentID, "trace_id", traceID)
		p.state.IncAlertsDeduplicated()
		return Deduplicated
	}

	p.knownIncidents[a.IncidentID] = struct{}{}

	_, serviceBusy := p.activeServices[a.ServiceName]
	canDispatch := !serviceBusy && p.activeCount < p.maxConcurrent

	if canDispatch {
		p.activeCount++
		p.activeServices[a.ServiceName] = a.IncidentID
		p.mu.Unlock()

		p.state.RecordIncidentStarted(a.IncidentID)
		p.startRun(a, traceID)
		return Dispatched
	}

	item := &queuedAlert{
		alert:        a,
		traceID:      traceID,
		enqueuedAt:   time.Now(),
		priorityRank: a.Priority.Rank(),
	}
	heap.Push(&p.queue, item)
	depth := len(p.queue)
	p.mu.Unlock()

	p.state.IncAlertsQueued()
	p.logger.Info("queued",
		"incident_id", a.IncidentID,
		"service_name", a.ServiceName,
		"priority", a.Priority,
		"queue_depth", depth,
		"trace_id", traceID,
	)
	return Queued
}

// startRun launches the run task. Caller must not hold p.mu.
func (p *Pipeline) startRun(a alert.Alert, traceID string) {
	p.mu.Lock()
	p.outstanding++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.onComplete(a)
		p.processFn(context.Background(), a, traceID)
	}()
}

// onComplete is the re-dispatch hook: it runs after every task exit
// path, regardless of success or failure.
func (p *Pipeline) onComplete(a alert.Alert) {
	p.mu.Lock()
	p.activeCount--
	p.outstanding--
	delete(p.knownIncidents, a.IncidentID)
	delete(p.activeServices, a.ServiceName)

	var elected *queuedAlert
	if !p.shuttingDown {
		elected = p.dispatchNextLocked()
	}
	p.mu.Unlock()

	p.state.RecordIncidentFinished(a.IncidentID)

	if elected != nil {
		p.state.RecordIncidentStarted(elected.alert.IncidentID)
		p.startRun(elected.alert, elected.traceID)
	}
}

// dispatchNextLocked scans the heap for the highest-priority alert
// whose service has no active run, expiring stale entries along the
// way. Caller must hold p.mu. Returns the elected candidate, if any,
// without starting its run (the caller must do that outside the lock).
func (p *Pipeline) dispatchNextLocked() *queuedAlert {
	if len(p.queue) == 0 || p.activeCount >= p.maxConcurrent {
		return nil
	}

	now := time.Now()
	var elected *queuedAlert
	var remaining []*queuedAlert

	for len(p.queue) > 0 {
		candidate := heap.Pop(&p.queue).(*queuedAlert)

		age := now.Sub(candidate.enqueuedAt)
		if age > p.queueTTL {
			delete(p.knownIncidents, candidate.alert.IncidentID)
			p.state.IncAlertsExpired()
			p.logger.Info("expired",
				"incident_id", candidate.alert.IncidentID,
				"age_seconds", age.Seconds(),
				"ttl_seconds", p.queueTTL.Seconds(),
				"trace_id", candidate.traceID,
			)
			continue
		}

		if elected == nil {
			if _, busy := p.activeServices[candidate.alert.ServiceName]; !busy {
				elected = candidate
				continue
			}
		}

		remaining = append(remaining, candidate)
	}

	p.queue = remaining
	heap.Init(&p.queue)

	if elected != nil {
		p.state.DecQueueDepth()
		p.activeCount++
		p.activeServices[elected.alert.ServiceName] = elected.alert.IncidentID
	}

	return elected
}

// Shutdown stops admitting new alerts, purges the queue, and waits on
// outstanding runs up to a bounded timeout.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	p.shuttingDown = true
	discarded := len(p.queue)
	for _, item := range p.queue {
		delete(p.knownIncidents, item.alert.IncidentID)
		p.state.DecQueueDepth()
	}
	p.queue = nil
	outstanding := p.outstanding
	p.mu.Unlock()

	if discarded > 0 {
		p.logger.Info("shutdown: discarded queued alerts", "count", discarded)
	}

	if outstanding == 0 {
		return
	}

	p.logger.Info("shutdown: waiting for active runs", "count", outstanding)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownJoinTimeout):
		p.mu.Lock()
		remaining := p.outstanding
		p.mu.Unlock()
		p.logger.Warn("shutdown: runs did not complete within timeout", "count", remaining)
	}
}

// QueueDepth returns the current number of alerts waiting in the queue.
func (p *Pipeline) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ActiveCount returns the current number of alerts actively being
// processed.
func (p *Pipeline) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeCount
}
