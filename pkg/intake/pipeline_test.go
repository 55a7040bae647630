package intake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/runtimestate"
)

// controlledProcessor lets tests hold a run open until explicitly
// released, so service-busy / concurrency-cap interleavings can be
// exercised deterministically.
type controlledProcessor struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
}

func newControlledProcessor() *controlledProcessor {
	return &controlledProcessor{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

func (c *controlledProcessor) fn(_ context.Context, a alert.Alert, _ string) {
	c.mu.Lock()
	gate := make(chan struct{})
	c.gates[a.IncidentID] = gate
	c.mu.Unlock()

	c.started <- a.IncidentID
	<-gate
}

func (c *controlledProcessor) release(incidentID string) {
	c.mu.Lock()
	gate := c.gates[incidentID]
	c.mu.Unlock()
	close(gate)
}

func (c *controlledProcessor) awaitStart(t *testing.T, incidentID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case id := <-c.started:
			if id == incidentID {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s to start", incidentID)
		}
	}
}

func newTestPipeline(maxConcurrent int, ttl time.Duration, proc *controlledProcessor) *Pipeline {
	state := runtimestate.New(prometheus.NewRegistry())
	return New(Config{MaxConcurrent: maxConcurrent, QueueTTL: ttl}, proc.fn, state, nil)
}

func mkAlert(id, service string, priority alert.Priority) alert.Alert {
	return alert.Alert{IncidentID: id, ServiceName: service, Priority: priority, Timestamp: time.Now()}
}

// S1 — basic dedup.
func TestDedupBasic(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(3, time.Minute, proc)

	a := mkAlert("inc-1", "api", alert.PriorityP2)
	d1 := p.Submit(a, "t1")
	proc.awaitStart(t, "inc-1")
	d2 := p.Submit(a, "t2")

	assert.Equal(t, Dispatched, d1)
	assert.Equal(t, Deduplicated, d2)

	proc.release("inc-1")
	time.Sleep(50 * time.Millisecond)

	d3 := p.Submit(a, "t3")
	assert.Equal(t, Dispatched, d3)
	proc.awaitStart(t, "inc-1")
	proc.release("inc-1")
}

// S2 — service serialization.
func TestServiceSerialization(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(3, time.Minute, proc)

	d1 := p.Submit(mkAlert("inc-1", "api", ""), "t1")
	proc.awaitStart(t, "inc-1")
	d2 := p.Submit(mkAlert("inc-2", "api", ""), "t2")

	require.Equal(t, Dispatched, d1)
	require.Equal(t, Queued, d2)
	assert.Equal(t, 1, p.ActiveCount())
	assert.Equal(t, 1, p.QueueDepth())

	proc.release("inc-1")
	proc.awaitStart(t, "inc-2")
	proc.release("inc-2")
}

// S3 — global cap.
func TestGlobalConcurrencyCap(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(2, time.Minute, proc)

	d1 := p.Submit(mkAlert("inc-1", "svc-a", ""), "t1")
	proc.awaitStart(t, "inc-1")
	d2 := p.Submit(mkAlert("inc-2", "svc-b", ""), "t2")
	proc.awaitStart(t, "inc-2")
	d3 := p.Submit(mkAlert("inc-3", "svc-c", ""), "t3")

	assert.Equal(t, Dispatched, d1)
	assert.Equal(t, Dispatched, d2)
	assert.Equal(t, Queued, d3)
	assert.Equal(t, 1, p.QueueDepth())
	assert.Equal(t, 2, p.ActiveCount())

	proc.release("inc-1")
	proc.release("inc-2")
	proc.awaitStart(t, "inc-3")
	proc.release("inc-3")
}

// S4 — priority election order.
func TestPriorityOrdering(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(1, time.Minute, proc)

	p.Submit(mkAlert("blocker", "svc-blocker", ""), "t0")
	proc.awaitStart(t, "blocker")

	p.Submit(mkAlert("low", "svc-a", alert.PriorityP4), "t1")
	p.Submit(mkAlert("critical", "svc-b", alert.PriorityP1), "t2")

	proc.release("blocker")
	proc.awaitStart(t, "critical")
	proc.release("critical")

	proc.awaitStart(t, "low")
	proc.release("low")
}

// S5 — FIFO within the same priority rank.
func TestFIFOWithinPriority(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(1, time.Minute, proc)

	p.Submit(mkAlert("blocker", "svc-blocker", ""), "t0")
	proc.awaitStart(t, "blocker")

	p.Submit(mkAlert("first", "svc-a", alert.PriorityP2), "t1")
	time.Sleep(5 * time.Millisecond)
	p.Submit(mkAlert("second", "svc-b", alert.PriorityP2), "t2")

	proc.release("blocker")
	proc.awaitStart(t, "first")
	proc.release("first")

	proc.awaitStart(t, "second")
	proc.release("second")
}

// S6 — TTL expiry.
func TestTTLExpiry(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(1, 0, proc)

	p.Submit(mkAlert("blocker", "svc-blocker", ""), "t0")
	proc.awaitStart(t, "blocker")

	p.Submit(mkAlert("stale", "svc-a", ""), "t1")
	time.Sleep(10 * time.Millisecond)

	proc.release("blocker")
	time.Sleep(50 * time.Millisecond)

	snap := p.state.Snapshot()
	assert.EqualValues(t, 1, snap.AlertsExpired)
	assert.Equal(t, 0, p.QueueDepth())
	assert.Equal(t, 0, p.ActiveCount())
}

// Property 6 — round-trip after shutdown.
func TestShutdownDrainsQueueAndJoinsActive(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(1, time.Minute, proc)

	p.Submit(mkAlert("inc-1", "svc-a", ""), "t1")
	proc.awaitStart(t, "inc-1")
	p.Submit(mkAlert("inc-2", "svc-b", ""), "t2")

	go func() {
		time.Sleep(20 * time.Millisecond)
		proc.release("inc-1")
	}()

	p.Shutdown()
	assert.Equal(t, 0, p.QueueDepth())
	assert.Equal(t, 0, p.ActiveCount())

	d := p.Submit(mkAlert("inc-3", "svc-c", ""), "t3")
	assert.Equal(t, Rejected, d)
}

// Property 7 — idempotence of identical submits during processing.
func TestIdempotentSubmitsDuringProcessing(t *testing.T) {
	proc := newControlledProcessor()
	p := newTestPipeline(3, time.Minute, proc)

	a := mkAlert("inc-1", "api", "")
	results := make([]Disposition, 5)
	results[0] = p.Submit(a, "t0")
	proc.awaitStart(t, "inc-1")
	for i := 1; i < 5; i++ {
		results[i] = p.Submit(a, "tN")
	}

	dispatchedCount := 0
	for _, d := range results {
		if d == Dispatched {
			dispatchedCount++
		} else {
			assert.Equal(t, Deduplicated, d)
		}
	}
	assert.Equal(t, 1, dispatchedCount)
	proc.release("inc-1")
}
