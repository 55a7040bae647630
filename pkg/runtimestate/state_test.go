package runtimestate

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingDropsOldestWhenFull(t *testing.T) {
	r := newRing[int](3)
	r.add(1)
	r.add(2)
	r.add(3)
	r.add(4)
	assert.Equal(t, []int{2, 3, 4}, r.snapshot())
	assert.Equal(t, 3, r.len())
}

func TestErrorRateClampedWhenNoWebhooks(t *testing.T) {
	s := New(prometheus.NewRegistry())
	snap := s.Snapshot()
	assert.Equal(t, float64(0), snap.ErrorRate())
}

func TestErrorRateComputation(t *testing.T) {
	s := New(prometheus.NewRegistry())
	s.IncWebhooksReceived()
	s.IncWebhooksReceived()
	s.IncWebhooksFailed()
	snap := s.Snapshot()
	assert.Equal(t, float64(50), snap.ErrorRate())
}

func TestPercentilesMatchReferenceIndexing(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	p50, p95, p99 := percentiles(sorted)
	assert.Equal(t, sorted[5], p50)
	assert.Equal(t, sorted[9], p95)
	assert.Equal(t, sorted[9], p99)
}

func TestTokensLastHourExcludesOldEntries(t *testing.T) {
	s := New(nil)
	s.hourlyTokenLog.add(tokenLogEntry{at: time.Now().Add(-2 * time.Hour), tokens: 500})
	s.hourlyTokenLog.add(tokenLogEntry{at: time.Now(), tokens: 300})
	require.Equal(t, 300, s.TokensLastHour())
}

func TestRecordRunCompletionUpdatesCountersAndRings(t *testing.T) {
	s := New(nil)
	s.RecordRunCompletion(RunOutcome{Duration: 2 * time.Second, InputTokens: 100, OutputTokens: 50, EstimatedCost: 0.01})
	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.AgentRunsCompleted)
	assert.EqualValues(t, 100, snap.TotalInputTokens)
	assert.EqualValues(t, 50, snap.TotalOutputTokens)
	assert.Equal(t, 150, snap.TokensLastHour)
}

func TestDrainFlag(t *testing.T) {
	s := New(nil)
	assert.False(t, s.IsDraining())
	s.SetDraining(true)
	assert.True(t, s.IsDraining())
}
