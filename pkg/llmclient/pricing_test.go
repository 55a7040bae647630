package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCostKnownModel(t *testing.T) {
	cost := EstimateCost("gpt-4o", 1_000_000, 1_000_000)
	assert.InDelta(t, 12.50, cost, 0.0001)
}

func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	assert.Equal(t, float64(0), EstimateCost("some-future-model", 1000, 1000))
}

func TestEstimateCostScalesWithTokenCount(t *testing.T) {
	cost := EstimateCost("gemini-2.0-flash", 500_000, 0)
	assert.InDelta(t, 0.05, cost, 0.0001)
}
