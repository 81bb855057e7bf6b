package alerts

import (
	"testing"

	"stock-alert-server/internal/pricecache"
	"stock-alert-server/internal/protocol"

	"github.com/stretchr/testify/assert"
)

func TestTriggered(t *testing.T) {
	testCases := []struct {
		name      string
		direction protocol.Direction
		threshold float64
		price     float64
		expected  bool
	}{
		{"Above crossed", protocol.Above, 100, 100.01, true},
		{"Above equal", protocol.Above, 100, 100, false},
		{"Above under", protocol.Above, 100, 99.99, false},
		{"Below crossed", protocol.Below, 100, 99.99, true},
		{"Below equal", protocol.Below, 100, 100, false},
		{"Below over", protocol.Below, 100, 100.01, false},
		{"Negative threshold", protocol.Above, -5, 0, true},
		{"Unknown direction", protocol.Direction("SIDEWAYS"), 100, 1000, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Triggered(tc.direction, tc.threshold, tc.price))
		})
	}
}

// Exhaustive check of the predicate over a small grid.
func TestTriggeredProperty(t *testing.T) {
	values := []float64{-1, 0, 0.5, 1, 1.5, 100, 1e9}
	for _, th := range values {
		for _, p := range values {
			assert.Equal(t, p > th, Triggered(protocol.Above, th, p), "above t=%v p=%v", th, p)
			assert.Equal(t, p < th, Triggered(protocol.Below, th, p), "below t=%v p=%v", th, p)
		}
	}
}

func TestEvaluate(t *testing.T) {
	cache := pricecache.New()
	cache.Merge(map[string]float64{"AAPL": 190, "MSFT": 400})

	list := []Alert{
		{Symbol: "AAPL", Direction: protocol.Above, Threshold: 180},
		{Symbol: "AAPL", Direction: protocol.Below, Threshold: 180},
		{Symbol: "MSFT", Direction: protocol.Below, Threshold: 410},
		{Symbol: "NFLX", Direction: protocol.Above, Threshold: 1},
	}

	fired := Evaluate(cache.Snapshot(), list)

	assert.Equal(t, []Trigger{
		{Alert: list[0], Price: 190},
		{Alert: list[2], Price: 400},
	}, fired)

	assert.Empty(t, Evaluate(cache.Snapshot(), nil))
}

func TestTriggerMessage(t *testing.T) {
	tr := Trigger{Alert: Alert{Symbol: "AAPL", Direction: protocol.Above, Threshold: 1}, Price: 187.5}
	assert.Equal(t, "TRIGGER AAPL ABOVE 1 187.5\n", tr.Message().Wire())
}
