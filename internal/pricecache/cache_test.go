package pricecache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_ColdCache(t *testing.T) {
	c := New()

	_, ok := c.Get("AAPL")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Snapshot().Len())
	assert.True(t, c.Snapshot().UpdatedAt().IsZero())
}

func TestCache_MergeKeepsUnrefreshedSymbols(t *testing.T) {
	c := New()
	c.Merge(map[string]float64{"AAPL": 180, "MSFT": 410})
	c.Merge(map[string]float64{"AAPL": 181.5})

	p, ok := c.Get("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 181.5, p)

	p, ok = c.Get("MSFT")
	assert.True(t, ok)
	assert.Equal(t, 410.0, p, "symbols missing from a cycle keep their last price")

	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Snapshot().Symbols())
}

func TestCache_EmptyMergeIsNoop(t *testing.T) {
	c := New()
	c.Merge(map[string]float64{"AAPL": 1})
	before := c.Snapshot()

	c.Merge(nil)
	c.Merge(map[string]float64{})

	assert.Same(t, before, c.Snapshot())
}

func TestCache_SnapshotIsImmutable(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return fixed }

	c.Merge(map[string]float64{"AAPL": 100})
	snap := c.Snapshot()

	c.Merge(map[string]float64{"AAPL": 200, "TSLA": 300})

	p, _ := snap.Get("AAPL")
	assert.Equal(t, 100.0, p)
	_, ok := snap.Get("TSLA")
	assert.False(t, ok)
	assert.Equal(t, fixed, snap.UpdatedAt())
}

// A reader must see either none or all of a cycle's updates.
func TestCache_MergeIsAtomicForReaders(t *testing.T) {
	c := New()
	const symbols = 50

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for cycle := 1; cycle <= 200; cycle++ {
			updates := make(map[string]float64, symbols)
			for i := 0; i < symbols; i++ {
				updates[fmt.Sprintf("S%02d", i)] = float64(cycle)
			}
			c.Merge(updates)
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := c.Snapshot()
				if snap.Len() == 0 {
					continue
				}
				first, _ := snap.Get("S00")
				for i := 1; i < symbols; i++ {
					p, _ := snap.Get(fmt.Sprintf("S%02d", i))
					if p != first {
						t.Errorf("torn snapshot: S00=%v S%02d=%v", first, i, p)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
