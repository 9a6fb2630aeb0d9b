package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_Steps(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, DefaultStart, clock.Now())
	assert.Equal(t, DefaultStart.Add(time.Second), clock.Now())
	assert.Equal(t, int64(2), clock.Calls())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, DefaultStart, clock.Now())
}

func TestDeterministicClock_Frozen(t *testing.T) {
	start := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	clock := NewDeterministicClockAt(start, 0)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), clock.Calls())
}
