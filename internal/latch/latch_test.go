package latch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatchStartsCleared(t *testing.T) {
	l := New()
	assert.False(t, l.Pending())
	assert.False(t, l.PollAndClear())
}

func TestLatchSetThenPoll(t *testing.T) {
	l := New()
	l.Set()

	assert.True(t, l.Pending())
	assert.True(t, l.PollAndClear())
	assert.False(t, l.PollAndClear())
}

func TestLatchCoalesces(t *testing.T) {
	l := New()
	l.Set()
	l.Set()

	assert.True(t, l.PollAndClear())
	assert.False(t, l.PollAndClear(), "two sets before a poll must be observed once")
	assert.Equal(t, uint64(2), l.Sets())
}

func TestLatchWakesWaiter(t *testing.T) {
	l := New()

	go func() {
		time.Sleep(5 * time.Millisecond)
		l.Set()
	}()

	select {
	case <-l.C():
		assert.True(t, l.PollAndClear())
	case <-time.After(time.Second):
		t.Fatal("latch did not wake waiter")
	}
}

func TestLatchConcurrentSetters(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Set()
		}()
	}
	wg.Wait()

	require.True(t, l.PollAndClear())
	assert.False(t, l.PollAndClear())
	assert.Equal(t, uint64(32), l.Sets())

	// Only one wake token is ever buffered.
	<-l.C()
	select {
	case <-l.C():
		t.Fatal("expected a single buffered wake token")
	default:
	}
}
