package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemory_GetSetExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemory(WithClock(clk.now))

	_, ok := m.Get(ctx, "fp")
	assert.False(t, ok)

	m.Set(ctx, "fp", Payload{Content: "hello"}, 600*time.Second)
	p, ok := m.Get(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, "hello", p.Content)

	clk.advance(599 * time.Second)
	_, ok = m.Get(ctx, "fp")
	assert.True(t, ok)

	clk.advance(time.Second)
	_, ok = m.Get(ctx, "fp")
	assert.False(t, ok, "entry at its expiry instant is a miss")
	assert.Equal(t, 0, m.Len(), "expired entry removed on read")
}

func TestMemory_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Set(ctx, "k", Payload{Content: "a"}, time.Minute)
	m.Set(ctx, "k", Payload{Content: "b"}, time.Minute)
	p, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "b", p.Content)
}

func TestMemory_NonPositiveTTL(t *testing.T) {
	m := NewMemory()
	m.Set(context.Background(), "k", Payload{Content: "x"}, 0)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Sweep(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(0, 0)}
	m := NewMemory(WithClock(clk.now))
	m.Set(ctx, "short", Payload{}, time.Second)
	m.Set(ctx, "long", Payload{}, time.Hour)

	clk.advance(2 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemory_RunSweeperStopsOnCancel(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := fmt.Sprintf("k%d", i%5)
			m.Set(ctx, k, Payload{Content: k}, time.Minute)
			_, _ = m.Get(ctx, k)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, m.Len())
}
