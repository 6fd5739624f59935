package batch

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records emitted chunks for assertions.
type collector struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (c *collector) emit(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, data)
}

func (c *collector) snapshot() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.chunks))
	copy(out, c.chunks)
	return out
}

func TestBatcher_TimerCoalesces(t *testing.T) {
	c := &collector{}
	b := New(10*time.Millisecond, 1024, c.emit)

	b.Push([]byte("hel"))
	b.Push([]byte("lo"))

	// Nothing emitted before the interval elapses.
	assert.Empty(t, c.snapshot())

	require.Eventually(t, func() bool {
		return len(c.snapshot()) == 1
	}, time.Second, 2*time.Millisecond)

	chunks := c.snapshot()
	assert.Equal(t, []byte("hello"), chunks[0])
}

func TestBatcher_ForceFlushAtCeiling(t *testing.T) {
	c := &collector{}
	b := New(time.Hour, 8, c.emit) // timer effectively disabled

	b.Push([]byte("1234567")) // under ceiling, no emit
	assert.Empty(t, c.snapshot())

	b.Push([]byte("8")) // hits ceiling, emits synchronously
	chunks := c.snapshot()
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte("12345678"), chunks[0])

	b.Push([]byte("way over the ceiling already")) // single push over ceiling
	chunks = c.snapshot()
	require.Len(t, chunks, 2)
	assert.Equal(t, []byte("way over the ceiling already"), chunks[1])
}

func TestBatcher_FlushEmptyIsNoop(t *testing.T) {
	c := &collector{}
	b := New(time.Millisecond, 1024, c.emit)

	b.Flush()
	b.Flush()
	assert.Empty(t, c.snapshot())
}

func TestBatcher_SynchronousFlush(t *testing.T) {
	c := &collector{}
	b := New(time.Hour, 1024, c.emit)

	b.Push([]byte("pending"))
	b.Flush()

	chunks := c.snapshot()
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte("pending"), chunks[0])

	// Timer was cleared: nothing further arrives.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.snapshot(), 1)
}

func TestBatcher_DestroyDropsWithoutEmit(t *testing.T) {
	c := &collector{}
	b := New(5*time.Millisecond, 1024, c.emit)

	b.Push([]byte("doomed"))
	b.Destroy()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.snapshot())

	// Pushes after destroy are ignored.
	b.Push([]byte("ghost"))
	b.Flush()
	assert.Empty(t, c.snapshot())
}

func TestBatcher_SteadyLowRateEmitsOncePerInterval(t *testing.T) {
	c := &collector{}
	interval := 30 * time.Millisecond
	b := New(interval, 1<<20, c.emit)

	// Push several small writes well within one interval.
	for i := 0; i < 5; i++ {
		b.Push([]byte{byte('a' + i)})
		time.Sleep(time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(c.snapshot()) >= 1
	}, time.Second, 2*time.Millisecond)

	chunks := c.snapshot()
	require.Len(t, chunks, 1, "low-rate input must coalesce into a single emit")

	var total bytes.Buffer
	for _, ch := range chunks {
		total.Write(ch)
	}
	assert.Equal(t, "abcde", total.String())
}
