// Package batch coalesces PTY output into time- or size-bounded chunks.
package batch

import (
	"bytes"
	"sync"
	"time"
)

// EmitFunc delivers one flushed chunk to the transport collaborator.
type EmitFunc func(data []byte)

// Batcher buffers output for a single terminal and flushes it either when
// the flush interval elapses or when the buffer crosses the byte ceiling,
// whichever comes first. A Batcher is owned by exactly one terminal;
// Push/Flush/Destroy may be called from the PTY reader goroutine and the
// timer goroutine, so internal state is mutex-guarded.
type Batcher struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	timer     *time.Timer
	interval  time.Duration
	maxBytes  int
	emit      EmitFunc
	destroyed bool
}

// New creates a Batcher that emits through emit. interval bounds how long
// data may sit buffered; maxBytes forces an immediate flush regardless of
// the timer.
func New(interval time.Duration, maxBytes int, emit EmitFunc) *Batcher {
	return &Batcher{
		interval: interval,
		maxBytes: maxBytes,
		emit:     emit,
	}
}

// Push appends data to the buffer. If the buffer reaches the byte ceiling
// the whole buffer is emitted immediately; otherwise a flush timer is
// started if one is not already pending.
func (b *Batcher) Push(data []byte) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.buf.Write(data)

	if b.buf.Len() >= b.maxBytes {
		out := b.takeLocked()
		b.mu.Unlock()
		b.emit(out)
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.Flush)
	}
	b.mu.Unlock()
}

// Flush emits any buffered data as one unit and clears the pending timer.
// Flushing an empty buffer is a no-op.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.destroyed || b.buf.Len() == 0 {
		b.clearTimerLocked()
		b.mu.Unlock()
		return
	}
	out := b.takeLocked()
	b.mu.Unlock()
	b.emit(out)
}

// Destroy cancels any pending timer and drops buffered data without
// emitting. Used only during forced teardown.
func (b *Batcher) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
	b.clearTimerLocked()
	b.buf.Reset()
}

// takeLocked removes and returns the buffer contents and clears the timer.
// Caller must hold b.mu.
func (b *Batcher) takeLocked() []byte {
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	b.buf.Reset()
	b.clearTimerLocked()
	return out
}

func (b *Batcher) clearTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
