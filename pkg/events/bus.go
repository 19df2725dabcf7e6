package events

import (
	"sync"
)

// Bus is the thread-safe FIFO connecting the graph worker to the turn
// consumer. Seq assignment happens under the same mutex as enqueue, so the
// consumer observes strictly increasing seq regardless of producer
// interleaving.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	seq    int64
	closed bool
}

// NewBus creates an empty open bus.
func NewBus() *Bus {
	b := &Bus{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Emit assigns the next seq to ev and enqueues it. Events emitted after
// Close are dropped.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	ev.Seq = b.seq
	b.queue = append(b.queue, ev)
	b.cond.Broadcast()
}

// EventsLive returns a channel that yields queued events as they arrive.
// The channel closes once the queue is drained and either isDone reports
// true or the bus has been closed. Callers flipping isDone must call Wake
// so a blocked reader re-checks the condition.
func (b *Bus) EventsLive(isDone func() bool) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			b.mu.Lock()
			for len(b.queue) == 0 && !b.closed && !isDone() {
				b.cond.Wait()
			}
			if len(b.queue) == 0 {
				b.mu.Unlock()
				return
			}
			ev := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			out <- ev
		}
	}()
	return out
}

// Wake re-checks waiting readers. Called after an external done condition
// changes without a matching Emit or Close.
func (b *Bus) Wake() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Close marks the bus complete. Subsequent Emit calls are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Events drains and returns all remaining queued events.
func (b *Bus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.queue
	b.queue = nil
	return remaining
}
