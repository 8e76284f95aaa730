package reactor

import (
	"container/heap"
	"time"

	"github.com/eapache/queue"
)

// timerEntry is a single scheduled continuation, grounded on
// original_source/timer_context.hpp's _timer_entry.
type timerEntry struct {
	cb   Callback
	stop StopToken
}

// timerBucket holds every entry sharing one deadline, fired in the
// order they were inserted.
type timerBucket struct {
	deadline time.Time
	entries  *queue.Queue
}

// timerHeap is a deadline-ordered min-heap of buckets — the Go
// rendering of the source's std::multimap<time_point, entry>.
type timerHeap []*timerBucket

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timerBucket)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// timers is the deadline-ordered timer heap the reactor drains on
// every iteration.
type timers struct {
	h timerHeap
	// byBucket finds an existing bucket for a deadline without a
	// linear scan of the heap; deadlines collide often (e.g. many
	// connections sharing the same idle timeout duration).
	byBucket map[time.Time]*timerBucket
}

func newTimers() *timers {
	return &timers{byBucket: make(map[time.Time]*timerBucket)}
}

// setTimeout inserts a continuation to fire at now+dt, or immediately
// (via stop) if stop fires first. Grounded on timer_context.hpp's
// set_timeout: a stop callback that removes the entry and invokes it.
func (t *timers) setTimeout(dt time.Duration, cb Callback, stop StopToken) {
	deadline := time.Now().Add(dt)
	b, ok := t.byBucket[deadline]
	if !ok {
		b = &timerBucket{deadline: deadline, entries: queue.New()}
		t.byBucket[deadline] = b
		heap.Push(&t.h, b)
	}
	entry := &timerEntry{cb: cb, stop: stop}
	b.entries.Add(entry)

	stop.OnStop(func() {
		t.removeEntry(b, entry)
		cb()
	})
}

// removeEntry drops entry from its bucket, re-heapifying or dropping
// the bucket if it becomes empty. Safe to call while durationToNextTimer
// is mid-drain: callers always clear an entry's stop callback before
// invoking it, so this never re-enters.
func (t *timers) removeEntry(b *timerBucket, entry *timerEntry) {
	n := b.entries.Length()
	if n == 0 {
		return
	}
	kept := make([]*timerEntry, 0, n-1)
	for i := 0; i < n; i++ {
		e := b.entries.Remove().(*timerEntry)
		if e != entry {
			kept = append(kept, e)
		}
	}
	for _, e := range kept {
		b.entries.Add(e)
	}
	if b.entries.Length() == 0 {
		delete(t.byBucket, b.deadline)
		t.dropBucket(b)
	}
}

func (t *timers) dropBucket(target *timerBucket) {
	for i, b := range t.h {
		if b == target {
			heap.Remove(&t.h, i)
			return
		}
	}
}

// durationToNextTimer drains and fires every expired bucket (in
// deadline order, then FIFO within a bucket), returning how long to
// wait for the next unexpired one, or -1 if the heap is now empty.
// Fusing drain with measurement is deliberate: computing them
// separately leaves a window where an already-expired timer delays
// the next reactor wait.
func (t *timers) durationToNextTimer() time.Duration {
	for t.h.Len() > 0 {
		b := t.h[0]
		now := time.Now()
		if b.deadline.After(now) {
			return b.deadline.Sub(now)
		}
		heap.Pop(&t.h)
		delete(t.byBucket, b.deadline)
		for b.entries.Length() > 0 {
			entry := b.entries.Remove().(*timerEntry)
			entry.stop.ClearStop()
			entry.cb()
		}
	}
	return -1
}

func (t *timers) isEmpty() bool {
	return t.h.Len() == 0
}
