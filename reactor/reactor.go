package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

const maxEpollEvents = 128

// Event flags, mirroring the EPOLLIN/EPOLLOUT/EPOLLERR trio async file
// operations watch for.
type Event uint32

const (
	EventRead  Event = unix.EPOLLIN
	EventWrite Event = unix.EPOLLOUT
	EventError Event = unix.EPOLLERR
)

// Reactor owns a readiness facility (epoll) and the timer heap, and
// drives both from a single goroutine: no OS thread is spun up per
// connection, and the whole event loop is single-threaded and
// cooperative. Structurally close to a plain epoll_create1 +
// EPOLL_CTL_ADD + EpollWait loop, collapsed to one goroutine instead
// of a worker pool fanning events out across many.
//
// A raw closure pointer cannot be stashed in the kernel event's data
// field the way a C implementation would, and Go's epoll_event here
// carries only a 4-byte Fd slot usable for that purpose on this
// platform's binding, so instead of a pointer trick this reactor keeps
// a per-fd table of pending continuation handles (still opaque, still
// redeemed at most once — see callback.go) and looks them up by the fd
// the kernel reports ready.
type Reactor struct {
	epfd    int
	timers  *timers
	pending map[int32]uintptr
}

// New creates a Reactor bound to an epoll instance. It must be used
// from a single goroutine for its entire lifetime — a reactor instance
// is bound to the goroutine that constructed it, the same way an
// epoll fd is only meant to be waited on by one thread at a time.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Reactor{
		epfd:    epfd,
		timers:  newTimers(),
		pending: make(map[int32]uintptr),
	}, nil
}

// Close releases the epoll instance.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

// EpollFD exposes the underlying epoll file descriptor. netio does not
// use it: it registers and deregisters sockets through Watch and Forget.
func (r *Reactor) EpollFD() int {
	return r.epfd
}

// Watch arms a one-shot, edge-triggered watch for fd on the given
// events, redeeming cb when it fires. Only one pending continuation
// per fd is honored at a time; a prior unconsumed watch on the same fd
// is replaced (its callback is dropped, never invoked — callers must
// not register twice).
func (r *Reactor) Watch(fd int, events Event) func(cb Callback) error {
	return func(cb Callback) error {
		key := leak(cb)
		ev := &unix.EpollEvent{
			Events: uint32(events) | unix.EPOLLONESHOT,
			Fd:     int32(fd),
		}
		op := unix.EPOLL_CTL_MOD
		if _, armed := r.pending[int32(fd)]; !armed {
			op = unix.EPOLL_CTL_ADD
		}
		err := unix.EpollCtl(r.epfd, op, fd, ev)
		if err == unix.EEXIST {
			// A consumed one-shot watch leaves fd in the interest list
			// (disabled, not removed), so it is re-armed with MOD.
			err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, ev)
		}
		if err != nil {
			take(key)
			return err
		}
		r.pending[int32(fd)] = key
		return nil
	}
}

// Forget drops any pending watch on fd without invoking its callback —
// used when a connection is torn down while an op is still registered.
func (r *Reactor) Forget(fd int) {
	if key, ok := r.pending[int32(fd)]; ok {
		take(key)
		delete(r.pending, int32(fd))
	}
}

// SetTimeout arms a deadline continuation; see timer.go.
func (r *Reactor) SetTimeout(dt time.Duration, cb Callback, stop StopToken) {
	r.timers.setTimeout(dt, cb, stop)
}

// PendingCount is the number of registered one-shot FD continuations
// awaiting readiness.
func (r *Reactor) PendingCount() int {
	return len(r.pending)
}

// IsEmpty reports whether the reactor has nothing left to wait for.
func (r *Reactor) IsEmpty() bool {
	return r.timers.isEmpty() && len(r.pending) == 0
}

// Run blocks until IsEmpty(), driving timers and readiness together:
// compute the wait budget from the timer heap, wait on epoll with that
// budget, dispatch every ready event's stored continuation.
func (r *Reactor) Run() error {
	var events [maxEpollEvents]unix.EpollEvent
	for !r.IsEmpty() {
		dt := r.timers.durationToNextTimer()
		if r.IsEmpty() {
			return nil
		}
		timeoutMs := -1
		if dt >= 0 {
			timeoutMs = int(dt / time.Millisecond)
		}
		n, err := unix.EpollWait(r.epfd, events[:], timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		for i := 0; i < n; i++ {
			fd := events[i].Fd
			key, ok := r.pending[fd]
			if !ok {
				continue
			}
			delete(r.pending, fd)
			if cb := take(key); cb != nil {
				cb()
			}
		}
	}
	return nil
}
