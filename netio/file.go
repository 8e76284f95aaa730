// Package netio implements the non-blocking socket adapter that turns
// raw readiness events from a reactor.Reactor into one-shot,
// cancellable continuations: AsyncFile.Read/Write/Accept/Connect.
//
// Every operation follows the same optimistic protocol, grounded on
// original_source/io_context.hpp's async_file::async_read/async_write/
// async_accept/async_connect: check the stop token, attempt the
// syscall directly, and only fall back to arming a one-shot
// edge-triggered watch on EAGAIN/EINPROGRESS. A connection that never
// blocks never touches the reactor at all.
package netio

import (
	"errors"

	"github.com/kfcemployee/reactorhttp/reactor"
	"golang.org/x/sys/unix"
)

// ErrSystemIO wraps any Errno the underlying syscalls return, giving
// callers a single sentinel to errors.Is against regardless of which
// specific errno fired.
var ErrSystemIO = errors.New("netio: system I/O error")

// ErrCancelled is delivered to a pending operation's callback when its
// stop token fires before the operation completes.
var ErrCancelled = errors.New("netio: operation cancelled")

func wrapErrno(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrSystemIO, err)
}

// AsyncFile is a non-blocking file descriptor driven by a reactor.
// Grounded on original_source/io_context.hpp's async_file, minus its
// RAII epoll_ctl(DEL) destructor — Go has no destructors, so Close is
// explicit and callers are expected to call it exactly once.
type AsyncFile struct {
	fd int
	rx *reactor.Reactor
}

// New wraps an already-created file descriptor, switching it to
// non-blocking mode. It does not register the fd with epoll yet — that
// happens lazily, the first time an operation actually blocks.
func New(rx *reactor.Reactor, fd int) (*AsyncFile, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, wrapErrno(err)
	}
	return &AsyncFile{fd: fd, rx: rx}, nil
}

// FD exposes the raw descriptor, mainly so callers can log it.
func (f *AsyncFile) FD() int {
	return f.fd
}

// Close deregisters any pending watch and closes the descriptor.
func (f *AsyncFile) Close() error {
	f.rx.Forget(f.fd)
	return unix.Close(f.fd)
}

// Listen creates, binds, and listens on a TCP socket for the given
// sockaddr, returning it wrapped as an AsyncFile ready to Accept.
// SO_REUSEADDR and SO_REUSEPORT are set unconditionally — kept as the
// original does it, not hardened against the operator surprise of two
// processes silently sharing one port.
func Listen(rx *reactor.Reactor, sa unix.Sockaddr, backlog int) (*AsyncFile, error) {
	domain := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, wrapErrno(err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, wrapErrno(err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return nil, wrapErrno(err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, wrapErrno(err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, wrapErrno(err)
	}
	return New(rx, fd)
}

// watchAndRetry arms a one-shot edge-triggered watch for events on f's
// fd and, once it fires, re-invokes retry — the same shape as the
// source's _epoll_callback plus a self-recursive lambda. A stop
// requested while the watch is pending redeems the same handle exactly
// once via reactor's at-most-once callback registry, so cancel never
// races a real readiness event.
func (f *AsyncFile) watchAndRetry(events reactor.Event, stop reactor.StopToken, retry func(), onCancel func()) {
	arm := f.rx.Watch(f.fd, events|reactor.Event(unix.EPOLLET))
	if err := arm(retry); err != nil {
		onCancel()
		return
	}
	stop.OnStop(func() {
		f.rx.Forget(f.fd)
		onCancel()
	})
}

// Read attempts a non-blocking read into buf, invoking cb with the
// byte count or an error. Cancellation via stop is checked before the
// syscall and again is the only path that can fire after a watch is
// armed; any timeout policy on how long a read may stay pending lives
// one layer up, in connio.
func (f *AsyncFile) Read(buf []byte, stop reactor.StopToken, cb func(reactor.Result[int])) {
	if stop.StopRequested() {
		stop.ClearStop()
		cb(reactor.Errorf[int](ErrCancelled))
		return
	}
	n, err := unix.Read(f.fd, buf)
	if err == nil || err != unix.EAGAIN {
		stop.ClearStop()
		if err != nil {
			cb(reactor.Errorf[int](wrapErrno(err)))
			return
		}
		cb(reactor.Ok(n))
		return
	}
	f.watchAndRetry(reactor.EventRead, stop,
		func() { f.Read(buf, stop, cb) },
		func() { cb(reactor.Errorf[int](ErrCancelled)) },
	)
}

// Write attempts a non-blocking write of buf, invoking cb with the
// byte count actually written (which may be less than len(buf); the
// caller re-arms for the remainder, exactly as connio does).
func (f *AsyncFile) Write(buf []byte, stop reactor.StopToken, cb func(reactor.Result[int])) {
	if stop.StopRequested() {
		stop.ClearStop()
		cb(reactor.Errorf[int](ErrCancelled))
		return
	}
	n, err := unix.Write(f.fd, buf)
	if err == nil || err != unix.EAGAIN {
		stop.ClearStop()
		if err != nil {
			cb(reactor.Errorf[int](wrapErrno(err)))
			return
		}
		cb(reactor.Ok(n))
		return
	}
	f.watchAndRetry(reactor.EventWrite, stop,
		func() { f.Write(buf, stop, cb) },
		func() { cb(reactor.Errorf[int](ErrCancelled)) },
	)
}

// AcceptResult is the outcome of a successful Accept: the new
// connection's descriptor and its peer address.
type AcceptResult struct {
	FD   int
	Peer unix.Sockaddr
}

// Accept waits for and accepts a single incoming connection on a
// listening AsyncFile. The returned descriptor is already
// non-blocking (accept4 with SOCK_NONBLOCK), folding the
// listenSocket + SetNonblock pairing into one syscall.
func (f *AsyncFile) Accept(stop reactor.StopToken, cb func(reactor.Result[AcceptResult])) {
	if stop.StopRequested() {
		stop.ClearStop()
		cb(reactor.Errorf[AcceptResult](ErrCancelled))
		return
	}
	nfd, sa, err := unix.Accept4(f.fd, unix.SOCK_NONBLOCK)
	if err == nil || err != unix.EAGAIN {
		stop.ClearStop()
		if err != nil {
			cb(reactor.Errorf[AcceptResult](wrapErrno(err)))
			return
		}
		cb(reactor.Ok(AcceptResult{FD: nfd, Peer: sa}))
		return
	}
	f.watchAndRetry(reactor.EventRead, stop,
		func() { f.Accept(stop, cb) },
		func() { cb(reactor.Errorf[AcceptResult](ErrCancelled)) },
	)
}

// Connect initiates a non-blocking connect to sa, invoking cb once the
// outcome is known. A connect that doesn't complete synchronously is
// resolved by watching for writability and then checking SO_ERROR,
// exactly as the source's async_connect does via getsockopt.
func (f *AsyncFile) Connect(sa unix.Sockaddr, stop reactor.StopToken, cb func(reactor.Result[struct{}])) {
	if stop.StopRequested() {
		stop.ClearStop()
		cb(reactor.Errorf[struct{}](ErrCancelled))
		return
	}
	err := unix.Connect(f.fd, sa)
	if err == nil || err != unix.EINPROGRESS {
		stop.ClearStop()
		if err != nil {
			cb(reactor.Errorf[struct{}](wrapErrno(err)))
			return
		}
		cb(reactor.Ok(struct{}{}))
		return
	}
	f.watchAndRetry(reactor.EventWrite, stop,
		func() {
			if stop.StopRequested() {
				stop.ClearStop()
				cb(reactor.Errorf[struct{}](ErrCancelled))
				return
			}
			errno, serr := unix.GetsockoptInt(f.fd, unix.SOL_SOCKET, unix.SO_ERROR)
			stop.ClearStop()
			if serr != nil {
				cb(reactor.Errorf[struct{}](wrapErrno(serr)))
				return
			}
			if errno != 0 {
				cb(reactor.Errorf[struct{}](wrapErrno(unix.Errno(errno))))
				return
			}
			cb(reactor.Ok(struct{}{}))
		},
		func() { cb(reactor.Errorf[struct{}](ErrCancelled)) },
	)
}
