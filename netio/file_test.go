package netio

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/kfcemployee/reactorhttp/reactor"
	"golang.org/x/sys/unix"
)

// runReactor drives rx in the background and fails the test if it
// exits with an error or doesn't finish once the test tells it to.
func runReactor(t *testing.T, rx *reactor.Reactor) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- rx.Run() }()
	t.Cleanup(func() {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("reactor.Run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("reactor did not drain within the test deadline")
		}
	})
}

func boundPort(t *testing.T, fd int) int {
	t.Helper()
	sa, err := unix.Getsockname(fd)
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("Getsockname returned %T, want *unix.SockaddrInet4", sa)
	}
	return in4.Port
}

func TestListenAcceptEcho(t *testing.T) {
	rx, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer rx.Close()

	ln, err := Listen(rx, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}, Port: 0}, 16)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	port := boundPort(t, ln.FD())

	accepted := make(chan reactor.Result[AcceptResult], 1)
	ln.Accept(reactor.StopToken{}, func(r reactor.Result[AcceptResult]) {
		accepted <- r
	})

	runReactor(t, rx)

	client, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var ar reactor.Result[AcceptResult]
	select {
	case ar = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("Accept did not complete in time")
	}
	if ar.Error() {
		t.Fatalf("Accept: %v", ar.Err)
	}

	peer, err := New(rx, ar.Value.FD)
	if err != nil {
		t.Fatalf("New(accepted fd): %v", err)
	}
	defer peer.Close()

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("client.Write: %v", err)
	}

	buf := make([]byte, 16)
	readDone := make(chan reactor.Result[int], 1)
	peer.Read(buf, reactor.StopToken{}, func(r reactor.Result[int]) { readDone <- r })

	var rr reactor.Result[int]
	select {
	case rr = <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not complete in time")
	}
	if rr.Error() {
		t.Fatalf("Read: %v", rr.Err)
	}
	if got := string(buf[:rr.Value]); got != "ping" {
		t.Fatalf("Read = %q, want %q", got, "ping")
	}

	writeDone := make(chan reactor.Result[int], 1)
	peer.Write(buf[:rr.Value], reactor.StopToken{}, func(r reactor.Result[int]) { writeDone <- r })

	var wr reactor.Result[int]
	select {
	case wr = <-writeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Write did not complete in time")
	}
	if wr.Error() {
		t.Fatalf("Write: %v", wr.Err)
	}

	echo := make([]byte, 16)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(echo)
	if err != nil {
		t.Fatalf("client.Read: %v", err)
	}
	if string(echo[:n]) != "ping" {
		t.Fatalf("echo = %q, want %q", echo[:n], "ping")
	}
}

func TestReadCancelledByStop(t *testing.T) {
	rx, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer rx.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[1])

	f, err := New(rx, fds[0])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	stop := reactor.NewStopToken()
	buf := make([]byte, 16)
	result := make(chan reactor.Result[int], 1)
	f.Read(buf, stop, func(r reactor.Result[int]) { result <- r })

	// RequestStop must run on the reactor's own goroutine, same as a
	// real caller would do from inside another callback (e.g. connio's
	// idle timer) — the reactor's internal state is not safe to touch
	// concurrently from outside its single driving goroutine.
	rx.SetTimeout(0, func() { stop.RequestStop() }, reactor.StopToken{})
	runReactor(t, rx)

	select {
	case r := <-result:
		if !r.IsError(ErrCancelled) {
			t.Fatalf("Read result = %v, want ErrCancelled", r.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled Read never invoked its callback")
	}
}

