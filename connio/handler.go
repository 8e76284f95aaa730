// Package connio drives one accepted connection through its full
// request/response lifecycle: Reading -> Dispatching -> Writing ->
// Reading -> ... -> Closed.
//
// Grounded on original_source/http_server.hpp's http_connection_handler
// (do_read/do_handle/do_write, the stop_io/stop_timer pairing guarding
// the idle-read timeout), adapted from a pooled-by-fd session array to
// one handler value that owns its own continuation chain end to end.
package connio

import (
	"errors"
	"time"

	"github.com/kfcemployee/reactorhttp/httpcodec"
	"github.com/kfcemployee/reactorhttp/netio"
	"github.com/kfcemployee/reactorhttp/reactor"
	"github.com/kfcemployee/reactorhttp/router"
)

// Config bounds how long a connection may sit idle before a request
// and how long a dispatched handler may take before the connection is
// abandoned outright, plus how large a single request may grow.
type Config struct {
	ReadBufferSize  int
	ReadIdleTimeout time.Duration
	DispatchTimeout time.Duration
	Limits          httpcodec.Limits
}

// DefaultConfig is the timeout/size profile used when a caller doesn't
// override it.
var DefaultConfig = Config{
	ReadBufferSize:  1024,
	ReadIdleTimeout: 10 * time.Second,
	DispatchTimeout: 30 * time.Second,
	Limits:          httpcodec.DefaultLimits,
}

// Handler owns one accepted connection's entire request/response loop.
// It is only ever touched from the reactor's driving goroutine, so it
// carries no internal locking — it is never shared across goroutines.
type Handler struct {
	conn   *netio.AsyncFile
	rx     *reactor.Reactor
	router *router.Router
	cfg    Config

	readBuf reactor.Buffer
	parser  httpcodec.MessageParser
	resp    router.ResponseWriter

	closed  bool
	onClose func()
}

// New creates a handler for an already-accepted connection. Call Start
// to begin its read loop.
func New(rx *reactor.Reactor, conn *netio.AsyncFile, rt *router.Router, cfg Config) *Handler {
	return &Handler{
		conn:    conn,
		rx:      rx,
		router:  rt,
		cfg:     cfg,
		readBuf: *reactor.NewBuffer(cfg.ReadBufferSize),
		parser:  *httpcodec.NewMessageParser(cfg.Limits),
	}
}

// OnClose registers a callback invoked exactly once when the
// connection is torn down, for any reason.
func (h *Handler) OnClose(f func()) {
	h.onClose = f
}

// Start begins the Reading state.
func (h *Handler) Start() {
	h.beginRequest(nil)
}

// beginRequest starts parsing the next request. If pipelined holds
// bytes left over from a previous read (a second request that arrived
// back-to-back with the first, on a keep-alive connection), those are
// fed to the parser before any new bytes are read off the wire.
func (h *Handler) beginRequest(pipelined []byte) {
	if h.closed {
		return
	}
	if len(pipelined) > 0 {
		h.feed(pipelined)
		return
	}
	h.doRead()
}

// doRead arms an idle-read timeout and waits for more bytes. Grounded
// on do_read's stop_io/stop_timer pair: a 10-second timer cancels the
// pending read if it fires first, and the read cancels the timer if it
// finishes first.
func (h *Handler) doRead() {
	stopIO := reactor.NewStopToken()
	stopTimer := reactor.NewStopToken()

	if h.cfg.ReadIdleTimeout > 0 {
		h.rx.SetTimeout(h.cfg.ReadIdleTimeout, func() {
			stopIO.RequestStop()
		}, stopTimer)
	}

	h.conn.Read(h.readBuf.Full(), stopIO, func(res reactor.Result[int]) {
		stopTimer.RequestStop()
		if h.closed {
			return
		}
		if res.Error() {
			h.close()
			return
		}
		n := res.Value
		if n == 0 {
			h.close()
			return
		}
		h.readBuf.Truncate(n)
		h.feed(h.readBuf.Bytes())
	})
}

// feed pushes data into the parser, looping back to Reading if the
// current request isn't finished yet and transitioning to Dispatching
// once it is.
func (h *Handler) feed(data []byte) {
	extra, err := h.parser.PushChunk(data)
	if err != nil {
		h.failAndClose(err)
		return
	}
	if !h.parser.Finished() {
		h.doRead()
		return
	}
	h.doHandle(extra)
}

// doHandle constructs an owned request record, resets the parser for
// the next request, and invokes the router. The handler is expected to
// call one of ResponseWriter's Write* methods exactly once; a
// DispatchTimeout guards against one that never does, closing the
// connection instead of leaking it forever.
//
// resumed guards against the timeout firing after a legitimate resume,
// or a resume happening after the timeout already closed the
// connection; both run on the same goroutine so no locking is needed,
// only ordering.
func (h *Handler) doHandle(pipelinedExtra []byte) {
	req := h.parser.DetachRequest()
	h.parser.Reset()
	h.resp.Reset()

	resumed := false
	dispatchCancel := reactor.NewStopToken()

	if h.cfg.DispatchTimeout > 0 {
		h.rx.SetTimeout(h.cfg.DispatchTimeout, func() {
			if resumed {
				return
			}
			resumed = true
			h.close()
		}, dispatchCancel)
	}

	h.resp.SetResume(func() {
		if resumed {
			return
		}
		resumed = true
		dispatchCancel.RequestStop()
		h.doWrite(pipelinedExtra)
	})

	h.router.Dispatch(&req, &h.resp)
}

// doWrite flushes the formatted response, re-arming on a partial write
// exactly as do_write's buffer.subspan(n) recursion does.
func (h *Handler) doWrite(pipelinedExtra []byte) {
	h.writeRemaining(h.resp.Bytes(), pipelinedExtra)
}

func (h *Handler) writeRemaining(buf []byte, pipelinedExtra []byte) {
	h.conn.Write(buf, reactor.StopToken{}, func(res reactor.Result[int]) {
		if h.closed {
			return
		}
		if res.Error() {
			h.close()
			return
		}
		n := res.Value
		if n == len(buf) {
			h.beginRequest(pipelinedExtra)
			return
		}
		h.writeRemaining(buf[n:], pipelinedExtra)
	})
}

// failAndClose writes a best-effort error response for a malformed or
// oversized request before giving up on the connection. A write error
// here is ignored — the connection is being torn down regardless.
func (h *Handler) failAndClose(err error) {
	status := 400
	if errors.Is(err, httpcodec.ErrTooLarge) {
		status = 413
	}
	h.resp.Reset()
	h.resp.WriteResponse(status, err.Error(), "text/plain;charset=utf-8")
	h.conn.Write(h.resp.Bytes(), reactor.StopToken{}, func(reactor.Result[int]) {
		h.close()
	})
}

func (h *Handler) close() {
	if h.closed {
		return
	}
	h.closed = true
	h.conn.Close()
	if h.onClose != nil {
		h.onClose()
	}
}
