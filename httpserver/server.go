// Package httpserver is the top-level server facade: it resolves a
// bind address, owns the listening socket and the router, and drives
// an accept loop that hands each new connection to its own
// connio.Handler.
//
// Grounded on original_source/http_server.hpp's http_server
// (do_start/do_accept) and on momentics-hioload-ws/server/options.go's
// ServerOption pattern, used here for OnConnect/OnDisconnect hooks.
package httpserver

import (
	"context"
	"log"
	"time"

	"github.com/kfcemployee/reactorhttp/connio"
	"github.com/kfcemployee/reactorhttp/httpcodec"
	"github.com/kfcemployee/reactorhttp/netio"
	"github.com/kfcemployee/reactorhttp/reactor"
	"github.com/kfcemployee/reactorhttp/resolver"
	"github.com/kfcemployee/reactorhttp/router"
	"golang.org/x/sys/unix"
)

// Config bounds everything about how a Server binds, accepts, and
// drives connections.
type Config struct {
	BindHost string
	BindPort string

	ReadIdleTimeout       time.Duration
	ReadBufferSize        int
	DispatchTimeout       time.Duration
	MaxHeaderBytes        int
	MaxBodyBytes          int
	ContinueOnAcceptError bool

	// Backlog is the listen(2) backlog passed to the listening socket.
	// Defaults to unix.SOMAXCONN, matching async_bind's unconditional
	// ::listen(fd, SOMAXCONN).
	Backlog int
}

// DefaultConfig matches connio.DefaultConfig's timeouts/sizes plus the
// server-level accept policy.
var DefaultConfig = Config{
	BindHost:              "0.0.0.0",
	BindPort:              "8080",
	ReadIdleTimeout:       connio.DefaultConfig.ReadIdleTimeout,
	ReadBufferSize:        connio.DefaultConfig.ReadBufferSize,
	DispatchTimeout:       connio.DefaultConfig.DispatchTimeout,
	MaxHeaderBytes:        httpcodec.DefaultLimits.MaxHeaderBytes,
	MaxBodyBytes:          httpcodec.DefaultLimits.MaxBodyBytes,
	ContinueOnAcceptError: false,
	Backlog:               unix.SOMAXCONN,
}

func (c Config) connioConfig() connio.Config {
	return connio.Config{
		ReadBufferSize:  c.ReadBufferSize,
		ReadIdleTimeout: c.ReadIdleTimeout,
		DispatchTimeout: c.DispatchTimeout,
		Limits: httpcodec.Limits{
			MaxHeaderBytes: c.MaxHeaderBytes,
			MaxBodyBytes:   c.MaxBodyBytes,
		},
	}
}

// Option customizes a Server at construction time.
type Option func(*Server)

// WithConfig replaces the server's default Config wholesale.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.log = l }
}

// OnConnect registers a callback invoked once a connection is
// accepted and wrapped, before it starts reading requests.
func OnConnect(cb func(fd int)) Option {
	return func(s *Server) { s.onConnect = append(s.onConnect, cb) }
}

// OnDisconnect registers a callback invoked once a connection closes,
// for any reason.
func OnDisconnect(cb func(fd int)) Option {
	return func(s *Server) { s.onDisconnect = append(s.onDisconnect, cb) }
}

// Server owns the reactor, the listening socket, and the router. A
// Server is only ever driven from the goroutine that calls Run — like
// connio.Handler and reactor.Reactor, it carries no internal locking.
type Server struct {
	cfg    Config
	rx     *reactor.Reactor
	router *router.Router
	log    *log.Logger

	listener *netio.AsyncFile

	onConnect    []func(fd int)
	onDisconnect []func(fd int)
}

// New builds a Server bound to its own fresh Reactor, applying opts
// over DefaultConfig.
func New(opts ...Option) (*Server, error) {
	rx, err := reactor.New()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    DefaultConfig,
		rx:     rx,
		router: router.New(),
		log:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router exposes the server's route table for registration
// (GET/POST/PUT/PATCH/DELETE/Handle).
func (s *Server) Router() *router.Router {
	return s.router
}

// GET, POST, PUT, PATCH, and DELETE register a handler directly on
// the server's router, saving callers a Router() hop for the common
// case.
func (s *Server) GET(path string, h router.Handler)    { s.router.GET(path, h) }
func (s *Server) POST(path string, h router.Handler)   { s.router.POST(path, h) }
func (s *Server) PUT(path string, h router.Handler)    { s.router.PUT(path, h) }
func (s *Server) PATCH(path string, h router.Handler)  { s.router.PATCH(path, h) }
func (s *Server) DELETE(path string, h router.Handler) { s.router.DELETE(path, h) }
func (s *Server) Handle(method httpcodec.Method, path string, h router.Handler) {
	s.router.Handle(method, path, h)
}

// Run resolves the bind address, starts listening, and drives the
// accept loop plus every connection it spawns until Stop is called or
// a fatal bind/accept error occurs. It blocks for the server's entire
// lifetime.
func (s *Server) Run(ctx context.Context) error {
	endpoints, err := resolver.Resolve(ctx, s.cfg.BindHost, s.cfg.BindPort)
	if err != nil {
		return err
	}

	ln, err := netio.Listen(s.rx, endpoints[0].Addr, s.cfg.Backlog)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Printf("httpserver: listening on %s:%s", s.cfg.BindHost, s.cfg.BindPort)

	s.doAccept()
	return s.rx.Run()
}

// Stop closes the listening socket, refusing any further accepts.
// Connections already in flight keep running to completion — the
// reactor only drains once they finish or time out.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// doAccept waits for a single incoming connection, spawns a
// connio.Handler for it, and re-arms itself — exactly
// http_server::do_accept's self-recursive continuation. An accept
// error is fatal to the server by default (res.Must panics the
// reactor's driving goroutine); ContinueOnAcceptError downgrades that
// to a logged retry instead.
func (s *Server) doAccept() {
	s.listener.Accept(reactor.StopToken{}, func(res reactor.Result[netio.AcceptResult]) {
		if res.Error() {
			if s.cfg.ContinueOnAcceptError {
				s.log.Printf("httpserver: accept error: %v", res.Err)
				s.doAccept()
				return
			}
			res.Must("accept")
			return
		}
		s.handleAccepted(res.Value)
		s.doAccept()
	})
}

func (s *Server) handleAccepted(ar netio.AcceptResult) {
	conn, err := netio.New(s.rx, ar.FD)
	if err != nil {
		s.log.Printf("httpserver: failed to wrap accepted fd %d: %v", ar.FD, err)
		return
	}

	fd := ar.FD
	for _, cb := range s.onConnect {
		cb(fd)
	}

	h := connio.New(s.rx, conn, s.router, s.cfg.connioConfig())
	h.OnClose(func() {
		for _, cb := range s.onDisconnect {
			cb(fd)
		}
	})
	h.Start()
}
