// Command reactorhttpd is the demo executable wrapping httpserver.Server
// with the message-board routes from original_source/main.cpp's
// server() function: a static index page, and a /send + /recv pair
// that accumulate and play back posted message bodies in memory.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/kfcemployee/reactorhttp/httpcodec"
	"github.com/kfcemployee/reactorhttp/httpserver"
	"github.com/kfcemployee/reactorhttp/router"
)

func main() {
	host := flag.String("host", "0.0.0.0", "address to bind")
	port := flag.Int("port", 8080, "port to listen on")
	indexPath := flag.String("index", "index.html", "path to the file served at /")
	readIdle := flag.Duration("read-idle-timeout", httpserver.DefaultConfig.ReadIdleTimeout, "idle read timeout per connection")
	dispatchTimeout := flag.Duration("dispatch-timeout", httpserver.DefaultConfig.DispatchTimeout, "max time a handler may take before its connection is closed")
	flag.Parse()

	cfg := httpserver.DefaultConfig
	cfg.BindHost = *host
	cfg.BindPort = strconv.Itoa(*port)
	cfg.ReadIdleTimeout = *readIdle
	cfg.DispatchTimeout = *dispatchTimeout

	logger := log.New(os.Stderr, "reactorhttpd: ", log.LstdFlags)

	s, err := httpserver.New(
		httpserver.WithConfig(cfg),
		httpserver.WithLogger(logger),
		httpserver.OnConnect(func(fd int) { logger.Printf("connect fd=%d", fd) }),
		httpserver.OnDisconnect(func(fd int) { logger.Printf("disconnect fd=%d", fd) }),
	)
	if err != nil {
		logger.Fatalf("failed to create server: %v", err)
	}

	board := newMessageBoard()

	s.GET("/", func(req *httpcodec.Request, w *router.ResponseWriter) {
		content, err := os.ReadFile(*indexPath)
		if err != nil {
			w.WriteResponse(404, "404 Not Found", "text/plain;charset=utf-8")
			return
		}
		w.WriteResponse(200, string(content), "text/html;charset=utf-8")
	})

	s.POST("/send", func(req *httpcodec.Request, w *router.ResponseWriter) {
		board.add(string(req.Body))
		w.WriteString("msg get")
	})

	s.GET("/recv", func(req *httpcodec.Request, w *router.ResponseWriter) {
		w.WriteString(board.dump())
	})

	logger.Printf("starting on %s:%d", *host, *port)
	if err := s.Run(context.Background()); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

// messageBoard accumulates posted message bodies, one per line, and
// plays them back as a single string — grounded directly on
// original_source/main.cpp's global std::string msg_list. Route
// handlers only ever run on the server's single reactor goroutine, so
// this needs no locking of its own.
type messageBoard struct {
	list strings.Builder
}

func newMessageBoard() *messageBoard {
	return &messageBoard{}
}

func (b *messageBoard) add(msg string) {
	b.list.WriteString(msg)
	b.list.WriteByte('\n')
}

func (b *messageBoard) dump() string {
	return b.list.String()
}
