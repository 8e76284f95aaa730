// Package router implements the literal, exact-match (method, path)
// dispatch table that picks a handler for each parsed request.
//
// Grounded on original_source/http_server.hpp's http_router: a single
// map keyed by the request target, 404 on miss. This router's contract
// is literal matching only — no globs, no path parameters.
package router

import (
	"github.com/kfcemployee/reactorhttp/httpcodec"
)

// Handler answers one request by writing a response into w. It runs on
// the reactor's goroutine and blocks it for as long as it runs. The
// response is sent when one of w's Write* methods is called, which may
// happen after Handler returns; that call, and the write it starts,
// run on the calling goroutine, and neither w nor the connection
// handler has any locking.
type Handler func(req *httpcodec.Request, w *ResponseWriter)

type routeKey struct {
	method httpcodec.Method
	path   string
}

// Router is an exact-match (method, path) -> Handler table.
type Router struct {
	routes map[routeKey]Handler
}

// New creates an empty router.
func New() *Router {
	return &Router{routes: make(map[routeKey]Handler)}
}

// Handle registers h for method and path, replacing any handler
// already registered for that exact pair.
func (r *Router) Handle(method httpcodec.Method, path string, h Handler) {
	r.routes[routeKey{method, path}] = h
}

// GET, POST, PUT, PATCH, and DELETE are Handle shorthands for the
// matching HTTP method.
func (r *Router) GET(path string, h Handler)    { r.Handle(httpcodec.MethodGET, path, h) }
func (r *Router) POST(path string, h Handler)   { r.Handle(httpcodec.MethodPOST, path, h) }
func (r *Router) PUT(path string, h Handler)    { r.Handle(httpcodec.MethodPUT, path, h) }
func (r *Router) PATCH(path string, h Handler)  { r.Handle(httpcodec.MethodPATCH, path, h) }
func (r *Router) DELETE(path string, h Handler) { r.Handle(httpcodec.MethodDELETE, path, h) }

// Dispatch finds the handler registered for req's method and path and
// invokes it, falling back to a plain 404 response on a miss.
func (r *Router) Dispatch(req *httpcodec.Request, w *ResponseWriter) {
	h, ok := r.routes[routeKey{req.Method, string(req.Path)}]
	if !ok {
		w.WriteResponse(404, "404 Not Found", "text/plain;charset=utf-8")
		return
	}
	h(req, w)
}
