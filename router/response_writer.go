package router

import (
	"encoding/json"
	"strconv"

	"github.com/kfcemployee/reactorhttp/httpcodec"
)

// ResponseWriter wraps a httpcodec.Writer with the default header set
// every response on this server carries — grounded on
// original_source/http_server.hpp's http_request::write_response
// (Server/Content-type/Connection/Content-length, in that order) —
// plus WriteString/WriteJSON/WriteStatus convenience methods.
type ResponseWriter struct {
	w      httpcodec.Writer
	done   bool
	resume func()
}

// Reset clears the writer for the next response on a keep-alive
// connection.
func (rw *ResponseWriter) Reset() {
	rw.w.Reset()
	rw.done = false
	rw.resume = nil
}

// SetResume installs the continuation invoked once a handler finishes
// writing its response — the connection driver's hook back into its
// own Writing-state transition. Grounded on
// original_source/http_server.hpp's http_request::m_resume.
func (rw *ResponseWriter) SetResume(f func()) {
	rw.resume = f
}

// Bytes returns the fully serialized response.
func (rw *ResponseWriter) Bytes() []byte {
	return rw.w.Bytes()
}

// Done reports whether a handler has already written a response.
func (rw *ResponseWriter) Done() bool {
	return rw.done
}

// WriteResponse writes status, headers, and body, applying the
// server's default Server/Connection/Content-Length headers.
func (rw *ResponseWriter) WriteResponse(status int, body, contentType string) {
	rw.w.WriteStatusLine(status)
	rw.w.WriteHeader("Server", "co_http")
	rw.w.WriteHeader("Content-Type", contentType)
	rw.w.WriteHeader("Connection", "keep-alive")
	rw.w.WriteHeader("Content-Length", strconv.Itoa(len(body)))
	rw.w.EndHeaders()
	rw.w.WriteBody([]byte(body))
	rw.done = true
	if rw.resume != nil {
		resume := rw.resume
		rw.resume = nil
		resume()
	}
}

// WriteString writes a 200 response with a text/plain body.
func (rw *ResponseWriter) WriteString(body string) {
	rw.WriteResponse(200, body, "text/plain;charset=utf-8")
}

// WriteJSON marshals v and writes it as an application/json body.
func (rw *ResponseWriter) WriteJSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	rw.WriteResponse(200, string(body), "application/json")
	return nil
}

// WriteStatus writes a response carrying only a status line and the
// default headers, with no body.
func (rw *ResponseWriter) WriteStatus(status int) {
	rw.WriteResponse(status, "", "text/plain;charset=utf-8")
}
