// Package httpcodec implements the incremental HTTP/1.1 header and
// message parser (push_chunk-style, fed one read's worth of bytes at a
// time) and the response writer that serializes a status line, headers,
// and body back onto the wire.
//
// The header search and field layout (lowercase-ASCII header key
// normalization, Content-Length accumulation) follow the same shape as
// a one-pass whole-buffer parser; the incremental push-chunk
// discipline on top of that is grounded on
// original_source/http_codec.hpp's http11_request_parser and
// _http_base_parser, which do need to resume mid-header across reads.
package httpcodec

import (
	"bytes"
	"errors"

	"github.com/kfcemployee/reactorhttp/reactor"
)

// ErrMalformed is returned when the bytes pushed so far cannot be a
// valid HTTP/1.1 request no matter what arrives next (e.g. a request
// line with no method, a header line with no colon).
var ErrMalformed = errors.New("httpcodec: malformed request")

// ErrTooLarge is returned once the accumulated header block or body
// exceeds the parser's configured limits.
var ErrTooLarge = errors.New("httpcodec: request exceeds configured size limit")

// Method is the decoded HTTP request method.
type Method int

const (
	MethodUnknown Method = iota
	MethodGET
	MethodPOST
	MethodPUT
	MethodDELETE
	MethodHEAD
	MethodOPTIONS
	MethodPATCH
	MethodTRACE
	MethodCONNECT
)

var methodNames = map[string]Method{
	"GET":     MethodGET,
	"POST":    MethodPOST,
	"PUT":     MethodPUT,
	"DELETE":  MethodDELETE,
	"HEAD":    MethodHEAD,
	"OPTIONS": MethodOPTIONS,
	"PATCH":   MethodPATCH,
	"TRACE":   MethodTRACE,
	"CONNECT": MethodCONNECT,
}

func parseMethod(raw []byte) Method {
	if m, ok := methodNames[string(raw)]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	for name, v := range methodNames {
		if v == m {
			return name
		}
	}
	return "UNKNOWN"
}

// Request is one fully-parsed HTTP/1.1 request. Its slices alias the
// parser's internal buffers and are only valid until the next call to
// Reset or PushChunk — callers must copy anything they need to keep.
type Request struct {
	Method   Method
	Path     []byte
	Protocol []byte
	Headers  []Header
	Body     []byte
}

// Header returns the value of the last header matching key
// case-insensitively, and whether it was present. A duplicated header
// name is insert-or-assign: the line that appears last in the request
// wins, matching original_source/http_codec.hpp:49's
// m_header_keys.insert_or_assign.
func (r *Request) Header(key string) (string, bool) {
	for i := len(r.Headers) - 1; i >= 0; i-- {
		h := r.Headers[i]
		if bytes.EqualFold(h.Key, []byte(key)) {
			return string(h.Val), true
		}
	}
	return "", false
}

// Limits bounds how much a single request may grow before parsing
// fails with ErrTooLarge.
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int
}

// DefaultLimits is the size profile used when a caller doesn't
// override it.
var DefaultLimits = Limits{MaxHeaderBytes: 8192, MaxBodyBytes: 1 << 20}

// MessageParser incrementally assembles one HTTP/1.1 request from
// successive PushChunk calls, exactly mirroring
// _http_base_parser::push_chunk's two-phase header-then-body logic.
type MessageParser struct {
	limits Limits
	hp     headerParser
	req    Request

	contentLength int
	body          reactor.Buffer
	finished      bool
}

// NewMessageParser creates a parser enforcing limits.
func NewMessageParser(limits Limits) *MessageParser {
	return &MessageParser{limits: limits}
}

// Reset discards all progress so the parser can be reused for the next
// request on the same connection — the pipelined-request path every
// keep-alive connection takes.
func (p *MessageParser) Reset() {
	p.hp.reset()
	p.contentLength = 0
	p.body.Reset()
	p.finished = false
	p.req = Request{}
}

// Finished reports whether the most recent PushChunk completed a
// request.
func (p *MessageParser) Finished() bool {
	return p.finished
}

// Request returns the parsed request. Only meaningful once Finished
// reports true. Its slices alias the parser's internal buffers and
// become invalid after the next Reset — use DetachRequest to keep a
// request around across a Reset.
func (p *MessageParser) Request() *Request {
	return &p.req
}

// DetachRequest copies the current request's fields into freshly
// allocated slices so it survives a subsequent Reset. Connection
// handling calls this before reusing the parser for the next
// pipelined request, matching the "move body out of the parser, reset
// the parser for reuse" step of the connection state machine.
func (p *MessageParser) DetachRequest() Request {
	headers := make([]Header, len(p.req.Headers))
	for i, h := range p.req.Headers {
		headers[i] = Header{
			Key: append([]byte(nil), h.Key...),
			Val: append([]byte(nil), h.Val...),
		}
	}
	return Request{
		Method:   p.req.Method,
		Path:     append([]byte(nil), p.req.Path...),
		Protocol: append([]byte(nil), p.req.Protocol...),
		Headers:  headers,
		Body:     append([]byte(nil), p.req.Body...),
	}
}

// PushChunk feeds newly read bytes into the parser. It may be called
// any number of times before Finished becomes true — including with a
// chunk that splits the header terminator itself, per
// http11_request_parser::push_chunk's bounded-rescan window.
//
// It returns any bytes at the tail of chunk that belong to whatever
// comes after this request — the start of a pipelined next request, on
// a keep-alive connection. Callers must feed extra to a fresh parser
// rather than discarding it.
func (p *MessageParser) PushChunk(chunk []byte) (extra []byte, err error) {
	if !p.hp.finished {
		if p.limits.MaxHeaderBytes > 0 && p.hp.buf.Len()+len(chunk) > p.limits.MaxHeaderBytes {
			return nil, ErrTooLarge
		}
		leftover, err := p.hp.pushChunk(chunk)
		if err != nil {
			return nil, err
		}
		if !p.hp.finished {
			return nil, nil
		}
		if err := p.onHeadersFinished(); err != nil {
			return nil, err
		}
		return p.consumeBody(leftover)
	}
	return p.consumeBody(chunk)
}

// consumeBody applies up to p.contentLength-p.body.Len() bytes of
// chunk to the body, returning whatever is left over once the body is
// complete.
func (p *MessageParser) consumeBody(chunk []byte) ([]byte, error) {
	need := p.contentLength - p.body.Len()
	if need <= 0 {
		p.finished = true
		return chunk, nil
	}
	if len(chunk) < need {
		if err := p.appendBody(chunk); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := p.appendBody(chunk[:need]); err != nil {
		return nil, err
	}
	p.finished = true
	return chunk[need:], nil
}

func (p *MessageParser) onHeadersFinished() error {
	first, second, err := splitHeadline(p.hp.headline)
	if err != nil {
		return err
	}
	p.req.Method = parseMethod(first)
	p.req.Path = second
	p.req.Protocol = thirdField(p.hp.headline)
	p.req.Headers = p.hp.headers

	p.contentLength = extractContentLength(p.hp.headers)
	if p.limits.MaxBodyBytes > 0 && p.contentLength > p.limits.MaxBodyBytes {
		return ErrTooLarge
	}
	return nil
}

// appendBody appends chunk to the body, or returns ErrTooLarge without
// appending if that would exceed MaxBodyBytes; callers (via
// consumeBody) have already bounded chunk to at most what's still
// needed, so this never overruns contentLength.
func (p *MessageParser) appendBody(chunk []byte) error {
	if p.limits.MaxBodyBytes > 0 && p.body.Len()+len(chunk) > p.limits.MaxBodyBytes {
		return ErrTooLarge
	}
	p.body.Append(chunk)
	p.req.Body = p.body.Bytes()
	return nil
}

func splitHeadline(line []byte) (method, path []byte, err error) {
	sp := bytes.IndexByte(line, ' ')
	if sp == -1 {
		return nil, nil, ErrMalformed
	}
	method = line[:sp]
	rest := line[sp+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 == -1 {
		return nil, nil, ErrMalformed
	}
	return method, rest[:sp2], nil
}

func thirdField(line []byte) []byte {
	sp := bytes.IndexByte(line, ' ')
	if sp == -1 {
		return nil
	}
	sp2 := bytes.IndexByte(line[sp+1:], ' ')
	if sp2 == -1 {
		return nil
	}
	return line[sp+1+sp2+1:]
}

// extractContentLength reads the last Content-Length header present —
// a duplicated header is insert-or-assign, so an earlier line's value
// never wins over a later one (original_source/http_codec.hpp:49).
func extractContentLength(headers []Header) int {
	for i := len(headers) - 1; i >= 0; i-- {
		h := headers[i]
		if bytes.EqualFold(h.Key, contentLengthKey) {
			n := 0
			for _, c := range h.Val {
				if c < '0' || c > '9' {
					return 0
				}
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return 0
}

var contentLengthKey = []byte("Content-Length")
