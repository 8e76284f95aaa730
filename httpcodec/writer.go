package httpcodec

import "github.com/kfcemployee/reactorhttp/reactor"

// Writer builds an HTTP/1.1 response directly into a reactor.Buffer
// with no intermediate allocation. The reason phrase is always "OK"
// regardless of status code — kept exactly as
// original_source/http_codec.hpp's http11_header_writer writes it
// (begin_header(..., std::to_string(status), "OK")), not a per-code
// phrase table.
type Writer struct {
	buf reactor.Buffer
}

var (
	httpProto = []byte("HTTP/1.1 ")
	reasonOK  = []byte(" OK\r\n")
	colonSp   = []byte(": ")
	crlfBytes = []byte("\r\n")
)

// Reset clears the writer's buffer for reuse across responses on a
// keep-alive connection.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteStatusLine appends "HTTP/1.1 <code> OK\r\n". code outside
// [100, 599] is clamped to 500 rather than writing a nonsense status
// line.
func (w *Writer) WriteStatusLine(code int) {
	if code < 100 || code > 599 {
		code = 500
	}
	w.buf.Append(httpProto)
	w.buf.Append(appendInt(code))
	w.buf.Append(reasonOK)
}

// WriteHeader appends one "Key: Value\r\n" line.
func (w *Writer) WriteHeader(key, value string) {
	w.buf.Append([]byte(key))
	w.buf.Append(colonSp)
	w.buf.Append([]byte(value))
	w.buf.Append(crlfBytes)
}

// EndHeaders appends the blank line separating headers from the body.
func (w *Writer) EndHeaders() {
	w.buf.Append(crlfBytes)
}

// WriteBody appends the response body verbatim.
func (w *Writer) WriteBody(body []byte) {
	w.buf.Append(body)
}

// appendInt renders n's decimal digits with no intermediate
// allocation beyond the fixed-size scratch array itself.
func appendInt(n int) []byte {
	if n == 0 {
		return []byte{'0'}
	}
	var tmp [20]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte(n%10) + '0'
		n /= 10
	}
	return tmp[i:]
}
