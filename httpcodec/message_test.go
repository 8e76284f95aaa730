package httpcodec

import (
	"bytes"
	"errors"
	"testing"
)

func TestMessageParserSimpleGET(t *testing.T) {
	p := NewMessageParser(DefaultLimits)
	raw := "GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n"

	if _, err := p.PushChunk([]byte(raw)); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	if !p.Finished() {
		t.Fatal("parser did not finish on a complete header-only request")
	}

	req := p.Request()
	if req.Method != MethodGET {
		t.Fatalf("Method = %v, want GET", req.Method)
	}
	if string(req.Path) != "/hello" {
		t.Fatalf("Path = %q, want /hello", req.Path)
	}
	if v, ok := req.Header("host"); !ok || v != "example.com" {
		t.Fatalf("Header(host) = %q, %v, want example.com, true", v, ok)
	}
	if len(req.Body) != 0 {
		t.Fatalf("Body = %q, want empty", req.Body)
	}
}

func TestMessageParserHeaderKeysAreLowercased(t *testing.T) {
	p := NewMessageParser(DefaultLimits)
	raw := "GET / HTTP/1.1\r\nX-Custom-Header: value\r\n\r\n"
	if _, err := p.PushChunk([]byte(raw)); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	req := p.Request()
	if len(req.Headers) != 1 {
		t.Fatalf("len(Headers) = %d, want 1", len(req.Headers))
	}
	if string(req.Headers[0].Key) != "x-custom-header" {
		t.Fatalf("Headers[0].Key = %q, want lowercase", req.Headers[0].Key)
	}
}

func TestMessageParserWithBody(t *testing.T) {
	p := NewMessageParser(DefaultLimits)
	raw := "POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	if _, err := p.PushChunk([]byte(raw)); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	if !p.Finished() {
		t.Fatal("parser did not finish")
	}
	req := p.Request()
	if req.Method != MethodPOST {
		t.Fatalf("Method = %v, want POST", req.Method)
	}
	if string(req.Body) != "hello" {
		t.Fatalf("Body = %q, want hello", req.Body)
	}
}

// TestMessageParserChunkedAcrossHeaderBoundary exercises the scenario
// where the "\r\n\r\n" terminator itself is split across two reads.
func TestMessageParserChunkedAcrossHeaderBoundary(t *testing.T) {
	full := "GET /split HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n"
	splitAt := bytes.Index([]byte(full), []byte("\r\n\r\n")) + 2 // lands inside the terminator

	p := NewMessageParser(DefaultLimits)
	if _, err := p.PushChunk([]byte(full[:splitAt])); err != nil {
		t.Fatalf("PushChunk(first half): %v", err)
	}
	if p.Finished() {
		t.Fatal("parser finished before the header terminator completed")
	}

	if _, err := p.PushChunk([]byte(full[splitAt:])); err != nil {
		t.Fatalf("PushChunk(second half): %v", err)
	}
	if !p.Finished() {
		t.Fatal("parser did not finish once the terminator completed")
	}
	if string(p.Request().Path) != "/split" {
		t.Fatalf("Path = %q, want /split", p.Request().Path)
	}
}

func TestMessageParserBodyArrivesAcrossChunks(t *testing.T) {
	p := NewMessageParser(DefaultLimits)
	if _, err := p.PushChunk([]byte("POST /x HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")); err != nil {
		t.Fatalf("PushChunk(headers+partial body): %v", err)
	}
	if p.Finished() {
		t.Fatal("parser finished before the full body arrived")
	}
	if _, err := p.PushChunk([]byte("defghij")); err != nil {
		t.Fatalf("PushChunk(rest of body): %v", err)
	}
	if !p.Finished() {
		t.Fatal("parser did not finish once the full body arrived")
	}
	if string(p.Request().Body) != "abcdefghij" {
		t.Fatalf("Body = %q, want abcdefghij", p.Request().Body)
	}
}

func TestMessageParserMissingContentLengthMeansEmptyBody(t *testing.T) {
	p := NewMessageParser(DefaultLimits)
	extra, err := p.PushChunk([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\nthis-is-not-a-body"))
	if err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	if !p.Finished() {
		t.Fatal("request with no Content-Length should finish as soon as headers do")
	}
	if len(p.Request().Body) != 0 {
		t.Fatalf("Body = %q, want empty (no Content-Length)", p.Request().Body)
	}
	if string(extra) != "this-is-not-a-body" {
		t.Fatalf("extra = %q, want the trailing bytes treated as pipelined data", extra)
	}
}

func TestMessageParserPipelinedRequestsSplitCorrectly(t *testing.T) {
	first := "GET /a HTTP/1.1\r\nContent-Length: 0\r\n\r\n"
	second := "GET /b HTTP/1.1\r\nContent-Length: 0\r\n\r\n"

	p := NewMessageParser(DefaultLimits)
	extra, err := p.PushChunk([]byte(first + second))
	if err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	if !p.Finished() {
		t.Fatal("first pipelined request did not finish")
	}
	if string(p.Request().Path) != "/a" {
		t.Fatalf("Path = %q, want /a", p.Request().Path)
	}
	if string(extra) != second {
		t.Fatalf("extra = %q, want the second pipelined request untouched", extra)
	}

	p.Reset()
	if _, err := p.PushChunk(extra); err != nil {
		t.Fatalf("PushChunk(extra): %v", err)
	}
	if string(p.Request().Path) != "/b" {
		t.Fatalf("Path = %q, want /b", p.Request().Path)
	}
}

func TestMessageParserMalformedHeaderLine(t *testing.T) {
	p := NewMessageParser(DefaultLimits)
	_, err := p.PushChunk([]byte("GET / HTTP/1.1\r\nNotAHeaderLine\r\n\r\n"))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("PushChunk error = %v, want ErrMalformed", err)
	}
}

func TestMessageParserRejectsOversizedHeaders(t *testing.T) {
	p := NewMessageParser(Limits{MaxHeaderBytes: 16, MaxBodyBytes: 1 << 20})
	_, err := p.PushChunk([]byte("GET /way-too-long-a-path-for-this-limit HTTP/1.1\r\n\r\n"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("PushChunk error = %v, want ErrTooLarge", err)
	}
}

func TestMessageParserRejectsOversizedBody(t *testing.T) {
	p := NewMessageParser(Limits{MaxHeaderBytes: 8192, MaxBodyBytes: 4})
	_, err := p.PushChunk([]byte("POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("PushChunk error = %v, want ErrTooLarge", err)
	}
}

func TestMessageParserResetAllowsReuse(t *testing.T) {
	p := NewMessageParser(DefaultLimits)
	if _, err := p.PushChunk([]byte("GET /first HTTP/1.1\r\nContent-Length: 0\r\n\r\n")); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	p.Reset()
	if p.Finished() {
		t.Fatal("Reset did not clear Finished")
	}
	if _, err := p.PushChunk([]byte("POST /second HTTP/1.1\r\nContent-Length: 0\r\n\r\n")); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	if string(p.Request().Path) != "/second" {
		t.Fatalf("Path = %q, want /second", p.Request().Path)
	}
}
