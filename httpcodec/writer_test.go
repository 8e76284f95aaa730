package httpcodec

import (
	"strings"
	"testing"
)

func TestWriterBasicResponse(t *testing.T) {
	var w Writer
	w.WriteStatusLine(200)
	w.WriteHeader("Content-Type", "text/plain;charset=utf-8")
	w.WriteHeader("Content-Length", "2")
	w.EndHeaders()
	w.WriteBody([]byte("OK"))

	got := string(w.Bytes())
	want := "HTTP/1.1 200 OK\r\nContent-Type: text/plain;charset=utf-8\r\nContent-Length: 2\r\n\r\nOK"
	if got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestWriterReasonPhraseAlwaysOK(t *testing.T) {
	for _, code := range []int{200, 301, 404, 500} {
		var w Writer
		w.WriteStatusLine(code)
		if !strings.HasSuffix(string(w.Bytes()), " OK\r\n") {
			t.Fatalf("status line for %d = %q, want it to end in \" OK\\r\\n\"", code, w.Bytes())
		}
	}
}

func TestWriterClampsInvalidStatusCode(t *testing.T) {
	var w Writer
	w.WriteStatusLine(9999)
	if !strings.HasPrefix(string(w.Bytes()), "HTTP/1.1 500 ") {
		t.Fatalf("Bytes() = %q, want it clamped to 500", w.Bytes())
	}
}

func TestWriterResetAllowsReuse(t *testing.T) {
	var w Writer
	w.WriteStatusLine(200)
	w.Reset()
	if len(w.Bytes()) != 0 {
		t.Fatalf("Bytes() after Reset = %q, want empty", w.Bytes())
	}
	w.WriteStatusLine(404)
	if string(w.Bytes()) != "HTTP/1.1 404 OK\r\n" {
		t.Fatalf("Bytes() = %q", w.Bytes())
	}
}
