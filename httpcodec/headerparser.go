package httpcodec

import (
	"bytes"

	"github.com/kfcemployee/reactorhttp/reactor"
)

// Header is one parsed header field. Key is normalized to
// lowercase-ASCII in place (spec invariant: header keys in the parsed
// map are all lowercase-ASCII); Val keeps whatever casing the client
// sent.
type Header struct {
	Key []byte
	Val []byte
}

var crlfcrlf = []byte("\r\n\r\n")
var crlf = []byte("\r\n")
var colonSpace = []byte(": ")

// headerParser accumulates raw bytes until it finds the blank line
// terminating the header block, then splits the accumulated block into
// a request line and a lowercased-key header list. Grounded on
// original_source/http_codec.hpp's http11_request_parser::push_chunk.
// Each chunk's search starts three bytes before the old end (clamped at
// 0), so a chunk boundary landing in the middle of "\r\n\r\n" is never
// missed and the header block is never rescanned from the start on
// every chunk either.
type headerParser struct {
	buf      reactor.Buffer
	headline []byte
	headers  []Header
	finished bool
}

func (p *headerParser) reset() {
	p.buf.Reset()
	p.headline = nil
	p.headers = nil
	p.finished = false
}

// pushChunk appends chunk to the accumulated header bytes. If the
// terminating blank line is found, it returns whatever bytes follow it
// (the start of the request body, possibly empty) and finishes parsing
// the header block; otherwise it returns a nil leftover and the caller
// must push more chunks.
func (p *headerParser) pushChunk(chunk []byte) ([]byte, error) {
	oldSize := p.buf.Len()
	p.buf.Append(chunk)

	searchFrom := oldSize
	if searchFrom < 3 {
		searchFrom = 0
	} else {
		searchFrom -= 3
	}

	idx := bytes.Index(p.buf.Slice(searchFrom, p.buf.Len()), crlfcrlf)
	if idx == -1 {
		return nil, nil
	}
	headerEnd := searchFrom + idx

	leftover := append([]byte(nil), p.buf.Slice(headerEnd+4, p.buf.Len())...)
	p.buf.Truncate(headerEnd)
	p.finished = true

	if err := p.extractHeaders(); err != nil {
		return nil, err
	}
	return leftover, nil
}

func (p *headerParser) extractHeaders() error {
	buf := p.buf.Bytes()
	pos := bytes.Index(buf, crlf)
	if pos == -1 {
		p.headline = buf
		return nil
	}
	p.headline = buf[:pos]

	rest := buf[pos+2:]
	for len(rest) > 0 {
		nl := bytes.Index(rest, crlf)
		var line []byte
		if nl == -1 {
			line = rest
			rest = nil
		} else {
			line = rest[:nl]
			rest = rest[nl+2:]
		}
		if len(line) == 0 {
			continue
		}
		colon := bytes.Index(line, colonSpace)
		if colon == -1 {
			return ErrMalformed
		}
		key := toLowerASCII(line[:colon])
		val := line[colon+2:]
		p.headers = append(p.headers, Header{Key: key, Val: val})
	}
	return nil
}

func toLowerASCII(b []byte) []byte {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return b
}
