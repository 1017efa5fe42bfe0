package http11

import (
	"bytes"
	"testing"
)

func TestFeedSimpleGET(t *testing.T) {
	b := NewRequestBuffer()
	terminal := b.Feed([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	if !terminal {
		t.Fatal("expected terminal state")
	}
	if b.State() != StateComplete {
		t.Fatalf("state = %v, want StateComplete", b.State())
	}
	raw, err := b.HeadersRaw()
	if err != nil {
		t.Fatalf("HeadersRaw: %v", err)
	}
	parsed, err := parseHeaders(raw)
	if err != nil {
		t.Fatalf("parseHeaders: %v", err)
	}
	if parsed.Method != "GET" {
		t.Errorf("Method = %q, want GET", parsed.Method)
	}
	if parsed.Path != "/" {
		t.Errorf("Path = %q, want /", parsed.Path)
	}
	if len(parsed.Headers) != 1 || !bytes.Equal(parsed.Headers[0].Name, []byte("host")) || !bytes.Equal(parsed.Headers[0].Value, []byte("example.com")) {
		t.Errorf("Headers = %+v, want [(host, example.com)]", parsed.Headers)
	}
}

func TestFeedContentLengthBody(t *testing.T) {
	b := NewRequestBuffer()
	input := "POST /s HTTP/1.1\r\nHost: h\r\nContent-Length: 12\r\n\r\nHello, World"
	if !b.Feed([]byte(input)) {
		t.Fatal("expected terminal state")
	}
	if b.State() != StateComplete {
		t.Fatalf("state = %v, want StateComplete", b.State())
	}
	body, err := b.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if string(body) != "Hello, World" {
		t.Errorf("Body = %q, want %q", body, "Hello, World")
	}
}

func TestFeedChunkedBody(t *testing.T) {
	b := NewRequestBuffer()
	head := "POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"
	if b.Feed([]byte(head)) {
		t.Fatal("should not be terminal after headers only")
	}
	if b.State() != StateReceivingChunks {
		t.Fatalf("state = %v, want StateReceivingChunks", b.State())
	}

	if b.Feed([]byte("5\r\nHello\r\n")) {
		t.Fatal("should not be terminal yet")
	}
	chunk1, err := b.LastChunks()
	if err != nil {
		t.Fatalf("LastChunks: %v", err)
	}
	if string(chunk1) != "Hello" {
		t.Errorf("chunk1 = %q, want Hello", chunk1)
	}

	if b.Feed([]byte("6\r\nWorld!\r\n")) {
		t.Fatal("should not be terminal yet")
	}
	chunk2, err := b.LastChunks()
	if err != nil {
		t.Fatalf("LastChunks: %v", err)
	}
	if string(chunk2) != "World!" {
		t.Errorf("chunk2 = %q, want World!", chunk2)
	}

	if !b.Feed([]byte("0\r\n\r\n")) {
		t.Fatal("expected terminal state after final chunk")
	}
	if b.State() != StateChunksComplete {
		t.Fatalf("state = %v, want StateChunksComplete", b.State())
	}
	body, err := b.Body()
	if err == nil {
		t.Errorf("Body() is only valid at StateComplete, got no error")
	}
	last, err := b.LastChunks()
	if err != nil {
		t.Fatalf("LastChunks: %v", err)
	}
	if len(last) != 0 {
		t.Errorf("trailing LastChunks = %q, want empty", last)
	}
	_ = body
}

func TestFeedChunkedBodyWholeBuffer(t *testing.T) {
	b := NewRequestBuffer()
	input := "POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nHello\r\n6\r\nWorld!\r\n0\r\n\r\n"
	if !b.Feed([]byte(input)) {
		t.Fatal("expected terminal")
	}
	if b.State() != StateChunksComplete {
		t.Fatalf("state = %v, want StateChunksComplete", b.State())
	}
	payload, err := b.LastChunks()
	if err != nil {
		t.Fatalf("LastChunks: %v", err)
	}
	if string(payload) != "HelloWorld!" {
		t.Errorf("payload = %q, want HelloWorld!", payload)
	}
}

// TestFeedArbitrarySplits checks that for any legal request split into
// pieces, feeding them in order yields the same terminal state and
// parsed result as feeding the request whole.
func TestFeedArbitrarySplits(t *testing.T) {
	whole := "POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nHello\r\n6\r\nWorld!\r\n0\r\n\r\n"

	for split := 1; split < len(whole); split++ {
		b := NewRequestBuffer()
		terminal := b.Feed([]byte(whole[:split]))
		if !terminal {
			terminal = b.Feed([]byte(whole[split:]))
		}
		if !terminal {
			t.Fatalf("split %d: never reached terminal state", split)
		}
		if b.State() != StateChunksComplete {
			t.Fatalf("split %d: state = %v, want StateChunksComplete", split, b.State())
		}
		payload, err := b.LastChunks()
		if err != nil {
			t.Fatalf("split %d: LastChunks: %v", split, err)
		}
		if string(payload) != "HelloWorld!" {
			t.Fatalf("split %d: payload = %q, want HelloWorld!", split, payload)
		}
	}
}

func TestFeedArbitrarySplitsContentLength(t *testing.T) {
	whole := "POST /s HTTP/1.1\r\nHost: h\r\nContent-Length: 12\r\n\r\nHello, World"
	for split := 1; split < len(whole); split++ {
		b := NewRequestBuffer()
		terminal := b.Feed([]byte(whole[:split]))
		if !terminal {
			terminal = b.Feed([]byte(whole[split:]))
		}
		if !terminal || b.State() != StateComplete {
			t.Fatalf("split %d: state = %v, terminal = %v", split, b.State(), terminal)
		}
		body, err := b.Body()
		if err != nil || string(body) != "Hello, World" {
			t.Fatalf("split %d: body = %q, err = %v", split, body, err)
		}
	}
}

func TestFeedMalformedChunkSize(t *testing.T) {
	b := NewRequestBuffer()
	head := "POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"
	b.Feed([]byte(head))
	if !b.Feed([]byte("5Hello\r\n")) {
		t.Fatal("expected terminal (error) state")
	}
	if b.State() != StateError || b.ErrorTag() != ErrTagBadRequest {
		t.Fatalf("state = %v, tag = %v, want ERROR/BadRequest", b.State(), b.ErrorTag())
	}
}

func TestFeedChunkMissingTrailingCRLF(t *testing.T) {
	b := NewRequestBuffer()
	b.Feed([]byte("POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if !b.Feed([]byte("5\r\nHelloXX")) {
		t.Fatal("expected terminal (error) state")
	}
	if b.State() != StateError {
		t.Fatalf("state = %v, want StateError", b.State())
	}
}

func TestFeedChunkTruncatedStaysReceiving(t *testing.T) {
	b := NewRequestBuffer()
	b.Feed([]byte("POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if b.Feed([]byte("A\r\nHello")) {
		t.Fatal("a truncated chunk should not be terminal")
	}
	if b.State() != StateReceivingChunks {
		t.Fatalf("state = %v, want StateReceivingChunks", b.State())
	}
}

func TestFeedZeroChunkMissingFinalCRLFStaysReceiving(t *testing.T) {
	b := NewRequestBuffer()
	b.Feed([]byte("POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if b.Feed([]byte("0\r\n")) {
		t.Fatal("a zero-chunk without the final CRLF should not be terminal")
	}
	if b.State() != StateReceivingChunks {
		t.Fatalf("state = %v, want StateReceivingChunks", b.State())
	}
}

func TestFeedBytesAfterZeroChunkTerminatorIsError(t *testing.T) {
	b := NewRequestBuffer()
	b.Feed([]byte("POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if !b.Feed([]byte("0\r\n\r\ngarbage")) {
		t.Fatal("expected terminal (error) state")
	}
	if b.State() != StateError {
		t.Fatalf("state = %v, want StateError", b.State())
	}
}

func TestFeedEmptyBytesNoop(t *testing.T) {
	b := NewRequestBuffer()
	b.Feed([]byte("GET / HTTP/1.1\r\nHost: h"))
	before := b.State()
	b.Feed(nil)
	if b.State() != before {
		t.Fatalf("state changed on empty Feed: %v -> %v", before, b.State())
	}
}

func TestMissingContentLengthOnPOSTIsLengthRequired(t *testing.T) {
	b := NewRequestBuffer()
	if !b.Feed([]byte("POST /s HTTP/1.1\r\nHost: h\r\n\r\n")) {
		t.Fatal("expected terminal (error) state")
	}
	if b.State() != StateError || b.ErrorTag() != ErrTagLengthRequired {
		t.Fatalf("state = %v, tag = %v, want ERROR/LengthRequired", b.State(), b.ErrorTag())
	}
}

func TestGETWithoutContentLengthCompletesImmediately(t *testing.T) {
	b := NewRequestBuffer()
	if !b.Feed([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n")) {
		t.Fatal("expected terminal state")
	}
	if b.State() != StateComplete {
		t.Fatalf("state = %v, want StateComplete", b.State())
	}
}

func TestZeroContentLengthCompletesImmediately(t *testing.T) {
	b := NewRequestBuffer()
	if !b.Feed([]byte("POST /s HTTP/1.1\r\nHost: h\r\nContent-Length: 0\r\n\r\n")) {
		t.Fatal("expected terminal state")
	}
	if b.State() != StateComplete {
		t.Fatalf("state = %v, want StateComplete", b.State())
	}
	body, err := b.Body()
	if err != nil || len(body) != 0 {
		t.Fatalf("body = %q, err = %v, want empty", body, err)
	}
}

func TestHeadersRawNotReadyDuringHeaders(t *testing.T) {
	b := NewRequestBuffer()
	b.Feed([]byte("GET / HTTP/1.1\r\nHost: h"))
	if _, err := b.HeadersRaw(); err != ErrNotReady {
		t.Fatalf("HeadersRaw err = %v, want ErrNotReady", err)
	}
}

func TestBodyNotReadyDuringChunks(t *testing.T) {
	b := NewRequestBuffer()
	b.Feed([]byte("POST /u HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if _, err := b.Body(); err != ErrNotReady {
		t.Fatalf("Body err = %v, want ErrNotReady", err)
	}
}

func TestParseHeadersMissingHostIsBadRequest(t *testing.T) {
	_, err := parseHeaders([]byte("GET / HTTP/1.1\r\n\r\n"))
	if err != ErrBadRequest {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestParseHeadersUnsupportedProtocol(t *testing.T) {
	_, err := parseHeaders([]byte("GET / HTTP/2.0\r\nHost: h\r\n\r\n"))
	var upErr *UnsupportedProtocolError
	if err == nil {
		t.Fatal("expected an error")
	}
	if e, ok := err.(*UnsupportedProtocolError); !ok {
		t.Fatalf("err = %T, want *UnsupportedProtocolError", err)
	} else {
		upErr = e
	}
	if upErr.Version != "2.0" {
		t.Errorf("Version = %q, want 2.0", upErr.Version)
	}
}

func TestParseHeadersInvalidMethod(t *testing.T) {
	_, err := parseHeaders([]byte("FOO / HTTP/1.1\r\nHost: h\r\n\r\n"))
	if err != ErrBadRequest {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestParseHeadersTrailingWhitespaceOnRequestLine(t *testing.T) {
	_, err := parseHeaders([]byte("GET / HTTP/1.1 \r\nHost: h\r\n\r\n"))
	if err != ErrBadRequest {
		t.Fatalf("err = %v, want ErrBadRequest (extra token from trailing whitespace)", err)
	}
}

func TestParseHeadersNoColonIsBadRequest(t *testing.T) {
	_, err := parseHeaders([]byte("GET / HTTP/1.1\r\nHost h\r\n\r\n"))
	if err != ErrBadRequest {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestParseHeadersSkipsBlankContinuationLines(t *testing.T) {
	parsed, err := parseHeaders([]byte("GET / HTTP/1.1\r\nHost: h\r\n: ignored\r\n\r\n"))
	if err != nil {
		t.Fatalf("parseHeaders: %v", err)
	}
	if len(parsed.Headers) != 1 {
		t.Fatalf("Headers = %+v, want only Host", parsed.Headers)
	}
}

func TestParseHeadersPreservesDuplicateOrder(t *testing.T) {
	parsed, err := parseHeaders([]byte("GET / HTTP/1.1\r\nHost: h\r\nX-A: 1\r\nX-A: 2\r\n\r\n"))
	if err != nil {
		t.Fatalf("parseHeaders: %v", err)
	}
	var values []string
	for _, f := range parsed.Headers {
		if bytes.Equal(f.Name, []byte("x-a")) {
			values = append(values, string(f.Value))
		}
	}
	if len(values) != 2 || values[0] != "1" || values[1] != "2" {
		t.Errorf("X-A values = %v, want [1 2] in order", values)
	}
}

func TestParseHeadersIsIdempotent(t *testing.T) {
	raw := []byte("GET /p?q=1 HTTP/1.1\r\nHost: h\r\nX-A: 1\r\n\r\n")
	first, err1 := parseHeaders(raw)
	second, err2 := parseHeaders(raw)
	if err1 != err2 {
		t.Fatalf("errors differ: %v vs %v", err1, err2)
	}
	if first.Method != second.Method || first.Path != second.Path || len(first.Headers) != len(second.Headers) {
		t.Fatalf("parseHeaders not idempotent: %+v vs %+v", first, second)
	}
}

func TestParseHeadersSplitsQueryString(t *testing.T) {
	parsed, err := parseHeaders([]byte("GET /search?q=go&x=1 HTTP/1.1\r\nHost: h\r\n\r\n"))
	if err != nil {
		t.Fatalf("parseHeaders: %v", err)
	}
	if parsed.Path != "/search" {
		t.Errorf("Path = %q, want /search", parsed.Path)
	}
	if string(parsed.QueryString) != "q=go&x=1" {
		t.Errorf("QueryString = %q, want q=go&x=1", parsed.QueryString)
	}
}

func TestReleaseAfterCompleteResetsForNextCycle(t *testing.T) {
	b := AcquireRequestBuffer()
	b.Feed([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n"))
	if b.State() != StateComplete {
		t.Fatalf("state = %v, want StateComplete", b.State())
	}
	b.Release()

	fresh := AcquireRequestBuffer()
	if fresh.State() != StateReceivingHeaders {
		t.Fatalf("fresh buffer state = %v, want StateReceivingHeaders", fresh.State())
	}
	if len(fresh.buf) != 0 {
		t.Fatalf("fresh buffer retained %d bytes, want 0", len(fresh.buf))
	}
}
