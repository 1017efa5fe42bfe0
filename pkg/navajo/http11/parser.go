package http11

import (
	"bytes"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// ParserState is the incremental state of a single request's reception.
// A RequestBuffer only ever moves forward through this progression; it
// never rewinds.
type ParserState int

const (
	StateReceivingHeaders ParserState = iota
	StateReceivingBody
	StateReceivingChunks
	StateComplete
	StateChunksComplete
	StateError
)

// RequestBuffer accumulates bytes fed to it from the wire and advances an
// internal state machine; it never blocks a goroutine on an io.Reader, so
// the caller stays in control of when bytes arrive. One RequestBuffer is
// used per request; the Connection installs a fresh one once a request
// completes.
type RequestBuffer struct {
	buf []byte

	state  ParserState
	errTag ParserErrorTag

	headersEnd int // absolute offset just past the header-terminating CRLFCRLF, -1 until known

	chunked       bool
	contentLength int64 // -1 until a Content-Length header is seen

	// chunkParsedEnd is the absolute offset up to which complete,
	// structurally valid chunk frames have been walked. chunkDeliverPos is
	// the offset up to which LastChunks has already handed payload bytes
	// to the caller; it trails chunkParsedEnd between calls.
	chunkParsedEnd  int
	chunkDeliverPos int

	method string

	// pooled is non-nil when buf's backing array came from bufPool via
	// AcquireRequestBuffer; Release returns it. Buffers created directly
	// with NewRequestBuffer (as tests do) leave this nil.
	pooled *bytebufferpool.ByteBuffer
}

// NewRequestBuffer returns a RequestBuffer ready to receive the start of a
// new request.
func NewRequestBuffer() *RequestBuffer {
	return &RequestBuffer{
		state:         StateReceivingHeaders,
		contentLength: -1,
		headersEnd:    -1,
	}
}

// reset restores b to its initial state so it can be reused for the next
// request on the same connection without a fresh allocation.
func (b *RequestBuffer) reset() {
	b.buf = b.buf[:0]
	b.state = StateReceivingHeaders
	b.errTag = ErrTagNone
	b.headersEnd = -1
	b.chunked = false
	b.contentLength = -1
	b.chunkParsedEnd = 0
	b.chunkDeliverPos = 0
	b.method = ""
}

// State returns the buffer's current parser state.
func (b *RequestBuffer) State() ParserState { return b.state }

// ErrorTag returns the reason the buffer moved to StateError, or
// ErrTagNone if it has not.
func (b *RequestBuffer) ErrorTag() ParserErrorTag { return b.errTag }

// Feed appends newly received bytes and advances the state machine as far
// as the available data allows. It returns true once the request has
// reached a terminal state (StateComplete, StateChunksComplete, or
// StateError); the caller should stop feeding this buffer at that point.
func (b *RequestBuffer) Feed(data []byte) bool {
	if b.state == StateComplete || b.state == StateChunksComplete || b.state == StateError {
		return true
	}
	b.buf = append(b.buf, data...)
	b.advance()
	return b.state == StateComplete || b.state == StateChunksComplete || b.state == StateError
}

func (b *RequestBuffer) fail(tag ParserErrorTag) {
	b.state = StateError
	b.errTag = tag
}

func (b *RequestBuffer) advance() {
	switch b.state {
	case StateReceivingHeaders:
		b.advanceHeaders()
	case StateReceivingBody:
		b.advanceBody()
	case StateReceivingChunks:
		b.advanceChunks()
	}
}

func (b *RequestBuffer) advanceHeaders() {
	idx := bytes.Index(b.buf, headerTerminator)
	if idx == -1 {
		if len(b.buf) > MaxRequestLineSize+MaxHeadersSize {
			b.fail(ErrTagBadRequest)
		}
		return
	}
	b.headersEnd = idx + len(headerTerminator)

	chunked, clen, method, ok := scanFramingHeaders(b.buf[:idx])
	if !ok {
		b.fail(ErrTagBadRequest)
		return
	}
	b.method = method

	if chunked {
		b.chunked = true
		b.chunkParsedEnd = b.headersEnd
		b.chunkDeliverPos = b.headersEnd
		b.state = StateReceivingChunks
		b.advanceChunks()
		return
	}

	b.contentLength = clen
	if clen < 0 {
		if methodRequiresBody(method) {
			b.fail(ErrTagLengthRequired)
			return
		}
		b.state = StateComplete
		return
	}
	if clen == 0 {
		b.state = StateComplete
		return
	}
	b.state = StateReceivingBody
	b.advanceBody()
}

func (b *RequestBuffer) advanceBody() {
	have := int64(len(b.buf) - b.headersEnd)
	if have >= b.contentLength {
		b.state = StateComplete
	}
}

// advanceChunks walks as many complete chunk frames as are available,
// starting from chunkParsedEnd. A truncated trailing frame simply stops
// the walk without error; it completes on a later Feed call.
func (b *RequestBuffer) advanceChunks() {
	for {
		lineEnd := bytes.Index(b.buf[b.chunkParsedEnd:], crlf)
		if lineEnd == -1 {
			return
		}
		sizeLine := b.buf[b.chunkParsedEnd : b.chunkParsedEnd+lineEnd]
		if i := bytes.IndexByte(sizeLine, ';'); i != -1 {
			sizeLine = sizeLine[:i]
		}
		size, err := strconv.ParseInt(string(sizeLine), 16, 64)
		if err != nil || size < 0 {
			b.fail(ErrTagBadRequest)
			return
		}

		dataStart := b.chunkParsedEnd + lineEnd + len(crlf)

		if size == 0 {
			if len(b.buf)-dataStart < len(crlf) {
				return
			}
			if !bytes.Equal(b.buf[dataStart:dataStart+len(crlf)], crlf) {
				b.fail(ErrTagBadRequest)
				return
			}
			terminatorEnd := dataStart + len(crlf)
			if len(b.buf) > terminatorEnd {
				b.fail(ErrTagBadRequest)
				return
			}
			b.chunkParsedEnd = terminatorEnd
			b.state = StateChunksComplete
			return
		}

		frameEnd := dataStart + int(size) + len(crlf)
		if len(b.buf) < frameEnd {
			return
		}
		if !bytes.Equal(b.buf[dataStart+int(size):frameEnd], crlf) {
			b.fail(ErrTagBadRequest)
			return
		}
		b.chunkParsedEnd = frameEnd
	}
}

// HeadersRaw returns the header block bytes, including the request line
// and the terminating CRLFCRLF, once they have been fully received.
func (b *RequestBuffer) HeadersRaw() ([]byte, error) {
	if b.headersEnd < 0 {
		return nil, ErrNotReady
	}
	return b.buf[:b.headersEnd], nil
}

// Body returns the fully received request body for a Content-Length
// request. It is only valid once the buffer has reached StateComplete.
func (b *RequestBuffer) Body() ([]byte, error) {
	if b.state != StateComplete {
		return nil, ErrNotReady
	}
	if b.contentLength <= 0 {
		return nil, nil
	}
	end := b.headersEnd + int(b.contentLength)
	if end > len(b.buf) {
		end = len(b.buf)
	}
	return b.buf[b.headersEnd:end], nil
}

// LastChunks returns the dechunked payload bytes that have newly become
// available since the previous call, or since reception began if this is
// the first call. It is valid during StateReceivingChunks (to stream
// incremental http.request messages) and at StateChunksComplete (to drain
// the final chunk's data). Each call consumes the bytes it returns.
func (b *RequestBuffer) LastChunks() ([]byte, error) {
	if b.state != StateReceivingChunks && b.state != StateChunksComplete {
		return nil, ErrNotReady
	}
	if b.chunkDeliverPos >= b.chunkParsedEnd {
		return nil, nil
	}
	payload, err := dechunkFrames(b.buf[b.chunkDeliverPos:b.chunkParsedEnd])
	if err != nil {
		return nil, err
	}
	b.chunkDeliverPos = b.chunkParsedEnd
	return payload, nil
}

// HasPendingChunks reports whether LastChunks has newly available
// payload bytes to return without blocking. The Connection Protocol
// uses this to decide whether an application's receive() call can be
// answered immediately or must wait for more bytes to arrive.
func (b *RequestBuffer) HasPendingChunks() bool {
	return b.chunkDeliverPos < b.chunkParsedEnd
}

// scanFramingHeaders performs the cheap, unvalidated scan feed() needs to
// decide how the body is framed: whether Transfer-Encoding names
// "chunked", the numeric Content-Length otherwise, and the method token
// off the request line (for the body-required check). Beyond rejecting a
// field line with no colon and a non-numeric or negative Content-Length,
// it does not validate the request line or header syntax; that is
// parseHeaders' job, run later by the Connection Protocol.
func scanFramingHeaders(headerBlock []byte) (chunked bool, contentLength int64, method string, ok bool) {
	contentLength = -1

	lines := bytes.Split(headerBlock, crlf)
	if len(lines) == 0 {
		return false, -1, "", false
	}
	if sp := bytes.IndexByte(lines[0], ' '); sp != -1 {
		method = string(lines[0][:sp])
	}

	for _, line := range lines[1:] {
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return false, -1, "", false
		}
		name := bytes.TrimSpace(line[:colon])
		value := bytes.TrimSpace(line[colon+1:])

		switch {
		case bytesEqualCaseInsensitive(name, headerTransferEncoding):
			if bytesEqualCaseInsensitive(bytes.ToLower(value), valueChunked) {
				chunked = true
			}
		case bytesEqualCaseInsensitive(name, headerContentLength):
			n, err := strconv.ParseInt(string(value), 10, 64)
			if err != nil || n < 0 {
				return false, -1, "", false
			}
			contentLength = n
		}
	}
	return chunked, contentLength, method, true
}

// dechunkFrames concatenates the data payloads of a byte range known to
// contain only complete, already-validated chunk frames (as produced by
// advanceChunks), skipping the terminating zero-size chunk.
func dechunkFrames(region []byte) ([]byte, error) {
	var out []byte
	pos := 0
	for pos < len(region) {
		lineEnd := bytes.Index(region[pos:], crlf)
		if lineEnd == -1 {
			return nil, ErrBadRequest
		}
		sizeLine := region[pos : pos+lineEnd]
		if i := bytes.IndexByte(sizeLine, ';'); i != -1 {
			sizeLine = sizeLine[:i]
		}
		size, err := strconv.ParseInt(string(sizeLine), 16, 64)
		if err != nil {
			return nil, ErrBadRequest
		}
		dataStart := pos + lineEnd + len(crlf)
		if size == 0 {
			break
		}
		out = append(out, region[dataStart:dataStart+int(size)]...)
		pos = dataStart + int(size) + len(crlf)
	}
	return out, nil
}

// allowedVersions is the closed set of HTTP versions parseHeaders
// accepts. Anything else is ErrUnsupportedProtocol.
var allowedVersions = map[string]bool{
	"1.0": true,
	"1":   true,
	"1.1": true,
}

// parsedRequestLine holds the structured result of parseHeaders, the pure
// function the Connection Protocol runs once a request's headers have
// been fully received, in place of the lightweight scan feed() uses
// internally.
type parsedRequestLine struct {
	Method      string
	Path        string
	RawPath     []byte
	QueryString []byte
	HTTPVersion string
	Headers     Headers
}

// parseHeaders performs the full, validating parse of a header block
// (request line plus fields, including the terminating CRLFCRLF) that
// HeadersRaw returns. Bytes are treated as ISO-8859-1: every octet maps
// to itself, never run through a UTF-8 decoder, so the resulting strings
// carry arbitrary wire bytes without risk of decode failure.
func parseHeaders(raw []byte) (*parsedRequestLine, error) {
	lines := bytes.Split(raw, crlf)
	if len(lines) == 0 {
		return nil, ErrBadRequest
	}

	fields := bytes.Split(lines[0], []byte(" "))
	if len(fields) != 3 {
		return nil, ErrBadRequest
	}
	method := string(fields[0])
	if !isValidMethod(method) {
		return nil, ErrBadRequest
	}
	target := fields[1]
	if len(target) > MaxURILength {
		return nil, ErrBadRequest
	}
	proto := fields[2]

	slash := bytes.IndexByte(proto, '/')
	if slash == -1 || bytes.IndexByte(proto[slash+1:], '/') != -1 {
		return nil, ErrBadRequest
	}
	version := string(proto[slash+1:])
	if !allowedVersions[version] {
		return nil, &UnsupportedProtocolError{Version: version}
	}

	rawPath := target
	var queryString []byte
	if q := bytes.IndexByte(target, '?'); q != -1 {
		rawPath = target[:q]
		queryString = target[q+1:]
	}

	var headers Headers
	hasHost := false
	for _, line := range lines[1:] {
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return nil, ErrBadRequest
		}
		name := bytes.ToLower(bytes.TrimSpace(line[:colon]))
		value := bytes.TrimSpace(line[colon+1:])
		if len(headers) >= MaxHeaders {
			return nil, ErrBadRequest
		}
		headers = append(headers, HeaderField{Name: name, Value: value})
		if bytesEqualCaseInsensitive(name, headerHost) && len(value) > 0 {
			hasHost = true
		}
	}
	if !hasHost {
		return nil, ErrBadRequest
	}

	return &parsedRequestLine{
		Method:      method,
		Path:        string(rawPath),
		RawPath:     rawPath,
		QueryString: queryString,
		HTTPVersion: version,
		Headers:     headers,
	}, nil
}
