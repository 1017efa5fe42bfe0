package http11

import (
	"errors"
	"strconv"
)

// ParserErrorTag classifies why a RequestBuffer transitioned to StateError.
// The Connection Protocol maps each tag to a distinct canned response.
type ParserErrorTag int

const (
	// ErrTagNone means no error has occurred.
	ErrTagNone ParserErrorTag = iota

	// ErrTagBadRequest covers malformed framing, a malformed header line,
	// an invalid Content-Length, or a malformed chunk. An invalid method
	// token or a missing Host header is reported by parseHeaders as
	// ErrBadRequest instead.
	ErrTagBadRequest

	// ErrTagLengthRequired means a body-bearing method (PUT, POST, PATCH)
	// arrived without Content-Length and without chunked framing.
	ErrTagLengthRequired
)

// Sentinel errors returned by the pure parse_headers-equivalent and by
// buffer accessors when called out of sequence.
var (
	// ErrUnsupportedProtocol means the declared HTTP version is not one
	// of "1.0", "1", "1.1".
	ErrUnsupportedProtocol = errors.New("http11: unsupported protocol version")

	// ErrDisconnected is returned by a Send call made after the
	// transport has been lost or the connection has otherwise closed.
	ErrDisconnected = errors.New("http11: connection closed")

	// ErrBadRequest mirrors ErrTagBadRequest as a Go error for the pure
	// header-parsing path.
	ErrBadRequest = errors.New("http11: bad request")

	// ErrNotReady is returned by HeadersRaw/Body/LastChunks when the
	// buffer has not reached the state the accessor requires.
	ErrNotReady = errors.New("http11: buffer not ready")

	// ErrResponseNotStarted is the programmer-error condition for sending
	// a response body message before a response start message.
	ErrResponseNotStarted = errors.New("http11: response body sent before response start")
)

// UnsupportedProtocolError wraps ErrUnsupportedProtocol with the
// offending version token, so the Connection Protocol can format the
// 505 response body without re-parsing the request line.
type UnsupportedProtocolError struct {
	Version string
}

func (e *UnsupportedProtocolError) Error() string {
	return "http11: unsupported protocol version " + strconv.Quote(e.Version)
}

func (e *UnsupportedProtocolError) Unwrap() error { return ErrUnsupportedProtocol }
