// Package http11 implements the per-connection HTTP/1.1 protocol engine:
// an incremental request parser, the keep-alive/timeout discipline, and the
// adapter that surfaces parsed requests to an ASGI-style application
// callable and serializes its responses back onto the wire.
package http11

import "time"

// Default timing and keep-alive constants. These mirror the values a
// well-behaved HTTP/1.1 server is expected to use and can be overridden
// per Connection via ConnectionConfig.
const (
	// RequestTimeout bounds how long a request that is not yet fully
	// framed may go without new bytes arriving; the timer restarts on
	// every fragment received.
	RequestTimeout = 60 * time.Second

	// KeepAliveTimeout bounds how long an idle, reusable connection is
	// kept open waiting for the next request.
	KeepAliveTimeout = 5 * time.Second

	// MaxKeepAliveRequests caps the number of requests served on a single
	// connection before the server forces a close.
	MaxKeepAliveRequests = 100
)

// Header and request limits (RFC 7230 recommends 8KB for the request
// line and header block).
const (
	MaxRequestLineSize = 8192
	MaxHeadersSize     = 8192
	MaxURILength       = 8192

	// MaxHeaders bounds the number of header fields accepted per request;
	// beyond this the request is rejected as too large to be a mistake.
	MaxHeaders = 256
)

// Canned, pre-compiled error responses. Each is followed by an
// unconditional connection close (see ResponseWriter.WriteError).
var (
	response400 = []byte("HTTP/1.1 400 Bad Request\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 11\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		"Bad Request")

	response408 = []byte("HTTP/1.1 408 Request Timeout\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 17\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		"Request timed out")

	response411 = []byte("HTTP/1.1 411 Length Required\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 15\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		"Length Required")

	response500 = []byte("HTTP/1.1 500 Internal Server Error\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 21\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		"Internal Server Error")
)

// Common header names, lowercased as required by the scope contract.
var (
	headerHost             = []byte("host")
	headerContentLength    = []byte("content-length")
	headerTransferEncoding = []byte("transfer-encoding")
	headerConnection       = []byte("connection")
)

var (
	valueChunked = []byte("chunked")
	valueClose   = []byte("close")
)

var (
	crlf             = []byte("\r\n")
	headerSep        = []byte(": ")
	headerTerminator = []byte("\r\n\r\n")
)
