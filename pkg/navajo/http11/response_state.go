package http11

// ResponseState tracks, for the request cycle currently in flight on a
// connection, whether the application has emitted its http.response.start
// message, the status and headers it accepted, and the scope it was
// bound to (so keep-alive policy can consult the request's headers and
// HTTP version after the response has been written). It is owned
// exclusively by the Connection Protocol's driving goroutine and is
// reset between request cycles rather than reallocated.
type ResponseState struct {
	scope *Scope

	started       bool
	headerWritten bool
	status        int
	headers       Headers
}

// NewResponseState returns a ResponseState with nothing bound yet.
func NewResponseState() *ResponseState {
	return &ResponseState{}
}

// Reset binds the tracker to a new request cycle, discarding any prior
// status/headers. Called once per request, right before the application
// task is spawned.
func (s *ResponseState) Reset(scope *Scope) {
	s.scope = scope
	s.started = false
	s.headerWritten = false
	s.status = 0
	s.headers = nil
}

// Scope returns the scope bound by the most recent Reset.
func (s *ResponseState) Scope() *Scope { return s.scope }

// Start records an http.response.start message. A second Start call is a
// no-op: the wire protocol does not admit a second status line once one
// has been accepted.
func (s *ResponseState) Start(status int, headers Headers) {
	if s.started {
		return
	}
	s.started = true
	s.status = status
	s.headers = headers
}

// Started reports whether http.response.start has been recorded.
func (s *ResponseState) Started() bool { return s.started }

// Status returns the accepted status code. Valid only once Started.
func (s *ResponseState) Status() int { return s.status }

// Headers returns the accepted header list. Valid only once Started.
func (s *ResponseState) Headers() Headers { return s.headers }

// HeaderWritten reports whether the status line and headers have already
// been serialized onto the wire for this cycle (true after the first
// http.response.body message is processed).
func (s *ResponseState) HeaderWritten() bool { return s.headerWritten }

// MarkHeaderWritten records that the status line and headers have been
// flushed to the transport.
func (s *ResponseState) MarkHeaderWritten() { s.headerWritten = true }
