package http11

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// ConnState is the lifecycle state of one connection.
type ConnState int

const (
	StateOpenIdle ConnState = iota
	StateOpenReceiving
	StateOpenInFlight
	StateClosed
)

// ReadBufferSize bounds how much is read from the transport per Read
// call before handing the chunk to the parser.
const ReadBufferSize = 4096

// Transport is the network surface a Connection drives. *net.TCPConn and
// *tls.Conn both satisfy it. The engine never negotiates TLS itself; it
// only observes, via ConnectionConfig.IsTLS, whether the transport it was
// handed already terminates it.
type Transport interface {
	io.Reader
	io.Writer
	Close() error
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
}

// Logger is the narrow structured-logging surface connection.go needs;
// *zap.SugaredLogger satisfies it directly.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// ConnectionConfig carries the per-connection constants, overridable for
// testing or tuning.
type ConnectionConfig struct {
	RequestTimeout       time.Duration
	KeepAliveTimeout     time.Duration
	MaxKeepAliveRequests int

	// IsTLS reports whether the transport terminates TLS, surfaced on
	// the scope's Scheme field. Set by the listener boundary.
	IsTLS bool
}

// DefaultConnectionConfig returns the package defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		RequestTimeout:       RequestTimeout,
		KeepAliveTimeout:     KeepAliveTimeout,
		MaxKeepAliveRequests: MaxKeepAliveRequests,
	}
}

type readResult struct {
	data []byte
	err  error
}

type recvRequest struct {
	reply chan Message
}

type sendRequest struct {
	msg   Message
	reply chan error
}

// Connection is the per-connection orchestrator: it receives bytes,
// drives the parser, spawns the application task, pumps receive/send
// messages between the application and the wire, enforces the keep-alive
// policy, and handles disconnects.
//
// Only the application task suspends; Connection's own driving loop
// (Serve) never blocks except in its top-level select, so the Parser,
// ResponseState, and TimeoutController are touched from exactly one
// goroutine and need no locking. The application goroutine talks to that
// loop exclusively through recvCh/sendCh, mirroring the single-threaded
// event loop's receive/send callables with a goroutine-and-channel
// boundary instead of cooperative coroutines.
type Connection struct {
	transport Transport
	app       App
	cfg       ConnectionConfig
	logger    Logger
	metrics   *Metrics

	local, remote *Addr

	writer    *ResponseWriter
	respState *ResponseState
	timeouts  *TimeoutController

	parser       *RequestBuffer // buffer currently receiving bytes
	activeBuf    *RequestBuffer // buffer bound to the in-flight application task
	appSpawned   bool
	disconnected bool
	pendingRecv  *recvRequest

	requestCount int
	state        ConnState

	recvCh   chan recvRequest
	sendCh   chan sendRequest
	appErrCh chan error

	closed    chan struct{}
	closeOnce sync.Once
}

// NewConnection constructs a Connection bound to transport, ready for
// Serve to be called once. app is invoked once per request with a fresh
// http scope; the lifespan scope is the listener boundary's concern, not
// a per-connection one.
func NewConnection(transport Transport, app App, cfg ConnectionConfig, logger Logger, metrics *Metrics) *Connection {
	c := &Connection{
		transport: transport,
		app:       app,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		writer:    NewResponseWriter(),
		respState: NewResponseState(),
		timeouts:  NewTimeoutController(),
		parser:    AcquireRequestBuffer(),
		recvCh:    make(chan recvRequest),
		sendCh:    make(chan sendRequest),
		appErrCh:  make(chan error, 1),
		closed:    make(chan struct{}),
		state:     StateOpenIdle,
	}
	c.local = addrOf(transport.LocalAddr())
	c.remote = addrOf(transport.RemoteAddr())
	c.metrics.ConnectionOpened()
	return c
}

func addrOf(a net.Addr) *Addr {
	if a == nil {
		return nil
	}
	host, port := splitHostPort(a.String())
	return &Addr{Host: host, Port: port}
}

func splitHostPort(s string) (string, int) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return s, 0
	}
	port := 0
	for i := 0; i < len(portStr); i++ {
		d := portStr[i]
		if d < '0' || d > '9' {
			return host, 0
		}
		port = port*10 + int(d-'0')
	}
	return host, port
}

// Serve drives the connection until it closes, either because the peer
// disconnected, a timeout fired, a protocol error occurred, or the
// application finished a non-keep-alive response. It never returns an
// error for a clean close; the returned error, if any, is the underlying
// transport error observed on read, or ctx's error once ctx is done.
func (c *Connection) Serve(ctx context.Context) error {
	defer c.closeConnection()

	readCh := make(chan readResult)
	go c.readLoop(readCh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res, ok := <-readCh:
			if !ok {
				return nil
			}
			if res.err != nil {
				c.onConnectionLost()
				if errors.Is(res.err, io.EOF) {
					return nil
				}
				return res.err
			}
			c.onBytesReceived(res.data)
			if c.state == StateClosed {
				return nil
			}

		case kind := <-c.timeouts.Fired():
			c.onTimerFired(kind)
			if c.state == StateClosed {
				return nil
			}

		case rr := <-c.recvCh:
			if msg, ok := c.tryReceive(); ok {
				rr.reply <- msg
			} else {
				c.pendingRecv = &rr
			}

		case sr := <-c.sendCh:
			err := c.onSend(sr.msg)
			sr.reply <- err
			if c.state == StateClosed {
				return nil
			}

		case err := <-c.appErrCh:
			c.onAppDone(err)
			if c.state == StateClosed {
				return nil
			}
		}
	}
}

// readLoop is the only goroutine that calls transport.Read; it exists so
// the driving select in Serve can multiplex socket bytes against timers
// and application messages without blocking on any one of them.
func (c *Connection) readLoop(out chan<- readResult) {
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case out <- readResult{data: data}:
			case <-c.closed:
				return
			}
		}
		if err != nil {
			select {
			case out <- readResult{err: err}:
			case <-c.closed:
			}
			return
		}
	}
}

// onBytesReceived handles one fragment of bytes off the wire: it re-arms
// the request timer, feeds the parser, and reacts to whatever state the
// parser lands in.
func (c *Connection) onBytesReceived(data []byte) {
	c.timeouts.Arm(TimerRequest, c.cfg.RequestTimeout)
	c.timeouts.Cancel(TimerKeepAlive)
	c.state = StateOpenReceiving

	terminal := c.parser.Feed(data)
	state := c.parser.State()

	switch state {
	case StateReceivingChunks, StateChunksComplete, StateComplete:
		if !c.appSpawned {
			c.beginRequest()
			if c.state == StateClosed {
				return
			}
		}
		if c.pendingRecv != nil {
			if msg, ok := c.tryReceive(); ok {
				c.pendingRecv.reply <- msg
				c.pendingRecv = nil
			}
		}
	}

	if terminal {
		switch state {
		case StateComplete, StateChunksComplete:
			c.requestCount++
			if c.activeBuf != nil {
				c.metrics.RequestCompleted(c.activeBuf.method)
			}
			c.timeouts.Cancel(TimerRequest)
			c.state = StateOpenInFlight
			c.parser = AcquireRequestBuffer()
			c.appSpawned = false
		case StateError:
			tag := c.parser.ErrorTag()
			status := 400
			tagName := "bad_request"
			if tag == ErrTagLengthRequired {
				status = 411
				tagName = "length_required"
			}
			c.metrics.ParseError(tagName)
			c.writeErrorAndClose(status)
		}
	}
}

// beginRequest parses the completed header block, builds the request
// scope, and spawns the application task bound to the buffer currently
// receiving bytes. Nothing here guards against a second request's
// headers completing while the first's response is still in flight;
// pipelined overlap is not supported, so a pipelining client can still
// corrupt ResponseState.
func (c *Connection) beginRequest() {
	raw, err := c.parser.HeadersRaw()
	if err != nil {
		c.writeErrorAndClose(400)
		return
	}
	parsed, err := parseHeaders(raw)
	if err != nil {
		var upErr *UnsupportedProtocolError
		if errors.As(err, &upErr) {
			c.metrics.ParseError("unsupported_protocol")
			c.writer.WriteUnsupportedProtocol(c.transport, upErr.Version)
			c.timeouts.Cancel(TimerAll)
			c.closeConnection()
			return
		}
		c.metrics.ParseError("bad_request")
		c.writeErrorAndClose(400)
		return
	}

	scope := c.buildScope(parsed)
	c.respState.Reset(scope)
	c.activeBuf = c.parser
	c.appSpawned = true
	c.spawnApp(scope)
}

func (c *Connection) buildScope(p *parsedRequestLine) *Scope {
	scheme := "http"
	if c.cfg.IsTLS {
		scheme = "https"
	}
	return &Scope{
		Type:        ScopeHTTP,
		Method:      p.Method,
		Path:        p.Path,
		RawPath:     p.RawPath,
		QueryString: p.QueryString,
		Headers:     p.Headers,
		HTTPVersion: p.HTTPVersion,
		Scheme:      scheme,
		Client:      c.remote,
		Server:      c.local,
	}
}

// spawnApp runs the application callable on its own goroutine, bridging
// its receive/send calls to the driving loop over recvCh/sendCh. The
// select against c.closed in each closure is what lets the application
// task unblock (instead of leaking) once the connection closes.
func (c *Connection) spawnApp(scope *Scope) {
	recv := func() (Message, error) {
		reply := make(chan Message, 1)
		select {
		case c.recvCh <- recvRequest{reply: reply}:
		case <-c.closed:
			return Message{Type: MessageHTTPDisconnect}, nil
		}
		select {
		case m := <-reply:
			return m, nil
		case <-c.closed:
			return Message{Type: MessageHTTPDisconnect}, nil
		}
	}
	send := func(m Message) error {
		reply := make(chan error, 1)
		select {
		case c.sendCh <- sendRequest{msg: m, reply: reply}:
		case <-c.closed:
			return ErrDisconnected
		}
		select {
		case err := <-reply:
			return err
		case <-c.closed:
			return ErrDisconnected
		}
	}

	go func() {
		err := c.app(scope, recv, send)
		select {
		case c.appErrCh <- err:
		case <-c.closed:
		}
	}()
}

// tryReceive answers an application receive() call if a message is
// available without blocking: a disconnect notice, the newly arrived
// chunk payloads, the complete body, or an empty final message. It returns
// ok=false only while waiting on more chunk data (StateReceivingChunks
// with nothing newly arrived); the caller queues the request as
// pendingRecv and it is retried from onBytesReceived and onConnectionLost.
func (c *Connection) tryReceive() (Message, bool) {
	if c.disconnected {
		return Message{Type: MessageHTTPDisconnect}, true
	}
	if c.activeBuf == nil {
		return Message{Type: MessageHTTPRequest}, true
	}
	switch c.activeBuf.State() {
	case StateReceivingChunks:
		if !c.activeBuf.HasPendingChunks() {
			return Message{}, false
		}
		payload, _ := c.activeBuf.LastChunks()
		return Message{Type: MessageHTTPRequest, Body: payload, MoreBody: true}, true
	case StateChunksComplete:
		payload, _ := c.activeBuf.LastChunks()
		return Message{Type: MessageHTTPRequest, Body: payload, MoreBody: false}, true
	case StateComplete:
		body, _ := c.activeBuf.Body()
		return Message{Type: MessageHTTPRequest, Body: body, MoreBody: false}, true
	default:
		return Message{Type: MessageHTTPRequest}, true
	}
}

// onSend handles one outgoing message from the application task.
func (c *Connection) onSend(msg Message) error {
	switch msg.Type {
	case MessageResponseStart:
		c.respState.Start(msg.Status, msg.Headers)
		return nil

	case MessageResponseBody:
		if !c.respState.Started() {
			return ErrResponseNotStarted
		}
		if !c.respState.HeaderWritten() {
			if err := c.writer.WriteResponseHead(c.transport, c.respState.Status(), c.respState.Headers()); err != nil {
				return err
			}
			c.respState.MarkHeaderWritten()
		}
		if err := c.writer.WriteBody(c.transport, msg.Body); err != nil {
			return err
		}
		if !msg.MoreBody {
			c.finishResponse()
		}
		return nil

	default:
		return nil
	}
}

// finishResponse runs once the application's final http.response.body
// message (more_body=false) has been written: it decides keep-alive and
// either re-arms for the next request or closes.
func (c *Connection) finishResponse() {
	if c.keepAliveAccepted() {
		c.timeouts.Cancel(TimerAll)
		c.timeouts.Arm(TimerKeepAlive, c.cfg.KeepAliveTimeout)
		c.state = StateOpenIdle
		// An application can finish its response before the request body
		// does, in which case activeBuf is still installed as the
		// receiving parser and must not be released yet.
		if c.activeBuf != nil && c.activeBuf != c.parser {
			c.activeBuf.Release()
		}
		c.activeBuf = nil
		return
	}
	c.timeouts.Cancel(TimerAll)
	c.closeConnection()
}

// keepAliveAccepted decides whether the connection is reused for another
// request: refuse past the request cap or on Connection: close, accept on
// any other Connection value, and fall back to the HTTP version (1.1
// keeps alive by default, 1.0 and 1 do not).
func (c *Connection) keepAliveAccepted() bool {
	if c.requestCount >= c.cfg.MaxKeepAliveRequests {
		return false
	}
	scope := c.respState.Scope()
	if scope == nil {
		return false
	}
	conn := scope.Headers.Get(headerConnection)
	if conn != nil {
		return !bytesEqualCaseInsensitive(conn, valueClose)
	}
	return scope.HTTPVersion == "1.1"
}

// onTimerFired handles a timer expiry: an overdue request gets a 408
// before the close, an expired idle keep-alive just closes.
func (c *Connection) onTimerFired(kind TimerKind) {
	switch kind {
	case TimerRequest:
		c.metrics.TimeoutFired("request")
		c.writer.WriteError(c.transport, 408)
		c.closeConnection()
	case TimerKeepAlive:
		c.metrics.TimeoutFired("keep_alive")
		c.closeConnection()
	}
}

// onAppDone handles the application task's completion. A non-nil error is
// an application fault: if no bytes of the response have been written
// yet, a 500 is sent; otherwise the 500 is suppressed, since appending a
// second status line to an in-progress response would corrupt the wire.
// The connection closes either way.
func (c *Connection) onAppDone(err error) {
	if err == nil {
		return
	}
	if c.logger != nil {
		c.logger.Errorw("application task failed", "error", err)
	}
	if !c.respState.HeaderWritten() {
		c.writer.WriteError(c.transport, 500)
	}
	c.timeouts.Cancel(TimerAll)
	c.closeConnection()
}

// onConnectionLost runs when the transport drops out from under the
// connection: both timers are cancelled and any receive() call already
// waiting is answered with http.disconnect.
func (c *Connection) onConnectionLost() {
	c.timeouts.Cancel(TimerAll)
	c.disconnected = true
	if c.pendingRecv != nil {
		c.pendingRecv.reply <- Message{Type: MessageHTTPDisconnect}
		c.pendingRecv = nil
	}
	c.closeConnection()
}

func (c *Connection) writeErrorAndClose(status int) {
	c.writer.WriteError(c.transport, status)
	c.timeouts.Cancel(TimerAll)
	c.closeConnection()
}

func (c *Connection) closeConnection() {
	c.closeOnce.Do(func() {
		c.state = StateClosed
		close(c.closed)
		c.transport.Close()
		sameBuf := c.activeBuf != nil && c.activeBuf == c.parser
		if c.activeBuf != nil {
			c.activeBuf.Release()
			c.activeBuf = nil
		}
		if c.parser != nil && !sameBuf {
			c.parser.Release()
		}
		c.parser = nil
		c.metrics.ConnectionClosed(c.requestCount)
	})
}

// RequestCount returns the number of requests completed on this
// connection so far.
func (c *Connection) RequestCount() int { return c.requestCount }
