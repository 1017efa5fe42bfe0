package http11

// MessageType names one of the message kinds exchanged across the
// receive/send callables, using the same string tokens as the wire
// protocol this engine is compatible with.
type MessageType string

const (
	MessageHTTPRequest    MessageType = "http.request"
	MessageHTTPDisconnect MessageType = "http.disconnect"

	MessageResponseStart MessageType = "http.response.start"
	MessageResponseBody  MessageType = "http.response.body"

	MessageLifespanStartup          MessageType = "lifespan.startup"
	MessageLifespanStartupComplete  MessageType = "lifespan.startup.complete"
	MessageLifespanStartupFailed    MessageType = "lifespan.startup.failed"
	MessageLifespanShutdown         MessageType = "lifespan.shutdown"
	MessageLifespanShutdownComplete MessageType = "lifespan.shutdown.complete"
	MessageLifespanShutdownFailed   MessageType = "lifespan.shutdown.failed"
)

// Message is the single envelope type carried by Receive and Send. Only
// the fields relevant to Type are meaningful; this mirrors the loosely
// typed mapping the wire protocol uses for the same purpose, but keeps
// Go's static field access instead of a map[string]any.
type Message struct {
	Type MessageType

	// http.request / http.response.body
	Body     []byte
	MoreBody bool

	// http.response.start
	Status  int
	Headers Headers

	// lifespan.*.failed
	FailureMessage string
}

// Receive is the application-facing pull side of the protocol: each call
// returns the next available incoming message for the bound scope.
type Receive func() (Message, error)

// Send is the application-facing push side of the protocol: each call
// delivers one outgoing message.
type Send func(Message) error

// App is the application callable contract. It is invoked once per HTTP
// request (with an http scope) and once for the process lifetime (with a
// lifespan scope); it returns when the invocation is done, and a non-nil
// error is treated as an application fault.
type App func(scope *Scope, receive Receive, send Send) error
