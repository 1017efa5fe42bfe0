package http11

// ScopeType discriminates the two kinds of invocation the application
// callable can receive: one per HTTP request, and exactly one for the
// process lifespan.
type ScopeType string

const (
	ScopeHTTP     ScopeType = "http"
	ScopeLifespan ScopeType = "lifespan"
)

// Addr is a resolved host/port pair. A nil *Addr means the address could
// not be determined (e.g. the listener boundary did not supply one).
type Addr struct {
	Host string
	Port int
}

// Scope is the immutable per-invocation descriptor handed to the
// application callable. For an HTTP request, Type is ScopeHTTP and the
// request fields below are populated; for the lifespan channel, Type is
// ScopeLifespan and only Type is meaningful.
//
// Path is the percent-encoded request path with the query string
// stripped; RawPath and QueryString retain the original bytes exactly as
// they appeared on the wire. Headers preserves insertion order and
// duplicates, with names lowercased, per the framing algorithm in
// parseHeaders.
type Scope struct {
	Type ScopeType

	Method      string
	Path        string
	RawPath     []byte
	QueryString []byte
	Headers     Headers
	HTTPVersion string
	Scheme      string

	Client *Addr
	Server *Addr
}
