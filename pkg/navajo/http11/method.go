package http11

// methodSet is the closed set of HTTP methods this engine accepts on the
// request line. Anything else is rejected as a bad request. A map is
// enough here: the engine only needs membership and body-required
// classification, not a numeric method ID for hot-path switching.
var methodSet = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"HEAD":    {},
	"CONNECT": {},
	"OPTIONS": {},
	"TRACE":   {},
	"PATCH":   {},
}

// bodyRequiredMethods are the methods for which a body-length declaration
// (Content-Length or chunked framing) is mandatory.
var bodyRequiredMethods = map[string]struct{}{
	"PUT":   {},
	"POST":  {},
	"PATCH": {},
}

func isValidMethod(method string) bool {
	_, ok := methodSet[method]
	return ok
}

func methodRequiresBody(method string) bool {
	_, ok := bodyRequiredMethods[method]
	return ok
}
