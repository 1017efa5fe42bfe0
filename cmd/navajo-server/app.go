package main

import (
	"fmt"

	"github.com/yourusername/navajo/pkg/navajo/http11"
)

// echoApp is the default application callable navajo-server boots with
// when no other entrypoint is wired in. It demonstrates the full
// request/response contract the engine exposes: it drains the request
// body via Receive, then answers via Send with a plain-text summary: the
// method, path and query, the Host header, and the body length in bytes. The engine itself only requires
// that *some* http11.App is supplied.
func echoApp(scope *http11.Scope, receive http11.Receive, send http11.Send) error {
	if scope.Type == http11.ScopeLifespan {
		return lifespanEchoApp(scope, receive, send)
	}

	var body []byte
	for {
		msg, err := receive()
		if err != nil {
			return err
		}
		body = append(body, msg.Body...)
		if msg.Type == http11.MessageHTTPDisconnect || !msg.MoreBody {
			break
		}
	}

	respBody := fmt.Sprintf("%s %s%s\nhost: %s\nbody: %d bytes\n",
		scope.Method, scope.Path, queryTail(scope), hostHeader(scope), len(body))

	if err := send(http11.Message{
		Type:   http11.MessageResponseStart,
		Status: 200,
		Headers: http11.Headers{
			{Name: []byte("content-type"), Value: []byte("text/plain")},
			{Name: []byte("content-length"), Value: []byte(fmt.Sprintf("%d", len(respBody)))},
		},
	}); err != nil {
		return err
	}
	return send(http11.Message{
		Type: http11.MessageResponseBody,
		Body: []byte(respBody),
	})
}

func queryTail(scope *http11.Scope) string {
	if len(scope.QueryString) == 0 {
		return ""
	}
	return "?" + string(scope.QueryString)
}

func hostHeader(scope *http11.Scope) string {
	if v := scope.Headers.Get([]byte("host")); v != nil {
		return string(v)
	}
	return ""
}

// lifespanEchoApp satisfies the lifespan half of the App contract:
// acknowledge startup immediately, then acknowledge shutdown whenever it
// arrives.
func lifespanEchoApp(scope *http11.Scope, receive http11.Receive, send http11.Send) error {
	for {
		msg, err := receive()
		if err != nil {
			return err
		}
		switch msg.Type {
		case http11.MessageLifespanStartup:
			if err := send(http11.Message{Type: http11.MessageLifespanStartupComplete}); err != nil {
				return err
			}
		case http11.MessageLifespanShutdown:
			return send(http11.Message{Type: http11.MessageLifespanShutdownComplete})
		}
	}
}
