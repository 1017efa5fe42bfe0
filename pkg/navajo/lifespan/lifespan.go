// Package lifespan drives the application callable through the
// process-wide lifespan scope: one invocation for the whole process,
// receiving lifespan.startup and lifespan.shutdown and expected to
// answer each with its .complete or .failed counterpart.
//
// Start launches the application goroutine immediately; Startup blocks
// until the application acknowledges startup (or fails), and Shutdown
// blocks until it acknowledges shutdown, so the listener boundary never
// spins waiting on either phase.
package lifespan

import "github.com/yourusername/navajo/pkg/navajo/http11"

// Result carries the outcome of a startup or shutdown phase: OK is false
// when the application answered with the corresponding .failed message,
// in which case Message holds whatever text it supplied, or when it
// returned a non-nil error without answering, in which case Message
// holds that error's text.
type Result struct {
	OK      bool
	Message string
}

// Runner drives one App invocation across the whole process lifetime.
type Runner struct {
	app http11.App

	recvCh chan http11.Message
	sendCh chan http11.Message

	startupDone  chan Result
	shutdownDone chan Result
	appDone      chan struct{} // closed once the application goroutine returns
	appErr       error

	startupSent  bool
	shutdownSent bool
}

// New constructs a Runner bound to app. Nothing runs until Start is
// called.
func New(app http11.App) *Runner {
	return &Runner{
		app:          app,
		recvCh:       make(chan http11.Message),
		sendCh:       make(chan http11.Message),
		startupDone:  make(chan Result, 1),
		shutdownDone: make(chan Result, 1),
		appDone:      make(chan struct{}),
	}
}

// Start launches the application's lifespan invocation on its own
// goroutine and begins pumping its receive/send calls. Call Startup
// next, then Shutdown once the process is ready to exit.
func (r *Runner) Start() {
	scope := &http11.Scope{Type: http11.ScopeLifespan}
	recv := func() (http11.Message, error) {
		return <-r.recvCh, nil
	}
	send := func(m http11.Message) error {
		r.sendCh <- m
		return nil
	}
	go func() {
		r.appErr = r.app(scope, recv, send)
		close(r.appDone)
	}()
	go r.pump()
}

// pump answers the application's receive() calls and watches its send()
// calls, translating the four recognized lifespan message types into the
// two Result channels Startup/Shutdown block on. If the application
// returns without acknowledging a pending phase, that phase's Result
// channel is resolved from appDone instead of blocking forever.
func (r *Runner) pump() {
	for {
		select {
		case msg := <-r.sendCh:
			switch msg.Type {
			case http11.MessageLifespanStartupComplete:
				r.startupDone <- Result{OK: true}
			case http11.MessageLifespanStartupFailed:
				r.startupDone <- Result{OK: false, Message: msg.FailureMessage}
			case http11.MessageLifespanShutdownComplete:
				r.shutdownDone <- Result{OK: true}
				return
			case http11.MessageLifespanShutdownFailed:
				r.shutdownDone <- Result{OK: false, Message: msg.FailureMessage}
				return
			}

		case <-r.appDone:
			res := Result{OK: r.appErr == nil}
			if r.appErr != nil {
				res.Message = r.appErr.Error()
			}
			select {
			case r.startupDone <- res:
			default:
			}
			select {
			case r.shutdownDone <- res:
			default:
			}
			return
		}
	}
}

// Startup delivers lifespan.startup and blocks until the application
// answers with startup.complete or startup.failed (or exits early).
func (r *Runner) Startup() Result {
	if r.startupSent {
		return Result{OK: true}
	}
	r.startupSent = true
	select {
	case r.recvCh <- http11.Message{Type: http11.MessageLifespanStartup}:
	case <-r.appDone:
	}
	return <-r.startupDone
}

// Shutdown delivers lifespan.shutdown and blocks until the application
// answers with shutdown.complete or shutdown.failed (or exits early).
func (r *Runner) Shutdown() Result {
	if r.shutdownSent {
		return Result{OK: true}
	}
	r.shutdownSent = true
	select {
	case r.recvCh <- http11.Message{Type: http11.MessageLifespanShutdown}:
	case <-r.appDone:
	}
	return <-r.shutdownDone
}
