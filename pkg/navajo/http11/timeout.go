package http11

import (
	"sync"
	"time"
)

// TimerKind names one of the two logical timers a connection owns, or
// the selective mass-operation value ALL accepted by Cancel.
type TimerKind int

const (
	TimerRequest TimerKind = iota
	TimerKeepAlive
	TimerAll
)

// TimeoutController owns two independent, cancellable, re-armable
// timers: one bounding an in-progress request, the other bounding idle
// keep-alive. Re-arming a kind replaces any pending fire for that kind.
// A fired timer is reported exactly once on Fired(); the slot is then
// empty until the next Arm.
//
// Firing happens on a timer goroutine (time.AfterFunc); delivery to the
// Connection Protocol's single driving goroutine happens over the Fired
// channel so that no protocol-owned state is ever touched off that
// goroutine. A generation counter per kind discards a fire that raced
// against a Cancel/Arm for the same kind, since time.Timer.Stop cannot
// guarantee a scheduled callback hasn't already started running.
type TimeoutController struct {
	mu  sync.Mutex
	gen [2]uint64
	t   [2]*time.Timer

	fired chan TimerKind
}

// NewTimeoutController returns a controller with neither timer armed.
func NewTimeoutController() *TimeoutController {
	return &TimeoutController{
		fired: make(chan TimerKind, 2),
	}
}

// Fired delivers one value per timer that has fired since the last Arm
// for that kind. Read this from the same goroutine that owns the
// Connection Protocol's state.
func (c *TimeoutController) Fired() <-chan TimerKind {
	return c.fired
}

// Arm schedules kind to fire after d, replacing any timer already
// pending for that kind. kind must be TimerRequest or TimerKeepAlive.
func (c *TimeoutController) Arm(kind TimerKind, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateLocked(kind)
	gen := c.gen[kind]
	c.t[kind] = time.AfterFunc(d, func() {
		c.deliver(kind, gen)
	})
}

// Cancel disarms kind (or both, for TimerAll) without firing it.
func (c *TimeoutController) Cancel(kind TimerKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kind == TimerAll {
		c.invalidateLocked(TimerRequest)
		c.invalidateLocked(TimerKeepAlive)
		return
	}
	c.invalidateLocked(kind)
}

// invalidateLocked stops any timer pending for kind and bumps its
// generation, so a fire already in flight (Stop cannot guarantee the
// callback hasn't started) is recognized as stale by deliver.
func (c *TimeoutController) invalidateLocked(kind TimerKind) {
	if c.t[kind] != nil {
		c.t[kind].Stop()
		c.t[kind] = nil
	}
	c.gen[kind]++
}

func (c *TimeoutController) deliver(kind TimerKind, gen uint64) {
	c.mu.Lock()
	current := c.gen[kind] == gen
	if current {
		c.t[kind] = nil
	}
	c.mu.Unlock()
	if !current {
		return
	}
	select {
	case c.fired <- kind:
	default:
		// Fired is only ever read one-at-a-time by the owning connection
		// loop and has room for one fire per kind; a full channel here
		// means a fire is already queued, which cannot happen for the
		// same kind twice without an intervening Arm bumping the
		// generation, so this is unreachable in practice.
	}
}

// Armed reports whether kind currently has a pending timer. Intended for
// tests asserting the "at most one of REQUEST/KEEP_ALIVE armed" invariant.
func (c *TimeoutController) Armed(kind TimerKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == TimerAll {
		return c.t[TimerRequest] != nil || c.t[TimerKeepAlive] != nil
	}
	return c.t[kind] != nil
}
