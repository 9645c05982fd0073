// Package typing implements the typing-presence signaling for the local
// user and the roster of remote users currently typing.
package typing

import (
	"sync"
	"time"
)

// DefaultIdle is the inactivity window after the last keystroke before a
// stop signal is emitted.
const DefaultIdle = 2000 * time.Millisecond

// Controller is the per-local-user debounce state machine. A keystroke in
// the idle state emits exactly one start signal; further keystrokes only
// reset the inactivity timer. The stop signal fires once when the timer
// expires or immediately when a message is sent.
type Controller struct {
	mu     sync.Mutex
	typing bool
	timer  *time.Timer
	gen    uint64
	idle   time.Duration
	start  func()
	stop   func()
}

// NewController builds a controller with the given inactivity window
// (DefaultIdle when zero) and start/stop emit callbacks. Callbacks run
// without the controller lock held; the stop callback may fire from the
// timer goroutine.
func NewController(idle time.Duration, start, stop func()) *Controller {
	if idle <= 0 {
		idle = DefaultIdle
	}
	if start == nil {
		start = func() {}
	}
	if stop == nil {
		stop = func() {}
	}
	return &Controller{idle: idle, start: start, stop: stop}
}

// Keystroke records input activity, transitioning Idle -> Typing on the
// first stroke of a burst.
func (c *Controller) Keystroke() {
	c.mu.Lock()
	first := !c.typing
	c.typing = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.idle, func() { c.timeout(gen) })
	c.mu.Unlock()

	if first {
		c.start()
	}
}

// MessageSent forces the Typing -> Idle transition, cancelling the
// inactivity timer. No-op while idle.
func (c *Controller) MessageSent() {
	c.mu.Lock()
	wasTyping := c.typing
	c.typing = false
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if wasTyping {
		c.stop()
	}
}

func (c *Controller) timeout(gen uint64) {
	c.mu.Lock()
	// A fired timer can lose the race against a keystroke that rearmed a
	// fresh one; the generation check drops such stale expirations.
	if gen != c.gen || !c.typing {
		c.mu.Unlock()
		return
	}
	c.typing = false
	c.timer = nil
	c.mu.Unlock()

	c.stop()
}

// Typing reports whether the local user is currently in the Typing state.
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}
