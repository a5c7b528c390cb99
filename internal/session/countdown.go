// Package session owns one candidate's interview lifecycle: status
// transitions, question sequencing, timer semantics, pause/resume,
// auto-submit on timeout and final scoring.
//
// This file implements the per-question countdown. The countdown is an
// explicit ticker owned by the session engine: pausing unsubscribes the
// ticker goroutine entirely rather than branching inside it, and resuming
// continues from the exact frozen value.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// Countdown counts down one unit per tick while running. Reaching zero fires
// the expiry callback exactly once.
type Countdown struct {
	mu        sync.Mutex
	interval  time.Duration
	remaining int
	running   bool
	stop      chan struct{}
	onExpire  func()
}

// NewCountdown creates a stopped countdown. The expiry callback runs on the
// ticker goroutine when the count reaches zero.
func NewCountdown(interval time.Duration, onExpire func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval, onExpire: onExpire}
}

// Start resets the countdown to the given number of seconds and begins
// ticking. Any previous run is stopped first.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	c.stopLocked()
	c.remaining = seconds
	if seconds <= 0 {
		c.mu.Unlock()
		return
	}
	c.startLocked()
	c.mu.Unlock()
	slog.Debug("Countdown started", "seconds", seconds)
}

// Pause freezes the countdown: the ticker goroutine is unsubscribed, no tick
// fires and no auto-expiry can happen until Resume.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.stopLocked()
	slog.Debug("Countdown paused", "remaining", c.remaining)
}

// Resume continues counting from the frozen value. A countdown that is
// already running, or has nothing left to count, is unaffected.
func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.remaining <= 0 {
		return
	}
	c.startLocked()
	slog.Debug("Countdown resumed", "remaining", c.remaining)
}

// Stop halts the countdown without firing expiry. The remaining value is
// preserved for inspection.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Remaining returns the seconds left on the countdown.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the countdown is actively ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// startLocked launches the ticker goroutine. Callers must hold c.mu.
func (c *Countdown) startLocked() {
	stop := make(chan struct{})
	c.stop = stop
	c.running = true
	go c.run(stop)
}

// stopLocked tears down the ticker goroutine. Callers must hold c.mu.
func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.running = false
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.running {
				c.mu.Unlock()
				return
			}
			c.remaining--
			if c.remaining > 0 {
				c.mu.Unlock()
				continue
			}
			c.remaining = 0
			c.stopLocked()
			onExpire := c.onExpire
			c.mu.Unlock()
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}
