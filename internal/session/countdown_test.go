package session

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCountdownExpires(t *testing.T) {
	fired := make(chan struct{})
	c := NewCountdown(5*time.Millisecond, func() { close(fired) })
	c.Start(3)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback never fired")
	}
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d after expiry, want 0", got)
	}
	if c.Running() {
		t.Error("countdown still running after expiry")
	}
}

func TestCountdownPauseFreezesValue(t *testing.T) {
	c := NewCountdown(5*time.Millisecond, nil)
	c.Start(1000)
	waitFor(t, 2*time.Second, func() bool { return c.Remaining() < 1000 })

	c.Pause()
	if c.Running() {
		t.Fatal("countdown running after Pause")
	}
	frozen := c.Remaining()
	time.Sleep(50 * time.Millisecond)
	if got := c.Remaining(); got != frozen {
		t.Errorf("Remaining() = %d while paused, want frozen value %d", got, frozen)
	}
}

func TestCountdownResumeContinuesFromFrozenValue(t *testing.T) {
	c := NewCountdown(5*time.Millisecond, nil)
	c.Start(1000)
	waitFor(t, 2*time.Second, func() bool { return c.Remaining() < 1000 })
	c.Pause()
	frozen := c.Remaining()

	c.Resume()
	if !c.Running() {
		t.Fatal("countdown not running after Resume")
	}
	waitFor(t, 2*time.Second, func() bool { return c.Remaining() < frozen })
}

func TestCountdownResumeNoopWhenExpired(t *testing.T) {
	fired := 0
	c := NewCountdown(5*time.Millisecond, func() { fired++ })
	c.Start(1)
	waitFor(t, 2*time.Second, func() bool { return c.Remaining() == 0 })

	c.Resume()
	if c.Running() {
		t.Error("expired countdown restarted by Resume")
	}
	time.Sleep(30 * time.Millisecond)
	if fired != 1 {
		t.Errorf("expiry fired %d times, want exactly 1", fired)
	}
}

func TestCountdownStopPreservesRemainingWithoutExpiry(t *testing.T) {
	fired := make(chan struct{})
	c := NewCountdown(5*time.Millisecond, func() { close(fired) })
	c.Start(1000)
	c.Stop()

	if c.Running() {
		t.Fatal("countdown running after Stop")
	}
	select {
	case <-fired:
		t.Fatal("expiry fired after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	if got := c.Remaining(); got == 0 {
		t.Error("Stop zeroed the remaining value")
	}
}

func TestCountdownRestartReplacesPreviousRun(t *testing.T) {
	c := NewCountdown(5*time.Millisecond, nil)
	c.Start(1000)
	c.Start(500)
	if got := c.Remaining(); got > 500 {
		t.Errorf("Remaining() = %d after restart, want <= 500", got)
	}
	waitFor(t, 2*time.Second, func() bool { return c.Remaining() < 500 })
	c.Stop()
}
