package room

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
)

// timerHandle is the single live countdown or delay of a room. A fire whose
// generation differs from the room's current one is stale and ignored.
type timerHandle struct {
	gen       uint64
	live      bool
	remaining int
	onExpire  func()

	stop  chan struct{}
	delay clockwork.Timer
}

// countdownLocked replaces the live timer with a countdown that ticks every
// second and calls onExpire once when it reaches zero.
func (r *Room) countdownLocked(seconds int, onExpire func()) {
	r.cancelTimerLocked()

	gen := r.timer.gen
	stop := make(chan struct{})
	ticker := r.clock.NewTicker(time.Second)
	r.timer = timerHandle{
		gen:       gen,
		live:      true,
		remaining: seconds,
		onExpire:  onExpire,
		stop:      stop,
	}

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				if !r.tick(gen) {
					return
				}
			}
		}
	}()
}

// scheduleLocked replaces the live timer with a one-shot delay.
func (r *Room) scheduleLocked(d time.Duration, fn func()) {
	r.cancelTimerLocked()

	gen := r.timer.gen
	r.timer = timerHandle{gen: gen, live: true}
	r.timer.delay = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.timer.gen != gen || !r.timer.live {
			return
		}
		r.timer.live = false
		fn()
	})
}

// cancelTimerLocked invalidates the live timer. The generation bump happens
// before anything new is scheduled so a racing fire sees a stale handle.
func (r *Room) cancelTimerLocked() {
	if r.timer.stop != nil {
		close(r.timer.stop)
	}
	if r.timer.delay != nil {
		r.timer.delay.Stop()
	}
	r.timer = timerHandle{gen: r.timer.gen + 1}
}

// tick runs on the ticker goroutine. It returns false once the countdown is
// no longer the room's live timer.
func (r *Room) tick(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.timer.gen != gen || !r.timer.live {
		return false
	}
	r.timer.remaining--
	if r.timer.remaining < 0 {
		r.timer.remaining = 0
	}
	r.broadcastLocked(events.TimerTickPayload{Remaining: r.timer.remaining, Phase: r.phase})
	if r.timer.remaining > 0 {
		return true
	}

	expire := r.timer.onExpire
	r.cancelTimerLocked()
	if expire != nil {
		expire()
	}
	return false
}

// remainingLocked is the countdown value shown to clients, zero during delays.
func (r *Room) remainingLocked() int {
	if !r.timer.live {
		return 0
	}
	return r.timer.remaining
}

// countingLocked reports whether a countdown, not a delay, is live.
func (r *Room) countingLocked() bool {
	return r.timer.live && r.timer.stop != nil
}
