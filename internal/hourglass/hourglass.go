// internal/hourglass/hourglass.go
package hourglass

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/Slade66/hourglass/internal/logger"
)

// TickInterval is the fixed spacing between two tick notifications.
const TickInterval = time.Second

// Option customises an Hourglass at construction.
type Option func(*Hourglass)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(h *Hourglass) {
		h.clock = c
	}
}

// WithLogger replaces the logger used to report listener failures.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hourglass) {
		h.log = l
	}
}

// Hourglass counts a duration down to zero on its own goroutine and reports
// progress to at most one Listener.
type Hourglass struct {
	clock clock.Clock
	log   zerolog.Logger

	mu        sync.Mutex
	total     time.Duration
	remaining time.Duration
	state     State
	listener  Listener
	epoch     uint64 // bumped on every resume
	started   bool

	wake chan struct{}
	done chan struct{}
}

// New creates an idle Hourglass with no duration configured.
func New(opts ...Option) *Hourglass {
	h := &Hourglass{
		clock: clock.RealClock{},
		log:   logger.GetLogger().With().Str("component", "hourglass").Logger(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewWithDuration creates an idle Hourglass already configured with d.
func NewWithDuration(d time.Duration, opts ...Option) (*Hourglass, error) {
	h := New(opts...)
	if err := h.Configure(d); err != nil {
		return nil, err
	}
	return h, nil
}

// Configure sets the countdown length. Only allowed while idle.
func (h *Hourglass) Configure(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateIdle {
		return h.stateError("configure", StateIdle)
	}
	h.total = d
	h.remaining = d
	return nil
}

// SetListener registers l, or clears the registration when l is nil.
// The change is seen by the next tick; a notification already in flight
// completes against the previous listener.
func (h *Hourglass) SetListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = l
}

// Start begins the countdown. The first tick arrives one TickInterval later.
func (h *Hourglass) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateIdle {
		return h.stateError("start", StateIdle)
	}
	if h.total <= 0 {
		return fmt.Errorf("%w: no duration configured", ErrInvalidDuration)
	}
	h.state = StateRunning
	h.started = true
	go h.run()

	h.log.Debug().Dur("total", h.total).Msg("countdown started")
	return nil
}

// Pause freezes the remaining time until Resume.
func (h *Hourglass) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateRunning {
		return h.stateError("pause", StateRunning)
	}
	h.state = StatePaused
	h.signal()
	return nil
}

// Resume continues a paused countdown. The next tick is one TickInterval
// after the resume, so no missed ticks are replayed.
func (h *Hourglass) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StatePaused {
		return h.stateError("resume", StatePaused)
	}
	h.state = StateRunning
	h.epoch++
	h.signal()
	return nil
}

// Cancel stops the countdown without a finish notification. Once it
// returns, only a notification that was already being delivered can still
// reach the listener. Cancelling a finished or cancelled Hourglass does nothing.
func (h *Hourglass) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.Terminal() {
		return
	}
	h.state = StateCancelled
	if h.started {
		h.signal()
	} else {
		close(h.done)
	}
	h.log.Debug().Dur("remaining", h.remaining).Msg("countdown cancelled")
}

// TimeRemaining returns a snapshot of the remaining countdown.
func (h *Hourglass) TimeRemaining() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remaining
}

// Total returns the configured countdown length.
func (h *Hourglass) Total() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

func (h *Hourglass) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the Hourglass reached a terminal state and its
// goroutine has exited.
func (h *Hourglass) Done() <-chan struct{} {
	return h.done
}

// signal wakes the loop without blocking. Callers hold h.mu.
func (h *Hourglass) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hourglass) stateError(op string, want State) error {
	return fmt.Errorf("%w: cannot %s while %s (requires %s)", ErrInvalidState, op, h.state, want)
}

// run is the per-instance scheduling loop.
func (h *Hourglass) run() {
	defer close(h.done)

	var (
		timer    clock.Timer
		deadline time.Time
		armed    uint64
	)
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	defer disarm()

	for {
		h.mu.Lock()
		state, epoch := h.state, h.epoch
		h.mu.Unlock()

		switch {
		case state.Terminal():
			return
		case state == StatePaused:
			disarm()
		case timer == nil || epoch != armed:
			disarm()
			deadline = h.clock.Now().Add(TickInterval)
			timer = h.clock.NewTimer(TickInterval)
			armed = epoch
		}

		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C()
		}

		select {
		case <-h.wake:
		case <-fire:
			if h.tick(armed) {
				return
			}
			now := h.clock.Now()
			deadline = deadline.Add(TickInterval)
			wait := deadline.Sub(now)
			if wait <= 0 {
				// The listener overran the slot: re-base on now instead of bursting.
				deadline = now.Add(TickInterval)
				wait = TickInterval
			}
			timer = h.clock.NewTimer(wait)
		}
	}
}

// tick advances the countdown by one interval and notifies the listener.
// It reports whether the run finished.
func (h *Hourglass) tick(epoch uint64) bool {
	h.mu.Lock()
	if h.state != StateRunning || h.epoch != epoch {
		h.mu.Unlock()
		return false
	}
	h.remaining -= TickInterval
	if h.remaining < 0 {
		h.remaining = 0
	}
	remaining := h.remaining
	finished := remaining == 0
	if finished {
		h.state = StateFinished
	}
	l := h.listener
	h.mu.Unlock()

	if l != nil {
		h.deliver("tick", func() { l.OnTimerTick(remaining) })
		if finished {
			h.deliver("finish", l.OnTimerFinish)
		}
	}
	if finished {
		h.log.Debug().Msg("countdown finished")
	}
	return finished
}

// deliver runs one listener callback, containing any panic it raises.
func (h *Hourglass) deliver(kind string, notify func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().
				Interface("panic", r).
				Str("notification", kind).
				Msg("listener failed, countdown continues")
		}
	}()
	notify()
}
