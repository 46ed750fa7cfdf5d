// internal/hourglass/listener.go
package hourglass

import "time"

// Listener receives the countdown notifications of one Hourglass.
type Listener interface {
	// OnTimerTick is called about once per second while running with the
	// remaining countdown. Values never increase within a run.
	OnTimerTick(remaining time.Duration)
	// OnTimerFinish is called once per completed run, after the tick that
	// reported zero. It is never called for a cancelled run.
	OnTimerFinish()
}

// ListenerFuncs adapts a pair of plain functions to the Listener interface.
// Nil fields are skipped.
type ListenerFuncs struct {
	OnTick   func(remaining time.Duration)
	OnFinish func()
}

func (f ListenerFuncs) OnTimerTick(remaining time.Duration) {
	if f.OnTick != nil {
		f.OnTick(remaining)
	}
}

func (f ListenerFuncs) OnTimerFinish() {
	if f.OnFinish != nil {
		f.OnFinish()
	}
}
