package task

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxDurationMillis is the longest countdown a command may carry; anything
// longer overflows time.Duration.
const MaxDurationMillis = math.MaxInt64 / int64(time.Millisecond)

// Action names one control operation on a remote hourglass.
type Action string

const (
	ActionCreate Action = "create"
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionCancel Action = "cancel"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionStart, ActionPause, ActionResume, ActionCancel:
		return true
	}
	return false
}

// Command is a single control message carried on the Redis stream from the
// API to the workers.
type Command struct {
	// Unique id of this message, generated by the publisher.
	ID uuid.UUID `json:"id"`

	// The hourglass the command applies to.
	HourglassID uuid.UUID `json:"hourglass_id"`

	Action Action `json:"action"`

	// Countdown length, only meaningful for ActionCreate.
	DurationMillis int64 `json:"duration_ms,omitempty"`

	// Start right after creation, only meaningful for ActionCreate.
	Autostart bool `json:"autostart,omitempty"`

	IssuedAt time.Time `json:"issued_at"`
}

// NewCommand builds a command with a fresh id and the current time.
func NewCommand(hourglassID uuid.UUID, action Action) Command {
	return Command{
		ID:          uuid.New(),
		HourglassID: hourglassID,
		Action:      action,
		IssuedAt:    time.Now().UTC(),
	}
}

// Duration returns DurationMillis as a time.Duration.
func (c Command) Duration() time.Duration {
	return time.Duration(c.DurationMillis) * time.Millisecond
}

// Validate checks the fields a worker needs before applying the command.
func (c Command) Validate() error {
	if c.HourglassID == uuid.Nil {
		return fmt.Errorf("command %s has no hourglass id", c.ID)
	}
	if !c.Action.Valid() {
		return fmt.Errorf("command %s has unknown action %q", c.ID, c.Action)
	}
	if c.Action == ActionCreate && c.DurationMillis <= 0 {
		return fmt.Errorf("command %s: create needs a positive duration, got %dms", c.ID, c.DurationMillis)
	}
	if c.DurationMillis > MaxDurationMillis {
		return fmt.Errorf("command %s: duration %dms exceeds the maximum of %dms", c.ID, c.DurationMillis, MaxDurationMillis)
	}
	return nil
}
