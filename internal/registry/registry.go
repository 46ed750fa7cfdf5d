// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Slade66/hourglass/internal/hourglass"
	"github.com/Slade66/hourglass/internal/uploader"
	"github.com/Slade66/hourglass/pkg/task"
)

var (
	ErrExists           = errors.New("registry: hourglass already exists")
	ErrUnknownHourglass = errors.New("registry: unknown hourglass")
)

// StatusStore receives the published state of every hourglass.
type StatusStore interface {
	Claim(ctx context.Context, id, owner string, total time.Duration) error
	UpdateState(ctx context.Context, id string, state hourglass.State, remaining time.Duration) error
	UpdateRemaining(ctx context.Context, id string, remaining time.Duration) error
}

// Archiver stores the record of a run that reached a terminal state.
type Archiver interface {
	ArchiveRun(record uploader.RunRecord) error
}

type entry struct {
	id        uuid.UUID
	hg        *hourglass.Hourglass
	createdAt time.Time
	ticks     atomic.Int32
}

// Registry owns the live hourglasses of one worker.
type Registry struct {
	ctx      context.Context
	owner    string
	status   StatusStore
	archiver Archiver
	opts     []hourglass.Option
	log      zerolog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// New creates a registry. owner is recorded on every hourglass it creates so
// follow-up commands reach this worker. ctx bounds the status writes made
// from listener callbacks; archiver may be nil. opts are passed to every
// hourglass.
func New(ctx context.Context, owner string, status StatusStore, archiver Archiver, log zerolog.Logger, opts ...hourglass.Option) *Registry {
	return &Registry{
		ctx:      ctx,
		owner:    owner,
		status:   status,
		archiver: archiver,
		opts:     opts,
		log:      log.With().Str("component", "registry").Logger(),
		entries:  make(map[uuid.UUID]*entry),
	}
}

// Apply runs one command against the registry.
func (r *Registry) Apply(ctx context.Context, cmd task.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.Action == task.ActionCreate {
		if err := r.create(ctx, cmd.HourglassID, cmd.Duration()); err != nil {
			return err
		}
		if !cmd.Autostart {
			return nil
		}
		cmd.Action = task.ActionStart
	}

	e, ok := r.lookup(cmd.HourglassID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHourglass, cmd.HourglassID)
	}

	var err error
	switch cmd.Action {
	case task.ActionStart:
		err = e.hg.Start()
	case task.ActionPause:
		err = e.hg.Pause()
	case task.ActionResume:
		err = e.hg.Resume()
	case task.ActionCancel:
		e.hg.Cancel()
		// A run that finished first is reported by its listener.
		if e.hg.State() == hourglass.StateCancelled {
			r.terminate(e, hourglass.StateCancelled)
		}
		return nil
	}
	if err != nil {
		return err
	}
	return r.status.UpdateState(ctx, e.id.String(), e.hg.State(), e.hg.TimeRemaining())
}

func (r *Registry) create(ctx context.Context, id uuid.UUID, d time.Duration) error {
	hg, err := hourglass.NewWithDuration(d, r.opts...)
	if err != nil {
		return err
	}
	e := &entry{id: id, hg: hg, createdAt: time.Now().UTC()}

	r.mu.Lock()
	if _, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	r.entries[id] = e
	r.mu.Unlock()

	hg.SetListener(&reporter{registry: r, entry: e})
	r.log.Info().Str("hourglass_id", id.String()).Dur("duration", d).Msg("hourglass created")
	if err := r.status.Claim(ctx, id.String(), r.owner, d); err != nil {
		return err
	}
	return r.status.UpdateState(ctx, id.String(), hourglass.StateIdle, d)
}

// Lookup returns the live hourglass for id.
func (r *Registry) Lookup(id uuid.UUID) (*hourglass.Hourglass, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	return e.hg, true
}

func (r *Registry) lookup(id uuid.UUID) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// Len returns the number of live hourglasses.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Shutdown cancels every live hourglass.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	live := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		live = append(live, e)
	}
	r.mu.Unlock()

	for _, e := range live {
		e.hg.Cancel()
		if e.hg.State() == hourglass.StateCancelled {
			r.terminate(e, hourglass.StateCancelled)
		}
	}
}

// terminate drops a finished or cancelled entry, publishes its final state
// and archives the run. Only the first call for an entry has any effect.
func (r *Registry) terminate(e *entry, state hourglass.State) {
	r.mu.Lock()
	if r.entries[e.id] != e {
		r.mu.Unlock()
		return
	}
	delete(r.entries, e.id)
	r.mu.Unlock()

	id := e.id.String()
	log := r.log.With().Str("hourglass_id", id).Logger()
	remaining := e.hg.TimeRemaining()

	if err := r.status.UpdateState(r.ctx, id, state, remaining); err != nil {
		log.Error().Err(err).Msg("failed to publish final state")
	}
	log.Info().Str("state", state.String()).Dur("remaining", remaining).Msg("hourglass ended")

	if r.archiver == nil {
		return
	}
	record := uploader.RunRecord{
		ID:          id,
		Outcome:     state.String(),
		TotalMs:     e.hg.Total().Milliseconds(),
		RemainingMs: remaining.Milliseconds(),
		Ticks:       int(e.ticks.Load()),
		CreatedAt:   e.createdAt,
		EndedAt:     time.Now().UTC(),
	}
	if err := r.archiver.ArchiveRun(record); err != nil {
		log.Error().Err(err).Msg("failed to archive run")
	}
}

// reporter is the single listener of a registry-owned hourglass.
type reporter struct {
	registry *Registry
	entry    *entry
}

func (p *reporter) OnTimerTick(remaining time.Duration) {
	p.entry.ticks.Add(1)
	err := p.registry.status.UpdateRemaining(p.registry.ctx, p.entry.id.String(), remaining)
	if err != nil {
		p.registry.log.Warn().Err(err).Str("hourglass_id", p.entry.id.String()).Msg("failed to publish tick")
	}
}

func (p *reporter) OnTimerFinish() {
	p.registry.terminate(p.entry, hourglass.StateFinished)
}
