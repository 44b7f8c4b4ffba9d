// Package reconcile keeps a local view of one long-running backend job
// consistent with the backend's authoritative state.
//
// Two notification strategies exist, selected by job kind: annotation jobs
// use push mode (Tracker + a room-scoped Listener), mining jobs use pull
// mode (Poller). Both guarantee their channel or timer is released on
// teardown, whichever comes first of job termination and owner shutdown.
package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patternlab/graphscout/pkg/annotation"
)

// State is the tracker lifecycle state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// UpdateEvent is one push-mode notification for a job room.
type UpdateEvent struct {
	Status annotation.Status `json:"status"`
	Update annotation.Patch  `json:"update"`
}

// Listener is an open notification channel scoped to one job room.
// Events() is closed when the channel dies, whether by error or by Close.
type Listener interface {
	Events() <-chan UpdateEvent
	Close() error
}

// DialFunc opens a Listener joined to the given room.
type DialFunc func(ctx context.Context, room string) (Listener, error)

const (
	defaultBackoffBase = time.Second
	defaultBackoffCap  = 30 * time.Second
)

// TrackerOptions configures a push-mode Tracker.
type TrackerOptions struct {
	// Dial opens the notification channel. Required.
	Dial DialFunc

	// Revalidate refetches the authoritative record when a push update
	// carries new derived data. Optional. At most one revalidation is in
	// flight at a time; extra triggers are dropped while one runs.
	Revalidate func(ctx context.Context) (*annotation.Record, error)

	// OnChange observes every state change with a snapshot of the record.
	// Called outside the tracker lock. Optional.
	OnChange func(annotation.Record)

	Logger *zap.Logger

	// BackoffBase and BackoffCap bound the reconnect delay after a channel
	// error. Defaults: 1s base, 30s cap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Tracker reconciles push-mode updates for a single annotation job.
//
// Lifecycle: Idle -> Listening -> Terminal. Once Terminal, inbound events
// are dropped and the channel is closed. Stop tears down the channel
// unconditionally, regardless of job state.
type Tracker struct {
	jobID string
	opts  TrackerOptions

	mu           sync.Mutex
	state        State
	rec          annotation.Record
	revalidating bool
	started      bool
	active       Listener

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker creates a tracker for rec.JobID seeded with the initial record.
// A record already in a terminal status yields a tracker that never opens a
// channel.
func NewTracker(rec annotation.Record, opts TrackerOptions) *Tracker {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = defaultBackoffCap
	}
	t := &Tracker{
		jobID: rec.JobID,
		opts:  opts,
		rec:   rec,
		done:  make(chan struct{}),
	}
	if rec.Status.Terminal() {
		t.state = StateTerminal
	}
	return t
}

// Start opens the notification channel and begins applying updates.
//
// Start is a no-op when the job id is empty, the tracker is already
// terminal, or Start was called before.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.jobID == "" || t.state != StateIdle || t.started || t.opts.Dial == nil {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.state = StateListening
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(runCtx)
}

// Stop tears down the notification channel and waits for the run loop to
// exit. Safe to call multiple times and before Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	started := t.started
	cancel := t.cancel
	t.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-t.done
}

// Done is closed when the run loop has exited: the job reached a terminal
// state or the tracker was torn down.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Snapshot returns a copy of the current record.
func (t *Tracker) Snapshot() annotation.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)

	backoff := t.opts.BackoffBase
	for {
		if ctx.Err() != nil || t.State() == StateTerminal {
			return
		}

		l, err := t.opts.Dial(ctx, t.jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.opts.Logger.Warn("notification channel unavailable, retrying",
				zap.String("job_id", t.jobID),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, t.opts.BackoffCap)
			continue
		}
		backoff = t.opts.BackoffBase

		// A revalidation may have gone terminal while the dial was in
		// flight; the new channel must not outlive that transition.
		t.mu.Lock()
		if t.state == StateTerminal {
			t.mu.Unlock()
			_ = l.Close()
			return
		}
		t.active = l
		t.mu.Unlock()

		// Teardown must unblock the event loop even with no traffic.
		unhook := context.AfterFunc(ctx, func() { _ = l.Close() })

		for ev := range l.Events() {
			t.apply(ctx, ev)
		}

		unhook()
		t.mu.Lock()
		t.active = nil
		t.mu.Unlock()
		_ = l.Close()

		if ctx.Err() != nil || t.State() == StateTerminal {
			return
		}
		t.opts.Logger.Warn("notification channel closed, reconnecting",
			zap.String("job_id", t.jobID))
	}
}

// apply merges one inbound event into the record. Events arriving after the
// terminal transition are dropped.
func (t *Tracker) apply(ctx context.Context, ev UpdateEvent) {
	t.mu.Lock()
	if t.state == StateTerminal {
		t.mu.Unlock()
		return
	}

	annotation.Apply(&t.rec, ev.Update)
	t.rec.Status = ev.Status
	if ev.Status.Terminal() {
		t.terminateLocked()
	}

	// Partial push payloads are not trusted for rendering: when derived data
	// shows up, refetch the authoritative record unless a refetch is already
	// in flight.
	revalidate := ev.Update.HasDerivedData() && !t.revalidating && t.opts.Revalidate != nil
	if revalidate {
		t.revalidating = true
	}
	snapshot := t.rec
	t.mu.Unlock()

	if t.opts.OnChange != nil {
		t.opts.OnChange(snapshot)
	}
	if revalidate {
		go t.revalidate(ctx)
	}
}

func (t *Tracker) revalidate(ctx context.Context) {
	rec, err := t.opts.Revalidate(ctx)

	t.mu.Lock()
	t.revalidating = false
	if err != nil || rec == nil {
		t.mu.Unlock()
		if err != nil && ctx.Err() == nil {
			t.opts.Logger.Warn("revalidation failed",
				zap.String("job_id", t.jobID), zap.Error(err))
		}
		return
	}

	t.rec = *rec
	if rec.Status.Terminal() {
		t.terminateLocked()
	}
	snapshot := t.rec
	t.mu.Unlock()

	if t.opts.OnChange != nil {
		t.opts.OnChange(snapshot)
	}
}

// terminateLocked transitions to Terminal and closes any open channel so the
// run loop unblocks immediately. Caller holds t.mu.
func (t *Tracker) terminateLocked() {
	t.state = StateTerminal
	if t.active != nil {
		_ = t.active.Close()
	}
}

// sleep waits for d or until ctx is cancelled; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
