package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is the pull-mode status cadence.
const DefaultPollInterval = time.Second

// Progress is the pull-mode view of a mining job.
type Progress struct {
	Percent float64
	Message string
}

// ProgressFunc fetches current progress for a job.
type ProgressFunc func(ctx context.Context, jobID string) (Progress, error)

// PollerOptions configures a Poller.
type PollerOptions struct {
	// Interval between status requests. Zero means DefaultPollInterval.
	Interval time.Duration

	// OnUpdate observes every accepted progress update. Called outside the
	// poller lock. Optional.
	OnUpdate func(Progress)

	Logger *zap.Logger
}

// Poller drives pull-mode reconciliation for a mining job at a fixed
// interval. Fetch failures are logged and treated as transient: the cadence
// is unaffected and the last accepted progress stays in place.
//
// Responses are tagged with the job id they were issued for; if the poller
// is retargeted while a request is in flight, the stale response is
// discarded instead of overwriting the new job's state.
type Poller struct {
	fetch ProgressFunc
	opts  PollerOptions

	mu      sync.Mutex
	jobID   string
	cur     Progress
	started bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(jobID string, fetch ProgressFunc, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Poller{
		fetch: fetch,
		opts:  opts,
		jobID: jobID,
		done:  make(chan struct{}),
	}
}

// Start begins polling. A no-op when the job id is empty (no timer is set
// up) or when already started.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.jobID == "" || p.started || p.fetch == nil {
		p.mu.Unlock()
		return
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(runCtx)
}

// Stop cancels the polling interval and waits for the loop to exit.
// Unconditional: runs regardless of job state. Safe before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	started := p.started
	cancel := p.cancel
	p.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-p.done
}

// Current returns the last accepted progress.
func (p *Poller) Current() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Retarget switches the poller to a different job. Progress resets and any
// in-flight response for the previous job is discarded on arrival.
func (p *Poller) Retarget(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if jobID == p.jobID {
		return
	}
	p.jobID = jobID
	p.cur = Progress{}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	t := time.NewTicker(p.opts.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	target := p.jobID
	p.mu.Unlock()
	if target == "" {
		return
	}

	got, err := p.fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.opts.Logger.Warn("mining status poll failed",
			zap.String("job_id", target), zap.Error(err))
		return
	}

	p.mu.Lock()
	if current := p.jobID; current != target {
		p.mu.Unlock()
		p.opts.Logger.Debug("discarding stale status response",
			zap.String("response_job_id", target),
			zap.String("current_job_id", current))
		return
	}
	p.cur = got
	p.mu.Unlock()

	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(got)
	}
}
