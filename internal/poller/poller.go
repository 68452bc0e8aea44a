// Package poller keeps an observable list of JAR services fresh by polling
// the panel's status endpoint on a fixed period.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jarconsole/internal/buildinfo"
	"jarconsole/internal/models"
)

// StatusSource fetches one status listing.
type StatusSource interface {
	Status(ctx context.Context) (models.Envelope[[]models.ServiceItem], error)
}

// Result classifies what happened to one tick's response.
type Result string

const (
	ResultAccepted  Result = "accepted"
	ResultRejected  Result = "rejected"
	ResultError     Result = "error"
	ResultStale     Result = "stale"
	ResultCancelled Result = "cancelled"
)

// Options tune a Poller. Zero values pick the defaults.
type Options struct {
	// Period defaults to the build-mode poll period.
	Period time.Duration
	Logger zerolog.Logger
	// OnResult is called once per tick with its outcome.
	OnResult func(Result)
	Now      func() time.Time
}

// Poller refreshes a List from a StatusSource while it is started.
type Poller struct {
	source   StatusSource
	list     *List
	period   time.Duration
	log      zerolog.Logger
	onResult func(Result)
	now      func() time.Time

	mu          sync.Mutex
	task        *Task
	lastApplied uint64
	hooks       []func(models.StatusEntry)

	startTask func(TaskFunc) *Task
}

// New creates a stopped poller writing into list.
func New(source StatusSource, list *List, opts Options) *Poller {
	period := opts.Period
	if period <= 0 {
		period = buildinfo.DefaultPollPeriod()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	p := &Poller{
		source:   source,
		list:     list,
		period:   period,
		log:      opts.Logger,
		onResult: opts.OnResult,
		now:      now,
	}
	p.startTask = func(fn TaskFunc) *Task {
		return Every(p.period, fn)
	}
	return p
}

// List returns the list the poller writes into.
func (p *Poller) List() *List {
	return p.list
}

// Period returns the interval between ticks.
func (p *Poller) Period() time.Duration {
	return p.period
}

// OnUpdate registers fn to run after every accepted replacement.
func (p *Poller) OnUpdate(fn func(models.StatusEntry)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, fn)
}

// Start activates the repeating refresh. Calling it on a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.task != nil {
		return
	}
	p.lastApplied = 0

	ready := make(chan struct{})
	var task *Task
	task = p.startTask(func(ctx context.Context, seq uint64) {
		<-ready
		p.tick(ctx, task, seq)
	})
	p.task = task
	close(ready)
	p.log.Debug().Dur("period", p.period).Msg("status polling started")
}

// Stop cancels the refresh and waits for in-flight ticks. Responses that
// arrive after Stop never change the list.
func (p *Poller) Stop() {
	p.mu.Lock()
	task := p.task
	p.task = nil
	if task != nil {
		task.Cancel()
	}
	p.mu.Unlock()

	if task == nil {
		return
	}
	task.Wait()
	p.log.Debug().Msg("status polling stopped")
}

// Active reports whether a refresh task is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task != nil
}

// Refresh fires one extra tick right away. It reports false when stopped.
func (p *Poller) Refresh() bool {
	p.mu.Lock()
	task := p.task
	p.mu.Unlock()

	if task == nil {
		return false
	}
	return task.Trigger()
}

func (p *Poller) tick(ctx context.Context, task *Task, seq uint64) {
	env, err := p.source.Status(ctx)
	result, entry := p.apply(task, seq, env, err)

	switch result {
	case ResultError:
		p.log.Debug().Err(err).Uint64("seq", seq).Msg("status poll failed")
	case ResultRejected:
		p.log.Debug().Int("code", env.Code).Str("message", env.Message).Uint64("seq", seq).Msg("status poll rejected")
	case ResultStale:
		p.log.Debug().Uint64("seq", seq).Msg("discarded out-of-order status response")
	}

	if p.onResult != nil {
		p.onResult(result)
	}
	if result != ResultAccepted {
		return
	}

	p.mu.Lock()
	hooks := append([]func(models.StatusEntry){}, p.hooks...)
	p.mu.Unlock()
	for _, hook := range hooks {
		hook(entry)
	}
}

// apply replaces the list when the response may be trusted. The whole
// decision runs under p.mu so it cannot interleave with Stop.
func (p *Poller) apply(task *Task, seq uint64, env models.Envelope[[]models.ServiceItem], err error) (Result, models.StatusEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if task.Cancelled() || p.task != task {
		return ResultCancelled, models.StatusEntry{}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ResultCancelled, models.StatusEntry{}
		}
		return ResultError, models.StatusEntry{}
	}
	if !env.OK() {
		return ResultRejected, models.StatusEntry{}
	}
	if seq <= p.lastApplied {
		return ResultStale, models.StatusEntry{}
	}

	items := []models.ServiceItem{}
	if env.Data != nil {
		items = *env.Data
	}
	p.lastApplied = seq
	p.list.Replace(items)

	return ResultAccepted, models.StatusEntry{
		Timestamp: p.now().UTC(),
		Items:     p.list.Items(),
	}
}
