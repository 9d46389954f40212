package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aayush9029/apple-mail-exporter/model"
	"github.com/Aayush9029/apple-mail-exporter/stats"
)

type StageFunc func(context.Context) error

// Runner wires the export pipeline: a feed stage writes jobs, workers turn jobs
// into results, a collector drains results. Stats events are delivered to
// every subscriber.
type Runner struct {
	logger *slog.Logger

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	jobs    chan model.Job
	results chan model.Result

	subsMu     sync.RWMutex
	subs       []chan stats.Event
	subsClosed bool

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeJobsOnce    sync.Once
	closeResultsOnce sync.Once
	closeEventsOnce  sync.Once
	since            time.Time
}

func New(parent context.Context, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(parent)

	return &Runner{
		logger:  logger,
		parent:  parent,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(chan model.Job, 32),
		results: make(chan model.Result, 32),
	}
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) JobWriter() chan<- model.Job {
	return r.jobs
}

func (r *Runner) CloseJobs() {
	r.closeJobsOnce.Do(func() {
		close(r.jobs)
	})
}

func (r *Runner) Jobs() <-chan model.Job {
	return r.jobs
}

func (r *Runner) ResultWriter() chan<- model.Result {
	return r.results
}

func (r *Runner) Results() <-chan model.Result {
	return r.results
}

// EmitEvent delivers evt to every subscriber. Without subscribers the event is
// dropped.
func (r *Runner) EmitEvent(evt stats.Event) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	if r.subsClosed {
		return
	}
	for _, ch := range r.subs {
		select {
		case <-r.ctx.Done():
			return
		case ch <- evt:
		}
	}
}

// SubscribeStats registers fn as an event consumer. fn must drain its channel
// until it is closed or the context ends. Subscribe before adding stages.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	ch := make(chan stats.Event, 128)
	r.subsMu.Lock()
	r.subs = append(r.subs, ch)
	r.subsMu.Unlock()

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

// AddWorkers runs n copies of fn and closes the result channel once all of
// them have returned.
func (r *Runner) AddWorkers(name string, n int, fn StageFunc) {
	if n < 1 {
		n = 1
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		r.AddStage(fmt.Sprintf("%s-%d", name, i+1), func(ctx context.Context) error {
			defer wg.Done()
			return fn(ctx)
		})
	}

	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		wg.Wait()
		r.closeResults()
	}()
}

// Fail records err as the run's error and cancels all stages. Only the first
// error is kept.
func (r *Runner) Fail(err error) {
	r.fail(err)
}

// Start blocks until all stages and subscribers have finished.
func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	r.errMu.Lock()
	err := r.err
	r.errMu.Unlock()
	if err == nil {
		err = r.parent.Err()
	}

	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return nil
}

func (r *Runner) closeResults() {
	r.closeResultsOnce.Do(func() {
		close(r.results)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		r.subsClosed = true
		for _, ch := range r.subs {
			close(ch)
		}
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
