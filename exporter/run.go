package exporter

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Aayush9029/apple-mail-exporter/manifest"
	"github.com/Aayush9029/apple-mail-exporter/mbox"
	"github.com/Aayush9029/apple-mail-exporter/model"
	"github.com/Aayush9029/apple-mail-exporter/runner"
	"github.com/Aayush9029/apple-mail-exporter/stats"
)

// Sinks receive every result from the collector stage. Nil sinks are skipped.
type Sinks struct {
	Manifest manifest.Recorder
	Archive  *mbox.Archive
}

// Run adds the feed, export and collect stages to r, starts it and returns
// the results ordered by index. Subscribe to r's events before calling Run.
// On failure the results collected so far are returned with the error.
func (e *Exporter) Run(r *runner.Runner, records []model.Record, sinks Sinks) ([]model.Result, error) {
	r.AddStage("feed", func(ctx context.Context) error {
		return feed(ctx, r, records)
	})

	r.AddWorkers("export", e.opts.Workers, func(ctx context.Context) error {
		return e.work(ctx, r)
	})

	c := &collector{runner: r, sinks: sinks}
	r.AddStage("collect", c.run)

	err := r.Start()
	results := c.sorted()
	return results, err
}

func feed(ctx context.Context, r *runner.Runner, records []model.Record) error {
	defer r.CloseJobs()

	for i, rec := range records {
		job := model.Job{Index: i + 1, Record: rec}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.JobWriter() <- job:
		}
		r.EmitEvent(stats.Event{Stage: stats.StageFeed, Type: stats.EventTypeScanned, MessageID: rec.ID})
	}

	r.Logger().Debug("feed completed", "jobs", len(records))
	return nil
}

func (e *Exporter) work(ctx context.Context, r *runner.Runner) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-r.Jobs():
			if !ok {
				return nil
			}

			res, err := e.Export(job)
			if err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, MessageID: job.Record.ID, Err: err})
				return fmt.Errorf("message %d: %w", job.Record.ID, err)
			}
			emitStatus(r, res)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.ResultWriter() <- res:
			}
		}
	}
}

func emitStatus(r *runner.Runner, res model.Result) {
	id := res.Record.ID
	switch res.Status {
	case model.StatusMetadataOnly:
		r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeMetadataOnly, MessageID: id})
	case model.StatusDegraded:
		r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeLocated, MessageID: id, Detail: res.Source})
		r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeDegraded, MessageID: id, Detail: res.Source})
	default:
		r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeLocated, MessageID: id, Detail: res.Source})
	}
	r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeExported, MessageID: id})
}

type collector struct {
	runner *runner.Runner
	sinks  Sinks

	mu      sync.Mutex
	results []model.Result
}

func (c *collector) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-c.runner.Results():
			if !ok {
				return nil
			}
			if err := c.consume(res); err != nil {
				c.runner.EmitEvent(stats.Event{Stage: stats.StageCollect, Type: stats.EventTypeError, MessageID: res.Record.ID, Err: err})
				return err
			}
		}
	}
}

func (c *collector) consume(res model.Result) error {
	if c.sinks.Manifest != nil {
		if err := c.sinks.Manifest.Record(res); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}

	if c.sinks.Archive != nil {
		archived, err := c.sinks.Archive.Append(res)
		if err != nil {
			return fmt.Errorf("mbox archive: %w", err)
		}
		if archived {
			c.runner.EmitEvent(stats.Event{Stage: stats.StageCollect, Type: stats.EventTypeArchived, MessageID: res.Record.ID})
		}
	}

	// The payload is not needed past the sinks.
	res.Raw = nil

	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	return nil
}

func (c *collector) sorted() []model.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := slices.Clone(c.results)
	slices.SortFunc(out, func(a, b model.Result) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}
