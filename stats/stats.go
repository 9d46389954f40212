package stats

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type Stage string

const (
	StageFeed    Stage = "feed"
	StageExport  Stage = "export"
	StageCollect Stage = "collect"
)

type EventType string

const (
	EventTypeScanned      EventType = "scanned"
	EventTypeLocated      EventType = "located"
	EventTypeMetadataOnly EventType = "metadata_only"
	EventTypeDegraded     EventType = "degraded"
	EventTypeExported     EventType = "exported"
	EventTypeArchived     EventType = "archived"
	EventTypeError        EventType = "error"
)

// EventTypes lists every event type in reporting order.
var EventTypes = []EventType{
	EventTypeScanned,
	EventTypeLocated,
	EventTypeMetadataOnly,
	EventTypeDegraded,
	EventTypeExported,
	EventTypeArchived,
	EventTypeError,
}

type Event struct {
	Stage     Stage
	Type      EventType
	MessageID int64
	Err       error
	Detail    string
}

type Summary struct {
	Scanned      int
	Located      int
	MetadataOnly int
	Degraded     int
	Exported     int
	Archived     int
	Errors       int
	LastError    error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"located", s.Located,
		"metadataOnly", s.MetadataOnly,
		"degraded", s.Degraded,
		"exported", s.Exported,
		"archived", s.Archived,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.Apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeLocated:
		c.summary.Located++
	case EventTypeMetadataOnly:
		c.summary.MetadataOnly++
	case EventTypeDegraded:
		c.summary.Degraded++
	case EventTypeExported:
		c.summary.Exported++
	case EventTypeArchived:
		c.summary.Archived++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// Count is one entry of a frequency table.
type Count struct {
	Key   string
	Value int
}

// Top returns the limit most frequent entries of m, ties broken by key. A
// limit of zero or less returns all entries.
func Top(m map[string]int, limit int) []Count {
	pairs := make([]Count, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Count{k, v})
	}

	slices.SortFunc(pairs, func(a, b Count) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(w io.Writer, m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}
