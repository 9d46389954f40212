package progress

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/Aayush9029/apple-mail-exporter/stats"
)

// Bar tracks exported documents against the number of matched records.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	out     io.Writer
	total   int
	done    int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar when logLevel is "info" and total is positive.
// A nil out writes to stderr.
func New(total int, logLevel string, out io.Writer) *Bar {
	if out == nil {
		out = os.Stderr
	}
	bar := &Bar{
		out:     out,
		total:   total,
		enabled: logLevel == "info" && total > 0,
	}
	if !bar.enabled {
		return bar
	}

	pterm.Info.WithWriter(out).Printf("Exporting %d emails\n", total)

	pb, _ := pterm.DefaultProgressbar.
		WithWriter(out).
		WithTotal(total).
		WithTitle("Exporting").
		WithRemoveWhenDone(true).
		Start()
	bar.pb = pb
	return bar
}

func (b *Bar) Enabled() bool {
	return b.enabled
}

// Update advances the bar once per finished record.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeExported:
		b.advance(evt.MessageID)
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.WithWriter(b.out).Printf("Message %d: %v\n", evt.MessageID, evt.Err)
		}
		if evt.Stage == stats.StageExport {
			b.advance(evt.MessageID)
		}
	}
}

func (b *Bar) advance(id int64) {
	if b.done >= b.total {
		return
	}
	b.done++
	if id != 0 {
		b.pb.UpdateTitle("Exporting message " + strconv.FormatInt(id, 10))
	}
	b.pb.Increment()
}

// Stop removes the bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, _ = b.pb.Stop()
}

// Subscriber feeds pipeline events into the bar.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	defer b.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// ProgressReporter shows the bar while the pipeline runs and a formatted
// summary once it finishes.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

func NewProgressReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress-bar", bar.Subscriber)
		stream.SubscribeStats("progress-stats", reporter.collectStats)
	}

	return reporter
}

func (pr *ProgressReporter) Summary() stats.Summary {
	return pr.collector.Snapshot()
}

func (pr *ProgressReporter) collectStats(ctx context.Context, events <-chan stats.Event) error {
	pr.collector.Run(ctx, events)
	PrintSummary(pr.bar.out, pr.collector.Snapshot(), time.Since(pr.started))
	return nil
}

// PrintSummary writes the run counters as a pterm section.
func PrintSummary(out io.Writer, summary stats.Summary, duration time.Duration) {
	info := pterm.Info.WithWriter(out)

	pterm.Fprintln(out)
	pterm.DefaultSection.WithWriter(out).Println("Export Summary")
	info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	info.Printf("Matched: %d\n", summary.Scanned)
	info.Printf("Located on disk: %d\n", summary.Located)
	info.Printf("Metadata only: %d\n", summary.MetadataOnly)
	info.Printf("Degraded bodies: %d\n", summary.Degraded)
	info.Printf("Exported: %d\n", summary.Exported)
	if summary.Archived > 0 {
		info.Printf("Archived to mbox: %d\n", summary.Archived)
	}
	info.Printf("Errors: %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.WithWriter(out).Printf("Last error: %v\n", summary.LastError)
	}
}
