package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "apple_mail_exporter"

// Metrics mirrors pipeline events into Prometheus counters on a private
// registry, written out as a node_exporter textfile at the end of a run.
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
	started  time.Time
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Pipeline events by stage and type",
			},
			[]string{"stage", "type"},
		),
		duration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of the last export run",
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last export run finished",
			},
		),
		started: time.Now(),
	}
	return m
}

// Subscribe feeds m from stream.
func (m *Metrics) Subscribe(stream EventStream) {
	stream.SubscribeStats("metrics", m.consume)
}

func (m *Metrics) consume(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			m.Observe(evt)
		}
	}
}

func (m *Metrics) Observe(evt Event) {
	m.events.WithLabelValues(string(evt.Stage), string(evt.Type)).Inc()
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteFile stamps the run duration and writes all metrics to path in the
// text exposition format.
func (m *Metrics) WriteFile(path string) error {
	m.duration.Set(time.Since(m.started).Seconds())
	m.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
