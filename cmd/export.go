package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aayush9029/apple-mail-exporter/config"
	"github.com/Aayush9029/apple-mail-exporter/envelope"
	"github.com/Aayush9029/apple-mail-exporter/exporter"
	"github.com/Aayush9029/apple-mail-exporter/filter"
	"github.com/Aayush9029/apple-mail-exporter/maildate"
	"github.com/Aayush9029/apple-mail-exporter/manifest"
	"github.com/Aayush9029/apple-mail-exporter/mbox"
	"github.com/Aayush9029/apple-mail-exporter/model"
	"github.com/Aayush9029/apple-mail-exporter/progress"
	"github.com/Aayush9029/apple-mail-exporter/render"
	"github.com/Aayush9029/apple-mail-exporter/runner"
	"github.com/Aayush9029/apple-mail-exporter/stats"
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	cfg    config.Config
	paths  config.MailPaths
	filter *filter.Filter
	logger *slog.Logger
}

// search queries the Envelope Index and applies the record filter. The
// database is closed before returning.
func (a *app) search(ctx context.Context, keywords []string, limit int) ([]model.Record, error) {
	idx, err := envelope.Open(a.paths.Index, a.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := idx.Close(); err != nil {
			a.logger.Warn("close mail database", "err", err)
		}
	}()

	records, err := idx.Search(ctx, keywords, limit)
	if err != nil {
		return nil, err
	}

	kept := a.filter.Apply(records)
	if dropped := len(records) - len(kept); dropped > 0 {
		a.logger.Info("records filtered", "matched", len(records), "dropped", dropped)
	}
	return kept, nil
}

func (a *app) searchAndExport(ctx context.Context, out io.Writer, keywords []string) error {
	records, err := a.search(ctx, keywords, a.cfg.Limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSearching for: %s\n", strings.Join(keywords, ", "))
	fmt.Fprintf(out, "Found %d matching emails.\n\n", len(records))
	if len(records) == 0 {
		return nil
	}

	if a.cfg.ListOnly {
		printRecords(out, records, 0)
		return nil
	}

	results, err := a.export(ctx, records, a.cfg.OutputDir)
	for _, res := range results {
		fmt.Fprintf(out, "  [%s] %s\n", maildate.Day(res.Record.DateSentRaw), filepath.Base(res.Path))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nExported %d emails to %s\n\n", len(results), a.cfg.OutputDir)
	return nil
}

// export runs the pipeline over records into outputDir with all configured
// sinks and reporters attached.
func (a *app) export(ctx context.Context, records []model.Record, outputDir string) (results []model.Result, err error) {
	exp, err := exporter.New(exporter.Options{
		MailDir:   a.paths.Dir,
		OutputDir: outputDir,
		HTML:      render.HTMLMode(a.cfg.HTMLMode),
		Workers:   a.cfg.Workers,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("exporter.New: %w", err)
	}

	r := runner.New(ctx, a.logger)
	stats.NewReporter(r, a.logger)

	var metrics *stats.Metrics
	if a.cfg.MetricsFile != "" {
		metrics = stats.NewMetrics()
		metrics.Subscribe(r)
	}

	if a.cfg.Progress {
		bar := progress.New(len(records), a.cfg.LogLevel, os.Stderr)
		progress.NewProgressReporter(r, bar, a.logger)
	}

	var sinks exporter.Sinks
	var closers []func() error

	if a.cfg.Manifest {
		recorder, err := manifest.NewFileRecorder(exp.OutputDir(), manifest.NewRunID())
		if err != nil {
			return nil, fmt.Errorf("manifest.NewFileRecorder: %w", err)
		}
		sinks.Manifest = recorder
		closers = append(closers, recorder.Close)
	}

	if a.cfg.MboxArchive != "" {
		archive, err := mbox.Create(a.cfg.MboxArchive, a.logger)
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, fmt.Errorf("mbox.Create: %w", err)
		}
		sinks.Archive = archive
		closers = append(closers, archive.Close)
	}

	results, err = exp.Run(r, records, sinks)

	for _, c := range closers {
		err = errors.Join(err, c())
	}

	if metrics != nil {
		if werr := metrics.WriteFile(a.cfg.MetricsFile); werr != nil {
			err = errors.Join(err, werr)
		} else {
			a.logger.Debug("metrics written", "path", a.cfg.MetricsFile)
		}
	}
	return results, err
}

// printRecords writes numbered "[date] sender: subject" lines. A positive
// subjectWidth truncates subjects to that many runes.
func printRecords(out io.Writer, records []model.Record, subjectWidth int) {
	for i, rec := range records {
		sender := rec.Sender()
		if sender == "" {
			sender = "?"
		}
		subject := rec.Subject
		if subject == "" {
			subject = "?"
		}
		if runes := []rune(subject); subjectWidth > 0 && len(runes) > subjectWidth {
			subject = string(runes[:subjectWidth])
		}
		fmt.Fprintf(out, "  %3d. [%s] %s: %s\n", i+1, maildate.Day(rec.DateSentRaw), sender, subject)
	}
}
