// Package exporter turns Envelope Index records into Markdown documents.
package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aayush9029/apple-mail-exporter/emlx"
	"github.com/Aayush9029/apple-mail-exporter/mailbox"
	"github.com/Aayush9029/apple-mail-exporter/model"
	"github.com/Aayush9029/apple-mail-exporter/render"
)

type Options struct {
	// MailDir is the mail version directory, e.g. ~/Library/Mail/V10.
	MailDir   string
	OutputDir string
	HTML      render.HTMLMode
	Workers   int
}

// Exporter writes one document per job. Export is safe for concurrent use.
type Exporter struct {
	opts     Options
	renderer *render.Renderer
	logger   *slog.Logger
}

// New creates the output directory and returns an Exporter writing into it.
func New(opts Options, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	out, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	opts.OutputDir = out

	return &Exporter{
		opts:     opts,
		renderer: render.New(render.Options{HTML: opts.HTML}),
		logger:   logger,
	}, nil
}

func (e *Exporter) OutputDir() string {
	return e.opts.OutputDir
}

// Export resolves, locates and parses the container for job and writes its
// document. Missing or unreadable containers fall back to a metadata-only
// document; only the document write can fail.
func (e *Exporter) Export(job model.Job) (model.Result, error) {
	rec := job.Record
	res := model.Result{
		Index:  job.Index,
		Record: rec,
		Status: model.StatusMetadataOnly,
	}

	msg := e.load(rec, &res)

	doc := e.renderer.Document(rec, msg, res.Source)
	path := filepath.Join(e.opts.OutputDir, render.FileName(job.Index, rec))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return res, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	res.Path = path

	e.logger.Debug("exported message", "index", job.Index, "id", rec.ID, "file", filepath.Base(path), "status", res.Status)
	return res, nil
}

func (e *Exporter) load(rec model.Record, res *model.Result) *model.Message {
	dir, ok := mailbox.Resolve(rec.MailboxURL, e.opts.MailDir)
	if !ok {
		e.logger.Debug("mailbox not resolvable", "id", rec.ID, "mailbox", rec.MailboxURL)
		return nil
	}

	path, ok := mailbox.Locate(rec.ID, dir)
	if !ok {
		e.logger.Debug("container not found locally", "id", rec.ID, "dir", dir)
		return nil
	}

	msg, err := emlx.ParseFile(path)
	if err != nil {
		e.logger.Warn("container unreadable", "id", rec.ID, "path", path, "err", err)
		return nil
	}

	res.Source = filepath.Base(path)
	res.Raw = msg.Raw
	res.Status = model.StatusExported
	if msg.Degraded {
		res.Status = model.StatusDegraded
		e.logger.Warn("body decoding failed, kept raw text", "id", rec.ID, "encoding", msg.Headers.Get(emlx.HeaderTransferEncoding))
	}
	return &msg
}
