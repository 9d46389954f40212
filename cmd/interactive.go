package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Aayush9029/apple-mail-exporter/model"
	"github.com/Aayush9029/apple-mail-exporter/naming"
)

const (
	previewCount = 10
	previewWidth = 65
)

type (
	searchFunc func(ctx context.Context, keywords []string) ([]model.Record, error)
	exportFunc func(ctx context.Context, records []model.Record, outputDir string) ([]model.Result, error)
)

// session is the interactive prompt loop.
type session struct {
	ctx        context.Context
	out        io.Writer
	lines      chan string
	done       chan struct{}
	outputBase string

	search searchFunc
	export exportFunc
}

func newSession(ctx context.Context, a *app, in io.Reader, out io.Writer) *session {
	search := func(ctx context.Context, keywords []string) ([]model.Record, error) {
		return a.search(ctx, keywords, 0)
	}
	return startSession(ctx, in, out, a.cfg.OutputDir, search, a.export)
}

func startSession(ctx context.Context, in io.Reader, out io.Writer, outputBase string, search searchFunc, export exportFunc) *session {
	s := &session{
		ctx:        ctx,
		out:        out,
		lines:      make(chan string),
		done:       make(chan struct{}),
		outputBase: outputBase,
		search:     search,
		export:     export,
	}

	go func() {
		defer close(s.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case s.lines <- scanner.Text():
			case <-s.done:
				return
			}
		}
	}()
	return s
}

func (s *session) loop() error {
	defer close(s.done)

	s.banner()
	for {
		raw, ok := s.prompt("keywords> ")
		if !ok {
			fmt.Fprintln(s.out, "\nBye!")
			return nil
		}

		switch strings.ToLower(raw) {
		case "":
			continue
		case "q", "quit", "exit":
			fmt.Fprintln(s.out, "Bye!")
			return nil
		case "help":
			s.help()
			continue
		}

		keywords := splitKeywords(raw)
		if len(keywords) == 0 {
			fmt.Fprint(s.out, "  No keywords entered.\n\n")
			continue
		}

		if !s.handle(keywords) {
			fmt.Fprintln(s.out, "\nBye!")
			return nil
		}
	}
}

// handle runs one search round. It reports false when input ended.
func (s *session) handle(keywords []string) bool {
	records, err := s.search(s.ctx, keywords)
	if err != nil {
		if s.ctx.Err() != nil {
			return false
		}
		fmt.Fprintf(s.out, "  Search failed: %v\n\n", err)
		return true
	}

	fmt.Fprintf(s.out, "\n  Found %d emails.\n\n", len(records))
	if len(records) == 0 {
		return true
	}

	preview := records[:min(previewCount, len(records))]
	printRecords(s.out, preview, previewWidth)
	if more := len(records) - len(preview); more > 0 {
		fmt.Fprintf(s.out, "  ... and %d more\n", more)
	}
	fmt.Fprintln(s.out)

	action, ok := s.prompt("  [e]xport / [l]ist all / [s]kip? (e/l/s) ")
	if !ok {
		return false
	}

	switch strings.ToLower(action) {
	case "", "s", "skip":
		fmt.Fprintln(s.out)
	case "l", "list":
		printRecords(s.out, records, 0)
		fmt.Fprintln(s.out)
	case "e", "export":
		return s.exportRound(keywords, records)
	default:
		fmt.Fprintf(s.out, "  Unknown choice %q.\n\n", action)
	}
	return true
}

func (s *session) exportRound(keywords []string, records []model.Record) bool {
	defaultFolder := filepath.Join(s.outputBase, naming.Sanitize(strings.ToLower(keywords[0])))
	folder, ok := s.prompt(fmt.Sprintf("  Output folder [%s]: ", defaultFolder))
	if !ok {
		return false
	}
	if folder == "" {
		folder = defaultFolder
	}

	limitText, ok := s.prompt("  Max emails (0 = all) [0]: ")
	if !ok {
		return false
	}
	if limit := parseLimit(limitText); limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	results, err := s.export(s.ctx, records, folder)
	if err != nil {
		fmt.Fprintf(s.out, "\n  Export failed after %d emails: %v\n\n", len(results), err)
		return s.ctx.Err() == nil
	}
	fmt.Fprintf(s.out, "\nExported %d emails to %s/\n\n", len(results), folder)
	return true
}

func (s *session) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	select {
	case <-s.ctx.Done():
		return "", false
	case line, ok := <-s.lines:
		return strings.TrimSpace(line), ok
	}
}

func (s *session) banner() {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out, "  Apple Mail Email Exporter (interactive)")
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "  Type comma-separated keywords to search.")
	fmt.Fprintln(s.out, "  Commands:  q/quit  = exit")
	fmt.Fprintln(s.out, "             help    = show usage")
	fmt.Fprintln(s.out)
}

func (s *session) help() {
	fmt.Fprint(s.out, `
  Enter comma-separated keywords to search subject/sender.
  Examples:
    Air Canada, aircanada
    Airbnb
    receipt, invoice, payment

  After search you'll be asked:
    - Output folder name
    - Max results (0 = all)
    - Preview only or full export

`)
}

func splitKeywords(raw string) []string {
	return cleanKeywords(strings.Split(raw, ","))
}

// parseLimit accepts digits only; anything else means no limit.
func parseLimit(text string) int {
	if text == "" || strings.TrimLeft(text, "0123456789") != "" {
		return 0
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}
