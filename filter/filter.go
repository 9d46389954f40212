package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Aayush9029/apple-mail-exporter/model"
)

var ErrModeConflict = errors.New("include and exclude filters are mutually exclusive")

// Options captures the filtering configuration.
type Options struct {
	IncludeSubject []string
	IncludeSender  []string
	ExcludeSubject []string
	ExcludeSender  []string
}

// Filter holds compiled regex patterns for narrowing search results.
type Filter struct {
	includeMode    bool
	excludeMode    bool
	includeSubject []*regexp.Regexp
	includeSender  []*regexp.Regexp
	excludeSubject []*regexp.Regexp
	excludeSender  []*regexp.Regexp
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeSubject, err := compilePatterns(opts.IncludeSubject)
	if err != nil {
		return nil, fmt.Errorf("compile include-subject pattern: %w", err)
	}
	includeSender, err := compilePatterns(opts.IncludeSender)
	if err != nil {
		return nil, fmt.Errorf("compile include-sender pattern: %w", err)
	}
	excludeSubject, err := compilePatterns(opts.ExcludeSubject)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-subject pattern: %w", err)
	}
	excludeSender, err := compilePatterns(opts.ExcludeSender)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-sender pattern: %w", err)
	}

	includeActive := len(includeSubject) > 0 || len(includeSender) > 0
	excludeActive := len(excludeSubject) > 0 || len(excludeSender) > 0
	if includeActive && excludeActive {
		return nil, ErrModeConflict
	}

	return &Filter{
		includeMode:    includeActive,
		excludeMode:    excludeActive,
		includeSubject: includeSubject,
		includeSender:  includeSender,
		excludeSubject: excludeSubject,
		excludeSender:  excludeSender,
	}, nil
}

// Active reports whether any pattern was configured.
func (f *Filter) Active() bool {
	return f.includeMode || f.excludeMode
}

// Allows returns true if the record passes the filter criteria. Sender
// patterns see "name <address>".
func (f *Filter) Allows(rec model.Record) bool {
	if f.includeMode {
		return matchAny(f.includeSubject, rec.Subject) || matchAny(f.includeSender, senderText(rec))
	}

	if f.excludeMode {
		if matchAny(f.excludeSubject, rec.Subject) || matchAny(f.excludeSender, senderText(rec)) {
			return false
		}
	}

	return true
}

// Apply returns the records that pass, preserving order.
func (f *Filter) Apply(records []model.Record) []model.Record {
	if !f.Active() {
		return records
	}
	kept := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if f.Allows(rec) {
			kept = append(kept, rec)
		}
	}
	return kept
}

func senderText(rec model.Record) string {
	return rec.SenderName + " <" + rec.SenderAddress + ">"
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
