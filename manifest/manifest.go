// Package manifest records one JSON line per exported document.
package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Aayush9029/apple-mail-exporter/model"
)

const FileName = "manifest.jsonl"

type Entry struct {
	RunID     string       `json:"run_id"`
	Index     int          `json:"index"`
	MessageID int64        `json:"message_id"`
	File      string       `json:"file"`
	Source    string       `json:"source,omitempty"`
	Status    model.Status `json:"status"`
}

type Recorder interface {
	Record(res model.Result) error
	Snapshot() Snapshot
	Close() error
}

type Snapshot struct {
	Recorded     int
	MetadataOnly int
	Degraded     int
}

// NewRunID returns a fresh identifier for one export run.
func NewRunID() string {
	return uuid.NewString()
}

// EntryFor converts a result into a manifest line.
func EntryFor(runID string, res model.Result) Entry {
	return Entry{
		RunID:     runID,
		Index:     res.Index,
		MessageID: res.Record.ID,
		File:      filepath.Base(res.Path),
		Source:    res.Source,
		Status:    res.Status,
	}
}

// MemoryRecorder keeps entries in memory only.
type MemoryRecorder struct {
	runID   string
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryRecorder(runID string) *MemoryRecorder {
	return &MemoryRecorder{runID: runID}
}

func (m *MemoryRecorder) Record(res model.Result) error {
	m.add(EntryFor(m.runID, res))
	return nil
}

func (m *MemoryRecorder) add(e Entry) {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

func (m *MemoryRecorder) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *MemoryRecorder) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{Recorded: len(m.entries)}
	for _, e := range m.entries {
		switch e.Status {
		case model.StatusMetadataOnly:
			s.MetadataOnly++
		case model.StatusDegraded:
			s.Degraded++
		}
	}
	return s
}

func (m *MemoryRecorder) Close() error {
	return nil
}

// FileRecorder appends entries to manifest.jsonl in the output directory.
// Runs are told apart by their run id.
type FileRecorder struct {
	*MemoryRecorder
	path    string
	writer  *bufio.Writer
	file    *os.File
	writeMu sync.Mutex
}

func NewFileRecorder(dir, runID string) (*FileRecorder, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("manifest directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open manifest for append: %w", err)
	}

	return &FileRecorder{
		MemoryRecorder: NewMemoryRecorder(runID),
		path:           path,
		file:           file,
		writer:         bufio.NewWriterSize(file, 64*1024),
	}, nil
}

func (f *FileRecorder) Path() string {
	return f.path
}

func (f *FileRecorder) Record(res model.Result) error {
	entry := EntryFor(f.runID, res)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode manifest entry: %w", err)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("write manifest entry: %w", err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	f.add(entry)
	return nil
}

// Flush writes any buffered data to the underlying file.
func (f *FileRecorder) Flush() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush manifest: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync manifest: %w", err)
	}
	return nil
}

// Close flushes and closes the manifest file.
func (f *FileRecorder) Close() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	var firstErr error
	if err := f.writer.Flush(); err != nil {
		firstErr = fmt.Errorf("flush manifest: %w", err)
	}
	if err := f.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync manifest: %w", err)
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close manifest: %w", err)
	}
	return firstErr
}

// Load reads every entry of a manifest file. A missing file yields no entries.
func Load(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(text, &entry); err != nil {
			return nil, fmt.Errorf("parse manifest line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return entries, nil
}
