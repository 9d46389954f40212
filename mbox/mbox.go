// Package mbox writes located message payloads into a single mbox archive
// and reads such archives back.
package mbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/Aayush9029/apple-mail-exporter/maildate"
	"github.com/Aayush9029/apple-mail-exporter/model"
)

// DefaultSender is used in the separator line when a record has no address.
const DefaultSender = "MAILER-DAEMON"

// Archive appends message payloads to an mbox file. It is safe for concurrent
// use, though the exporter only writes from its collector.
type Archive struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	file   *os.File
	writer *mboxlib.Writer
	count  int
}

// Create truncates or creates the archive at path.
func Create(path string, logger *slog.Logger) (*Archive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create mbox directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}

	return &Archive{
		path:   path,
		logger: logger,
		file:   file,
		writer: mboxlib.NewWriter(file),
	}, nil
}

func (a *Archive) Path() string {
	return a.path
}

// Append writes the raw payload of res. Results without a payload are skipped
// and report false.
func (a *Archive) Append(res model.Result) (bool, error) {
	if len(res.Raw) == 0 {
		return false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	w, err := a.writer.CreateMessage(separatorSender(res.Record), separatorTime(res.Record))
	if err != nil {
		return false, fmt.Errorf("message %d: %w", res.Record.ID, err)
	}
	if _, err := w.Write(res.Raw); err != nil {
		return false, fmt.Errorf("message %d write: %w", res.Record.ID, err)
	}

	a.count++
	if a.logger != nil {
		a.logger.Debug("archived message", "id", res.Record.ID, "bytes", len(res.Raw))
	}
	return true, nil
}

// Count returns the number of archived messages.
func (a *Archive) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	if err := a.writer.Close(); err != nil {
		firstErr = fmt.Errorf("close mbox writer: %w", err)
	}
	if err := a.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close mbox: %w", err)
	}
	return firstErr
}

func separatorSender(rec model.Record) string {
	addr := strings.Join(strings.Fields(rec.SenderAddress), "")
	if addr == "" {
		return DefaultSender
	}
	return addr
}

func separatorTime(rec model.Record) time.Time {
	if t, ok := maildate.Time(rec.DateSentRaw); ok {
		return t
	}
	return time.Unix(0, 0).UTC()
}

// Read opens an mbox file and calls fn with the raw bytes of every message.
func Read(path string, fn func(raw []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("message %d read: %w", idx, err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
}

// CountMessages counts the total number of messages in an mbox file.
func CountMessages(path string) (int, error) {
	count := 0
	err := Read(path, func([]byte) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
