// Package envelope searches Apple Mail's "Envelope Index" SQLite database.
package envelope

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"crawshaw.io/sqlite"

	"github.com/Aayush9029/apple-mail-exporter/model"
)

var (
	ErrIndexNotFound = errors.New("mail database not found")
	ErrNoAccess      = errors.New("cannot open mail database: grant Full Disk Access to your terminal in System Settings > Privacy & Security")
	ErrBusy          = errors.New("mail database is locked: try again after Mail finishes syncing")
)

// BusyTimeout is how long a query waits for Mail to release its lock.
const BusyTimeout = 5 * time.Second

// Index is a read-only connection to the Envelope Index. It is not safe for
// concurrent use.
type Index struct {
	path   string
	conn   *sqlite.Conn
	logger *slog.Logger
}

// Open opens the database at path read-only.
func Open(path string, logger *slog.Logger) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", ErrNoAccess, path)
		}
		return nil, fmt.Errorf("stat mail database: %w", err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		return nil, classify(fmt.Errorf("open %s: %w", path, err))
	}
	conn.SetBusyTimeout(BusyTimeout)

	return &Index{path: path, conn: conn, logger: logger}, nil
}

func (x *Index) Path() string {
	return x.path
}

func (x *Index) Close() error {
	if err := x.conn.Close(); err != nil {
		return fmt.Errorf("close mail database: %w", err)
	}
	return nil
}

// Search returns the messages whose subject, sender address or sender name
// contains any of keywords, newest first. Empty keywords are ignored; with
// none left the result is empty. limit <= 0 means no limit.
func (x *Index) Search(ctx context.Context, keywords []string, limit int) ([]model.Record, error) {
	query, args := BuildQuery(keywords, limit)
	if query == "" {
		return nil, nil
	}

	x.conn.SetInterrupt(ctx.Done())
	defer x.conn.SetInterrupt(nil)

	stmt, _, err := x.conn.PrepareTransient(query)
	if err != nil {
		return nil, classify(fmt.Errorf("prepare search: %w", err))
	}
	defer stmt.Finalize()

	for i, arg := range args {
		stmt.BindText(i+1, arg)
	}

	var records []model.Record
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, classify(fmt.Errorf("search: %w", err))
		}
		if !hasRow {
			break
		}

		rec, err := model.RecordFromRow(scanRow(stmt))
		if err != nil {
			return nil, fmt.Errorf("search row: %w", err)
		}
		records = append(records, rec)
	}

	if x.logger != nil {
		x.logger.Debug("envelope search", "keywords", len(args)/3, "limit", limit, "matches", len(records))
	}
	return records, nil
}

const selectSQL = `SELECT
	m.ROWID AS msg_id,
	s.subject AS subject,
	a.address AS sender_address,
	a.comment AS sender_name,
	m.date_sent AS date_sent_raw,
	mb.url AS mailbox_url
FROM messages m
JOIN subjects s ON m.subject = s.ROWID
LEFT JOIN addresses a ON m.sender = a.ROWID
LEFT JOIN mailboxes mb ON m.mailbox = mb.ROWID`

// BuildQuery returns the search statement and its positional arguments. The
// statement is empty when no keyword is left after trimming.
func BuildQuery(keywords []string, limit int) (string, []string) {
	var (
		clauses []string
		args    []string
	)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		pattern := "%" + kw + "%"
		clauses = append(clauses, "(s.subject LIKE ? OR a.address LIKE ? OR a.comment LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(selectSQL)
	b.WriteString("\nWHERE ")
	b.WriteString(strings.Join(clauses, " OR "))
	b.WriteString("\nORDER BY m.date_sent DESC")
	if limit > 0 {
		b.WriteString("\nLIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	b.WriteString(";")
	return b.String(), args
}

func scanRow(stmt *sqlite.Stmt) model.Row {
	row := make(model.Row, stmt.ColumnCount())
	for col := 0; col < stmt.ColumnCount(); col++ {
		name := stmt.ColumnName(col)
		switch stmt.ColumnType(col) {
		case sqlite.SQLITE_NULL:
			row[name] = nil
		case sqlite.SQLITE_INTEGER:
			row[name] = stmt.ColumnInt64(col)
		case sqlite.SQLITE_FLOAT:
			row[name] = stmt.ColumnFloat(col)
		default:
			row[name] = stmt.ColumnText(col)
		}
	}
	return row
}

// classify maps SQLite result codes onto the package's sentinel errors.
func classify(err error) error {
	switch sqlite.ErrCode(err) & 0xff {
	case sqlite.SQLITE_BUSY, sqlite.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", ErrBusy, err)
	case sqlite.SQLITE_CANTOPEN, sqlite.SQLITE_PERM, sqlite.SQLITE_AUTH:
		return fmt.Errorf("%w: %v", ErrNoAccess, err)
	}
	return err
}
