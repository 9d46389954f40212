package model

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrFieldType    = errors.New("unexpected field type")
)

// Row is a database row keyed by column name. Values are whatever the driver
// produced: int64, float64, string, []byte or nil.
type Row map[string]any

// Column names produced by the Envelope Index query.
const (
	ColumnMessageID     = "msg_id"
	ColumnSubject       = "subject"
	ColumnSenderAddress = "sender_address"
	ColumnSenderName    = "sender_name"
	ColumnDateSent      = "date_sent_raw"
	ColumnMailboxURL    = "mailbox_url"
)

// RecordFromRow converts a row into a Record. Every column must be present; a
// NULL value is fine except for the message id.
func RecordFromRow(row Row) (Record, error) {
	var (
		rec Record
		err error
	)

	if rec.ID, err = row.getInt(ColumnMessageID); err != nil {
		return Record{}, err
	}
	if rec.Subject, err = row.getText(ColumnSubject); err != nil {
		return Record{}, err
	}
	if rec.SenderAddress, err = row.getText(ColumnSenderAddress); err != nil {
		return Record{}, err
	}
	if rec.SenderName, err = row.getText(ColumnSenderName); err != nil {
		return Record{}, err
	}
	if rec.DateSentRaw, err = row.getFloat(ColumnDateSent); err != nil {
		return Record{}, err
	}
	if rec.MailboxURL, err = row.getText(ColumnMailboxURL); err != nil {
		return Record{}, err
	}

	return rec, nil
}

func (r Row) lookup(name string) (any, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return v, nil
}

func (r Row) getInt(name string) (int64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrFieldType, name, err)
		}
		return id, nil
	case nil:
		return 0, fmt.Errorf("%w: %s is NULL", ErrMissingField, name)
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrFieldType, name, v)
	}
}

func (r Row) getFloat(name string) (float64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrFieldType, name, v)
	}
}

func (r Row) getText(name string) (string, error) {
	v, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s is %T", ErrFieldType, name, v)
	}
}
