package model

import (
	"errors"
	"testing"
)

func fullRow() Row {
	return Row{
		ColumnMessageID:     int64(42),
		ColumnSubject:       "Your receipt",
		ColumnSenderAddress: "no-reply@example.com",
		ColumnSenderName:    nil,
		ColumnDateSent:      int64(1700000000),
		ColumnMailboxURL:    "imap://UUID/INBOX",
	}
}

func TestRecordFromRow(t *testing.T) {
	rec, err := RecordFromRow(fullRow())
	if err != nil {
		t.Fatalf("RecordFromRow() error = %v", err)
	}
	if rec.ID != 42 {
		t.Errorf("ID = %d, want 42", rec.ID)
	}
	if rec.SenderName != "" {
		t.Errorf("SenderName = %q, want empty for NULL", rec.SenderName)
	}
	if rec.DateSentRaw != 1700000000 {
		t.Errorf("DateSentRaw = %v, want 1700000000", rec.DateSentRaw)
	}
	if got := rec.Sender(); got != "no-reply@example.com" {
		t.Errorf("Sender() = %q, want address fallback", got)
	}
}

func TestRecordFromRow_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Row)
		wantErr error
	}{
		{
			name:    "missing subject column",
			mutate:  func(r Row) { delete(r, ColumnSubject) },
			wantErr: ErrMissingField,
		},
		{
			name:    "null message id",
			mutate:  func(r Row) { r[ColumnMessageID] = nil },
			wantErr: ErrMissingField,
		},
		{
			name:    "date as text",
			mutate:  func(r Row) { r[ColumnDateSent] = "yesterday" },
			wantErr: ErrFieldType,
		},
		{
			name:    "mailbox as number",
			mutate:  func(r Row) { r[ColumnMailboxURL] = int64(3) },
			wantErr: ErrFieldType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := fullRow()
			tt.mutate(row)
			_, err := RecordFromRow(row)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RecordFromRow() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHeaders_Get(t *testing.T) {
	h := Headers{{Name: "Subject", Value: "Hi"}, {Name: "From", Value: "a@b.com"}}
	if got := h.Get("From"); got != "a@b.com" {
		t.Errorf("Get(From) = %q", got)
	}
	if h.Has("To") {
		t.Error("Has(To) = true, want false")
	}
	if got := h.Get("subject"); got != "" {
		t.Errorf("Get is case-sensitive, got %q", got)
	}
}
