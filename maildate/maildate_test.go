package maildate

import (
	"math"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want string
	}{
		{name: "unix seconds", raw: 1_700_000_000, want: "2023-11-14 22:13:20"},
		{name: "unix millis", raw: 1_700_000_000_000 + 500, want: "2023-11-14 22:13:20"},
		{name: "mac epoch", raw: 100_000_000, want: "2004-03-03 09:46:40"},
		{name: "mac epoch zero point", raw: 1, want: "2001-01-01 00:00:01"},
		{name: "unknown", raw: 0, want: Unknown},
		{name: "nan", raw: math.NaN(), want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMacEpochOffset(t *testing.T) {
	unix := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	mac := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := int64(mac.Sub(unix).Seconds()); got != MacEpochOffset {
		t.Fatalf("MacEpochOffset = %d, want %d", MacEpochOffset, got)
	}
}

func TestDay(t *testing.T) {
	if got := Day(1_700_000_000); got != "2023-11-14" {
		t.Errorf("Day() = %q", got)
	}
	if got := Day(0); got != Unknown {
		t.Errorf("Day(0) = %q, want %q", got, Unknown)
	}
}
