package emlx

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Aayush9029/apple-mail-exporter/model"
	"pgregory.net/rapid"
)

const plist = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict><key>flags</key><integer>8590195713</integer></dict></plist>
`

func frame(payload string) []byte {
	return []byte(strconv.Itoa(len(payload)) + "\n" + payload + plist)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		raw          []byte
		wantHeaders  model.Headers
		wantBody     string
		wantEncoding string
		wantDegraded bool
	}{
		{
			name: "quoted printable",
			raw:  frame("Subject: Hi\nContent-Transfer-Encoding: quoted-printable\n\nHello=0AWorld"),
			wantHeaders: model.Headers{
				{Name: HeaderSubject, Value: "Hi"},
				{Name: HeaderTransferEncoding, Value: "quoted-printable"},
			},
			wantBody:     "\n\nHello\nWorld",
			wantEncoding: EncodingQuotedPrintable,
		},
		{
			name: "base64 across lines",
			raw:  frame("Content-Transfer-Encoding: BASE64\n\nSGVsbG8g\nV29ybGQ=\n"),
			wantHeaders: model.Headers{
				{Name: HeaderTransferEncoding, Value: "BASE64"},
			},
			wantBody:     "Hello World",
			wantEncoding: EncodingBase64,
		},
		{
			name: "undecodable base64 degrades",
			raw:  frame("Content-Transfer-Encoding: base64\n\nabc"),
			wantHeaders: model.Headers{
				{Name: HeaderTransferEncoding, Value: "base64"},
			},
			wantBody:     "\n\nabc",
			wantEncoding: EncodingBase64,
			wantDegraded: true,
		},
		{
			name:     "no newline at all",
			raw:      []byte("garbage"),
			wantBody: "garbage",
		},
		{
			name:     "empty file",
			raw:      []byte{},
			wantBody: "",
		},
		{
			name:        "non numeric count",
			raw:         []byte("abc\nSubject: Hi\n\nbody"),
			wantHeaders: model.Headers{{Name: HeaderSubject, Value: "Hi"}},
			wantBody:    "\n\nbody",
		},
		{
			name:        "negative count",
			raw:         []byte("-5\nSubject: Hi\n\nbody"),
			wantHeaders: model.Headers{{Name: HeaderSubject, Value: "Hi"}},
			wantBody:    "\n\nbody",
		},
		{
			name:        "count past end is clamped",
			raw:         []byte("999\nSubject: Hi\n\nbody"),
			wantHeaders: model.Headers{{Name: HeaderSubject, Value: "Hi"}},
			wantBody:    "\n\nbody",
		},
		{
			name:        "count with surrounding spaces",
			raw:         []byte(" 20 \nSubject: Hi\n\nbody trailing"),
			wantHeaders: model.Headers{{Name: HeaderSubject, Value: "Hi"}},
			wantBody:    "\n\nbody tr",
		},
		{
			name: "folded header",
			raw:  frame("Subject: Hello\n World\n\tAgain\nFrom: a@b.c\n\nx"),
			wantHeaders: model.Headers{
				{Name: HeaderSubject, Value: "Hello World Again"},
				{Name: HeaderFrom, Value: "a@b.c"},
			},
			wantBody: "\n\nx",
		},
		{
			name: "crlf separator",
			raw:  frame("Subject: Hi\r\nFrom: a@b.c\r\n\r\nBody\r\n"),
			wantHeaders: model.Headers{
				{Name: HeaderSubject, Value: "Hi"},
				{Name: HeaderFrom, Value: "a@b.c"},
			},
			wantBody: "\r\n\r\nBody\r\n",
		},
		{
			name: "first occurrence wins in encounter order",
			raw:  frame("To: x@y.z\nX-Other: y\nFrom: a@b.c\nSubject: one\nSubject: two\n\nb"),
			wantHeaders: model.Headers{
				{Name: HeaderTo, Value: "x@y.z"},
				{Name: HeaderFrom, Value: "a@b.c"},
				{Name: HeaderSubject, Value: "one"},
			},
			wantBody: "\n\nb",
		},
		{
			name:     "names are case sensitive",
			raw:      frame("subject: lower\nFROM: upper\n\nb"),
			wantBody: "\n\nb",
		},
		{
			name:        "empty value is kept",
			raw:         frame("Subject:\nDate: Tue, 14 Nov 2023 22:13:20 +0000\n\nb"),
			wantHeaders: model.Headers{{Name: HeaderSubject, Value: ""}, {Name: HeaderDate, Value: "Tue, 14 Nov 2023 22:13:20 +0000"}},
			wantBody:    "\n\nb",
		},
		{
			name:     "separator at start means no headers",
			raw:      frame("\n\nSubject: not a header"),
			wantBody: "\n\nSubject: not a header",
		},
		{
			name:     "no separator means no headers",
			raw:      frame("Subject: Hi"),
			wantBody: "Subject: Hi",
		},
		{
			name:        "invalid utf-8 is replaced",
			raw:         frame("Subject: caf\xe9\n\nb"),
			wantHeaders: model.Headers{{Name: HeaderSubject, Value: "caf\uFFFD"}},
			wantBody:    "\n\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Parse(tt.raw)

			if !slices.Equal(msg.Headers, tt.wantHeaders) {
				t.Errorf("Headers = %#v, want %#v", msg.Headers, tt.wantHeaders)
			}
			if msg.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", msg.Body, tt.wantBody)
			}
			if msg.Encoding != tt.wantEncoding {
				t.Errorf("Encoding = %q, want %q", msg.Encoding, tt.wantEncoding)
			}
			if msg.Degraded != tt.wantDegraded {
				t.Errorf("Degraded = %v, want %v", msg.Degraded, tt.wantDegraded)
			}
		})
	}
}

func TestParse_PayloadExcludesTrailer(t *testing.T) {
	payload := "Subject: Hi\n\nbody"
	msg := Parse(frame(payload))

	if string(msg.Raw) != payload {
		t.Errorf("Raw = %q, want %q", msg.Raw, payload)
	}
	if strings.Contains(msg.Body, "plist") {
		t.Errorf("Body leaked the property list: %q", msg.Body)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		cte  string
		body string
		want Decoded
	}{
		{
			name: "no encoding",
			body: "plain",
			want: Decoded{Text: "plain"},
		},
		{
			name: "unknown encoding passes through",
			cte:  "8bit",
			body: "café",
			want: Decoded{Text: "café"},
		},
		{
			name: "quoted printable soft break",
			cte:  "Quoted-Printable",
			body: "long=\nline",
			want: Decoded{Text: "longline", Encoding: EncodingQuotedPrintable},
		},
		{
			name: "quoted printable utf-8 bytes",
			cte:  "quoted-printable",
			body: "caf=C3=A9",
			want: Decoded{Text: "café", Encoding: EncodingQuotedPrintable},
		},
		{
			name: "base64 ignores noise",
			cte:  "base64",
			body: "SGVs\r\nbG8=\r\n",
			want: Decoded{Text: "Hello", Encoding: EncodingBase64},
		},
		{
			name: "base64 invalid utf-8 is replaced",
			cte:  "base64",
			body: "/w==",
			want: Decoded{Text: "\uFFFD", Encoding: EncodingBase64},
		},
		{
			name: "base64 bad padding degrades",
			cte:  "base64",
			body: "abc",
			want: Decoded{Text: "abc", Encoding: EncodingBase64, Degraded: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(tt.cte, tt.body); got != tt.want {
				t.Errorf("Decode(%q, %q) = %#v, want %#v", tt.cte, tt.body, got, tt.want)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if _, err := ParseFile(filepath.Join(dir, "nope.emlx")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("reads container", func(t *testing.T) {
		path := filepath.Join(dir, "42.emlx")
		if err := os.WriteFile(path, frame("Subject: Hi\n\nbody"), 0o644); err != nil {
			t.Fatal(err)
		}
		msg, err := ParseFile(path)
		if err != nil {
			t.Fatalf("ParseFile() error = %v", err)
		}
		if got := msg.Headers.Get(HeaderSubject); got != "Hi" {
			t.Errorf("Subject = %q, want %q", got, "Hi")
		}
	})
}

func TestParse_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")
		msg := Parse(raw)

		if !utf8.ValidString(msg.Body) {
			t.Fatalf("Body is not valid UTF-8: %q", msg.Body)
		}
		seen := map[string]bool{}
		for _, h := range msg.Headers {
			if !slices.Contains(Whitelist, h.Name) {
				t.Fatalf("unexpected header %q", h.Name)
			}
			if seen[h.Name] {
				t.Fatalf("duplicate header %q", h.Name)
			}
			seen[h.Name] = true
			if !utf8.ValidString(h.Value) {
				t.Fatalf("header %q is not valid UTF-8", h.Name)
			}
		}
	})
}

func TestParse_FramedProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		subject := rapid.StringMatching(`[A-Za-z0-9 ]{0,40}`).Draw(t, "subject")
		body := rapid.StringMatching(`[A-Za-z0-9 \n]{0,200}`).Draw(t, "body")

		msg := Parse(frame("Subject: " + subject + "\n\n" + body))

		if got := msg.Headers.Get(HeaderSubject); got != strings.TrimSpace(subject) {
			t.Fatalf("Subject = %q, want %q", got, strings.TrimSpace(subject))
		}
		if msg.Body != "\n\n"+body {
			t.Fatalf("Body = %q, want %q", msg.Body, "\n\n"+body)
		}
	})
}

func BenchmarkParse(b *testing.B) {
	raw := frame("From: Alice <alice@example.com>\nTo: bob@example.com\nSubject: Quarterly report\n" +
		"Content-Type: text/plain; charset=utf-8\nContent-Transfer-Encoding: quoted-printable\n\n" +
		strings.Repeat("Numbers are up =E2=9C=93 and costs are down.\n", 200))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Parse(raw)
	}
}
