package emlx

import (
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	EncodingNone            = ""
	EncodingQuotedPrintable = "quoted-printable"
	EncodingBase64          = "base64"
)

// Decoded is the outcome of transfer decoding. When Degraded is set the
// decoder rejected the input and Text holds the body as it was found.
type Decoded struct {
	Text     string
	Encoding string
	Degraded bool
}

// Decode applies the Content-Transfer-Encoding named by cte (matched
// case-insensitively as a substring). Unknown encodings leave body untouched.
func Decode(cte, body string) Decoded {
	cte = strings.ToLower(cte)
	switch {
	case strings.Contains(cte, EncodingQuotedPrintable):
		return decodeWith(EncodingQuotedPrintable, body, decodeQuotedPrintable)
	case strings.Contains(cte, EncodingBase64):
		return decodeWith(EncodingBase64, body, decodeBase64)
	default:
		return Decoded{Text: body, Encoding: EncodingNone}
	}
}

func decodeWith(encoding, body string, fn func(string) ([]byte, error)) Decoded {
	out, err := fn(body)
	if err != nil {
		return Decoded{Text: body, Encoding: encoding, Degraded: true}
	}
	return Decoded{Text: toUTF8(out), Encoding: encoding}
}

func decodeQuotedPrintable(body string) ([]byte, error) {
	return io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
}

// decodeBase64 ignores bytes outside the base64 alphabet, line breaks included.
func decodeBase64(body string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '+', r == '/', r == '=':
			return r
		}
		return -1
	}, body)
	return base64.StdEncoding.DecodeString(cleaned)
}

// toUTF8 decodes b as UTF-8, replacing invalid sequences with U+FFFD.
func toUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}
