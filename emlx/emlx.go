// Package emlx reads Apple Mail message containers.
//
// An .emlx file starts with the payload length in ASCII decimal on its own
// line, followed by that many bytes of RFC 822 message, followed by a property
// list that is ignored here. Parsing is best effort: any byte sequence yields a
// Message.
package emlx

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Aayush9029/apple-mail-exporter/model"
)

// ParseFile reads and parses the container at path. The error is only set when
// the file cannot be read.
func ParseFile(path string) (model.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Message{}, fmt.Errorf("read container: %w", err)
	}
	return Parse(raw), nil
}

// Parse extracts the whitelisted headers and the transfer-decoded body.
func Parse(raw []byte) model.Message {
	payload, framed := splitFrame(raw)
	if !framed {
		return model.Message{Body: toUTF8(raw), Raw: raw}
	}

	text := toUTF8(payload)
	block, body := splitHeaders(text)
	headers := extractHeaders(block)

	decoded := Decode(headers.Get(HeaderTransferEncoding), body)
	return model.Message{
		Headers:  headers,
		Body:     decoded.Text,
		Encoding: decoded.Encoding,
		Degraded: decoded.Degraded,
		Raw:      payload,
	}
}

// splitFrame returns the payload announced by the length line. Without any
// newline the file is not framed at all. A length that does not parse means
// "everything after the first line"; a length past the end is clamped.
func splitFrame(raw []byte) ([]byte, bool) {
	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		return nil, false
	}

	start := nl + 1
	end := len(raw)
	if n, err := strconv.Atoi(strings.TrimSpace(string(raw[:nl]))); err == nil && n >= 0 {
		if n < end-start {
			end = start + n
		}
	}
	return raw[start:end], true
}

// splitHeaders cuts text at the first blank line. The body keeps the
// separator. Without a separator everything is body.
func splitHeaders(text string) (block, body string) {
	idx := strings.Index(text, "\n\n")
	if idx < 0 {
		idx = strings.Index(text, "\r\n\r\n")
	}
	if idx <= 0 {
		return "", text
	}
	return text[:idx], text[idx:]
}
