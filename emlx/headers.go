package emlx

import (
	"regexp"
	"strings"

	"github.com/Aayush9029/apple-mail-exporter/model"
)

const (
	HeaderFrom             = "From"
	HeaderTo               = "To"
	HeaderSubject          = "Subject"
	HeaderDate             = "Date"
	HeaderContentType      = "Content-Type"
	HeaderTransferEncoding = "Content-Transfer-Encoding"
)

// Whitelist lists the header fields that are extracted, matched
// case-sensitively at the start of a line.
var Whitelist = []string{
	HeaderFrom,
	HeaderTo,
	HeaderSubject,
	HeaderDate,
	HeaderContentType,
	HeaderTransferEncoding,
}

var foldedBreak = regexp.MustCompile(`\r?\n\s+`)

// extractHeaders returns whitelisted fields in the order they appear. Only the
// first occurrence of a field is kept.
func extractHeaders(block string) model.Headers {
	if block == "" {
		return nil
	}

	lines := strings.Split(block, "\n")
	var headers model.Headers
	for i := 0; i < len(lines); i++ {
		name, rest, ok := whitelisted(lines[i])
		if !ok {
			continue
		}

		parts := []string{rest}
		for i+1 < len(lines) && isContinuation(lines[i+1]) {
			i++
			parts = append(parts, lines[i])
		}
		if headers.Has(name) {
			continue
		}

		value := strings.TrimSpace(strings.Join(parts, "\n"))
		value = foldedBreak.ReplaceAllString(value, " ")
		headers = append(headers, model.Header{Name: name, Value: value})
	}
	return headers
}

func whitelisted(line string) (name, rest string, ok bool) {
	for _, name := range Whitelist {
		if rest, ok := strings.CutPrefix(line, name+":"); ok {
			return name, rest, true
		}
	}
	return "", "", false
}

func isContinuation(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ', '\t', '\r', '\f', '\v':
		return true
	}
	return false
}
