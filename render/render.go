// Package render turns a search record and its parsed container into a
// Markdown document.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Aayush9029/apple-mail-exporter/maildate"
	"github.com/Aayush9029/apple-mail-exporter/model"
	"github.com/Aayush9029/apple-mail-exporter/naming"
)

const (
	NoSubject     = "no-subject"
	UnknownSender = "unknown"

	// MissingBody replaces the body when no container was found on disk.
	MissingBody = "(Email body not available locally - only metadata from index)"
)

// HTMLMode selects what happens to bodies that look like HTML.
type HTMLMode string

const (
	HTMLRaw      HTMLMode = "raw"
	HTMLSanitize HTMLMode = "sanitize"
	HTMLText     HTMLMode = "text"
)

type Options struct {
	HTML HTMLMode
}

// Renderer is safe for concurrent use.
type Renderer struct {
	mode   HTMLMode
	policy *bluemonday.Policy
}

func New(opts Options) *Renderer {
	r := &Renderer{mode: opts.HTML}
	if r.mode == "" {
		r.mode = HTMLRaw
	}
	if r.mode == HTMLSanitize {
		r.policy = bluemonday.UGCPolicy()
	}
	return r
}

// Document renders with a one-off Renderer.
func Document(rec model.Record, msg *model.Message, source string, opts Options) string {
	return New(opts).Document(rec, msg, source)
}

// FileName returns the document name for the record at position index.
func FileName(index int, rec model.Record) string {
	return naming.DocumentName(index, maildate.Day(rec.DateSentRaw), subject(rec))
}

// Document renders rec. msg is nil when no container was found; source is the
// container's base name and only shown when non-empty.
func (r *Renderer) Document(rec model.Record, msg *model.Message, source string) string {
	subj := subject(rec)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", subj)
	b.WriteString("| Field | Value |\n|---|---|\n")
	row(&b, "From", fmt.Sprintf("%s <%s>", sender(rec), rec.SenderAddress))
	row(&b, "Date", maildate.Day(rec.DateSentRaw))
	row(&b, "Subject", subj)
	row(&b, "Message ID", strconv.FormatInt(rec.ID, 10))
	row(&b, "Mailbox", rec.MailboxURL)
	if source != "" {
		row(&b, "Source", "`"+source+"`")
	}
	b.WriteString("\n---\n\n")

	if msg == nil {
		b.WriteString("## Body\n\n")
		b.WriteString(MissingBody)
		b.WriteString("\n")
		return b.String()
	}

	if len(msg.Headers) > 0 {
		b.WriteString("## Headers\n\n```\n")
		for _, h := range msg.Headers {
			fmt.Fprintf(&b, "%s: %s\n", h.Name, h.Value)
		}
		b.WriteString("```\n\n")
	}

	b.WriteString("## Body\n\n")
	r.body(&b, msg.Body)
	return b.String()
}

func (r *Renderer) body(b *strings.Builder, body string) {
	if !IsHTML(body) {
		b.WriteString(body)
		b.WriteString("\n")
		return
	}

	switch r.mode {
	case HTMLText:
		b.WriteString(HTMLToText(body))
		b.WriteString("\n")
		return
	case HTMLSanitize:
		body = r.policy.Sanitize(body)
	}
	b.WriteString("```html\n")
	b.WriteString(body)
	b.WriteString("\n```\n")
}

// IsHTML reports whether body looks like an HTML document.
func IsHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype")
}

func subject(rec model.Record) string {
	if rec.Subject == "" {
		return NoSubject
	}
	return rec.Subject
}

func sender(rec model.Record) string {
	if s := rec.Sender(); s != "" {
		return s
	}
	return UnknownSender
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func row(b *strings.Builder, field, value string) {
	fmt.Fprintf(b, "| **%s** | %s |\n", field, cellReplacer.Replace(value))
}
