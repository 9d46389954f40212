package model

// Record is one row of the Envelope Index search: the metadata Apple Mail keeps
// about a message. Empty strings mean the column was NULL.
type Record struct {
	ID            int64
	Subject       string
	SenderAddress string
	SenderName    string
	DateSentRaw   float64
	MailboxURL    string
}

// Sender returns the display name, falling back to the address.
func (r Record) Sender() string {
	if r.SenderName != "" {
		return r.SenderName
	}
	return r.SenderAddress
}

// Header is a single whitelisted header field extracted from a message container.
type Header struct {
	Name  string
	Value string
}

// Headers keeps fields in the order they were encountered.
type Headers []Header

// Get returns the value of the first field called name, or "".
func (h Headers) Get(name string) string {
	for _, f := range h {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Has reports whether a field called name is present.
func (h Headers) Has(name string) bool {
	for _, f := range h {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Message is the content extracted from an .emlx container.
type Message struct {
	Headers  Headers
	Body     string
	Encoding string
	Degraded bool
	Raw      []byte
}

// Job pairs a record with its 1-based position in the export.
type Job struct {
	Index  int
	Record Record
}

type Status string

const (
	StatusExported     Status = "exported"
	StatusMetadataOnly Status = "metadata-only"
	StatusDegraded     Status = "degraded"
)

// Result describes the document written for one job.
type Result struct {
	Index  int
	Record Record
	Path   string
	Source string
	Status Status

	// Raw is the message payload when a container was found. It is only carried
	// to the collector and never persisted in the manifest.
	Raw []byte
}
