package email

import "time"

// Message represents an inbound email owned by the processor for the
// duration of one pipeline pass. It is not mutated after fetch; state
// changes (mark-read, delete) go back through the Reader.
type Message struct {
	MessageID   string       `yaml:"message_id" json:"message_id"`
	UID         uint32       `yaml:"uid" json:"uid"`
	Folder      string       `yaml:"folder" json:"folder"`
	From        string       `yaml:"from" json:"from"`
	FromName    string       `yaml:"from_name,omitempty" json:"from_name,omitempty"`
	To          []string     `yaml:"to" json:"to"`
	Subject     string       `yaml:"subject" json:"subject"`
	Date        time.Time    `yaml:"date" json:"date"`
	Body        string       `yaml:"body" json:"body"`
	HTMLBody    string       `yaml:"html_body,omitempty" json:"html_body,omitempty"`
	Attachments []Attachment `yaml:"attachments,omitempty" json:"attachments,omitempty"`
	Flags       []string     `yaml:"flags,omitempty" json:"flags,omitempty"`
}

// Attachment represents email attachment metadata. Content is never
// downloaded; only name, type and size are needed for validation.
type Attachment struct {
	Filename    string `yaml:"filename" json:"filename"`
	Size        int64  `yaml:"size" json:"size"`
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
}

// ConnectionStatus reports adapter reachability.
type ConnectionStatus struct {
	Connected     bool   `json:"connected"`
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

// TotalAttachmentSize returns the combined byte size of all attachments.
func (m *Message) TotalAttachmentSize() int64 {
	var total int64
	for _, a := range m.Attachments {
		total += a.Size
	}
	return total
}
