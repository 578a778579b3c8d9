// Package message turns accessibility labels scraped from the chat client into
// message records and tracks which records have already been seen.
package message

import (
	"strings"
	"time"
)

// ExtractedAtLayout is the wire layout of Record.ExtractedAt in exported files.
const ExtractedAtLayout = "2006-01-02 15:04:05"

// identitySeparator joins the identity fields. It cannot appear in rendered
// label text, so distinct field splits never produce the same key.
const identitySeparator = "\x1f"

// Record is one chat message scraped from a conversation.
type Record struct {
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	Timestamp   string    `json:"timestamp"`
	ExtractedAt time.Time `json:"extracted_at,omitempty"`
}

// Identity is the deduplication key of a record.
type Identity string

// Identity returns the key derived from sender, content and timestamp.
// ExtractedAt does not take part in it.
func (r Record) Identity() Identity {
	return Identity(r.Sender + identitySeparator + r.Content + identitySeparator + r.Timestamp)
}

// Valid reports whether all identity fields are present.
func (r Record) Valid() bool {
	return r.Sender != "" && r.Content != "" && r.Timestamp != ""
}

// FormatExtractedAt renders ExtractedAt for export, or "" when unset.
func (r Record) FormatExtractedAt() string {
	if r.ExtractedAt.IsZero() {
		return ""
	}
	return r.ExtractedAt.Local().Format(ExtractedAtLayout)
}

// ParseExtractedAt is the inverse of FormatExtractedAt. Unparseable or empty
// values yield the zero time.
func ParseExtractedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(ExtractedAtLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
