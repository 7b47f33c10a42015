package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type FileType string

const (
	FileTypeText  FileType = "text"
	FileTypeImage FileType = "image"
	FileTypeFile  FileType = "file"
)

// Space is a password-gated container of files.
type Space struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	CreatedAt      Timestamp  `json:"created_at"`
	LastAccessedAt *Timestamp `json:"last_accessed_at,omitempty"`
	ExpiresAt      *Timestamp `json:"expires_at,omitempty"`
}

// File is a stored content item belonging to one space.
//
// Optional backend fields are decoded as empty strings / nil when the backend
// sends null or omits them.
type File struct {
	ID          int64      `json:"id"`
	SpaceID     int64      `json:"space_id"`
	Type        FileType   `json:"file_type"`
	Filename    string     `json:"filename,omitempty"`
	Content     string     `json:"content,omitempty"`
	PreviewText string     `json:"preview_text,omitempty"`
	FileSize    *int64     `json:"file_size,omitempty"`
	MimeType    string     `json:"mime_type,omitempty"`
	CreatedAt   Timestamp  `json:"created_at"`
	ExpiresAt   *Timestamp `json:"expires_at,omitempty"`
}

func (f File) IsText() bool { return f.Type == FileTypeText }

// HasInlineContent reports whether a non-text file carries decoded text content
// (the backend fills content for small text-like uploads).
func (f File) HasInlineContent() bool {
	return f.Type == FileTypeFile && f.Content != ""
}

func (f *File) UnmarshalJSON(b []byte) error {
	// The backend serialises sqlite rows directly, so string columns may be null.
	var w struct {
		ID          int64      `json:"id"`
		SpaceID     int64      `json:"space_id"`
		Type        FileType   `json:"file_type"`
		Filename    *string    `json:"filename"`
		Content     *string    `json:"content"`
		PreviewText *string    `json:"preview_text"`
		FileSize    *int64     `json:"file_size"`
		MimeType    *string    `json:"mime_type"`
		CreatedAt   Timestamp  `json:"created_at"`
		ExpiresAt   *Timestamp `json:"expires_at"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*f = File{
		ID:          w.ID,
		SpaceID:     w.SpaceID,
		Type:        w.Type,
		Filename:    deref(w.Filename),
		Content:     deref(w.Content),
		PreviewText: deref(w.PreviewText),
		FileSize:    w.FileSize,
		MimeType:    deref(w.MimeType),
		CreatedAt:   w.CreatedAt,
		ExpiresAt:   w.ExpiresAt,
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Timestamp is a backend time value. The backend emits sqlite-style strings
// ("2006-01-02 15:04:05[.ffffff]") as well as ISO-8601 values.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTimestamp parses any of the layouts the backend is known to emit.
// Zone-less values are interpreted as local time, matching the backend.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}
