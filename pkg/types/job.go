// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"strings"
	"time"
)

// Status is the local lifecycle state of a conversion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is a state the job never leaves.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// SourceFile references host-owned content to be converted. The conversion
// client reads it through the host file store and never modifies it.
type SourceFile struct {
	// ID identifies the content within the host file store.
	ID string `json:"id" yaml:"id"`

	// Filename is the declared filename, including its extension.
	Filename string `json:"filename" yaml:"filename"`

	// Path locates the content inside the host file store.
	Path string `json:"path" yaml:"path"`
}

// Extension returns the lowercased filename extension without the dot.
func (f SourceFile) Extension() string {
	return NormalizeExtension(filepath.Ext(f.Filename))
}

// NormalizeExtension lowercases ext and strips surrounding whitespace and a
// leading dot, so "PDF", ".pdf" and " pdf " compare equal.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ConversionJob is one request to convert a stored document into another
// format. The host creates it in StatusPending and persists it; only the
// conversion state machine mutates it afterwards.
type ConversionJob struct {
	// ID is the host-assigned identifier.
	ID string `json:"id" yaml:"id"`

	// Source is the document being converted.
	Source SourceFile `json:"source" yaml:"source"`

	// TargetFormat is the requested output extension (e.g. "pdf").
	TargetFormat string `json:"target_format" yaml:"target_format"`

	Status        Status `json:"status" yaml:"status"`
	StatusMessage string `json:"status_message,omitempty" yaml:"status_message,omitempty"`

	// RemoteHandle is the conversionId the service assigned on submission.
	// Set once and never changed.
	RemoteHandle string `json:"remote_handle,omitempty" yaml:"remote_handle,omitempty"`

	// DestFile references the stored output artifact. Set only on Complete.
	DestFile string `json:"dest_file,omitempty" yaml:"dest_file,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewJob returns a pending job converting src to targetFormat.
func NewJob(id string, src SourceFile, targetFormat string, now time.Time) *ConversionJob {
	return &ConversionJob{
		ID:           id,
		Source:       src,
		TargetFormat: NormalizeExtension(targetFormat),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
