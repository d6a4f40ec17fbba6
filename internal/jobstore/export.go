// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobstore

import (
	"context"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docconv/pkg/types"
)

// ExportEntry is the exported form of a job record.
type ExportEntry struct {
	ID            string `yaml:"id"`
	Source        string `yaml:"source"`
	TargetFormat  string `yaml:"target_format"`
	Status        string `yaml:"status"`
	StatusMessage string `yaml:"status_message,omitempty"`
	RemoteHandle  string `yaml:"remote_handle,omitempty"`
	DestFile      string `yaml:"dest_file,omitempty"`
	CreatedAt     string `yaml:"created_at"`
	UpdatedAt     string `yaml:"updated_at"`
}

const exportLimit = 100000

// ExportYAML writes the jobs matching opts to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts ListOptions) error {
	opts.Limit = exportLimit
	jobs, err := s.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(jobs))
	for i, j := range jobs {
		entries[i] = exportEntry(j)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

func exportEntry(j *types.ConversionJob) ExportEntry {
	return ExportEntry{
		ID:            j.ID,
		Source:        j.Source.Filename,
		TargetFormat:  j.TargetFormat,
		Status:        string(j.Status),
		StatusMessage: j.StatusMessage,
		RemoteHandle:  j.RemoteHandle,
		DestFile:      j.DestFile,
		CreatedAt:     formatTime(j.CreatedAt),
		UpdatedAt:     formatTime(j.UpdatedAt),
	}
}
