// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filestore is the host file storage used by the docconv CLI. It
// keeps imported source documents and converted artifacts in a directory
// tree:
//
//	<dir>/sources/<id>/<filename>
//	<dir>/artifacts/<job id>/<basename>.<target>
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/pdiddy/docconv/pkg/types"
)

const (
	sourcesDir   = "sources"
	artifactsDir = "artifacts"
)

// Store is a directory-backed file store.
type Store struct {
	root string
}

// New creates the directory layout under root.
func New(root string) (*Store, error) {
	for _, dir := range []string{
		filepath.Join(root, sourcesDir),
		filepath.Join(root, artifactsDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Import copies the file at path into the store and returns its reference.
func (s *Store) Import(ctx context.Context, path string) (types.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return types.SourceFile{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("importing %s: %w", path, err)
	}
	if info.IsDir() {
		return types.SourceFile{}, fmt.Errorf("importing %s: is a directory", path)
	}

	in, err := os.Open(path)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer in.Close()

	src, err := s.ImportReader(ctx, filepath.Base(path), in)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("importing %s: %w", path, err)
	}
	return src, nil
}

// ImportReader stores the content of r under filename and returns its
// reference. Only the base name of filename is kept.
func (s *Store) ImportReader(ctx context.Context, filename string, r io.Reader) (types.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return types.SourceFile{}, err
	}
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return types.SourceFile{}, fmt.Errorf("invalid filename %q", filename)
	}

	id := uuid.NewString()
	rel := filepath.Join(sourcesDir, id, name)
	dest := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return types.SourceFile{}, fmt.Errorf("creating source directory: %w", err)
	}
	if err := writeAtomic(dest, r); err != nil {
		return types.SourceFile{}, err
	}
	return types.SourceFile{ID: id, Filename: name, Path: rel}, nil
}

// OpenSource opens the stored content of src.
func (s *Store) OpenSource(_ context.Context, src types.SourceFile) (io.ReadCloser, error) {
	path, err := s.resolve(src.Path)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// StoreArtifact moves the converted file at path into the artifact tree and
// returns the path of the stored copy. The artifact is named after the
// source file with the target extension.
func (s *Store) StoreArtifact(_ context.Context, job *types.ConversionJob, path string) (string, error) {
	base := strings.TrimSuffix(job.Source.Filename, filepath.Ext(job.Source.Filename))
	if base == "" {
		base = job.ID
	}
	name := base + "." + types.NormalizeExtension(job.TargetFormat)
	dest := filepath.Join(s.root, artifactsDir, filepath.Base(job.ID), name)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := moveFile(path, dest); err != nil {
		return "", fmt.Errorf("storing artifact: %w", err)
	}
	return dest, nil
}

// resolve turns a stored relative path into a filesystem path, refusing
// paths that escape the store.
func (s *Store) resolve(rel string) (string, error) {
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("source path %q is outside the store", rel)
	}
	return filepath.Join(s.root, clean), nil
}

// moveFile renames src to dest, copying when they sit on different devices.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()
	if err := writeAtomic(dest, in); err != nil {
		return fmt.Errorf("copy across devices: %w", err)
	}
	return os.Remove(src)
}

// writeAtomic copies r to a temporary file beside dest and renames it into
// place.
func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".filestore-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
