// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// scratch is a directory owned by a single Submit or Poll call.
type scratch struct {
	dir string
}

func newScratch(root string) (*scratch, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "docconv")
	}
	dir := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &StagingError{Op: "mkdir", Path: dir, Err: err}
	}
	return &scratch{dir: dir}, nil
}

func (s *scratch) path(name string) string {
	return filepath.Join(s.dir, name)
}

// remove deletes the directory and anything left in it.
func (s *scratch) remove() {
	os.RemoveAll(s.dir)
}

// copyIn writes r to name inside the scratch directory, going through a
// temporary file so a partial copy never appears under the final name.
func (s *scratch) copyIn(name string, r io.Reader) (string, error) {
	dest := s.path(name)
	tmp, err := os.CreateTemp(s.dir, ".stage-*.tmp")
	if err != nil {
		return "", &StagingError{Op: "create", Path: dest, Err: err}
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", &StagingError{Op: "write", Path: dest, Err: copyErr}
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", &StagingError{Op: "close", Path: dest, Err: closeErr}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", &StagingError{Op: "rename", Path: dest, Err: err}
	}
	return dest, nil
}

// localName is the scratch filename for a source ID and extension.
func localName(sourceID, ext string) string {
	if sourceID == "" {
		sourceID = "source"
	}
	return filepath.Base(sourceID) + "." + ext
}
