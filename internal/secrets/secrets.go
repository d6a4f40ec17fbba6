// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files,
// one secret per file: the filename is the key and the trimmed contents are
// the value. A directory keeps tokens out of shell history, process
// environments and the config file, and it can be mounted as-is from a
// container secret volume.
//
// Supported key files: service-token.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/docconv/internal/logging"
)

// ServiceTokenKey names the file holding the bearer token sent to the
// conversion service.
const ServiceTokenKey = "service-token"

// Set maps secret keys to their values.
type Set map[string]string

// ServiceToken returns the conversion service bearer token, or "".
func (s Set) ServiceToken() string { return s[ServiceTokenKey] }

// Keys returns the loaded key names in sorted order, for logging without
// exposing values.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Load reads the secret files in dir. A missing directory yields an empty
// Set. Dotfiles (including the ..data links of a mounted secret volume),
// subdirectories and empty files are skipped; an unreadable file is logged
// and skipped.
func Load(dir string, logger *zap.Logger) (Set, error) {
	logger = logging.OrNop(logger)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	set := make(Set, len(entries))
	for _, entry := range entries {
		key := entry.Name()
		if entry.IsDir() || strings.HasPrefix(key, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, key))
		if err != nil {
			logger.Warn("could not read secret", zap.String("key", key), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			set[key] = value
		}
	}
	return set, nil
}
