// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared across docconv: the
// conversion job record, its lifecycle states and the configuration.
package types
