// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/docconv/pkg/types"
)

// Remote status strings reported by the conversion service.
const (
	remoteConverted  = "converted"
	remoteInQueue    = "in queue"
	remoteProcessing = "processing"
)

// MapRemoteStatus maps the service's textual status onto the local state.
// Anything unrecognized maps to StatusFailed.
func MapRemoteStatus(remote string) types.Status {
	switch remote {
	case remoteConverted:
		return types.StatusComplete
	case remoteInQueue:
		return types.StatusPending
	case remoteProcessing:
		return types.StatusInProgress
	default:
		return types.StatusFailed
	}
}

// submitResponse covers both outcomes of POST /conversion: an accepted job
// carries conversionId, a rejection carries status, name and message.
type submitResponse struct {
	ConversionID string          `json:"conversionId"`
	Status       json.RawMessage `json:"status"`
	Name         *string         `json:"name"`
	Message      *string         `json:"message"`
}

// rejected reports an explicit rejection triple with a status other than 200.
func (r submitResponse) rejected() bool {
	status := bytes.TrimSpace(r.Status)
	if len(status) == 0 || string(status) == "null" {
		return false
	}
	if r.Name == nil || r.Message == nil {
		return false
	}
	return string(status) != "200"
}

func (r submitResponse) rejectionDetail() string {
	return fmt.Sprintf("%s (status %s): %s", deref(r.Name), bytes.TrimSpace(r.Status), deref(r.Message))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// pollResponse is the body of GET /conversion/{id}.
type pollResponse struct {
	Status     string      `json:"status"`
	ResultFile *resultFile `json:"resultFile"`
}

type resultFile struct {
	Data byteSequence `json:"data"`
}

// byteSequence decodes either a JSON array of byte values (the service's
// serialized Buffer form) or a base64 string.
type byteSequence []byte

func (b *byteSequence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*b = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("decoding base64 result: %w", err)
		}
		*b = decoded
		return nil
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decoding byte array result: %w", err)
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
