package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Contact is a person reached by a call flow. Metadata is an arbitrary JSON
// object shared by every flow that touches the contact.
type Contact struct {
	ID        int64
	Ref       string // phone number or other external reference
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EncodeMetadata serializes contact metadata for storage. A nil map encodes
// as an empty object.
func EncodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding contact metadata: %w", err)
	}
	return string(b), nil
}

// DecodeMetadata parses stored contact metadata. An empty string decodes as
// an empty map.
func DecodeMetadata(s string) (map[string]any, error) {
	m := make(map[string]any)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decoding contact metadata: %w", err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}
