package catalog

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Key Namespace
// ============================================================================
//
// Data Type   Prefix   Key Format    Value Type
// ================================================
// Objects     "o:"     o:<name>      Entry (JSON)

const prefixObject = "o:"

// keyObject generates the key for an object entry: "o:<name>"
func keyObject(name string) []byte {
	return []byte(prefixObject + name)
}

// keyObjectPrefix generates the scan prefix for object names starting with prefix.
func keyObjectPrefix(prefix string) []byte {
	return []byte(prefixObject + prefix)
}

func encodeEntry(entry *Entry) ([]byte, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	return b, nil
}

func decodeEntry(b []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &entry, nil
}
