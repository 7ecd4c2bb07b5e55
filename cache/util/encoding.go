// Package util also centralizes JSON encoding so cache values are
// serialized and deserialized through one codec.
//
// encoding/json is swapped for goccy/go-json: a drop-in, allocation-lighter
// replacement, since the value serializer and the Get/Remember decode
// path sit on a hot path where repeated marshal/unmarshal calls are common.
package util

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Marshal encodes v using the shared codec.
func Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes data into v using the shared codec.
func Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("unmarshal: empty input")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// EstimateEncodedSize returns the byte length v would occupy once encoded.
// The manager's memory accounting does not call it; it uses UTF8Size of
// the stored text.
func EstimateEncodedSize(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// UTF8Size returns the UTF-8 byte length of s, used for Entry.Size so
// accounting matches the actual bytes written to storage.
func UTF8Size(s string) int {
	return len(s)
}
