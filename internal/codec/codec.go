// Package codec centralizes JSON handling so every payload in the module is
// encoded the same way.
package codec

import (
	stdjson "encoding/json"

	json "github.com/goccy/go-json"
)

// RawMessage aliases the standard library type so callers interoperate with
// stdlib-tagged structs.
type RawMessage = stdjson.RawMessage

func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func Valid(data []byte) bool {
	return json.Valid(data)
}
