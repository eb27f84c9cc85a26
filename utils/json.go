package utils

import (
	"encoding/json"
)

// Marshal generic struct to indented JSON (durable artifacts stay diffable)
func MarshalJSONIndent[T any](input T) ([]byte, error) {
	return json.MarshalIndent(input, "", "  ")
}

// Unmarshal JSON to generic struct
func UnmarshalJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}
