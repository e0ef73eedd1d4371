package xjson

import (
	"io"

	gjson "github.com/goccy/go-json"
)

// Single import site for JSON so the codec can be swapped without touching
// callers. Records, HTTP bodies and patches all go through here.

func Marshal(v interface{}) ([]byte, error) {
	return gjson.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return gjson.Unmarshal(data, v)
}

// Decode reads one JSON value from r, rejecting unknown fields when strict.
func Decode(r io.Reader, v interface{}, strict bool) error {
	dec := gjson.NewDecoder(r)
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(v)
}

func Encode(w io.Writer, v interface{}) error {
	return gjson.NewEncoder(w).Encode(v)
}
