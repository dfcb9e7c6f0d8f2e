// Package jsoncodec is the wire codec for event envelopes. It is backed by
// sonic with the std-compatible config so output matches encoding/json.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	return api.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return api.NewDecoder(r).Decode(v)
}

// Valid reports whether data is a well-formed JSON document.
func Valid(data []byte) bool {
	return api.Valid(data)
}
