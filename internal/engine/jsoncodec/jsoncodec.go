// Package jsoncodec centralises JSON encoding for the engine so every
// sink and decoder shares one std-compatible configuration.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// NewNumberDecoder returns a decoder that keeps numbers as json.Number
// instead of float64, so the record decoder can tell ints from floats.
func NewNumberDecoder(r io.Reader) sonic.Decoder {
	dec := defaultConfig.NewDecoder(r)
	dec.UseNumber()
	return dec
}
