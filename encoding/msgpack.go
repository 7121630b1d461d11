// Package encoding provides the binary serialization used for locally
// persisted client state. All msgpack operations go through this package so
// that field naming stays consistent with the JSON wire format.
//
// Thread Safety: Marshal and Unmarshal are safe for concurrent use.
//
// Field Names: struct fields are keyed by their `json` tag, so a type shared
// with the HTTP API encodes the same keys in both formats.
package encoding

import (
	"bytes"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

const structTag = "json"

// ErrEmpty is returned when decoding zero bytes.
var ErrEmpty = errors.New("encoding: empty input")

// Marshal encodes a value to msgpack format.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag(structTag)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes msgpack data. Unknown fields are skipped so that state
// written by a newer version can still be read.
func Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return ErrEmpty
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag(structTag)
	// []byte decoded into interface{} comes back as string
	dec.UseLooseInterfaceDecoding(true)

	return dec.Decode(v)
}
