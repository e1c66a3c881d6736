// Package codec holds the default serializer/deserializer pairs.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrDecode = errors.New("codec: decode failed")

// Serializer turns an outbound message into a wire payload.
type Serializer[T any] func(T) ([]byte, error)

// Deserializer turns an inbound wire payload into an application message.
type Deserializer[T any] func([]byte) (T, error)

func JSONEncode[T any](v T) ([]byte, error) {
	return json.Marshal(v)
}

func JSONDecode[T any](payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}

// TextEncode passes a string through unchanged.
func TextEncode(v string) ([]byte, error) {
	return []byte(v), nil
}

func TextDecode(payload []byte) (string, error) {
	return string(payload), nil
}

var ErrUnknownCodec = errors.New("codec: unknown codec")

// ForName returns the line codec pair for name. "json" validates and compacts
// payloads in both directions; "text" passes them through.
func ForName(name string) (Serializer[string], Deserializer[string], error) {
	switch name {
	case "", "json":
		return compactJSON, func(payload []byte) (string, error) {
			out, err := compactJSON(string(payload))
			return string(out), err
		}, nil
	case "text":
		return TextEncode, TextDecode, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

func compactJSON(v string) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(v)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return buf.Bytes(), nil
}
