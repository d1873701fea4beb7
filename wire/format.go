// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// Format is one of the two interchangeable encodings of the value
// model. Both sides of a connection must use the same format; the
// protocol never switches formats mid-session.
type Format interface {
	// Name returns the format's configuration name, "text" or "binary".
	Name() string
	// Encode serializes a value to a single message payload.
	Encode(value any) ([]byte, error)
	// Decode parses a message payload into a value, rejecting
	// trailing bytes.
	Decode(data []byte) (any, error)
}

// Text is the printable, JSON-shaped format.
var Text Format = textFormat{}

// Binary is the compact tag-length-value format.
var Binary Format = binaryFormat{}

// FormatByName resolves a configuration string to a format.
func FormatByName(name string) (Format, error) {
	switch name {
	case "text":
		return Text, nil
	case "binary":
		return Binary, nil
	}
	return nil, fmt.Errorf("wire: unknown format %q (want \"text\" or \"binary\")", name)
}

type textFormat struct{}

func (textFormat) Name() string { return "text" }

func (textFormat) Encode(value any) ([]byte, error) {
	var encoder textEncoder
	if err := encoder.encode(value, 0); err != nil {
		return nil, err
	}
	return encoder.buffer.Bytes(), nil
}

func (textFormat) Decode(data []byte) (any, error) {
	decoder := textDecoder{data: data}
	value, err := decoder.decodeValue(0)
	if err != nil {
		return nil, err
	}
	decoder.skipSpace()
	if decoder.offset != len(decoder.data) {
		return nil, fmt.Errorf("%w at offset %d", ErrTrailingData, decoder.offset)
	}
	return value, nil
}

type binaryFormat struct{}

func (binaryFormat) Name() string { return "binary" }

func (binaryFormat) Encode(value any) ([]byte, error) {
	var encoder binaryEncoder
	if err := encoder.encode(value, 0); err != nil {
		return nil, err
	}
	return encoder.buffer.Bytes(), nil
}

func (binaryFormat) Decode(data []byte) (any, error) {
	decoder := binaryDecoder{data: data}
	value, err := decoder.decodeValue(0)
	if err != nil {
		return nil, err
	}
	if decoder.offset != len(decoder.data) {
		return nil, fmt.Errorf("%w at offset %d", ErrTrailingData, decoder.offset)
	}
	return value, nil
}
