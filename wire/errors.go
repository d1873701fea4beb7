// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "errors"

// Decode failures wrap one of these sentinels so that callers can
// classify them with errors.Is without parsing message text. Encode
// failures wrap ErrUnsupported.
var (
	// ErrSyntax reports malformed structure in the text format: an
	// unexpected byte, an unterminated string, a bad escape, an
	// out-of-range literal. The message carries the byte offset.
	ErrSyntax = errors.New("wire: malformed syntax")

	// ErrTruncated reports input that ends before the value does, in
	// either format: a length prefix promising more bytes than remain,
	// or a container missing elements.
	ErrTruncated = errors.New("wire: truncated input")

	// ErrTrailingData reports well-formed input followed by extra
	// bytes. A wire message is exactly one value.
	ErrTrailingData = errors.New("wire: trailing data after value")

	// ErrUnknownTag reports a binary tag byte outside the supported
	// set, including the reserved byte 0xc1 and the timestamp/ext
	// family, which the protocol does not use.
	ErrUnknownTag = errors.New("wire: unknown tag byte")

	// ErrMapKey reports a binary map whose key is not a string.
	ErrMapKey = errors.New("wire: map key is not a string")

	// ErrDuplicateKey reports a map that binds the same key twice.
	ErrDuplicateKey = errors.New("wire: duplicate map key")

	// ErrDepth reports a value nested deeper than maxDepth. The limit
	// keeps hostile input from exhausting the decoder's stack.
	ErrDepth = errors.New("wire: nesting depth limit exceeded")

	// ErrExtension reports a tagged sequence that names a known
	// sentinel but does not match its shape: wrong arity, or a field
	// of the wrong type.
	ErrExtension = errors.New("wire: malformed tagged extension")

	// ErrDtype reports a dtype name outside the supported set.
	ErrDtype = errors.New("wire: unknown dtype")

	// ErrShape reports a matrix whose payload length disagrees with
	// the product of its shape and the dtype item size, or a shape
	// with a negative dimension.
	ErrShape = errors.New("wire: shape does not match payload")

	// ErrUnsupported reports an encode of a Go value with no wire
	// representation: an unknown type, a NaN or infinity in the text
	// format, or a raw byte string in the text format.
	ErrUnsupported = errors.New("wire: unsupported value")
)

// maxDepth bounds container nesting in both decoders.
const maxDepth = 128
