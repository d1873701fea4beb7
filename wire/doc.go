// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the value model and the two serialization
// formats of the transplant protocol.
//
// A wire value is one of: nil, bool, int64/uint64, float64, string,
// []byte (binary format only), []any, map[string]any, *Matrix, *Sparse,
// ObjectRef, or FunctionRef. The two formats are interchangeable
// encodings of this model:
//
//   - Text: a printable-ASCII, JSON-shaped encoding. Binary payloads
//     travel base64-encoded; every control character and every rune
//     outside ASCII is \uXXXX-escaped. Intended for debugging and for
//     peers without a binary decoder.
//   - Binary: a tag-length-value encoding with single-byte tags,
//     inline short forms for small integers, short strings and short
//     containers, and 8/16/32-bit big-endian length prefixes for
//     everything larger. Binary payloads travel as raw byte strings.
//
// Matrices, sparse matrices, object references and function references
// are not native to either format. Both encode them as tagged
// extensions: a short sequence whose first element is a sentinel
// string ("__matrix__", "__sparse__", "__object__", "__function__")
// followed by the type-specific fields. Decoders recognize the
// sentinel shapes and rebuild the typed values.
//
// The package also defines the protocol message envelope: the closed
// set of request and response kinds exchanged between a controller and
// an engine, parsed from and serialized to plain wire maps.
package wire
