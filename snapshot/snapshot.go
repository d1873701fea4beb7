// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot persists engine workspaces to disk for the save
// and load builtins.
//
// A snapshot file is a small container: an 8-byte magic, a 1-byte
// compression tag, the 8-byte big-endian uncompressed payload length,
// a 32-byte BLAKE3 checksum of the uncompressed payload, and the
// compressed payload itself. The payload is the workspace globals in
// deterministic CBOR, so saving the same workspace twice produces
// identical files.
//
// Live objects and callables do not snapshot; Snapshotable lets the
// caller filter them out ahead of time.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bastibe/transplant/lib/codec"
)

// magic identifies a snapshot file and its container revision.
var magic = [8]byte{'T', 'P', 'S', 'N', 'A', 'P', '0', '1'}

// headerSize is the fixed container prefix: magic, compression tag,
// uncompressed length, checksum.
const headerSize = 8 + 1 + 8 + 32

var (
	// ErrBadMagic reports a file that is not a snapshot, or a
	// container revision this package does not read.
	ErrBadMagic = errors.New("snapshot: bad magic")

	// ErrUnknownCompression reports a compression tag outside the
	// supported set.
	ErrUnknownCompression = errors.New("snapshot: unknown compression")

	// ErrChecksum reports payload bytes that do not hash to the
	// stored checksum.
	ErrChecksum = errors.New("snapshot: checksum mismatch")

	// ErrLengthMismatch reports a payload whose decompressed size
	// disagrees with the header.
	ErrLengthMismatch = errors.New("snapshot: length mismatch")

	// ErrCorrupt reports a payload that decompressed and verified
	// but does not decode to a workspace.
	ErrCorrupt = errors.New("snapshot: corrupt payload")

	// ErrUnsupported reports a workspace value with no snapshot
	// representation: live objects, callables, references.
	ErrUnsupported = errors.New("snapshot: unsupported value")
)

// Write snapshots the given globals to path, picking lz4 compression
// and falling back to raw storage when the payload does not compress.
func Write(path string, globals map[string]any) error {
	return WriteCompressed(path, globals, CompressionLZ4)
}

// WriteCompressed snapshots the given globals with an explicit
// compression choice. An incompressible payload is stored raw
// whatever the choice.
func WriteCompressed(path string, globals map[string]any, tag Compression) error {
	root, err := encodeNode(globals)
	if err != nil {
		return err
	}
	payload, err := codec.Marshal(root)
	if err != nil {
		return fmt.Errorf("snapshot: encode workspace: %w", err)
	}
	compressed, err := compress(payload, tag)
	if errors.Is(err, errIncompressible) {
		tag, compressed = CompressionNone, payload
	} else if err != nil {
		return err
	}

	var buffer bytes.Buffer
	buffer.Grow(headerSize + len(compressed))
	buffer.Write(magic[:])
	buffer.WriteByte(byte(tag))
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(payload)))
	buffer.Write(length[:])
	checksum := blake3.Sum256(payload)
	buffer.Write(checksum[:])
	buffer.Write(compressed)
	if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// Read restores the globals stored at path, verifying the container
// magic and the payload checksum before decoding.
func Read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if len(data) < headerSize || !bytes.Equal(data[:8], magic[:]) {
		return nil, fmt.Errorf("%w: %s", ErrBadMagic, path)
	}
	tag := Compression(data[8])
	size := binary.BigEndian.Uint64(data[9:17])
	var stored [32]byte
	copy(stored[:], data[17:49])

	payload, err := decompress(data[headerSize:], tag, int(size))
	if err != nil {
		return nil, err
	}
	if blake3.Sum256(payload) != stored {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, path)
	}

	var root node
	if err := codec.Unmarshal(payload, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	decoded, err := decodeNode(root)
	if err != nil {
		return nil, err
	}
	globals, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is not a workspace map", ErrCorrupt)
	}
	return globals, nil
}
