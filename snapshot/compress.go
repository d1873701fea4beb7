// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to the workspace
// payload. The tag is stored in the container header (1 byte), so
// these values are file format constants.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed. Chosen
	// automatically when the data does not compress.
	CompressionNone Compression = 0

	// CompressionLZ4 is the default: fast on the matrix payloads
	// that dominate workspace snapshots.
	CompressionLZ4 Compression = 1

	// CompressionZstd trades encode time for ratio; worthwhile for
	// string- and map-heavy workspaces.
	CompressionZstd Compression = 2
)

// errIncompressible reports that compression did not shrink the data;
// the writer falls back to storing it raw.
var errIncompressible = errors.New("snapshot: data is incompressible")

// String returns the tag's configuration name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// zstdEncoder and zstdDecoder are shared across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// compress applies the tagged algorithm, returning errIncompressible
// when the output would not be smaller than the input.
func compress(data []byte, tag Compression) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot: lz4 compress: %w", err)
		}
		// CompressBlock reports incompressible data as zero bytes
		// written.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil
	}
	return nil, fmt.Errorf("%w: tag %d", ErrUnknownCompression, tag)
}

// decompress reverses compress. The uncompressed size comes from the
// container header and must match exactly.
func decompress(data []byte, tag Compression, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("%w: stored %d bytes, header says %d",
				ErrLengthMismatch, len(data), size)
		}
		return data, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(data, destination)
		if err != nil {
			return nil, fmt.Errorf("snapshot: lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, header says %d",
				ErrLengthMismatch, read, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("snapshot: zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, header says %d",
				ErrLengthMismatch, len(result), size)
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: tag %d", ErrUnknownCompression, tag)
}
