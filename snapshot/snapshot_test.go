// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bastibe/transplant/wire"
)

func sampleWorkspace(t *testing.T) map[string]any {
	t.Helper()
	matrix, err := wire.MatrixFromInt32s([]int{2, 2}, []int32{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	sparse, err := wire.SparseFromTriplets(3, 3, []int64{0, 2}, []int64{1, 0}, []float64{0.5, -2})
	if err != nil {
		t.Fatal(err)
	}
	return map[string]any{
		"answer":  int64(42),
		"big":     uint64(1) << 63,
		"pi":      3.14159,
		"flag":    true,
		"nothing": nil,
		"label":   "calibration",
		"raw":     []byte{0, 1, 2},
		"nested":  []any{int64(1), map[string]any{"inner": "value"}},
		"m":       matrix,
		"s":       sparse,
	}
}

func workspacesEqual(a, b map[string]any) bool {
	return wire.Equal(map[string]any(a), map[string]any(b))
}

func TestRoundTripEachCompression(t *testing.T) {
	for _, tag := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "workspace.tpsnap")
			original := sampleWorkspace(t)
			if err := WriteCompressed(path, original, tag); err != nil {
				t.Fatalf("write: %v", err)
			}
			restored, err := Read(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !workspacesEqual(original, restored) {
				t.Errorf("round trip changed the workspace:\ngot  %#v\nwant %#v", restored, original)
			}
		})
	}
}

func TestWriteDeterministic(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.tpsnap")
	second := filepath.Join(dir, "b.tpsnap")
	workspace := sampleWorkspace(t)
	if err := Write(first, workspace); err != nil {
		t.Fatal(err)
	}
	if err := Write(second, workspace); err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Error("two snapshots of the same workspace differ")
	}
}

func TestIncompressibleFallsBackToRaw(t *testing.T) {
	// A single small scalar cannot shrink; the writer must store it
	// raw rather than fail or grow the file.
	path := filepath.Join(t.TempDir(), "tiny.tpsnap")
	if err := WriteCompressed(path, map[string]any{"x": int64(1)}, CompressionLZ4); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if Compression(data[8]) != CompressionNone {
		t.Errorf("tiny payload stored with tag %s", Compression(data[8]))
	}
	if _, err := Read(path); err != nil {
		t.Errorf("read: %v", err)
	}
}

func TestRejectsUnsupportedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tpsnap")
	err := Write(path, map[string]any{"ref": wire.ObjectRef{Handle: 3}})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
	if Snapshotable(wire.ObjectRef{}) {
		t.Error("object reference reported snapshotable")
	}
	if Snapshotable([]any{int64(1), wire.NamedFunction("f")}) {
		t.Error("sequence holding a function reference reported snapshotable")
	}
	if !Snapshotable(sampleWorkspace(t)["nested"]) {
		t.Error("plain nested container reported unsnapshotable")
	}
}

func TestCorruptionDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.tpsnap")
	if err := Write(path, sampleWorkspace(t)); err != nil {
		t.Fatal(err)
	}
	pristine, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	corrupt := func(t *testing.T, mutate func([]byte)) error {
		t.Helper()
		data := bytes.Clone(pristine)
		mutate(data)
		mangled := filepath.Join(t.TempDir(), "mangled.tpsnap")
		if err := os.WriteFile(mangled, data, 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Read(mangled)
		return err
	}

	t.Run("bad magic", func(t *testing.T) {
		err := corrupt(t, func(data []byte) { data[0] = 'X' })
		if !errors.Is(err, ErrBadMagic) {
			t.Errorf("got %v, want ErrBadMagic", err)
		}
	})
	t.Run("unknown compression", func(t *testing.T) {
		err := corrupt(t, func(data []byte) { data[8] = 0x7f })
		if !errors.Is(err, ErrUnknownCompression) {
			t.Errorf("got %v, want ErrUnknownCompression", err)
		}
	})
	t.Run("flipped checksum", func(t *testing.T) {
		err := corrupt(t, func(data []byte) { data[17] ^= 0xff })
		if !errors.Is(err, ErrChecksum) {
			t.Errorf("got %v, want ErrChecksum", err)
		}
	})
	t.Run("truncated payload", func(t *testing.T) {
		data := bytes.Clone(pristine[:len(pristine)-4])
		mangled := filepath.Join(t.TempDir(), "short.tpsnap")
		if err := os.WriteFile(mangled, data, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Read(mangled); err == nil {
			t.Error("truncated snapshot read back")
		}
	})
	t.Run("not a snapshot", func(t *testing.T) {
		mangled := filepath.Join(t.TempDir(), "plain.txt")
		if err := os.WriteFile(mangled, []byte("hello"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Read(mangled); !errors.Is(err, ErrBadMagic) {
			t.Errorf("got %v, want ErrBadMagic", err)
		}
	})
}

func TestReadRootMustBeWorkspace(t *testing.T) {
	// Hand-build a container whose payload is a bare scalar node.
	path := filepath.Join(t.TempDir(), "scalar.tpsnap")
	if err := Write(path, map[string]any{}); err != nil {
		t.Fatal(err)
	}
	restored, err := Read(path)
	if err != nil {
		t.Fatalf("empty workspace: %v", err)
	}
	if len(restored) != 0 {
		t.Errorf("empty workspace restored as %#v", restored)
	}
}
