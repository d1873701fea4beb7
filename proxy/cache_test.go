// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"errors"
	"testing"
)

func TestCacheHandlesAreDense(t *testing.T) {
	cache := NewCache()
	for i := 0; i < 4; i++ {
		if handle := cache.Put(i); handle != Handle(i) {
			t.Fatalf("Put %d: got handle %d", i, handle)
		}
	}
	if cache.Len() != 4 {
		t.Errorf("Len: got %d, want 4", cache.Len())
	}
	value, err := cache.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if value != 2 {
		t.Errorf("Get(2): got %v, want 2", value)
	}
}

func TestCacheReusesLowestFreeSlot(t *testing.T) {
	cache := NewCache()
	for i := 0; i < 5; i++ {
		cache.Put(i)
	}
	if err := cache.Invalidate(3); err != nil {
		t.Fatal(err)
	}
	if err := cache.Invalidate(1); err != nil {
		t.Fatal(err)
	}
	if handle := cache.Put("first"); handle != 1 {
		t.Errorf("reuse: got handle %d, want 1", handle)
	}
	if handle := cache.Put("second"); handle != 3 {
		t.Errorf("reuse: got handle %d, want 3", handle)
	}
	if handle := cache.Put("third"); handle != 5 {
		t.Errorf("growth: got handle %d, want 5", handle)
	}
}

func TestCacheInvalidHandle(t *testing.T) {
	cache := NewCache()
	cache.Put("x")
	if err := cache.Invalidate(0); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get of invalidated handle: got %v, want ErrInvalidHandle", err)
	}
	if err := cache.Invalidate(0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("double Invalidate: got %v, want ErrInvalidHandle", err)
	}
	if _, err := cache.Get(99); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get beyond arena: got %v, want ErrInvalidHandle", err)
	}
	if _, err := cache.Get(-1); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get(-1): got %v, want ErrInvalidHandle", err)
	}
}

func TestCacheDoesNotDeduplicate(t *testing.T) {
	cache := NewCache()
	object := &struct{ n int }{n: 1}
	first := cache.Put(object)
	second := cache.Put(object)
	if first == second {
		t.Fatalf("identical values shared handle %d", first)
	}
	if err := cache.Invalidate(first); err != nil {
		t.Fatal(err)
	}
	value, err := cache.Get(second)
	if err != nil {
		t.Fatalf("second handle died with the first: %v", err)
	}
	if value != object {
		t.Errorf("Get: got %v, want original object", value)
	}
}

func TestCacheClear(t *testing.T) {
	cache := NewCache()
	cache.Put("a")
	cache.Put("b")
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", cache.Len())
	}
	if _, err := cache.Get(0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get after Clear: got %v, want ErrInvalidHandle", err)
	}
	if handle := cache.Put("c"); handle != 0 {
		t.Errorf("Put after Clear: got handle %d, want 0", handle)
	}
}
