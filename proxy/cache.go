// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy implements the engine-side handle cache that stands
// behind object and function references on the wire.
//
// Values that cannot travel by value are parked here and represented
// to the peer by their slot number. The cache is an arena: slots are
// reused in lowest-number-first order after invalidation, a handle is
// never remapped while live, and nothing is deduplicated, so caching
// the same object twice yields two independent handles. The cache is
// confined to the dispatch goroutine and needs no locking.
package proxy

import (
	"errors"
	"fmt"
)

// ErrInvalidHandle reports a handle that is out of range or has been
// invalidated. Matching it with errors.Is is how the dispatch layer
// recognizes stale references from the peer.
var ErrInvalidHandle = errors.New("proxy: invalid handle")

// Handle numbers a cache slot. Handles are dense small integers
// starting at zero.
type Handle int

type slot struct {
	value any
	live  bool
}

// Cache is the handle arena. The zero value is ready to use.
type Cache struct {
	slots []slot
	// firstFree is a lower bound on the lowest free slot index; Put
	// scans upward from here.
	firstFree int
	liveCount int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Put stores a value and returns its handle, reusing the
// lowest-numbered free slot before growing the arena.
func (c *Cache) Put(value any) Handle {
	for i := c.firstFree; i < len(c.slots); i++ {
		if !c.slots[i].live {
			c.slots[i] = slot{value: value, live: true}
			c.firstFree = i + 1
			c.liveCount++
			return Handle(i)
		}
	}
	c.slots = append(c.slots, slot{value: value, live: true})
	c.firstFree = len(c.slots)
	c.liveCount++
	return Handle(len(c.slots) - 1)
}

// Get returns the value behind a handle.
func (c *Cache) Get(handle Handle) (any, error) {
	if int(handle) < 0 || int(handle) >= len(c.slots) || !c.slots[int(handle)].live {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	return c.slots[int(handle)].value, nil
}

// Invalidate frees a handle. Accessing or invalidating it again fails
// until the slot is reused by a later Put.
func (c *Cache) Invalidate(handle Handle) error {
	if int(handle) < 0 || int(handle) >= len(c.slots) || !c.slots[int(handle)].live {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	c.slots[int(handle)] = slot{}
	c.liveCount--
	if int(handle) < c.firstFree {
		c.firstFree = int(handle)
	}
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.liveCount
}

// Clear invalidates every live handle.
func (c *Cache) Clear() {
	c.slots = c.slots[:0]
	c.firstFree = 0
	c.liveCount = 0
}
