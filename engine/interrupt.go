// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// interruptPanic is the panic value used to unwind an interrupted
// call. The dispatch loop recognizes it during recovery and reports
// IDInterrupted instead of an execution error.
type interruptPanic struct{}

// Notifier carries an external interrupt request to the dispatch
// loop. Arm is called from a signal handler goroutine; the dispatch
// goroutine polls Interrupted at builtin safepoints and during
// blocked receives, and Clear resets the flag once the interrupt has
// been acted on.
type Notifier struct {
	armed atomic.Bool
}

// Arm marks an interrupt as pending.
func (n *Notifier) Arm() {
	n.armed.Store(true)
}

// Interrupted reports whether an interrupt is pending. Nil receivers
// report false, so an unwired loop needs no special casing.
func (n *Notifier) Interrupted() bool {
	return n != nil && n.armed.Load()
}

// Clear resets the pending flag.
func (n *Notifier) Clear() {
	if n != nil {
		n.armed.Store(false)
	}
}

// Watch arms the notifier on every delivery of the given signals
// (SIGINT in the engine daemon) until stop is closed. It starts its
// own goroutine.
func (n *Notifier) Watch(stop <-chan struct{}, signals ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ch:
				n.Arm()
			case <-stop:
				return
			}
		}
	}()
}
