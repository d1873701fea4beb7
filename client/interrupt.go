// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// InterruptProcess forwards SIGINT to the engine process, aborting
// its call in progress. If a call of ours was in flight, the request/
// response pairing is now off by one: the interrupted call's response
// is still coming. Follow with Recover to receive and discard it
// before issuing the next request.
func InterruptProcess(pid int) error {
	if err := unix.Kill(pid, unix.SIGINT); err != nil {
		return fmt.Errorf("client: interrupt pid %d: %w", pid, err)
	}
	return nil
}
