// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net"
	"strings"
)

// Endpoint is a parsed transport address: a network ("tcp" or "unix")
// and the address in that network's syntax.
type Endpoint struct {
	Network string
	Address string
}

// ParseEndpoint parses "tcp://host:port" or "ipc:///path" notation.
// A tcp host of "*" binds every interface.
func ParseEndpoint(raw string) (Endpoint, error) {
	switch {
	case strings.HasPrefix(raw, "tcp://"):
		address := strings.TrimPrefix(raw, "tcp://")
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			return Endpoint{}, fmt.Errorf("transport: endpoint %q: %w", raw, err)
		}
		if port == "" {
			return Endpoint{}, fmt.Errorf("transport: endpoint %q has no port", raw)
		}
		if host == "*" {
			address = net.JoinHostPort("", port)
		}
		return Endpoint{Network: "tcp", Address: address}, nil
	case strings.HasPrefix(raw, "ipc://"):
		path := strings.TrimPrefix(raw, "ipc://")
		if path == "" {
			return Endpoint{}, fmt.Errorf("transport: endpoint %q has no socket path", raw)
		}
		return Endpoint{Network: "unix", Address: path}, nil
	}
	return Endpoint{}, fmt.Errorf("transport: endpoint %q: want tcp://host:port or ipc:///path", raw)
}

// String renders the endpoint back in URL notation.
func (e Endpoint) String() string {
	if e.Network == "unix" {
		return "ipc://" + e.Address
	}
	return "tcp://" + e.Address
}
