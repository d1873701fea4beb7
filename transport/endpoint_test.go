// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "testing"

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw     string
		network string
		address string
	}{
		{"tcp://127.0.0.1:5555", "tcp", "127.0.0.1:5555"},
		{"tcp://localhost:0", "tcp", "localhost:0"},
		{"tcp://*:5555", "tcp", ":5555"},
		{"tcp://[::1]:5555", "tcp", "[::1]:5555"},
		{"ipc:///tmp/engine.sock", "unix", "/tmp/engine.sock"},
		{"ipc://relative.sock", "unix", "relative.sock"},
	}
	for _, c := range cases {
		endpoint, err := ParseEndpoint(c.raw)
		if err != nil {
			t.Errorf("ParseEndpoint(%q): %v", c.raw, err)
			continue
		}
		if endpoint.Network != c.network || endpoint.Address != c.address {
			t.Errorf("ParseEndpoint(%q): got %s %q, want %s %q",
				c.raw, endpoint.Network, endpoint.Address, c.network, c.address)
		}
	}
}

func TestParseEndpointRejects(t *testing.T) {
	for _, raw := range []string{
		"", "localhost:5555", "http://x", "tcp://nohost", "tcp://", "ipc://",
	} {
		if _, err := ParseEndpoint(raw); err == nil {
			t.Errorf("ParseEndpoint(%q) succeeded", raw)
		}
	}
}

func TestEndpointString(t *testing.T) {
	for _, raw := range []string{"tcp://127.0.0.1:5555", "ipc:///tmp/engine.sock"} {
		endpoint, err := ParseEndpoint(raw)
		if err != nil {
			t.Fatal(err)
		}
		if endpoint.String() != raw {
			t.Errorf("String: got %q, want %q", endpoint.String(), raw)
		}
	}
}
