// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// transplant-call is the reference controller: it binds an endpoint,
// waits for one engine to dial in, and then drives it either with a
// single operation given on the command line or with a scripted
// session.
//
// One-shot operations:
//
//	transplant-call get NAME
//	transplant-call set NAME VALUE
//	transplant-call call NAME [ARG...]
//	transplant-call die
//
// VALUE and ARG are written in the protocol's textual format, which
// is JSON-shaped: numbers, strings, true/false/null, arrays, objects.
// A scripted session (--script FILE) plays a JSONC array of steps in
// order; see the script documentation in script.go.
//
// Results print as a single compact line when stdout is a pipe, and
// indented over multiple lines when it is a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bastibe/transplant/client"
	"github.com/bastibe/transplant/lib/version"
	"github.com/bastibe/transplant/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var endpoint, formatName, scriptPath string
	var nargout int
	var showVersion, keepEngine bool
	flags := pflag.NewFlagSet("transplant-call", pflag.ContinueOnError)
	flags.StringVar(&endpoint, "endpoint", "tcp://127.0.0.1:5600", "endpoint to bind and await the engine on")
	flags.StringVar(&formatName, "format", "binary", "wire format, text or binary")
	flags.StringVar(&scriptPath, "script", "", "play a JSONC script instead of a one-shot operation")
	flags.IntVar(&nargout, "nargout", 1, "requested result count for call")
	flags.BoolVar(&keepEngine, "keep-engine", false, "leave the engine running instead of sending die")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("transplant-call %s\n", version.Info())
		return nil
	}

	format, err := wire.FormatByName(formatName)
	if err != nil {
		return err
	}
	operands := flags.Args()
	if scriptPath == "" && len(operands) == 0 {
		return fmt.Errorf("nothing to do: give an operation or --script (see --help)")
	}

	session, err := client.Listen(endpoint, format)
	if err != nil {
		return err
	}
	defer session.Close()

	if scriptPath != "" {
		return playScript(session, scriptPath, keepEngine)
	}
	return oneShot(session, operands, nargout, keepEngine)
}

// oneShot performs a single command-line operation.
func oneShot(session *client.Client, operands []string, nargout int, keepEngine bool) error {
	op := operands[0]
	if op != "die" && !keepEngine {
		defer session.Die()
	}
	switch op {
	case "get":
		if len(operands) != 2 {
			return fmt.Errorf("usage: get NAME")
		}
		result, err := session.GetGlobal(operands[1])
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	case "set":
		if len(operands) != 3 {
			return fmt.Errorf("usage: set NAME VALUE")
		}
		value, err := parseValue([]byte(operands[2]))
		if err != nil {
			return err
		}
		return session.SetGlobal(operands[1], value)
	case "call":
		if len(operands) < 2 {
			return fmt.Errorf("usage: call NAME [ARG...]")
		}
		args := make([]any, 0, len(operands)-2)
		for _, operand := range operands[2:] {
			arg, err := parseValue([]byte(operand))
			if err != nil {
				return err
			}
			args = append(args, arg)
		}
		results, err := session.CallN(operands[1], nargout, args...)
		if err != nil {
			return err
		}
		for _, result := range results {
			printResult(result)
		}
		return nil
	case "die":
		return session.Die()
	}
	return fmt.Errorf("unknown operation %q (want get, set, call, or die)", op)
}

// parseValue reads a command-line or script literal in the protocol's
// textual format.
func parseValue(data []byte) (any, error) {
	value, err := wire.Text.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", data, err)
	}
	return value, nil
}

func printResult(result any) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(renderPretty(result, 0))
		return
	}
	fmt.Println(renderCompact(result))
}
