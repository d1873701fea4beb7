// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bastibe/transplant/client"
	"github.com/bastibe/transplant/wire"
)

// A script is a JSONC array of steps, played in order against the
// engine. JSONC is JSON extended with // line comments, /* block
// comments */, and trailing commas. Each step is an object:
//
//	{"op": "set", "name": "x", "value": [1, 2, 3]}
//	{"op": "get", "name": "x"}
//	{"op": "call", "name": "sum", "args": [...], "nargout": 1}
//	{"op": "die"}
//
// A step may carry "expect" to assert on the (first) result, and
// "ignore_error": true to keep playing past an engine error. The
// script stops at the first unexpected failure, and that failure is
// the process exit status.

// scriptStep is one parsed step.
type scriptStep struct {
	op          string
	name        string
	value       any
	hasValue    bool
	args        []any
	nargout     int
	expect      any
	hasExpect   bool
	ignoreError bool
}

// parseScript strips JSONC and decodes the step array with the
// protocol's own textual codec, so script literals have exactly the
// wire value model.
func parseScript(data []byte) ([]scriptStep, error) {
	decoded, err := wire.Text.Decode(jsonc.ToJSON(data))
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	rawSteps, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("script: top level is %s, want an array of steps", wire.Kind(decoded))
	}
	steps := make([]scriptStep, 0, len(rawSteps))
	for i, rawStep := range rawSteps {
		fields, ok := rawStep.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("script: step %d is %s, want object", i+1, wire.Kind(rawStep))
		}
		step := scriptStep{nargout: 1}
		if step.op, ok = fields["op"].(string); !ok {
			return nil, fmt.Errorf("script: step %d has no \"op\"", i+1)
		}
		step.name, _ = fields["name"].(string)
		step.value, step.hasValue = fields["value"]
		step.expect, step.hasExpect = fields["expect"]
		step.ignoreError, _ = fields["ignore_error"].(bool)
		if rawArgs, present := fields["args"]; present {
			if step.args, ok = rawArgs.([]any); !ok {
				return nil, fmt.Errorf("script: step %d args is %s, want array",
					i+1, wire.Kind(rawArgs))
			}
		}
		if rawCount, present := fields["nargout"]; present {
			count, isInt := rawCount.(int64)
			if !isInt || count < -1 {
				return nil, fmt.Errorf("script: step %d has a bad nargout", i+1)
			}
			step.nargout = int(count)
		}
		switch step.op {
		case "set":
			if step.name == "" || !step.hasValue {
				return nil, fmt.Errorf("script: step %d: set wants name and value", i+1)
			}
		case "get", "call":
			if step.name == "" {
				return nil, fmt.Errorf("script: step %d: %s wants name", i+1, step.op)
			}
		case "die":
		default:
			return nil, fmt.Errorf("script: step %d has unknown op %q", i+1, step.op)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// playScript loads and runs a script file against the session.
func playScript(session *client.Client, path string, keepEngine bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	steps, err := parseScript(data)
	if err != nil {
		return err
	}
	died := false
	if !keepEngine {
		defer func() {
			if !died {
				session.Die()
			}
		}()
	}
	for i, step := range steps {
		result, err := playStep(session, step)
		if err != nil {
			if step.ignoreError {
				fmt.Fprintf(os.Stderr, "step %d: ignored error: %v\n", i+1, err)
				continue
			}
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.op == "die" {
			died = true
		}
		if step.hasExpect && !wire.Equal(result, step.expect) {
			return fmt.Errorf("step %d: result %s does not match expectation %s",
				i+1, renderCompact(result), renderCompact(step.expect))
		}
		if result != nil && !step.hasExpect {
			printResult(result)
		}
	}
	return nil
}

// playStep performs one step and returns its result value, nil for
// ack-style steps.
func playStep(session *client.Client, step scriptStep) (any, error) {
	switch step.op {
	case "set":
		return nil, session.SetGlobal(step.name, step.value)
	case "get":
		return session.GetGlobal(step.name)
	case "call":
		results, err := session.CallN(step.name, step.nargout, step.args...)
		if err != nil {
			return nil, err
		}
		switch len(results) {
		case 0:
			return nil, nil
		case 1:
			return results[0], nil
		default:
			return results, nil
		}
	case "die":
		return nil, session.Die()
	}
	return nil, fmt.Errorf("unknown op %q", step.op)
}
