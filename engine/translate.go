// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"

	"github.com/bastibe/transplant/proxy"
	"github.com/bastibe/transplant/wire"
)

// maxTranslateDepth bounds value translation. Wire decoding already
// caps nesting, but encode walks engine-produced values, which could
// contain a cycle through a careless live object graph.
const maxTranslateDepth = 10000

// encodeValue converts an engine result into its wire form: live
// objects and callables are parked in the cache and replaced by
// references, containers are walked element-wise, Go scalars are
// normalized to the value model. Handles are allocated at encode
// time, so an object returned twice gets two handles.
func encodeValue(cache *proxy.Cache, value any, depth int) (any, error) {
	if depth > maxTranslateDepth {
		return nil, Errorf(IDProtocol, "result nested deeper than %d", maxTranslateDepth)
	}
	switch value := value.(type) {
	case nil, bool, int64, uint64, float64, string, []byte,
		*wire.Matrix, *wire.Sparse, wire.ObjectRef, wire.FunctionRef:
		return value, nil
	case int:
		return int64(value), nil
	case int8:
		return int64(value), nil
	case int16:
		return int64(value), nil
	case int32:
		return int64(value), nil
	case uint:
		return uint64(value), nil
	case uint8:
		return uint64(value), nil
	case uint16:
		return uint64(value), nil
	case uint32:
		return uint64(value), nil
	case float32:
		return float64(value), nil
	case []any:
		encoded := make([]any, len(value))
		for i, element := range value {
			element, err := encodeValue(cache, element, depth+1)
			if err != nil {
				return nil, err
			}
			encoded[i] = element
		}
		return encoded, nil
	case map[string]any:
		encoded := make(map[string]any, len(value))
		for key, element := range value {
			element, err := encodeValue(cache, element, depth+1)
			if err != nil {
				return nil, err
			}
			encoded[key] = element
		}
		return encoded, nil
	case Object:
		return wire.ObjectRef{Handle: int(cache.Put(value))}, nil
	case Callable:
		return wire.HandledFunction(int(cache.Put(value))), nil
	}
	return nil, Errorf(IDExecution, "result of type %T has no wire representation", value)
}

// decodeValue resolves the references in a decoded wire value against
// the cache and registry: object references become the cached live
// value, function references become Callables, containers are walked
// element-wise. Everything else passes through.
func decodeValue(env *Environment, cache *proxy.Cache, value any, depth int) (any, error) {
	if depth > maxTranslateDepth {
		return nil, Errorf(IDProtocol, "argument nested deeper than %d", maxTranslateDepth)
	}
	switch value := value.(type) {
	case wire.ObjectRef:
		cached, err := cache.Get(proxy.Handle(value.Handle))
		if err != nil {
			return nil, Errorf(IDInvalidHandle, "%v", err)
		}
		return cached, nil
	case wire.FunctionRef:
		return resolveFunction(env, cache, value)
	case []any:
		decoded := make([]any, len(value))
		for i, element := range value {
			element, err := decodeValue(env, cache, element, depth+1)
			if err != nil {
				return nil, err
			}
			decoded[i] = element
		}
		return decoded, nil
	case map[string]any:
		decoded := make(map[string]any, len(value))
		for key, element := range value {
			element, err := decodeValue(env, cache, element, depth+1)
			if err != nil {
				return nil, err
			}
			decoded[key] = element
		}
		return decoded, nil
	}
	return value, nil
}

// resolveFunction turns a wire function reference into the Callable
// it names.
func resolveFunction(env *Environment, cache *proxy.Cache, ref wire.FunctionRef) (Callable, error) {
	if !ref.ByHandle {
		return env.ResolveCallable(ref.Name)
	}
	cached, err := cache.Get(proxy.Handle(ref.Handle))
	if err != nil {
		return nil, Errorf(IDInvalidHandle, "%v", err)
	}
	callable, ok := cached.(Callable)
	if !ok {
		return nil, Errorf(IDUndefinedFunction,
			"handle %d holds %s, not a callable", ref.Handle, describe(cached))
	}
	return callable, nil
}

func describe(value any) string {
	if kind := wire.Kind(value); kind != "invalid" {
		return kind
	}
	return fmt.Sprintf("%T", value)
}
