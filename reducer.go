package oxalis

import (
	"maps"
	"reflect"
	"slices"
)

// Reducer is a pure transition function. It must not mutate the state it
// receives; it returns either the same state value or a fresh one.
type Reducer[S any] func(state S, act Action) (S, error)

// Combine builds a composite reducer over a record-shaped state. Each
// sub-reducer owns one slot of the composite and is invoked with
// (state[key], action) on every dispatch, in sorted key order.
//
// When no sub-reducer produced a different value the composite returns the
// exact same map it was given, so downstream identity checks keep working.
// Otherwise only the changed slots are replaced in a fresh map; untouched
// slots keep their previous values by reference.
func Combine(subs map[string]Reducer[any]) Reducer[map[string]any] {
	if len(subs) == 0 {
		panic("oxalis: Combine needs at least one sub-reducer")
	}
	keys := slices.Sorted(maps.Keys(subs))

	return func(state map[string]any, act Action) (map[string]any, error) {
		var next map[string]any
		for _, key := range keys {
			cur := state[key]
			nv, err := subs[key](cur, act)
			if err != nil {
				return state, err
			}
			if identical(cur, nv) {
				continue
			}
			if next == nil {
				next = make(map[string]any, len(state))
				maps.Copy(next, state)
			}
			next[key] = nv
		}
		if next == nil {
			return state, nil
		}
		return next, nil
	}
}

// identical reports whether two values are the same by identity: same
// reference for slices, maps, pointers and the like, == for comparable
// values. Non-comparable values that are not references are never
// identical.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Chan, reflect.Func, reflect.Pointer, reflect.UnsafePointer:
		return va.UnsafePointer() == vb.UnsafePointer()
	default:
		return va.Comparable() && va.Equal(vb)
	}
}
