package pluginctx

import (
	"fmt"
	"sort"
)

// ErrFrozen describes the frozen condition. No Frozen method returns
// it, since Frozen exposes no mutation method.
var ErrFrozen = fmt.Errorf("value is frozen and cannot be mutated")

// Frozen wraps a JSON-shaped value (map[string]any, []any, or a scalar)
// so that every nested object/array is recursively immutable from the
// plugin's perspective. Go has no native runtime-frozen composite type,
// so immutability here is enforced by surface — Frozen exposes no
// mutation method at all — rather than by a frozen bit on the
// underlying map/slice.
type Frozen struct {
	value any
}

// Freeze deep-freezes value, recursively wrapping every nested
// map[string]any and []any.
func Freeze(value any) *Frozen {
	return &Frozen{value: freezeValue(value)}
}

// FreezeShallow freezes only the top-level value, without recursing
// into nested maps/slices. Used for HookContext, which handlers must
// not be able to reassign top-level keys on, though nested values
// stay mutable.
func FreezeShallow(value any) *Frozen {
	m, ok := value.(map[string]any)
	if !ok {
		return &Frozen{value: value}
	}
	out := make(frozenMap, len(m))
	for k, v := range m {
		out[k] = &Frozen{value: v}
	}
	return &Frozen{value: out}
}

func freezeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]*Frozen, len(v))
		for k, val := range v {
			out[k] = Freeze(val)
		}
		return frozenMap(out)
	case []any:
		out := make([]*Frozen, len(v))
		for i, val := range v {
			out[i] = Freeze(val)
		}
		return frozenSlice(out)
	default:
		return v
	}
}

type frozenMap map[string]*Frozen
type frozenSlice []*Frozen

// Get returns the frozen value at key if the underlying value is a map,
// and whether it was present.
func (f *Frozen) Get(key string) (*Frozen, bool) {
	m, ok := f.value.(frozenMap)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// Keys returns the sorted keys of the underlying map, or nil if the
// frozen value is not a map.
func (f *Frozen) Keys() []string {
	m, ok := f.value.(frozenMap)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Index returns the frozen value at i if the underlying value is a
// slice.
func (f *Frozen) Index(i int) (*Frozen, bool) {
	s, ok := f.value.(frozenSlice)
	if !ok || i < 0 || i >= len(s) {
		return nil, false
	}
	return s[i], true
}

// Len returns the length of the underlying map or slice, or 0 for a
// scalar.
func (f *Frozen) Len() int {
	switch v := f.value.(type) {
	case frozenMap:
		return len(v)
	case frozenSlice:
		return len(v)
	default:
		return 0
	}
}

// Raw returns a defensive deep copy of the underlying value as plain
// Go types (map[string]any, []any, scalars) — never the frozen
// internals — so a caller can pass it onward without risk of the
// caller mutating shared state. For a value built by FreezeShallow,
// nested maps/slices were never wrapped and are returned as-is, not
// copied.
func (f *Frozen) Raw() any {
	if f == nil {
		return nil
	}
	switch v := f.value.(type) {
	case frozenMap:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val.Raw()
		}
		return out
	case frozenSlice:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = val.Raw()
		}
		return out
	default:
		return v
	}
}
