package stategraph

import "sync"

// Reducer merges an existing state value with an incoming one. Reducers must
// be pure: same inputs, same output, no side effects. The existing value is
// nil when the key is absent from the current state.
type Reducer func(existing, incoming any) any

// Overwrite is the default reducer: the incoming value replaces the existing
// one unconditionally.
func Overwrite(_, incoming any) any {
	return incoming
}

// Append concatenates slice values, preserving insertion order across
// repeated merges. Non-slice values are coerced into single-element slices,
// so Append tolerates nodes that report one item at a time.
func Append(existing, incoming any) any {
	return append(toSlice(existing), toSlice(incoming)...)
}

func toSlice(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		// Copy so the merged value never aliases a caller's slice.
		out := make([]any, len(val))
		copy(out, val)
		return out
	default:
		return []any{val}
	}
}

// MergeMaps combines map values key-by-key, incoming entries winning on
// conflict. Non-map values fall back to overwrite.
func MergeMaps(existing, incoming any) any {
	ex, okEx := existing.(map[string]any)
	in, okIn := incoming.(map[string]any)
	if !okIn {
		if incoming == nil {
			return existing
		}
		return incoming
	}
	out := make(map[string]any, len(ex)+len(in))
	if okEx {
		for k, v := range ex {
			out[k] = v
		}
	}
	for k, v := range in {
		out[k] = v
	}
	return out
}

// PriorityMerge keeps whichever value has the higher priority, existing
// winning ties. The caller supplies the priority function.
func PriorityMerge(priorityOf func(v any) int) Reducer {
	return func(existing, incoming any) any {
		if existing == nil {
			return incoming
		}
		if priorityOf(incoming) > priorityOf(existing) {
			return incoming
		}
		return existing
	}
}

// Reducers is a per-key reducer registry. Keys without a registered reducer
// fall back to Overwrite.
//
// Reducers is safe for concurrent use; registration normally happens before
// execution starts, but parallel frontiers read it concurrently.
type Reducers struct {
	mu    sync.RWMutex
	byKey map[string]Reducer
}

// NewReducers creates an empty registry.
func NewReducers() *Reducers {
	return &Reducers{byKey: make(map[string]Reducer)}
}

// Register sets the reducer for a key, replacing any previous registration.
// Panics if r is nil.
func (r *Reducers) Register(key string, reducer Reducer) *Reducers {
	if reducer == nil {
		panic("stategraph: reducer cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key] = reducer
	return r
}

// For returns the reducer registered for key, falling back to Overwrite.
func (r *Reducers) For(key string) Reducer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reducer, ok := r.byKey[key]; ok {
		return reducer
	}
	return Overwrite
}

// Apply merges incoming into existing using the reducer registered for key.
func (r *Reducers) Apply(key string, existing, incoming any) any {
	return r.For(key)(existing, incoming)
}
