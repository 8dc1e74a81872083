package stategraph

// State is the shared execution state: a mapping from key to value, owned
// exclusively by the state Manager during execution. Nodes receive snapshots
// and return partial updates; they never mutate a State they were handed.
//
// Values should be JSON-serializable when checkpointing is enabled.
type State map[string]any

// Clone returns a shallow copy of the state. Values are shared between the
// original and the copy; merges replace values rather than mutating them, so
// sharing is safe (copy-on-write at the key level).
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Get returns the value for key and whether it is present.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// String returns the string value for key, or defaultVal if missing or not
// a string.
func (s State) String(key, defaultVal string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not
// convertible. JSON round-trips turn ints into float64; both are accepted.
func (s State) Int(key string, defaultVal int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not
// numeric.
func (s State) Float(key string, defaultVal float64) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not
// a bool.
func (s State) Bool(key string, defaultVal bool) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return defaultVal
}
