package checkpoint

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory checkpoint store for tests and short-lived
// runs. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[int]storedCheckpoint // runID -> version -> checkpoint
	closed bool
}

type storedCheckpoint struct {
	data      []byte
	createdAt time.Time
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]map[int]storedCheckpoint),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(runID string, version int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.runs[runID] == nil {
		m.runs[runID] = make(map[int]storedCheckpoint)
	}

	// Copy data to avoid retaining the caller's slice.
	stored := make([]byte, len(data))
	copy(stored, data)

	m.runs[runID][version] = storedCheckpoint{
		data:      stored,
		createdAt: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string, version int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	cp, ok := run[version]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(cp.data))
	copy(out, cp.data)
	return out, nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(runID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	run, ok := m.runs[runID]
	if !ok || len(run) == 0 {
		return 0, ErrNotFound
	}
	latest := 0
	for v := range run {
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	run, ok := m.runs[runID]
	if !ok {
		return []Info{}, nil
	}

	infos := make([]Info, 0, len(run))
	for version, cp := range run {
		info := Info{
			RunID:     runID,
			Version:   version,
			CreatedAt: cp.createdAt,
			Size:      int64(len(cp.data)),
		}
		// Step lives inside the serialized checkpoint; decode lazily so
		// List stays cheap for callers that only need versions.
		if decoded, err := Unmarshal(cp.data); err == nil {
			info.Step = decoded.Step
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Version < infos[j].Version
	})
	return infos, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
