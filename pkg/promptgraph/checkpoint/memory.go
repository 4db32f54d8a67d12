package checkpoint

import (
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[int]stored
	closed bool
}

type stored struct {
	data      []byte
	timestamp time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[int]stored)}
}

// Save implements Store.
func (m *MemoryStore) Save(runID string, tick int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if m.runs[runID] == nil {
		m.runs[runID] = make(map[int]stored)
	}
	m.runs[runID][tick] = stored{data: slices.Clone(data), timestamp: time.Now().UTC()}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string, tick int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	cp, ok := m.runs[runID][tick]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(cp.data), nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(runID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	run := m.runs[runID]
	if len(run) == 0 {
		return nil, ErrNotFound
	}
	latest := -1
	for tick := range run {
		latest = max(latest, tick)
	}
	return slices.Clone(run[latest].data), nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	run := m.runs[runID]
	infos := make([]Info, 0, len(run))
	for tick, cp := range run {
		infos = append(infos, Info{
			RunID:     runID,
			Tick:      tick,
			Timestamp: cp.timestamp,
			Size:      int64(len(cp.data)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int { return a.Tick - b.Tick })
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
	m.runs = nil
	return nil
}

// Len returns the number of checkpoints across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, run := range m.runs {
		n += len(run)
	}
	return n
}
