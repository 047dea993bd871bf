package tally

import "sync"

// ScopeState is the last successfully published result for one scope.
type ScopeState struct {
	Entries  []Entry `json:"entries"`
	Progress float64 `json:"progress"`
}

// StateTable maps each scope to its last known-good published state. It is
// the only state carried between cycles. Scopes that fail a cycle keep
// their prior entry untouched; the table is never overwritten with
// emptiness.
type StateTable struct {
	mu     sync.RWMutex
	scopes map[ScopeKey]ScopeState
}

func NewStateTable() *StateTable {
	return &StateTable{scopes: make(map[ScopeKey]ScopeState)}
}

// Get returns a copy of the scope's last published state. The copy keeps
// callers from aliasing rows that a later Put would replace.
func (t *StateTable) Get(key ScopeKey) (ScopeState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.scopes[key]
	if !ok {
		return ScopeState{}, false
	}
	entries := make([]Entry, len(s.Entries))
	copy(entries, s.Entries)
	return ScopeState{Entries: entries, Progress: s.Progress}, true
}

func (t *StateTable) Put(key ScopeKey, s ScopeState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scopes[key] = s
}

// Keys returns every scope currently tracked, in no particular order.
func (t *StateTable) Keys() []ScopeKey {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]ScopeKey, 0, len(t.scopes))
	for k := range t.scopes {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot copies the whole table, for persistence.
func (t *StateTable) Snapshot() map[ScopeKey]ScopeState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ScopeKey]ScopeState, len(t.scopes))
	for k, s := range t.scopes {
		entries := make([]Entry, len(s.Entries))
		copy(entries, s.Entries)
		out[k] = ScopeState{Entries: entries, Progress: s.Progress}
	}
	return out
}

func (t *StateTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.scopes)
}
