package tally

import "sync"

// ProgressGuard clamps the per-scope counting progress so the published
// value never regresses cycle-over-cycle, even when upstream reports a
// lower completion rate than it did before.
type ProgressGuard struct {
	mu   sync.Mutex
	last map[ScopeKey]float64
}

func NewProgressGuard() *ProgressGuard {
	return &ProgressGuard{last: make(map[ScopeKey]float64)}
}

// Clamp returns the effective progress for key: the previous baseline when
// current regresses below it, otherwise current, which becomes the new
// baseline.
func (g *ProgressGuard) Clamp(key ScopeKey, current float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[key]; ok && current < prev {
		return prev
	}
	g.last[key] = current
	return current
}

// Seed restores a baseline, used when reloading persisted state at startup.
// It never lowers an existing baseline.
func (g *ProgressGuard) Seed(key ScopeKey, baseline float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[key]; ok && baseline < prev {
		return
	}
	g.last[key] = baseline
}
