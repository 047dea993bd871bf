package tally

import (
	"context"
	"fmt"
)

// FetchFunc returns the raw result payload for one scope. The wire
// protocol, auth, and transient retries live behind it.
type FetchFunc func(ctx context.Context) (map[string]any, error)

// StatusFunc returns the counting-status payload, the secondary source for
// progress when the result payload lacks it.
type StatusFunc func(ctx context.Context) (map[string]any, error)

// Result is the outcome of reconciling one scope for one cycle.
type Result struct {
	Key      ScopeKey
	Entries  []Entry
	Progress float64
	// Fallback marks rows substituted verbatim from the previous cycle.
	// Fallback scopes still contribute rows but do not count as succeeded
	// and must not update the state table.
	Fallback bool
	Warnings []string
}

// Reconciler runs the per-scope sequence fetch → normalize → guard
// progress → stabilize, substituting the previous cycle's rows whenever a
// step fails. One scope's failure never affects another scope.
type Reconciler struct {
	norm  *Normalizer
	guard *ProgressGuard
	state *StateTable
	mode  Mode
	topK  int
}

func NewReconciler(norm *Normalizer, guard *ProgressGuard, state *StateTable, mode Mode, topK int) *Reconciler {
	if mode == "" {
		mode = ModeFull
	}
	return &Reconciler{norm: norm, guard: guard, state: state, mode: mode, topK: topK}
}

// Reconcile produces the rows to publish for key this cycle. It reads the
// previous state but never writes it: successful results become the new
// previous state only when the coordinator commits them after the cycle
// barrier.
func (r *Reconciler) Reconcile(ctx context.Context, key ScopeKey, regionLabel, cycleTS string, fetch FetchFunc, status StatusFunc) Result {
	payload, err := fetch(ctx)
	if err != nil {
		return r.fallback(key, fmt.Sprintf("fetch %s: %v", key, err))
	}

	entries, progress := r.norm.Normalize(payload, key, regionLabel, cycleTS)

	if progress <= 0 && status != nil {
		if sp, sErr := status(ctx); sErr == nil {
			progress = ExtractProgress(sp)
		}
	}

	if len(entries) == 0 {
		prev, ok := r.state.Get(key)
		if ok && len(prev.Entries) > 0 {
			return Result{
				Key:      key,
				Entries:  prev.Entries,
				Progress: prev.Progress,
				Fallback: true,
				Warnings: []string{fmt.Sprintf("empty result %s: kept previous rows", key)},
			}
		}
		return Result{Key: key, Warnings: []string{fmt.Sprintf("empty result %s: nothing to publish", key)}}
	}

	eff := r.guard.Clamp(key, progress)
	for i := range entries {
		entries[i].Progress = eff
	}

	prev, _ := r.state.Get(key)
	out := Stabilize(r.mode, r.topK, entries, prev.Entries)

	return Result{Key: key, Entries: out, Progress: eff}
}

func (r *Reconciler) fallback(key ScopeKey, warning string) Result {
	res := Result{Key: key, Fallback: true, Warnings: []string{warning}}
	if prev, ok := r.state.Get(key); ok && len(prev.Entries) > 0 {
		res.Entries = prev.Entries
		res.Progress = prev.Progress
	}
	return res
}
