package tally

import "sort"

// Mode selects the rank stabilization policy.
type Mode string

const (
	// ModeFull reinstates every previously seen identity missing from the
	// current fetch as a zero-share stub, so a contestant never disappears
	// once observed.
	ModeFull Mode = "full"
	// ModeTopK ranks the current pool bounded to a fixed K, with no
	// reinstatement.
	ModeTopK Mode = "topk"
)

// Stabilize merges the current cycle's entries for one scope with the
// previously published rows, deduplicates by identity, sorts descending by
// vote share, and assigns contiguous 1-based ranks. Ties keep input order
// (stable sort). An empty current pool yields an empty output; the caller
// handles fallback before getting here.
func Stabilize(mode Mode, topK int, current, previous []Entry) []Entry {
	if len(current) == 0 {
		return nil
	}

	pool := current
	if mode == ModeFull {
		pool = reinstateMissing(current, previous)
	}

	seen := make(map[string]bool, len(pool))
	deduped := pool[:0:0]
	for _, e := range pool {
		if seen[e.Identity] {
			continue
		}
		seen[e.Identity] = true
		deduped = append(deduped, e)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].VoteShare > deduped[j].VoteShare
	})

	if mode == ModeTopK && topK > 0 && len(deduped) > topK {
		deduped = deduped[:topK]
	}

	for i := range deduped {
		deduped[i].Rank = i + 1
	}
	return deduped
}

// reinstateMissing appends a zero-share stub for every identity present in
// previous but absent from current. Stubs keep the previously known name
// and photo and take the current cycle's scope columns, progress, and
// timestamp.
func reinstateMissing(current, previous []Entry) []Entry {
	if len(previous) == 0 {
		return current
	}
	have := make(map[string]bool, len(current))
	for _, e := range current {
		have[e.Identity] = true
	}
	ref := current[0]
	out := current
	for _, prev := range previous {
		if have[prev.Identity] {
			continue
		}
		have[prev.Identity] = true
		out = append(out, Entry{
			Level:       ref.Level,
			ScopeID:     ref.ScopeID,
			RegionLabel: ref.RegionLabel,
			Category:    ref.Category,
			Identity:    prev.Identity,
			DisplayName: prev.DisplayName,
			VoteShare:   0,
			Progress:    ref.Progress,
			PhotoRef:    prev.PhotoRef,
			CycleTS:     ref.CycleTS,
		})
	}
	return out
}
