package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, share float64) Entry {
	return Entry{
		Level:     LevelNational,
		ScopeID:   "AR",
		Category:  "SENADORES",
		Identity:  id,
		VoteShare: share,
	}
}

func ranks(entries []Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Rank
	}
	return out
}

func TestStabilizeSortAndRank(t *testing.T) {
	out := Stabilize(ModeFull, 0, []Entry{entry("b", 35), entry("a", 40.12), entry("c", 0)}, nil)
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, ranks(out))
	assert.Equal(t, "a", out[0].Identity)
	assert.Equal(t, "b", out[1].Identity)
	assert.Equal(t, "c", out[2].Identity)
}

func TestStabilizeReinstatesMissing(t *testing.T) {
	prev := []Entry{entry("a", 40), entry("b", 35)}
	prev[1].DisplayName = "Lista B"
	prev[1].PhotoRef = "b.png"

	curr := []Entry{entry("a", 45)}
	curr[0].Progress = 10
	curr[0].CycleTS = "2026-08-23T01:00:00Z"

	out := Stabilize(ModeFull, 0, curr, prev)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Identity)
	assert.Equal(t, 1, out[0].Rank)

	stub := out[1]
	assert.Equal(t, "b", stub.Identity)
	assert.Equal(t, 2, stub.Rank)
	assert.Zero(t, stub.VoteShare)
	assert.Equal(t, "Lista B", stub.DisplayName)
	assert.Equal(t, "b.png", stub.PhotoRef)
	// Stubs take the current cycle's progress and timestamp.
	assert.Equal(t, 10.0, stub.Progress)
	assert.Equal(t, "2026-08-23T01:00:00Z", stub.CycleTS)
}

func TestStabilizeDedupKeepsFirst(t *testing.T) {
	first := entry("a", 40)
	first.DisplayName = "first"
	dup := entry("a", 12)
	dup.DisplayName = "second"

	out := Stabilize(ModeFull, 0, []Entry{first, dup, entry("b", 20)}, nil)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].DisplayName)
}

func TestStabilizeCurrentWinsOverStub(t *testing.T) {
	// An identity present in both current and previous must not get a stub.
	prev := []Entry{entry("a", 40)}
	out := Stabilize(ModeFull, 0, []Entry{entry("a", 45)}, prev)
	require.Len(t, out, 1)
	assert.Equal(t, 45.0, out[0].VoteShare)
}

func TestStabilizeTiesKeepInputOrder(t *testing.T) {
	a := entry("a", 12.5)
	b := entry("b", 12.5)
	c := entry("c", 12.5)
	out := Stabilize(ModeFull, 0, []Entry{a, b, c}, nil)
	assert.Equal(t, []int{1, 2, 3}, ranks(out))
	assert.Equal(t, "a", out[0].Identity)
	assert.Equal(t, "b", out[1].Identity)
	assert.Equal(t, "c", out[2].Identity)
}

func TestStabilizeTopK(t *testing.T) {
	prev := []Entry{entry("z", 50)}
	curr := []Entry{entry("a", 10), entry("b", 30), entry("c", 20)}

	out := Stabilize(ModeTopK, 2, curr, prev)
	require.Len(t, out, 2)
	// No reinstatement in top-K mode.
	assert.Equal(t, "b", out[0].Identity)
	assert.Equal(t, "c", out[1].Identity)
	assert.Equal(t, []int{1, 2}, ranks(out))
}

func TestStabilizeEmpty(t *testing.T) {
	assert.Empty(t, Stabilize(ModeFull, 0, nil, nil))
	// Empty current yields empty output even with previous rows: fallback
	// is the reconciler's job, not the stabilizer's.
	assert.Empty(t, Stabilize(ModeFull, 0, nil, []Entry{entry("a", 40)}))
}
