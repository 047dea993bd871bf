package tally

// Level identifies the granularity of an independently reconciled scope.
type Level string

const (
	LevelNational    Level = "NATIONAL"
	LevelRegion      Level = "REGION"
	LevelSubdivision Level = "SUBDIVISION"
)

// ScopeKey uniquely identifies one reconciled stream: one scope at one
// level for one contest category.
type ScopeKey struct {
	Level    Level  `json:"level"`
	ScopeID  string `json:"scope_id"`
	Category string `json:"category"`
}

func (k ScopeKey) String() string {
	return string(k.Level) + "|" + k.ScopeID + "|" + k.Category
}

// Entry is one contestant's published state within a scope for one cycle.
// Identity is never empty: it is the upstream id when present, otherwise
// the display name.
type Entry struct {
	Level       Level   `json:"level"`
	ScopeID     string  `json:"scope_id"`
	RegionLabel string  `json:"region_label"`
	Category    string  `json:"category"`
	Rank        int     `json:"rank"`
	Identity    string  `json:"identity"`
	DisplayName string  `json:"display_name"`
	VoteShare   float64 `json:"vote_share"`
	Progress    float64 `json:"progress"`
	PhotoRef    string  `json:"photo"`
	CycleTS     string  `json:"cycle_ts"`
}

// Key returns the scope this entry belongs to.
func (e Entry) Key() ScopeKey {
	return ScopeKey{Level: e.Level, ScopeID: e.ScopeID, Category: e.Category}
}
