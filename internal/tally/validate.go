package tally

import "fmt"

// shareSumTolerance absorbs truncation noise before flagging a scope whose
// shares sum past 100.
const shareSumTolerance = 0.01

// Validate runs post-stabilization sanity checks on one scope's rows.
// Findings are warnings only, never publication blockers: a share sum over
// 100 signals a double count or extraction bug, a duplicate identity
// signals a dedup failure. Only the first duplicate is reported.
func Validate(key ScopeKey, entries []Entry) []string {
	var warnings []string

	var total float64
	for _, e := range entries {
		total += e.VoteShare
	}
	if total > 100+shareSumTolerance {
		warnings = append(warnings, fmt.Sprintf("scope %s: share_sum=%.2f > 100", key, total))
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Identity] {
			warnings = append(warnings, fmt.Sprintf("scope %s: duplicate identity=%s", key, e.Identity))
			break
		}
		seen[e.Identity] = true
	}
	return warnings
}
