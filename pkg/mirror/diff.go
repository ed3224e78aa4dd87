package mirror

import "sort"

// Result classifies every primary key relative to the two snapshots. The
// three sets are disjoint: a key appears in at most one of them. Keys equal
// on both sides appear in none.
type Result struct {
	ToInsert []Key // present in source, absent from target
	ToUpdate []Key // present in both, business tuples differ (or resurrecting)
	ToDelete []Key // present in target only, not yet soft-deleted
}

// Diff compares the two snapshots. The outcome depends only on their
// contents; result slices are sorted by key encoding so logs and tests are
// reproducible.
//
// Soft-delete lifecycle decisions live here:
//   - a target row already marked deleted whose key is still absent from the
//     source is left alone, so a second run reports zero deletes;
//   - a target row marked deleted whose key reappears in the source is
//     resurrected as an update, even when the stale business values happen to
//     match, so the tracking state always leaves 'deleted'.
func Diff(source, target Snapshot) Result {
	var result Result

	for key, srcRow := range source {
		tgtRow, ok := target[key]
		if !ok {
			result.ToInsert = append(result.ToInsert, key)
			continue
		}
		if tgtRow.Deleted {
			result.ToUpdate = append(result.ToUpdate, key)
			continue
		}
		if !rowValuesEqual(srcRow.Values, tgtRow.Values) {
			result.ToUpdate = append(result.ToUpdate, key)
		}
	}

	for key, tgtRow := range target {
		if _, ok := source[key]; !ok && !tgtRow.Deleted {
			result.ToDelete = append(result.ToDelete, key)
		}
	}

	sortKeys(result.ToInsert)
	sortKeys(result.ToUpdate)
	sortKeys(result.ToDelete)

	return result
}

// rowValuesEqual compares business tuples element-wise with NULL-aware
// equality. Tuples of different lengths never compare equal; the
// orchestrator guarantees both sides were loaded with the same column list.
func rowValuesEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
