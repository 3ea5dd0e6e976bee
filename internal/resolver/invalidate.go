package resolver

// CachedRow is the slice of a resolution cache row the invalidation planner
// needs: the stored client version string and the release it currently
// points at (nil = confirmed no-match).
type CachedRow struct {
	RowID      uint
	AppVersion string
	ReleaseID  *uint
}

// RowUpdate is one planned cache mutation. Either the row is rewritten in
// place to a new clean answer, or it is flagged dirty for the batch sweep.
type RowUpdate struct {
	RowID     uint
	ReleaseID *uint
	MarkDirty bool
}

// PlanCreateInvalidation computes the precise cache effect of publishing a
// new release. The new release has the newest creation timestamp, so for any
// cached client version it is eligible for, it wins the scan outright and the
// row can be rewritten clean in place; rows it is not eligible for keep their
// previous answer. Rows whose stored version no longer parses under the
// active policy are flagged dirty instead so the sweep can retry or surface
// them.
//
// This avoids dirtying a whole project on every publish. It is only sound on
// creation: an edit or delete can demote the current winner, which needs the
// coarse path.
func PlanCreateInvalidation(policy Policy, newRel Candidate, rows []CachedRow) []RowUpdate {
	var updates []RowUpdate
	for _, row := range rows {
		v, err := ParseClientVersion(policy, row.AppVersion)
		if err != nil {
			updates = append(updates, RowUpdate{RowID: row.RowID, MarkDirty: true})
			continue
		}
		if newRel.Eligibility == nil || !newRel.Eligibility.Eligible(v) {
			continue
		}
		if row.ReleaseID != nil && *row.ReleaseID == newRel.ReleaseID {
			continue
		}
		id := newRel.ReleaseID
		updates = append(updates, RowUpdate{RowID: row.RowID, ReleaseID: &id})
	}
	return updates
}
