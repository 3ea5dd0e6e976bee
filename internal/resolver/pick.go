package resolver

import (
	"sort"
	"time"
)

// Candidate is one release considered during a scan.
type Candidate struct {
	ReleaseID   uint
	CreatedAt   time.Time
	Eligibility Eligibility
}

// SortCandidates orders candidates newest-first; equal timestamps are broken
// by the higher numeric id (insertion order proxy). The scan order is what
// makes resolution deterministic when several releases qualify.
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].CreatedAt.Equal(cands[j].CreatedAt) {
			return cands[i].CreatedAt.After(cands[j].CreatedAt)
		}
		return cands[i].ReleaseID > cands[j].ReleaseID
	})
}

// Pick returns the id of the first eligible candidate in scan order, or false
// when none qualifies. Callers must pass candidates already restricted to the
// project, platform, and channel selector.
func Pick(cands []Candidate, v ClientVersion) (uint, bool) {
	SortCandidates(cands)
	for _, c := range cands {
		if c.Eligibility != nil && c.Eligibility.Eligible(v) {
			return c.ReleaseID, true
		}
	}
	return 0, false
}
