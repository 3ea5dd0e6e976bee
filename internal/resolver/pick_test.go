package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPickPrefersNewerRelease(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	cands := []Candidate{
		{ReleaseID: 1, CreatedAt: t1, Eligibility: RangeEligibility{Available: true}},
		{ReleaseID: 2, CreatedAt: t2, Eligibility: RangeEligibility{Available: true}},
	}
	id, ok := Pick(cands, mustBuild(t, "7"))
	require.True(t, ok)
	require.Equal(t, uint(2), id)
}

func TestPickTieBreaksOnHigherID(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cands := []Candidate{
		{ReleaseID: 3, CreatedAt: ts, Eligibility: RangeEligibility{Available: true}},
		{ReleaseID: 9, CreatedAt: ts, Eligibility: RangeEligibility{Available: true}},
		{ReleaseID: 5, CreatedAt: ts, Eligibility: RangeEligibility{Available: true}},
	}
	id, ok := Pick(cands, mustBuild(t, "1"))
	require.True(t, ok)
	require.Equal(t, uint(9), id)
}

func TestPickSkipsIneligible(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	// Newest release only serves builds >= 15; older one serves 5..14.
	cands := []Candidate{
		{ReleaseID: 1, CreatedAt: t1, Eligibility: RangeEligibility{Available: true, Min: u64(5), Max: u64(15)}},
		{ReleaseID: 2, CreatedAt: t2, Eligibility: RangeEligibility{Available: true, Min: u64(15)}},
	}

	id, ok := Pick(cands, mustBuild(t, "10"))
	require.True(t, ok)
	require.Equal(t, uint(1), id)

	id, ok = Pick(cands, mustBuild(t, "20"))
	require.True(t, ok)
	require.Equal(t, uint(2), id)

	_, ok = Pick(cands, mustBuild(t, "3"))
	require.False(t, ok)
}

func TestPickDeterministic(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cands := []Candidate{
		{ReleaseID: 1, CreatedAt: t1, Eligibility: RangeEligibility{Available: true}},
		{ReleaseID: 2, CreatedAt: t1.Add(time.Minute), Eligibility: RangeEligibility{Available: true}},
		{ReleaseID: 3, CreatedAt: t1.Add(2 * time.Minute), Eligibility: RangeEligibility{Available: false}},
	}
	first, ok1 := Pick(cands, mustBuild(t, "1"))
	second, ok2 := Pick(cands, mustBuild(t, "1"))
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, first, second)
	require.Equal(t, uint(2), first)
}

func TestPickEmptyCatalog(t *testing.T) {
	_, ok := Pick(nil, mustBuild(t, "1"))
	require.False(t, ok)
}
