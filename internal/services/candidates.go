package services

import (
	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/resolver"
	"github.com/updrift/engine/pkg/logger"
	"go.uber.org/zap"
)

// EligibilityFor extracts the release's eligibility window for one platform
// under the active policy. Constraint expressions are validated at write
// time; a stored expression that no longer parses (legacy data) yields a nil
// return and the release is skipped from the scan.
func EligibilityFor(policy resolver.Policy, platform resolver.Platform, rel *models.Release) resolver.Eligibility {
	switch policy {
	case resolver.PolicyRange:
		if platform == resolver.PlatformIOS {
			return resolver.RangeEligibility{Available: rel.IOSAvailable, Min: rel.IOSMin, Max: rel.IOSMax}
		}
		return resolver.RangeEligibility{Available: rel.AndroidAvailable, Min: rel.AndroidMin, Max: rel.AndroidMax}
	case resolver.PolicyConstraint:
		expr := rel.AndroidRequirements
		if platform == resolver.PlatformIOS {
			expr = rel.IOSRequirements
		}
		if expr == nil {
			return nil
		}
		c, err := resolver.ParseConstraint(*expr)
		if err != nil {
			logger.L().Warn("release carries unparseable constraint, skipping",
				zap.Uint("release_id", rel.ID), zap.String("expr", *expr), zap.Error(err))
			return nil
		}
		return resolver.ConstraintEligibility{Constraint: c}
	}
	return nil
}

// BuildCandidates maps catalog rows to resolver candidates for one platform.
func BuildCandidates(policy resolver.Policy, platform resolver.Platform, releases []models.Release) []resolver.Candidate {
	cands := make([]resolver.Candidate, 0, len(releases))
	for i := range releases {
		elig := EligibilityFor(policy, platform, &releases[i])
		if elig == nil {
			continue
		}
		cands = append(cands, resolver.Candidate{
			ReleaseID:   releases[i].ID,
			CreatedAt:   releases[i].CreatedAt,
			Eligibility: elig,
		})
	}
	return cands
}
