// Package resolver implements the update resolution core: given a catalog of
// release candidates and a client's reported version, pick the single release
// that serves the client. All functions are pure and safe for concurrent use;
// persistence and caching live in the services layer.
package resolver

import (
	"strconv"

	"github.com/Masterminds/semver/v3"
	appErr "github.com/updrift/engine/pkg/errors"
)

// Platform identifies a client operating system.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform validates a raw platform string.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformIOS, PlatformAndroid:
		return Platform(s), nil
	}
	return "", appErr.New(appErr.CodeInvalid, "unknown platform").WithMeta("platform", s)
}

// Policy selects how client versions are compared against eligibility windows.
type Policy string

const (
	// PolicyRange matches integer build numbers against inclusive-min /
	// exclusive-max bounds.
	PolicyRange Policy = "range"
	// PolicyConstraint matches semantic versions against range expressions
	// such as "^1.2.0".
	PolicyConstraint Policy = "constraint"
)

// ParsePolicy validates a raw policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyRange, PolicyConstraint:
		return Policy(s), nil
	}
	return "", appErr.New(appErr.CodeInvalid, "unknown eligibility policy").WithMeta("policy", s)
}

// ClientVersion is a parsed client version under one policy. Exactly one of
// Build and Semver carries meaning, decided by the policy it was parsed with.
type ClientVersion struct {
	Raw    string
	Build  uint64
	Semver *semver.Version
}

// ParseClientVersion parses raw client input under the active policy.
// Malformed input is an invalid-input error, distinct from "no match".
func ParseClientVersion(p Policy, raw string) (ClientVersion, error) {
	switch p {
	case PolicyRange:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return ClientVersion{}, appErr.Wrap(err, appErr.CodeInvalid, "build number must be a non-negative integer")
		}
		return ClientVersion{Raw: raw, Build: n}, nil
	case PolicyConstraint:
		v, err := semver.NewVersion(raw)
		if err != nil {
			return ClientVersion{}, appErr.Wrap(err, appErr.CodeInvalid, "client version is not a valid semantic version")
		}
		return ClientVersion{Raw: raw, Semver: v}, nil
	}
	return ClientVersion{}, appErr.New(appErr.CodeInvalid, "unknown eligibility policy")
}

// Eligibility decides whether a release serves a given client version on one
// platform. Implementations are pure.
type Eligibility interface {
	Eligible(v ClientVersion) bool
}

// RangeEligibility gates by integer build number. Min is inclusive, Max is
// exclusive, nil means unbounded on that side. Min == Max is a degenerate
// empty window that matches nothing.
type RangeEligibility struct {
	Available bool
	Min       *uint64
	Max       *uint64
}

func (e RangeEligibility) Eligible(v ClientVersion) bool {
	if !e.Available {
		return false
	}
	if e.Min != nil && v.Build < *e.Min {
		return false
	}
	if e.Max != nil && v.Build >= *e.Max {
		return false
	}
	return true
}

// ConstraintEligibility gates by a semantic-version range expression. A nil
// constraint means the platform is not served by this release.
type ConstraintEligibility struct {
	Constraint *semver.Constraints
}

func (e ConstraintEligibility) Eligible(v ClientVersion) bool {
	if e.Constraint == nil || v.Semver == nil {
		return false
	}
	return e.Constraint.Check(v.Semver)
}

// ParseConstraint compiles a stored range expression. Called at write time so
// that query-time evaluation never sees malformed data.
func ParseConstraint(expr string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid semver constraint")
	}
	return c, nil
}
