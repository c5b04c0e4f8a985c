package ident

import (
	"fmt"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// anyReq is the textual form of the requirement that matches every version.
const anyReq = "*"

// VersionReq is a predicate on semantic versions.
//
// The accepted grammar is the one github.com/Masterminds/semver defines:
// `*` matches anything, a bare full version is an exact match, a bare
// partial version (`8`, `8.1`) matches any version it prefixes, and comparator
// sets may be joined with spaces or commas (`>=7`, `>7 <9`, `>=1.2, <2`).
// Pre-release versions only match when the requirement names one.
type VersionReq struct {
	raw string
	c   *semver.Constraints
}

// AnyVersion returns the requirement matching every version.
func AnyVersion() VersionReq {
	r, _ := ParseVersionReq(anyReq) //nolint:errcheck
	return r
}

// ExactVersion returns the requirement matching exactly v.
func ExactVersion(v *semver.Version) VersionReq {
	r, _ := ParseVersionReq("=" + v.String()) //nolint:errcheck
	return r
}

// ParseVersionReq parses a version requirement. An empty string means any.
func ParseVersionReq(raw string) (VersionReq, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = anyReq
	}

	c, err := semver.NewConstraint(raw)
	if err != nil {
		return VersionReq{}, fmt.Errorf("invalid version requirement %q: %w", raw, err)
	}

	return VersionReq{raw: raw, c: c}, nil
}

// MustParseVersionReq is ParseVersionReq for requirements known to be valid.
func MustParseVersionReq(raw string) VersionReq {
	r, err := ParseVersionReq(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// Match reports whether v satisfies the requirement.
func (r VersionReq) Match(v *semver.Version) bool {
	if r.c == nil || v == nil {
		return false
	}
	return r.c.Check(v)
}

// MatchString reports whether the version string satisfies the requirement.
func (r VersionReq) MatchString(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return r.Match(v)
}

// IsAny reports whether the requirement matches every version.
func (r VersionReq) IsAny() bool {
	return r.raw == anyReq
}

func (r VersionReq) String() string {
	return r.raw
}

// Equal reports whether two requirements have the same textual form.
func (r VersionReq) Equal(other VersionReq) bool {
	return r.raw == other.raw
}

// MarshalText implements encoding.TextMarshaler.
func (r VersionReq) MarshalText() ([]byte, error) {
	return []byte(r.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *VersionReq) UnmarshalText(data []byte) error {
	parsed, err := ParseVersionReq(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseVersion parses a concrete semantic version.
func ParseVersion(raw string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v, nil
}

// CompareVersions compares two version strings, returning -1, 0 or 1.
// Unparseable versions sort before everything else.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}
