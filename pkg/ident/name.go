// Package ident defines package identifiers, group names and version
// requirements, the vocabulary every other component speaks.
//
// A fully qualified package identifier is `repo::category/name#version`,
// for example `stable::sys-devel/gcc#8.1.1`. Identifiers starting with
// `@` denote groups.
package ident

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// regexPattern captures the identifier grammar. Repository, category
	// and version are optional so the same grammar serves loose patterns
	// typed on the command line and fully qualified identifiers.
	regexPattern = regexp.MustCompile(
		`^(?:(?P<repository>[a-z0-9][a-z0-9\-]*)::)?(?:(?P<category>[a-z0-9][a-z0-9\-]*)/)?(?P<name>[a-z0-9][a-z0-9\-._+]*)(?:#(?P<version>.+))?$`)

	regexGroupName = regexp.MustCompile(`^@[a-z0-9][a-z0-9\-]*$`)
)

// RootGroup is the name of the distinguished top-level group.
const RootGroup = "@root"

// IsGroupName reports whether s is a well-formed group name.
func IsGroupName(s string) bool {
	return regexGroupName.MatchString(s)
}

// ValidateGroupName returns an error unless s is a well-formed group name.
func ValidateGroupName(s string) error {
	if !IsGroupName(s) {
		return fmt.Errorf("invalid group name %q (must match @[a-z0-9][a-z0-9-]*)", s)
	}
	return nil
}

// FullName is the repository-qualified name of a package, without a version.
type FullName struct {
	Repository string `json:"repository"`
	Category   string `json:"category"`
	Name       string `json:"name"`
}

func (n FullName) String() string {
	return n.Repository + "::" + n.Category + "/" + n.Name
}

// ID identifies one concrete package: a full name plus an exact version.
//
// The version is kept in its canonical string form so IDs stay comparable
// and usable as map keys; parse it with ParseVersion where ordering matters.
type ID struct {
	Repository string `json:"repository"`
	Category   string `json:"category"`
	Name       string `json:"name"`
	Version    string `json:"version"`
}

func (id ID) String() string {
	return id.Repository + "::" + id.Category + "/" + id.Name + "#" + id.Version
}

// FullName returns the identifier without its version.
func (id ID) FullName() FullName {
	return FullName{Repository: id.Repository, Category: id.Category, Name: id.Name}
}

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool {
	return id == ID{}
}

// ParseID parses a fully qualified identifier `repo::category/name#version`.
// All four parts are mandatory and the version must be a concrete semver.
func ParseID(repr string) (ID, error) {
	m := regexPattern.FindStringSubmatch(repr)
	if m == nil {
		return ID{}, fmt.Errorf("invalid package identifier %q", repr)
	}

	repo, category, name, version := m[1], m[2], m[3], m[4]
	if repo == "" || category == "" || version == "" {
		return ID{}, fmt.Errorf("package identifier %q is not fully qualified (want repo::category/name#version)", repr)
	}

	v, err := ParseVersion(version)
	if err != nil {
		return ID{}, fmt.Errorf("package identifier %q: %w", repr, err)
	}

	return ID{Repository: repo, Category: category, Name: name, Version: v.String()}, nil
}

// MustParseID is ParseID for identifiers known to be valid.
func MustParseID(repr string) ID {
	id, err := ParseID(repr)
	if err != nil {
		panic(err)
	}
	return id
}

// Pattern selects packages by name and version requirement. Repository and
// category are optional; when empty they match anything.
//
// Patterns are what requirements carry and what users type:
// `gcc`, `sys-devel/gcc#>=8`, `stable::sys-devel/gcc#*`.
type Pattern struct {
	Repository string     `json:"repository,omitempty"`
	Category   string     `json:"category,omitempty"`
	Name       string     `json:"name"`
	Req        VersionReq `json:"req"`
}

// ParsePattern parses a package pattern. A missing version requirement
// means any version.
func ParsePattern(repr string) (Pattern, error) {
	m := regexPattern.FindStringSubmatch(repr)
	if m == nil {
		return Pattern{}, fmt.Errorf("invalid package pattern %q", repr)
	}

	req, err := ParseVersionReq(m[4])
	if err != nil {
		return Pattern{}, fmt.Errorf("package pattern %q: %w", repr, err)
	}

	return Pattern{
		Repository: m[1],
		Category:   m[2],
		Name:       m[3],
		Req:        req,
	}, nil
}

// MustParsePattern is ParsePattern for patterns known to be valid.
func MustParsePattern(repr string) Pattern {
	p, err := ParsePattern(repr)
	if err != nil {
		panic(err)
	}
	return p
}

// PatternFor returns the pattern that matches exactly the given package.
func PatternFor(id ID) Pattern {
	return Pattern{
		Repository: id.Repository,
		Category:   id.Category,
		Name:       id.Name,
		Req:        MustParseVersionReq("=" + id.Version),
	}
}

func (p Pattern) String() string {
	var b strings.Builder
	if p.Repository != "" {
		b.WriteString(p.Repository)
		b.WriteString("::")
	}
	if p.Category != "" {
		b.WriteString(p.Category)
		b.WriteString("/")
	}
	b.WriteString(p.Name)
	b.WriteString("#")
	b.WriteString(p.Req.String())
	return b.String()
}

// MatchName reports whether the pattern's name parts select the package,
// ignoring the version requirement.
func (p Pattern) MatchName(id ID) bool {
	if p.Repository != "" && p.Repository != id.Repository {
		return false
	}
	if p.Category != "" && p.Category != id.Category {
		return false
	}
	return p.Name == id.Name
}

// Match reports whether the package satisfies the whole pattern.
func (p Pattern) Match(id ID) bool {
	return p.MatchName(id) && p.Req.MatchString(id.Version)
}

// Equal reports whether two patterns are identical, version requirement
// included. Used for duplicate detection on requirements.
func (p Pattern) Equal(other Pattern) bool {
	return p.Repository == other.Repository &&
		p.Category == other.Category &&
		p.Name == other.Name &&
		p.Req.Equal(other.Req)
}
