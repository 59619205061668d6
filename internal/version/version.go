// Package version parses gem versions, computes the next version for a bump
// directive and rewrites the VERSION constant in a gem's version file.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/danielolaszy/gemcut/internal/errs"
)

var (
	// ErrMalformedVersion indicates a string that is not M.m.p[.pre].
	ErrMalformedVersion = errors.New("malformed version")

	// ErrInvalidBump indicates an unknown bump directive.
	ErrInvalidBump = errors.New("invalid bump directive")

	// ErrNothingToFinalize indicates a release bump on a version without a pre-release suffix.
	ErrNothingToFinalize = errors.New("version is already a final release, nothing to finalize")
)

// Gem versions put the pre-release label after a dot: 8.0.0.dev, 7.2.0.rc1, 8.0.0.beta.2.
var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:[.-]([0-9A-Za-z]+(?:\.[0-9A-Za-z]+)*))?$`)

var labelPattern = regexp.MustCompile(`^[0-9A-Za-z]+(?:\.[0-9A-Za-z]+)*$`)

// Version is a gem version with an optional pre-release label.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string
}

// Parse reads a version string. A leading "v" is accepted.
func Parse(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	if m == nil {
		return Version{}, errs.Validation(fmt.Errorf("%w: %q", ErrMalformedVersion, s))
	}

	nums := make([]int, 3)
	for i := range nums {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, errs.Validation(fmt.Errorf("%w: %q: %v", ErrMalformedVersion, s, err))
		}
		nums[i] = n
	}

	if m[4] != "" && !IsLabel(m[4]) {
		return Version{}, errs.Validation(fmt.Errorf("%w: %q: a numeric fourth segment is not a pre-release label", ErrMalformedVersion, s))
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], PreRelease: m[4]}, nil
}

// IsLabel reports whether s can be a pre-release label. RubyGems only treats
// a version as a pre-release when the label starts with a segment holding a
// letter, so 7.0.4.1 is a final release, not 7.0.4 with label "1".
func IsLabel(s string) bool {
	if !labelPattern.MatchString(s) {
		return false
	}
	first, _, _ := strings.Cut(s, ".")
	return strings.IndexFunc(first, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}) >= 0
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version the way gem version files write it.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "." + v.PreRelease
	}
	return s
}

// Tag is the git tag name for the version.
func (v Version) Tag() string {
	return "v" + v.String()
}

// IsPreRelease reports whether the version carries a pre-release label.
func (v Version) IsPreRelease() bool {
	return v.PreRelease != ""
}

func (v Version) semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), uint64(v.Patch), v.PreRelease, "")
}

// Compare returns -1, 0 or 1 using semantic version precedence.
// A pre-release sorts before the release with the same numbers.
func (v Version) Compare(o Version) int {
	return v.semver().Compare(o.semver())
}

// LessThan reports whether v sorts before o.
func (v Version) LessThan(o Version) bool {
	return v.Compare(o) < 0
}

// Equal reports whether v and o have the same precedence.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}
