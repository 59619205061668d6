package version

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/gemcut/internal/errs"
)

// BumpDirective is the maintainer's instruction for how to advance a version.
type BumpDirective string

const (
	// BumpRelease strips the pre-release label and keeps the numbers.
	BumpRelease BumpDirective = "release"
	// BumpPatch increments the patch number.
	BumpPatch BumpDirective = "patch"
	// BumpMinor increments the minor number and resets patch.
	BumpMinor BumpDirective = "minor"
	// BumpMajor increments the major number and resets minor and patch.
	BumpMajor BumpDirective = "major"
)

// Directives lists every accepted bump directive in display order.
var Directives = []BumpDirective{BumpRelease, BumpPatch, BumpMinor, BumpMajor}

// ParseBump validates a bump directive given on the command line.
func ParseBump(s string) (BumpDirective, error) {
	d := BumpDirective(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Directives {
		if d == known {
			return d, nil
		}
	}
	return "", errs.Validation(fmt.Errorf("%w: %q (expected one of %v)", ErrInvalidBump, s, Directives))
}

// FinalReleasePolicy decides what a release bump does on a version that is
// already final.
type FinalReleasePolicy string

const (
	// FinalReleaseReject fails with ErrNothingToFinalize.
	FinalReleaseReject FinalReleasePolicy = "reject"
	// FinalReleaseNoop returns the version unchanged.
	FinalReleaseNoop FinalReleasePolicy = "noop"
)

// ParseFinalReleasePolicy maps configuration text to a policy; empty means reject.
func ParseFinalReleasePolicy(s string) (FinalReleasePolicy, error) {
	switch p := FinalReleasePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", FinalReleaseReject:
		return FinalReleaseReject, nil
	case FinalReleaseNoop:
		return FinalReleaseNoop, nil
	default:
		return "", errs.Configuration(fmt.Errorf("unknown final release policy %q (expected %q or %q)", s, FinalReleaseReject, FinalReleaseNoop))
	}
}

// ResolveOptions tunes Resolve.
type ResolveOptions struct {
	// FinalRelease applies to BumpRelease on a final version.
	FinalRelease FinalReleasePolicy
	// PreRelease, when set, labels the result of a patch, minor or major bump.
	PreRelease string
}

// DefaultDevMarker is the pre-release label of the next development version.
const DefaultDevMarker = "dev"

// Resolve computes the version that follows current for the given directive.
func Resolve(current Version, bump BumpDirective, opts ResolveOptions) (Version, error) {
	next := current

	switch bump {
	case BumpRelease:
		if !current.IsPreRelease() {
			if opts.FinalRelease == FinalReleaseNoop {
				return current, nil
			}
			return Version{}, errs.Validation(fmt.Errorf("%w: %s", ErrNothingToFinalize, current))
		}
		next.PreRelease = ""
		return next, nil
	case BumpPatch:
		next.Patch++
	case BumpMinor:
		next.Minor++
		next.Patch = 0
	case BumpMajor:
		next.Major++
		next.Minor = 0
		next.Patch = 0
	default:
		return Version{}, errs.Validation(fmt.Errorf("%w: %q", ErrInvalidBump, bump))
	}

	if opts.PreRelease != "" && !IsLabel(opts.PreRelease) {
		return Version{}, errs.Validation(fmt.Errorf("%w: pre-release label %q", ErrMalformedVersion, opts.PreRelease))
	}
	next.PreRelease = opts.PreRelease
	return next, nil
}

// NextDevVersion is the version the default branch moves to after a release:
// next minor, patch zero, labelled with marker.
func NextDevVersion(current Version, marker string) Version {
	if marker == "" {
		marker = DefaultDevMarker
	}
	return Version{
		Major:      current.Major,
		Minor:      current.Minor + 1,
		Patch:      0,
		PreRelease: marker,
	}
}
