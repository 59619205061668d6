// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// ReleaseBranch is the branch a release is prepared on.
type ReleaseBranch struct {
	// Name is the branch name, e.g. "release/v8.0.0"
	Name string

	// Base is the branch the release branch was cut from and will merge into
	Base string

	// Version is the version being released, without the "v" prefix
	Version string

	// SHA is the commit the branch was created at
	SHA string
}

// PullRequest is the subset of a GitHub pull request the release stages read.
type PullRequest struct {
	// Number is the pull request number (e.g., 42)
	Number int

	// Title is the pull request title
	Title string

	// URL is the pull request's web URL
	URL string

	// Head is the source branch
	Head string

	// Base is the target branch
	Base string

	// State is "open" or "closed"
	State string

	// Merged is true once the pull request has been merged
	Merged bool

	// Labels is a slice of label names attached to the pull request
	Labels []string
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// Release is a GitHub release object.
type Release struct {
	ID      int64
	TagName string
	Name    string
	URL     string

	// CreatedAt is the timestamp when the release was created
	CreatedAt time.Time
}

// ReleaseRequest contains the information needed to create a release.
type ReleaseRequest struct {
	TagName string

	// TargetCommitish is the branch or commit SHA the tag is created at
	TargetCommitish string

	Name string

	// GenerateNotes asks GitHub to write the release body from merged pull requests
	GenerateNotes bool

	Prerelease bool
}

// FileChange is new content for a repository file, committed through the API.
type FileChange struct {
	// Path is relative to the repository root, using forward slashes
	Path string

	Content []byte
}

// ReleaseInfo describes a published release for announcements.
type ReleaseInfo struct {
	// Name is the gem name (e.g., "alchemy_cms")
	Name string

	// Version is the published version
	Version string

	// Repository is "owner/repo"
	Repository string

	// URL points at the release page
	URL string
}
