package stage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/danielolaszy/gemcut/internal/branches"
	"github.com/danielolaszy/gemcut/internal/changelog"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/danielolaszy/gemcut/pkg/models"
	"github.com/spf13/afero"
)

// ErrLineMismatch indicates a bump would leave the release line of a stable branch.
var ErrLineMismatch = errors.New("version outside the branch's release line")

// PrepareHost is what the prepare stage needs from the hosting service.
type PrepareHost interface {
	branches.Host
	changelog.NotesSource
	DefaultBranch(ctx context.Context, repository string) (string, error)
}

// PrepareInput is a prepare request.
type PrepareInput struct {
	Bump       version.BumpDirective
	PreRelease string
	// BaseBranch overrides the branch taken from the event.
	BaseBranch  string
	PreviousTag string
	Event       Event
}

// PrepareResult describes the release pull request that was opened.
type PrepareResult struct {
	Current     version.Version
	Next        version.Version
	Branch      models.ReleaseBranch
	PullRequest models.PullRequest
	Entry       changelog.Entry
}

// Prepare computes the next version from the workspace's version file, writes
// the new version and changelog entry, and opens a release pull request
// against the base branch. Every precondition is checked before the first
// remote change.
func Prepare(ctx context.Context, host PrepareHost, ws afero.Fs, s Settings, in PrepareInput) (PrepareResult, error) {
	var result PrepareResult
	log := s.logger("prepare")

	defaultBranch, err := s.defaultBranch(ctx, host)
	if err != nil {
		return result, err
	}
	base := in.BaseBranch
	if base == "" {
		base = in.Event.BaseBranch
	}
	if base == "" {
		base = defaultBranch
	}
	kind, err := ResolveBranchKind(base, defaultBranch)
	if err != nil {
		return result, err
	}

	current, err := version.ReadFile(ws, s.VersionFilePath, s.VersionConstant)
	if err != nil {
		return result, err
	}
	next, err := version.Resolve(current, in.Bump, version.ResolveOptions{
		FinalRelease: s.FinalReleasePolicy,
		PreRelease:   in.PreRelease,
	})
	if err != nil {
		return result, err
	}
	result.Current, result.Next = current, next

	switch k := kind.(type) {
	case DefaultBranch:
	case StableBranch:
		if next.Major != k.Major || next.Minor != k.Minor {
			return result, errs.Validation(fmt.Errorf("%w: %s is not on the %s line of %s (use a patch bump)", ErrLineMismatch, next, k.Line(), k.Name))
		}
	}

	if next.Equal(current) {
		log.Info("version unchanged, nothing to prepare", "version", current)
		return result, nil
	}

	if _, err := ws.Stat(s.ChangelogPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, errs.Configuration(fmt.Errorf("%w: %s", changelog.ErrChangelogMissing, s.ChangelogPath))
		}
		return result, err
	}

	manager := branches.NewManager(host, s.Repository, s.Label)
	if err := manager.CheckReleaseBranchFree(ctx, next); err != nil {
		return result, err
	}

	log.Info("preparing release", "current", current, "next", next, "bump", in.Bump, "base", base)

	notes, err := host.GenerateReleaseNotes(ctx, s.Repository, next.Tag(), base, in.PreviousTag)
	if err != nil {
		return result, fmt.Errorf("generating release notes for %s: %w", next.Tag(), err)
	}
	entry := changelog.BuildEntry(next, notes, s.now())
	result.Entry = entry

	versionContent, err := version.WriteFile(ws, s.VersionFilePath, s.VersionConstant, next)
	if err != nil {
		return result, err
	}
	if _, err := changelog.Prepend(ws, s.ChangelogPath, entry); err != nil {
		return result, err
	}
	changelogContent, err := afero.ReadFile(ws, s.ChangelogPath)
	if err != nil {
		return result, fmt.Errorf("reading changelog %s: %w", s.ChangelogPath, err)
	}

	branch, err := manager.CreateReleaseBranch(ctx, base, next)
	if err != nil {
		return result, err
	}
	result.Branch = branch

	err = manager.CommitFiles(ctx, branch.Name, fmt.Sprintf("Bump version to %s", next.Tag()),
		models.FileChange{Path: repoPath(s.VersionFilePath), Content: versionContent},
		models.FileChange{Path: repoPath(s.ChangelogPath), Content: changelogContent},
	)
	if err != nil {
		return result, fmt.Errorf("committing release files to %s: %w", branch.Name, err)
	}

	pr, err := manager.OpenPullRequest(ctx, branch.Name, base, fmt.Sprintf("Release %s", next.Tag()), entry.Markdown())
	if err != nil {
		return result, err
	}
	result.PullRequest = pr

	log.Info("release pull request opened", "number", pr.Number, "url", pr.URL, "branch", branch.Name)
	return result, nil
}
