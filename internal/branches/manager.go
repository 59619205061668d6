// Package branches creates release branches and the pull requests that carry
// a release, a changelog sync or a version bump back into a target branch.
package branches

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/gemcut/internal/changelog"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/danielolaszy/gemcut/pkg/models"
)

var (
	// ErrBranchExists indicates the branch for this version was already created.
	ErrBranchExists = errors.New("branch already exists")

	// ErrPullRequestExists indicates an open pull request for the branch already exists.
	ErrPullRequestExists = errors.New("pull request already exists")
)

// DefaultLabel keeps automation pull requests out of generated release notes.
const DefaultLabel = "skip-changelog"

const (
	releasePrefix = "release/v"
	syncPrefix    = "changelog-sync/v"
	bumpPrefix    = "bump-version/v"
)

// Host is the subset of the GitHub API the manager needs.
type Host interface {
	BranchSHA(ctx context.Context, repository, branch string) (string, error)
	BranchExists(ctx context.Context, repository, branch string) (bool, error)
	CreateBranch(ctx context.Context, repository, branch, sha string) error
	GetFile(ctx context.Context, repository, path, ref string) (string, string, error)
	CommitFile(ctx context.Context, repository, branch, message string, change models.FileChange, blobSHA string) error
	FindPullRequest(ctx context.Context, repository, head, state string) (*models.PullRequest, error)
	OpenPullRequest(ctx context.Context, repository string, req models.NewPullRequest) (*models.PullRequest, error)
	AddLabels(ctx context.Context, repository string, number int, labels ...string) error
}

// Manager creates release branches and labelled pull requests in one repository.
type Manager struct {
	host       Host
	repository string
	label      string
}

// NewManager returns a Manager for repository ("owner/repo"). An empty label
// falls back to DefaultLabel.
func NewManager(host Host, repository, label string) *Manager {
	if label == "" {
		label = DefaultLabel
	}
	return &Manager{host: host, repository: repository, label: label}
}

// ReleaseBranchName is the branch a version is prepared on.
func ReleaseBranchName(v version.Version) string {
	return releasePrefix + v.String()
}

// VersionFromReleaseBranch parses the version out of a release branch name.
// It reports false for any other branch.
func VersionFromReleaseBranch(branch string) (version.Version, bool) {
	if !strings.HasPrefix(branch, releasePrefix) {
		return version.Version{}, false
	}
	v, err := version.Parse(strings.TrimPrefix(branch, releasePrefix))
	if err != nil {
		return version.Version{}, false
	}
	return v, true
}

// SyncBranchName is the branch carrying a stable release's changelog entry to the default branch.
func SyncBranchName(v version.Version) string {
	return syncPrefix + v.String()
}

// BumpBranchName is the branch moving the default branch to the next development version.
func BumpBranchName(v version.Version) string {
	return bumpPrefix + v.String()
}

// Label returns the exclusion label applied to every pull request.
func (m *Manager) Label() string {
	return m.label
}

// CheckReleaseBranchFree fails with ErrBranchExists when the release branch
// for v exists. Stages call it before any side effect.
func (m *Manager) CheckReleaseBranchFree(ctx context.Context, v version.Version) error {
	name := ReleaseBranchName(v)
	exists, err := m.host.BranchExists(ctx, m.repository, name)
	if err != nil {
		return err
	}
	if exists {
		return errs.StateConflict(fmt.Errorf("%w: %s (delete it or release a different version)", ErrBranchExists, name))
	}
	return nil
}

// CreateReleaseBranch cuts release/v{v} from baseBranch. An existing branch
// is never overwritten.
func (m *Manager) CreateReleaseBranch(ctx context.Context, baseBranch string, v version.Version) (models.ReleaseBranch, error) {
	if err := m.CheckReleaseBranchFree(ctx, v); err != nil {
		return models.ReleaseBranch{}, err
	}

	sha, err := m.host.BranchSHA(ctx, m.repository, baseBranch)
	if err != nil {
		return models.ReleaseBranch{}, err
	}

	name := ReleaseBranchName(v)
	if err := m.host.CreateBranch(ctx, m.repository, name, sha); err != nil {
		return models.ReleaseBranch{}, err
	}

	logging.Info("release branch created", "branch", name, "base", baseBranch, "sha", sha)
	return models.ReleaseBranch{Name: name, Base: baseBranch, Version: v.String(), SHA: sha}, nil
}

// CommitFiles commits each change onto branch, one commit per file.
func (m *Manager) CommitFiles(ctx context.Context, branch, message string, changes ...models.FileChange) error {
	for _, change := range changes {
		_, blobSHA, err := m.host.GetFile(ctx, m.repository, change.Path, branch)
		if err != nil && errs.KindOf(err) != errs.KindConfiguration {
			return err
		}
		if err := m.host.CommitFile(ctx, m.repository, branch, message, change, blobSHA); err != nil {
			return err
		}
	}
	return nil
}

// OpenPullRequest opens a pull request from branch into baseBranch and
// applies the exclusion label.
func (m *Manager) OpenPullRequest(ctx context.Context, branch, baseBranch, title, body string) (models.PullRequest, error) {
	existing, err := m.host.FindPullRequest(ctx, m.repository, branch, "open")
	if err != nil {
		return models.PullRequest{}, err
	}
	if existing != nil {
		return models.PullRequest{}, errs.StateConflict(fmt.Errorf("%w: #%d from %s", ErrPullRequestExists, existing.Number, branch))
	}

	pr, err := m.host.OpenPullRequest(ctx, m.repository, models.NewPullRequest{
		Title: title,
		Head:  branch,
		Base:  baseBranch,
		Body:  body,
	})
	if err != nil {
		return models.PullRequest{}, err
	}

	if err := m.host.AddLabels(ctx, m.repository, pr.Number, m.label); err != nil {
		return *pr, fmt.Errorf("labelling pull request #%d: %w", pr.Number, err)
	}
	pr.Labels = append(pr.Labels, m.label)
	return *pr, nil
}

// SyncChangelogToMain carries a stable release's changelog entry to the
// default branch in its own pull request. It is a no-op when a sync pull
// request for the version exists in any state or the default branch already
// lists the version; the bool reports whether a new pull request was opened.
func (m *Manager) SyncChangelogToMain(ctx context.Context, entry changelog.Entry, defaultBranch, changelogPath string) (models.PullRequest, bool, error) {
	branch := SyncBranchName(entry.Version)

	existing, err := m.host.FindPullRequest(ctx, m.repository, branch, "all")
	if err != nil {
		return models.PullRequest{}, false, err
	}
	if existing != nil {
		logging.Info("changelog sync already proposed", "version", entry.Version, "pull_request", existing.Number)
		return *existing, false, nil
	}

	content, _, err := m.host.GetFile(ctx, m.repository, changelogPath, defaultBranch)
	if err != nil {
		return models.PullRequest{}, false, fmt.Errorf("reading %s on %s: %w", changelogPath, defaultBranch, err)
	}

	updated, changed := changelog.Insert(content, entry)
	if !changed {
		logging.Info("default branch changelog already lists version", "version", entry.Version, "branch", defaultBranch)
		return models.PullRequest{}, false, nil
	}

	title := fmt.Sprintf("Add changelog for v%s", entry.Version)
	body := fmt.Sprintf("Copies the changelog entry of v%s from its stable branch so %s lists every release.", entry.Version, defaultBranch)
	pr, err := m.proposeChange(ctx, branch, defaultBranch, title, body, models.FileChange{Path: changelogPath, Content: []byte(updated)})
	if err != nil {
		return models.PullRequest{}, false, err
	}
	return pr, true, nil
}

// ProposeVersionBump opens a pull request that moves the version file on
// defaultBranch to next. Like the changelog sync it is safe to re-run.
func (m *Manager) ProposeVersionBump(ctx context.Context, defaultBranch, versionFilePath, constant string, next version.Version) (models.PullRequest, bool, error) {
	branch := BumpBranchName(next)

	existing, err := m.host.FindPullRequest(ctx, m.repository, branch, "all")
	if err != nil {
		return models.PullRequest{}, false, err
	}
	if existing != nil {
		logging.Info("version bump already proposed", "version", next, "pull_request", existing.Number)
		return *existing, false, nil
	}

	content, _, err := m.host.GetFile(ctx, m.repository, versionFilePath, defaultBranch)
	if err != nil {
		return models.PullRequest{}, false, fmt.Errorf("reading %s on %s: %w", versionFilePath, defaultBranch, err)
	}

	current, err := version.Find(content, constant)
	if err != nil {
		return models.PullRequest{}, false, fmt.Errorf("%s on %s: %w", versionFilePath, defaultBranch, err)
	}
	if !current.LessThan(next) {
		logging.Info("default branch is already past the next version", "current", current, "next", next)
		return models.PullRequest{}, false, nil
	}

	updated, err := version.Rewrite(content, constant, next)
	if err != nil {
		return models.PullRequest{}, false, err
	}

	title := fmt.Sprintf("Bump version to v%s", next)
	body := fmt.Sprintf("Starts development of the next release: %s -> %s.", current, next)
	pr, err := m.proposeChange(ctx, branch, defaultBranch, title, body, models.FileChange{Path: versionFilePath, Content: []byte(updated)})
	if err != nil {
		return models.PullRequest{}, false, err
	}
	return pr, true, nil
}

// proposeChange creates branch off base (reusing it when a previous run got
// that far), commits the change and opens a labelled pull request.
func (m *Manager) proposeChange(ctx context.Context, branch, base, title, body string, change models.FileChange) (models.PullRequest, error) {
	exists, err := m.host.BranchExists(ctx, m.repository, branch)
	if err != nil {
		return models.PullRequest{}, err
	}
	if !exists {
		sha, err := m.host.BranchSHA(ctx, m.repository, base)
		if err != nil {
			return models.PullRequest{}, err
		}
		if err := m.host.CreateBranch(ctx, m.repository, branch, sha); err != nil {
			return models.PullRequest{}, err
		}
	}

	if err := m.CommitFiles(ctx, branch, title, change); err != nil {
		return models.PullRequest{}, err
	}
	return m.OpenPullRequest(ctx, branch, base, title, body)
}
