package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/gemcut/internal/announce"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/publish"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/danielolaszy/gemcut/pkg/models"
)

// fakeRepo is an in-memory hosting service for one repository.
type fakeRepo struct {
	defaultBranch string
	branches      map[string]string
	files         map[string]map[string]string
	pulls         []*models.PullRequest
	releases      map[string]*models.Release
	notes         string
	calls         []string

	GenerateReleaseNotesFunc func(tag, target, previousTag string) (string, error)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		defaultBranch: "main",
		branches:      map[string]string{"main": "sha-main", "7.4-stable": "sha-stable"},
		files: map[string]map[string]string{
			"main": {
				"CHANGELOG.md":           "# Changelog\n\n## 8.0.0 (2025-03-01)\n\n- Big release\n",
				"lib/alchemy/version.rb": "module Alchemy\n  VERSION = \"8.0.0\"\nend\n",
			},
			"7.4-stable": {
				"CHANGELOG.md":           "# Changelog\n\n## 7.4.2 (2025-03-14)\n\n- Fix picture cropping\n\n## 7.4.1 (2025-02-01)\n\n- Fix\n",
				"lib/alchemy/version.rb": "module Alchemy\n  VERSION = \"7.4.2\"\nend\n",
			},
		},
		releases: map[string]*models.Release{},
		notes:    "## What's Changed\n* Add picture cropping by @tvdeyen in #3001",
	}
}

func (f *fakeRepo) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRepo) DefaultBranch(context.Context, string) (string, error) {
	return f.defaultBranch, nil
}

func (f *fakeRepo) BranchSHA(_ context.Context, _, branch string) (string, error) {
	sha, ok := f.branches[branch]
	if !ok {
		return "", errs.Configuration(fmt.Errorf("branch %s not found", branch))
	}
	return sha, nil
}

func (f *fakeRepo) BranchExists(_ context.Context, _, branch string) (bool, error) {
	_, ok := f.branches[branch]
	return ok, nil
}

func (f *fakeRepo) CreateBranch(_ context.Context, _, branch, sha string) error {
	f.record("create-branch %s", branch)
	base := map[string]string{"sha-main": "main", "sha-stable": "7.4-stable"}[sha]
	copied := map[string]string{}
	for path, content := range f.files[base] {
		copied[path] = content
	}
	f.files[branch] = copied
	f.branches[branch] = sha
	return nil
}

func (f *fakeRepo) GetFile(_ context.Context, _, path, ref string) (string, string, error) {
	content, ok := f.files[ref][path]
	if !ok {
		return "", "", errs.Configuration(fmt.Errorf("%s not found on %s", path, ref))
	}
	return content, "blob", nil
}

func (f *fakeRepo) CommitFile(_ context.Context, _, branch, _ string, change models.FileChange, _ string) error {
	f.record("commit %s %s", branch, change.Path)
	if f.files[branch] == nil {
		f.files[branch] = map[string]string{}
	}
	f.files[branch][change.Path] = string(change.Content)
	return nil
}

func (f *fakeRepo) FindPullRequest(_ context.Context, _, head, state string) (*models.PullRequest, error) {
	for _, pr := range f.pulls {
		if pr.Head == head && (state == "all" || pr.State == state) {
			return pr, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) OpenPullRequest(_ context.Context, _ string, req models.NewPullRequest) (*models.PullRequest, error) {
	f.record("open-pr %s -> %s", req.Head, req.Base)
	pr := &models.PullRequest{Number: len(f.pulls) + 1, Title: req.Title, Head: req.Head, Base: req.Base, State: "open"}
	f.pulls = append(f.pulls, pr)
	return pr, nil
}

func (f *fakeRepo) AddLabels(_ context.Context, _ string, number int, labels ...string) error {
	f.record("label #%d %s", number, strings.Join(labels, ","))
	return nil
}

func (f *fakeRepo) GenerateReleaseNotes(_ context.Context, _, tag, target, previousTag string) (string, error) {
	f.record("notes %s %s", tag, target)
	if f.GenerateReleaseNotesFunc != nil {
		return f.GenerateReleaseNotesFunc(tag, target, previousTag)
	}
	return f.notes, nil
}

func (f *fakeRepo) GetReleaseByTag(_ context.Context, _, tag string) (*models.Release, error) {
	return f.releases[tag], nil
}

// MockPublisher is a mock implementation of the Publisher interface.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, v version.Version, artifactDir, commitSHA string) (publish.Result, error)
	calls       int
}

func (m *MockPublisher) Publish(ctx context.Context, v version.Version, artifactDir, commitSHA string) (publish.Result, error) {
	m.calls++
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, v, artifactDir, commitSHA)
	}
	return publish.Result{Version: v, GemPublished: true, ReleaseCreated: true}, nil
}

// MockAnnouncer is a mock implementation of the Announcer interface.
type MockAnnouncer struct {
	infos []models.ReleaseInfo
}

func (m *MockAnnouncer) Announce(_ context.Context, info models.ReleaseInfo, channels ...announce.Channel) announce.Report {
	m.infos = append(m.infos, info)
	report := announce.Report{Failed: map[string]error{}}
	for _, ch := range channels {
		report.Sent = append(report.Sent, ch.Name())
	}
	return report
}
