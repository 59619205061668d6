package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielolaszy/gemcut/internal/announce"
	"github.com/danielolaszy/gemcut/internal/branches"
	"github.com/danielolaszy/gemcut/internal/changelog"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/danielolaszy/gemcut/pkg/models"
)

// PostReleaseHost is what the post-release stage needs from the hosting service.
type PostReleaseHost interface {
	branches.Host
	DefaultBranch(ctx context.Context, repository string) (string, error)
	GetReleaseByTag(ctx context.Context, repository, tag string) (*models.Release, error)
}

// Announcer fans a release out to messaging channels.
type Announcer interface {
	Announce(ctx context.Context, info models.ReleaseInfo, channels ...announce.Channel) announce.Report
}

// PostReleaseInput is a post-release request. Version and TargetBranch
// override the event.
type PostReleaseInput struct {
	Event        Event
	Version      string
	TargetBranch string
	Channels     []announce.Channel
}

// PostReleaseResult records the follow-up pull request and the announcement.
type PostReleaseResult struct {
	Skipped     bool
	Reason      string
	Version     version.Version
	Branch      BranchKind
	PullRequest *models.PullRequest
	Report      announce.Report
}

// PostRelease runs after a successful publish. On the default branch it
// proposes the next development version; on a stable branch it carries the
// changelog entry to the default branch. The release is announced either way.
func PostRelease(ctx context.Context, host PostReleaseHost, announcer Announcer, s Settings, in PostReleaseInput) (PostReleaseResult, error) {
	var result PostReleaseResult
	log := s.logger("post-release")

	if in.Event.Name == EventWorkflowRun && in.Event.Conclusion != "success" {
		return skip(log, result, fmt.Sprintf("upstream run concluded %q", in.Event.Conclusion))
	}

	var v version.Version
	if in.Version != "" {
		parsed, err := version.Parse(in.Version)
		if err != nil {
			return result, err
		}
		v = parsed
	} else {
		parsed, ok := branches.VersionFromReleaseBranch(in.Event.HeadBranch)
		if !ok {
			return skip(log, result, fmt.Sprintf("%q is not a release branch", in.Event.HeadBranch))
		}
		v = parsed
	}
	result.Version = v

	defaultBranch, err := s.defaultBranch(ctx, host)
	if err != nil {
		return result, err
	}
	target, err := targetBranch(ctx, host, s, in, v)
	if err != nil {
		return result, err
	}
	kind, err := ResolveBranchKind(target, defaultBranch)
	if err != nil {
		return result, err
	}
	result.Branch = kind

	manager := branches.NewManager(host, s.Repository, s.Label)
	var followUpErr error
	switch k := kind.(type) {
	case DefaultBranch:
		if v.IsPreRelease() {
			log.Info("pre-release, default branch version left as is", "version", v)
			break
		}
		next := version.NextDevVersion(v, s.DevMarker)
		pr, created, err := manager.ProposeVersionBump(ctx, k.Name, repoPath(s.VersionFilePath), s.VersionConstant, next)
		if err != nil {
			followUpErr = fmt.Errorf("proposing version bump to %s: %w", next, err)
		} else if created {
			result.PullRequest = &pr
		}
	case StableBranch:
		pr, created, err := syncChangelog(ctx, host, manager, s, k, defaultBranch, v)
		if err != nil {
			followUpErr = fmt.Errorf("syncing changelog of %s to %s: %w", v, defaultBranch, err)
		} else if created {
			result.PullRequest = &pr
		}
	}
	if followUpErr != nil {
		log.Error("post-release follow-up failed, announcing anyway", "error", followUpErr)
	}

	info := models.ReleaseInfo{
		Name:       s.GemName,
		Version:    v.String(),
		Repository: s.Repository,
		URL:        fmt.Sprintf("https://github.com/%s/releases/tag/%s", s.Repository, v.Tag()),
	}
	if release, err := host.GetReleaseByTag(ctx, s.Repository, v.Tag()); err != nil {
		log.Warn("looking up release url", "tag", v.Tag(), "error", err)
	} else if release != nil && release.URL != "" {
		info.URL = release.URL
	}
	if info.Name == "" {
		info.Name = s.Repository
	}

	result.Report = announcer.Announce(ctx, info, in.Channels...)
	return result, followUpErr
}

func syncChangelog(ctx context.Context, host PostReleaseHost, manager *branches.Manager, s Settings, stable StableBranch, defaultBranch string, v version.Version) (models.PullRequest, bool, error) {
	content, _, err := host.GetFile(ctx, s.Repository, repoPath(s.ChangelogPath), stable.Name)
	if err != nil {
		return models.PullRequest{}, false, fmt.Errorf("reading %s on %s: %w", s.ChangelogPath, stable.Name, err)
	}
	entry, err := changelog.Extract(content, v)
	if err != nil {
		return models.PullRequest{}, false, errs.Configuration(fmt.Errorf("%s on %s: %w", s.ChangelogPath, stable.Name, err))
	}
	return manager.SyncChangelogToMain(ctx, entry, defaultBranch, repoPath(s.ChangelogPath))
}

// targetBranch is the branch the release pull request was merged into.
func targetBranch(ctx context.Context, host PostReleaseHost, s Settings, in PostReleaseInput, v version.Version) (string, error) {
	if in.TargetBranch != "" {
		return in.TargetBranch, nil
	}
	if in.Event.BaseBranch != "" {
		return in.Event.BaseBranch, nil
	}
	head := branches.ReleaseBranchName(v)
	pr, err := host.FindPullRequest(ctx, s.Repository, head, "all")
	if err != nil {
		return "", err
	}
	if pr == nil {
		return "", errs.Configuration(fmt.Errorf("no pull request found for %s, pass --target-branch", head))
	}
	return pr.Base, nil
}

func skip(log *slog.Logger, result PostReleaseResult, reason string) (PostReleaseResult, error) {
	log.Info("post-release skipped", "reason", reason)
	result.Skipped = true
	result.Reason = reason
	return result, nil
}
