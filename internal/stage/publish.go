package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielolaszy/gemcut/internal/branches"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/publish"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/spf13/afero"
)

// ErrVersionMismatch indicates the release branch and the version file disagree.
var ErrVersionMismatch = errors.New("version mismatch")

// Publisher pushes a version and records its release.
type Publisher interface {
	Publish(ctx context.Context, v version.Version, artifactDir, commitSHA string) (publish.Result, error)
}

// PublishInput is a publish request. Version and MergeSHA override the event.
type PublishInput struct {
	Event       Event
	Version     string
	MergeSHA    string
	ArtifactDir string
}

// PublishResult is the publish outcome, or why the stage did nothing.
type PublishResult struct {
	Skipped bool
	Reason  string
	publish.Result
}

// Publish runs the publish coordinator for a merged release pull request.
// Any other event is skipped without error.
func Publish(ctx context.Context, pub Publisher, ws afero.Fs, s Settings, in PublishInput) (PublishResult, error) {
	var result PublishResult
	log := s.logger("publish")

	raw := in.Version
	if raw == "" {
		if in.Event.Name == EventPullRequest && !in.Event.Merged {
			return skipped(log, result, "pull request closed without merge")
		}
		v, ok := branches.VersionFromReleaseBranch(in.Event.HeadBranch)
		if !ok {
			return skipped(log, result, fmt.Sprintf("%q is not a release branch", in.Event.HeadBranch))
		}
		raw = v.String()
	}

	v, err := version.Parse(raw)
	if err != nil {
		return result, err
	}

	declared, err := version.ReadFile(ws, s.VersionFilePath, s.VersionConstant)
	if err != nil {
		return result, err
	}
	if !declared.Equal(v) {
		return result, errs.Validation(fmt.Errorf("%w: releasing %s but %s declares %s", ErrVersionMismatch, v, s.VersionFilePath, declared))
	}

	sha := in.MergeSHA
	if sha == "" {
		sha = in.Event.MergeCommitSHA
	}

	log.Info("publishing release", "version", v, "commit", sha)
	res, err := pub.Publish(ctx, v, in.ArtifactDir, sha)
	result.Result = res
	return result, err
}

func skipped(log *slog.Logger, result PublishResult, reason string) (PublishResult, error) {
	log.Info("publish skipped", "reason", reason)
	result.Skipped = true
	result.Reason = reason
	return result, nil
}
