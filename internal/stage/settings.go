package stage

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/version"
)

// Settings are the repository conventions shared by every stage.
type Settings struct {
	// Repository is "owner/repo".
	Repository string
	// DefaultBranch is looked up from the repository when empty.
	DefaultBranch      string
	GemName            string
	VersionFilePath    string
	VersionConstant    string
	ChangelogPath      string
	Label              string
	DevMarker          string
	FinalReleasePolicy version.FinalReleasePolicy

	// Now stamps changelog entries. Nil means time.Now.
	Now func() time.Time
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type defaultBranchLookup interface {
	DefaultBranch(ctx context.Context, repository string) (string, error)
}

func (s Settings) defaultBranch(ctx context.Context, host defaultBranchLookup) (string, error) {
	if s.DefaultBranch != "" {
		return s.DefaultBranch, nil
	}
	return host.DefaultBranch(ctx, s.Repository)
}

// repoPath turns a workspace path into the slash separated path the contents
// API expects.
func repoPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
}

func (s Settings) logger(stage string) *slog.Logger {
	return logging.With("stage", stage, "repository", s.Repository)
}
