// Package publish pushes a merged release to the gem registry and records it
// as a release on the hosting service.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/github"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/registry"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/danielolaszy/gemcut/pkg/models"
)

var (
	// ErrPublishFailed indicates the gem could not be built or pushed. Nothing
	// after the push runs once it is returned.
	ErrPublishFailed = errors.New("publish failed")

	// ErrReleaseCreation indicates the gem is on the registry but the release
	// object could not be created. Re-running publish creates it.
	ErrReleaseCreation = errors.New("release creation failed")
)

// Registry is where built gems are pushed.
type Registry interface {
	Published(ctx context.Context, gem string, v version.Version) (bool, error)
	Push(ctx context.Context, artifact registry.Artifact) error
}

// Builder packages the gem from its source directory.
type Builder interface {
	Build(ctx context.Context, dir, gem string, v version.Version) (registry.Artifact, error)
}

// ReleaseHost stores release objects.
type ReleaseHost interface {
	GetReleaseByTag(ctx context.Context, repository, tag string) (*models.Release, error)
	CreateRelease(ctx context.Context, repository string, req models.ReleaseRequest) (*models.Release, error)
}

// Result records what a publish run did.
type Result struct {
	Version               version.Version
	GemPublished          bool
	GemAlreadyPublished   bool
	ReleaseURL            string
	ReleaseCreated        bool
	ReleaseAlreadyExisted bool
}

// Coordinator runs the publish steps for one gem in one repository.
type Coordinator struct {
	registry   Registry
	builder    Builder
	host       ReleaseHost
	repository string
	gem        string

	retryDelay time.Duration
	transient  func(error) bool
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithRetryDelay sets the pause before the single release creation retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.retryDelay = d
	}
}

// WithTransient replaces the classifier deciding which release creation
// failures are retried.
func WithTransient(fn func(error) bool) Option {
	return func(c *Coordinator) {
		c.transient = fn
	}
}

// NewCoordinator creates a coordinator for gem in repository ("owner/repo").
func NewCoordinator(reg Registry, builder Builder, host ReleaseHost, repository, gem string, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:   reg,
		builder:    builder,
		host:       host,
		repository: repository,
		gem:        gem,
		retryDelay: 5 * time.Second,
		transient:  github.IsTransient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish pushes v built from artifactDir, then creates the v{version}
// release targeting commitSHA. Both steps are skipped when already done, so
// a re-run after a partial failure completes the release without pushing
// twice.
func (c *Coordinator) Publish(ctx context.Context, v version.Version, artifactDir, commitSHA string) (Result, error) {
	result := Result{Version: v}

	published, err := c.registry.Published(ctx, c.gem, v)
	if err != nil {
		return result, fmt.Errorf("%w: checking %s %s on the registry: %w", ErrPublishFailed, c.gem, v, err)
	}

	if published {
		logging.Info("gem version already published, skipping push", "gem", c.gem, "version", v)
		result.GemAlreadyPublished = true
	} else {
		artifact, err := c.builder.Build(ctx, artifactDir, c.gem, v)
		if err != nil {
			return result, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		if err := c.registry.Push(ctx, artifact); err != nil {
			return result, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		logging.Info("gem published", "gem", c.gem, "version", v)
		result.GemPublished = true
	}

	release, created, err := c.ensureRelease(ctx, v, commitSHA)
	if err != nil {
		return result, errs.ExternalService(fmt.Errorf("%w: %s (the gem is published; re-run publish to create it): %w", ErrReleaseCreation, v.Tag(), err))
	}
	result.ReleaseURL = release.URL
	result.ReleaseCreated = created
	result.ReleaseAlreadyExisted = !created
	return result, nil
}

func (c *Coordinator) ensureRelease(ctx context.Context, v version.Version, commitSHA string) (*models.Release, bool, error) {
	type outcome struct {
		release *models.Release
		created bool
	}

	attempt := 0
	op := func() (outcome, error) {
		attempt++
		existing, err := c.host.GetReleaseByTag(ctx, c.repository, v.Tag())
		if err != nil {
			return outcome{}, c.classify(err)
		}
		if existing != nil {
			logging.Info("release already exists", "tag", v.Tag(), "url", existing.URL)
			return outcome{release: existing}, nil
		}

		release, err := c.host.CreateRelease(ctx, c.repository, models.ReleaseRequest{
			TagName:         v.Tag(),
			TargetCommitish: commitSHA,
			Name:            v.Tag(),
			GenerateNotes:   true,
			Prerelease:      v.IsPreRelease(),
		})
		if err != nil {
			logging.Warn("release creation attempt failed", "tag", v.Tag(), "attempt", attempt, "error", err)
			return outcome{}, c.classify(err)
		}
		logging.Info("release created", "tag", v.Tag(), "url", release.URL)
		return outcome{release: release, created: true}, nil
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		return nil, false, err
	}
	return out.release, out.created, nil
}

// classify stops the retry on anything but a transient failure.
func (c *Coordinator) classify(err error) error {
	if c.transient(err) {
		return err
	}
	return backoff.Permanent(err)
}
