// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/danielolaszy/gemcut/internal/config"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/pkg/models"
	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
}

// Option configures the client.
type Option func(*Client) error

// WithBaseURL points the client at a different API root, e.g. GitHub
// Enterprise or a test server.
func WithBaseURL(rawURL string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(rawURL, "/") {
			rawURL += "/"
		}
		parsed, err := c.client.BaseURL.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid github api url: %w", err)
		}
		c.client.BaseURL = parsed
		c.client.UploadURL = parsed
		return nil
	}
}

// NewClient creates a GitHub API client authenticated with the configured
// token. The token is not probed against /user because the Actions token has
// no user behind it.
func NewClient(cfg config.GitHubConfig, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, errs.Configuration(errors.New("github token not found in configuration (set GITHUB_TOKEN)"))
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)

	c := &Client{client: github.NewClient(tc)}

	if cfg.APIURL != "" && strings.TrimSuffix(cfg.APIURL, "/") != "https://api.github.com" {
		opts = append([]Option{WithBaseURL(cfg.APIURL)}, opts...)
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	logging.Debug("github configuration",
		"api_url", c.client.BaseURL.String(),
		"token", logging.MaskSensitive(cfg.Token))

	return c, nil
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// apiError marks a failed call as an external service error.
func apiError(format string, args ...any) error {
	return errs.ExternalService(fmt.Errorf(format, args...))
}

// IsTransient reports whether err is worth retrying: network failures and
// 5xx responses. Validation errors and 4xx responses are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode >= 500
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
}

// DefaultBranch returns the repository's default branch.
func (c *Client) DefaultBranch(ctx context.Context, repository string) (string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", apiError("fetching repository %s: %w", repository, err)
	}
	return r.GetDefaultBranch(), nil
}

// BranchSHA returns the commit a branch points at.
func (c *Client) BranchSHA(ctx context.Context, repository, branch string) (string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	ref, resp, err := c.client.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
	if err != nil {
		if isNotFound(resp) {
			return "", errs.Configuration(fmt.Errorf("branch %s not found in %s", branch, repository))
		}
		return "", apiError("fetching branch %s: %w", branch, err)
	}
	return ref.GetObject().GetSHA(), nil
}

// BranchExists reports whether a branch exists.
func (c *Client) BranchExists(ctx context.Context, repository, branch string) (bool, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return false, err
	}

	_, resp, err := c.client.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
	if err != nil {
		if isNotFound(resp) {
			return false, nil
		}
		return false, apiError("checking branch %s: %w", branch, err)
	}
	return true, nil
}

// CreateBranch creates a branch at sha.
func (c *Client) CreateBranch(ctx context.Context, repository, branch, sha string) error {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return err
	}

	logging.Debug("creating branch", "repository", repository, "branch", branch, "sha", sha)

	_, _, err = c.client.Git.CreateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(sha)},
	})
	if err != nil {
		return apiError("creating branch %s: %w", branch, err)
	}
	return nil
}

// GetFile returns the decoded content and blob SHA of a file at ref.
func (c *Client) GetFile(ctx context.Context, repository, path, ref string) (string, string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", "", err
	}

	file, _, resp, err := c.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if isNotFound(resp) {
			return "", "", errs.Configuration(fmt.Errorf("%s not found on %s", path, ref))
		}
		return "", "", apiError("fetching %s@%s: %w", path, ref, err)
	}
	if file == nil {
		return "", "", errs.Configuration(fmt.Errorf("%s on %s is a directory", path, ref))
	}

	content, err := file.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return content, file.GetSHA(), nil
}

// CommitFile writes content to path on branch as a single commit. blobSHA is
// the SHA of the file being replaced.
func (c *Client) CommitFile(ctx context.Context, repository, branch, message string, change models.FileChange, blobSHA string) error {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: change.Content,
		Branch:  github.String(branch),
	}
	if blobSHA != "" {
		opts.SHA = github.String(blobSHA)
	}

	if _, _, err := c.client.Repositories.UpdateFile(ctx, owner, repo, change.Path, opts); err != nil {
		return apiError("committing %s to %s: %w", change.Path, branch, err)
	}

	logging.Debug("committed file", "repository", repository, "branch", branch, "path", change.Path)
	return nil
}

func toPullRequest(pr *github.PullRequest) *models.PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, label := range pr.Labels {
		labels = append(labels, label.GetName())
	}
	return &models.PullRequest{
		Number: pr.GetNumber(),
		Title:  pr.GetTitle(),
		URL:    pr.GetHTMLURL(),
		Head:   pr.GetHead().GetRef(),
		Base:   pr.GetBase().GetRef(),
		State:  pr.GetState(),
		Merged: pr.GetMerged() || pr.MergedAt != nil,
		Labels: labels,
	}
}

// FindPullRequest returns the first pull request from head in the given state
// ("open", "closed" or "all"), or nil when there is none.
func (c *Client) FindPullRequest(ctx context.Context, repository, head, state string) (*models.PullRequest, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	prs, _, err := c.client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       state,
		Head:        owner + ":" + head,
		ListOptions: github.ListOptions{PerPage: 10},
	})
	if err != nil {
		return nil, apiError("listing pull requests for %s: %w", head, err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return toPullRequest(prs[0]), nil
}

// OpenPullRequest opens a pull request.
func (c *Client) OpenPullRequest(ctx context.Context, repository string, req models.NewPullRequest) (*models.PullRequest, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	pr, _, err := c.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Body:  github.String(req.Body),
	})
	if err != nil {
		return nil, apiError("opening pull request %s -> %s: %w", req.Head, req.Base, err)
	}

	logging.Info("opened pull request", "repository", repository, "number", pr.GetNumber(), "url", pr.GetHTMLURL())
	return toPullRequest(pr), nil
}

// AddLabels adds one or more labels to an issue or pull request. GitHub
// creates labels that don't exist yet.
func (c *Client) AddLabels(ctx context.Context, repository string, number int, labels ...string) error {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return err
	}

	logging.Debug("adding labels", "labels", labels, "number", number)

	if _, _, err := c.client.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels); err != nil {
		logging.Error("error adding labels", "repository", repository, "number", number, "error", err)
		return apiError("failed to add labels to %s#%d: %w", repo, number, err)
	}
	return nil
}

// EnsureLabel creates a label unless it already exists. It reports whether
// the label was created.
func (c *Client) EnsureLabel(ctx context.Context, repository, name, color, description string) (bool, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return false, err
	}

	_, resp, err := c.client.Issues.GetLabel(ctx, owner, repo, name)
	if err == nil {
		return false, nil
	}
	if !isNotFound(resp) {
		return false, apiError("fetching label %q: %w", name, err)
	}

	_, _, err = c.client.Issues.CreateLabel(ctx, owner, repo, &github.Label{
		Name:        github.String(name),
		Color:       github.String(color),
		Description: github.String(description),
	})
	if err != nil {
		return false, apiError("creating label %q: %w", name, err)
	}
	return true, nil
}

// GenerateReleaseNotes asks GitHub to write notes for tag, covering the
// changes since previousTag (or the latest release when empty).
func (c *Client) GenerateReleaseNotes(ctx context.Context, repository, tag, target, previousTag string) (string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	opts := &github.GenerateNotesOptions{TagName: tag}
	if target != "" {
		opts.TargetCommitish = github.String(target)
	}
	if previousTag != "" {
		opts.PreviousTagName = github.String(previousTag)
	}

	notes, _, err := c.client.Repositories.GenerateReleaseNotes(ctx, owner, repo, opts)
	if err != nil {
		return "", apiError("generating release notes for %s: %w", tag, err)
	}
	return notes.Body, nil
}

func toRelease(r *github.RepositoryRelease) *models.Release {
	return &models.Release{
		ID:        r.GetID(),
		TagName:   r.GetTagName(),
		Name:      r.GetName(),
		URL:       r.GetHTMLURL(),
		CreatedAt: r.GetCreatedAt().Time,
	}
}

// GetReleaseByTag returns the release for tag, or nil when there is none.
func (c *Client) GetReleaseByTag(ctx context.Context, repository, tag string) (*models.Release, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	r, resp, err := c.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		if isNotFound(resp) {
			return nil, nil
		}
		return nil, apiError("fetching release %s: %w", tag, err)
	}
	return toRelease(r), nil
}

// CreateRelease creates a release and its tag. The returned error keeps the
// underlying API error so callers can check IsTransient.
func (c *Client) CreateRelease(ctx context.Context, repository string, req models.ReleaseRequest) (*models.Release, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	r, _, err := c.client.Repositories.CreateRelease(ctx, owner, repo, &github.RepositoryRelease{
		TagName:              github.String(req.TagName),
		TargetCommitish:      github.String(req.TargetCommitish),
		Name:                 github.String(req.Name),
		GenerateReleaseNotes: github.Bool(req.GenerateNotes),
		Prerelease:           github.Bool(req.Prerelease),
	})
	if err != nil {
		return nil, apiError("creating release %s: %w", req.TagName, err)
	}

	logging.Info("created release", "repository", repository, "tag", r.GetTagName(), "url", r.GetHTMLURL())
	return toRelease(r), nil
}
