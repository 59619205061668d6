// Package stage holds the entry points of the three release stages. Each
// stage is a function of the triggering event and the repository state, so a
// re-delivered event leads to the same outcome.
package stage

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/google/go-github/v60/github"
	"github.com/spf13/afero"
)

// ErrUnsupportedBranch indicates a stage ran on a branch that is neither the
// default branch nor a stable branch.
var ErrUnsupportedBranch = errors.New("unsupported branch")

// Event is the part of a CI trigger the stages look at.
type Event struct {
	Name           string
	Action         string
	Merged         bool
	HeadBranch     string
	BaseBranch     string
	MergeCommitSHA string
	Conclusion     string
}

// Event names the stages react to.
const (
	EventWorkflowDispatch = "workflow_dispatch"
	EventPullRequest      = "pull_request"
	EventWorkflowRun      = "workflow_run"
)

// ParseEvent reads a webhook payload of type name. Other event types are
// accepted with only the name set.
func ParseEvent(name string, payload []byte) (Event, error) {
	event := Event{Name: name}
	switch name {
	case EventWorkflowDispatch, EventPullRequest, EventWorkflowRun:
	default:
		return event, nil
	}
	if len(payload) == 0 {
		return event, nil
	}

	parsed, err := github.ParseWebHook(name, payload)
	if err != nil {
		return event, errs.Configuration(fmt.Errorf("parsing %s event payload: %w", name, err))
	}

	switch e := parsed.(type) {
	case *github.WorkflowDispatchEvent:
		event.BaseBranch = strings.TrimPrefix(e.GetRef(), "refs/heads/")
	case *github.PullRequestEvent:
		pr := e.GetPullRequest()
		event.Action = e.GetAction()
		event.Merged = pr.GetMerged()
		event.HeadBranch = pr.GetHead().GetRef()
		event.BaseBranch = pr.GetBase().GetRef()
		event.MergeCommitSHA = pr.GetMergeCommitSHA()
	case *github.WorkflowRunEvent:
		run := e.GetWorkflowRun()
		event.Action = e.GetAction()
		event.Conclusion = run.GetConclusion()
		event.HeadBranch = run.GetHeadBranch()
		if prs := run.PullRequests; len(prs) > 0 {
			event.BaseBranch = prs[0].GetBase().GetRef()
		}
	}
	return event, nil
}

// LoadEvent reads the payload at path. A missing path yields an event with
// only the name set, as for a local run.
func LoadEvent(fs afero.Fs, name, path string) (Event, error) {
	if path == "" {
		return Event{Name: name}, nil
	}
	payload, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Event{Name: name}, nil
		}
		return Event{}, fmt.Errorf("reading event payload %s: %w", path, err)
	}
	return ParseEvent(name, payload)
}

// BranchKind is either DefaultBranch or StableBranch.
type BranchKind interface {
	branchKind()
	Branch() string
}

// DefaultBranch is the repository's main line of development.
type DefaultBranch struct {
	Name string
}

// StableBranch maintains one release line, e.g. 7.4-stable.
type StableBranch struct {
	Name  string
	Major int
	Minor int
}

func (DefaultBranch) branchKind() {}
func (StableBranch) branchKind()  {}

func (b DefaultBranch) Branch() string { return b.Name }
func (b StableBranch) Branch() string  { return b.Name }

// Line is the "major.minor" release line of the branch.
func (b StableBranch) Line() string {
	return fmt.Sprintf("%d.%d", b.Major, b.Minor)
}

var stablePattern = regexp.MustCompile(`^(\d+)\.(\d+)-stable$`)

// ResolveBranchKind classifies target against the default branch name.
func ResolveBranchKind(target, defaultBranch string) (BranchKind, error) {
	if target != "" && target == defaultBranch {
		return DefaultBranch{Name: target}, nil
	}
	if m := stablePattern.FindStringSubmatch(target); m != nil {
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])
		return StableBranch{Name: target, Major: major, Minor: minor}, nil
	}
	return nil, errs.Validation(fmt.Errorf("%w: %q is neither %s nor a {major}.{minor}-stable branch", ErrUnsupportedBranch, target, defaultBranch))
}
