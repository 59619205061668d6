package stage

import (
	"testing"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	testCases := []struct {
		name      string
		eventName string
		payload   string
		expected  Event
	}{
		{
			name:      "Manual dispatch",
			eventName: "workflow_dispatch",
			payload:   `{"ref":"refs/heads/7.4-stable","inputs":{"bump":"patch"}}`,
			expected:  Event{Name: "workflow_dispatch", BaseBranch: "7.4-stable"},
		},
		{
			name:      "Merged release pull request",
			eventName: "pull_request",
			payload:   `{"action":"closed","pull_request":{"merged":true,"merge_commit_sha":"abc123","head":{"ref":"release/v8.0.0"},"base":{"ref":"main"}}}`,
			expected: Event{
				Name:           "pull_request",
				Action:         "closed",
				Merged:         true,
				HeadBranch:     "release/v8.0.0",
				BaseBranch:     "main",
				MergeCommitSHA: "abc123",
			},
		},
		{
			name:      "Completed upstream run",
			eventName: "workflow_run",
			payload:   `{"action":"completed","workflow_run":{"conclusion":"success","head_branch":"release/v7.4.3","pull_requests":[{"base":{"ref":"7.4-stable"}}]}}`,
			expected: Event{
				Name:       "workflow_run",
				Action:     "completed",
				Conclusion: "success",
				HeadBranch: "release/v7.4.3",
				BaseBranch: "7.4-stable",
			},
		},
		{
			name:      "Other event",
			eventName: "push",
			payload:   `{"ref":"refs/heads/main"}`,
			expected:  Event{Name: "push"},
		},
		{
			name:      "No payload",
			eventName: "pull_request",
			expected:  Event{Name: "pull_request"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent(tc.eventName, []byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, event)
		})
	}
}

func TestParseEventMalformed(t *testing.T) {
	_, err := ParseEvent("pull_request", []byte(`{"pull_request":`))
	require.Error(t, err)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
}

func TestLoadEvent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/github/event.json", []byte(`{"ref":"refs/heads/main"}`), 0o644))

	event, err := LoadEvent(fs, "workflow_dispatch", "/github/event.json")
	require.NoError(t, err)
	assert.Equal(t, "main", event.BaseBranch)

	event, err = LoadEvent(fs, "workflow_dispatch", "/github/missing.json")
	require.NoError(t, err)
	assert.Equal(t, Event{Name: "workflow_dispatch"}, event)

	event, err = LoadEvent(fs, "", "")
	require.NoError(t, err)
	assert.Equal(t, Event{}, event)
}

func TestResolveBranchKind(t *testing.T) {
	kind, err := ResolveBranchKind("main", "main")
	require.NoError(t, err)
	assert.Equal(t, DefaultBranch{Name: "main"}, kind)

	kind, err = ResolveBranchKind("7.4-stable", "main")
	require.NoError(t, err)
	stable, ok := kind.(StableBranch)
	require.True(t, ok)
	assert.Equal(t, "7.4", stable.Line())
	assert.Equal(t, "7.4-stable", stable.Branch())

	for _, target := range []string{"feature/x", "7-stable", "", "release/v8.0.0"} {
		_, err := ResolveBranchKind(target, "main")
		require.ErrorIs(t, err, ErrUnsupportedBranch, target)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	}
}

func TestRepoPath(t *testing.T) {
	assert.Equal(t, "lib/alchemy/version.rb", repoPath("lib/alchemy/version.rb"))
	assert.Equal(t, "lib/alchemy/version.rb", repoPath("./lib/alchemy/version.rb"))
	assert.Equal(t, "CHANGELOG.md", repoPath("/CHANGELOG.md"))
}
