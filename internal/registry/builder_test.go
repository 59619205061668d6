package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindGemspec(t *testing.T) {
	testCases := []struct {
		name         string
		files        []string
		gem          string
		expectedPath string
		expectedName string
		wantErr      bool
	}{
		{name: "Single gemspec", files: []string{"/src/alchemy_cms.gemspec"}, expectedPath: "/src/alchemy_cms.gemspec", expectedName: "alchemy_cms"},
		{name: "Named gem", files: []string{"/src/a.gemspec", "/src/b.gemspec"}, gem: "b", expectedPath: "/src/b.gemspec", expectedName: "b"},
		{name: "Ambiguous", files: []string{"/src/a.gemspec", "/src/b.gemspec"}, wantErr: true},
		{name: "None", files: []string{"/src/Gemfile"}, wantErr: true},
		{name: "Named gem missing", files: []string{"/src/a.gemspec"}, gem: "b", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for _, f := range tc.files {
				require.NoError(t, afero.WriteFile(fs, f, []byte("Gem::Specification.new"), 0o644))
			}

			path, name, err := FindGemspec(fs, "/src", tc.gem)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrGemspecNotFound)
				assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedPath, path)
			assert.Equal(t, tc.expectedName, name)
		})
	}
}

func TestExecBuilderBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/alchemy_cms.gemspec", []byte("spec"), 0o644))

	var gotDir string
	var gotArgs []string
	run := func(_ context.Context, dir, name string, args ...string) ([]byte, error) {
		gotDir = dir
		gotArgs = append([]string{name}, args...)
		return []byte("Successfully built RubyGem"), afero.WriteFile(fs, "/src/alchemy_cms-8.0.0.rc1.gem", []byte("package"), 0o644)
	}

	artifact, err := NewExecBuilder(fs, run).Build(context.Background(), "/src", "", version.MustParse("8.0.0.rc1"))
	require.NoError(t, err)
	assert.Equal(t, "/src", gotDir)
	assert.Equal(t, []string{"gem", "build", "alchemy_cms.gemspec"}, gotArgs)
	assert.Equal(t, Artifact{Name: "alchemy_cms-8.0.0.rc1.gem", Path: "/src/alchemy_cms-8.0.0.rc1.gem", Data: []byte("package")}, artifact)
}

func TestExecBuilderFailures(t *testing.T) {
	t.Run("Command fails", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/src/a.gemspec", []byte("spec"), 0o644))
		run := func(context.Context, string, string, ...string) ([]byte, error) {
			return []byte("ERROR: invalid gemspec"), errors.New("exit status 1")
		}

		_, err := NewExecBuilder(fs, run).Build(context.Background(), "/src", "", version.MustParse("1.0.0"))
		require.ErrorIs(t, err, ErrBuildFailed)
		assert.Contains(t, err.Error(), "invalid gemspec")
	})

	t.Run("Gemspec declares another version", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/src/a.gemspec", []byte("spec"), 0o644))
		run := func(context.Context, string, string, ...string) ([]byte, error) {
			return nil, afero.WriteFile(fs, "/src/a-0.9.0.gem", []byte("package"), 0o644)
		}

		_, err := NewExecBuilder(fs, run).Build(context.Background(), "/src", "", version.MustParse("1.0.0"))
		require.ErrorIs(t, err, ErrBuildFailed)
		assert.Contains(t, err.Error(), "a-1.0.0.gem")
	})
}
