package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/spf13/afero"
)

var (
	// ErrGemspecNotFound indicates the artifact directory has no usable gemspec.
	ErrGemspecNotFound = errors.New("gemspec not found")

	// ErrBuildFailed indicates gem build did not produce the expected package.
	ErrBuildFailed = errors.New("gem build failed")
)

// Artifact is a built gem package.
type Artifact struct {
	Name string
	Path string
	Data []byte
}

// Runner executes a command in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner runs commands through os/exec.
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// ExecBuilder builds gems with the gem command line tool.
type ExecBuilder struct {
	fs  afero.Fs
	run Runner
}

// NewExecBuilder returns a builder reading artifacts from fs. A nil runner
// uses ExecRunner.
func NewExecBuilder(fs afero.Fs, run Runner) *ExecBuilder {
	if run == nil {
		run = ExecRunner
	}
	return &ExecBuilder{fs: fs, run: run}
}

// FindGemspec locates the gemspec in dir. When gem is set its gemspec must
// exist; otherwise dir must hold exactly one. It returns the path and the gem
// name taken from the file stem.
func FindGemspec(fs afero.Fs, dir, gem string) (string, string, error) {
	if gem != "" {
		path := filepath.Join(dir, gem+".gemspec")
		if ok, err := afero.Exists(fs, path); err != nil {
			return "", "", err
		} else if !ok {
			return "", "", errs.Configuration(fmt.Errorf("%w: %s", ErrGemspecNotFound, path))
		}
		return path, gem, nil
	}

	matches, err := afero.Glob(fs, filepath.Join(dir, "*.gemspec"))
	if err != nil {
		return "", "", err
	}
	switch len(matches) {
	case 0:
		return "", "", errs.Configuration(fmt.Errorf("%w: no *.gemspec in %s", ErrGemspecNotFound, dir))
	case 1:
		return matches[0], strings.TrimSuffix(filepath.Base(matches[0]), ".gemspec"), nil
	default:
		return "", "", errs.Configuration(fmt.Errorf("%w: %d gemspecs in %s, set GEMCUT_GEM_NAME", ErrGemspecNotFound, len(matches), dir))
	}
}

// Build runs gem build for v in dir and reads back {gem}-{v}.gem.
func (b *ExecBuilder) Build(ctx context.Context, dir, gem string, v version.Version) (Artifact, error) {
	gemspec, name, err := FindGemspec(b.fs, dir, gem)
	if err != nil {
		return Artifact{}, err
	}

	logging.Info("building gem", "gemspec", gemspec, "version", v)
	out, err := b.run(ctx, dir, "gem", "build", filepath.Base(gemspec))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %v: %s", ErrBuildFailed, gemspec, err, strings.TrimSpace(string(out)))
	}

	file := fmt.Sprintf("%s-%s.gem", name, v)
	path := filepath.Join(dir, file)
	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		// A mismatch here means the gemspec reports a different version.
		return Artifact{}, fmt.Errorf("%w: expected %s: %v", ErrBuildFailed, path, err)
	}

	logging.Debug("gem built", "path", path, "bytes", len(data))
	return Artifact{Name: file, Path: path, Data: data}, nil
}
