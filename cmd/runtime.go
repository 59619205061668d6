package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielolaszy/gemcut/internal/config"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/github"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/registry"
	"github.com/danielolaszy/gemcut/internal/stage"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// runtime is everything a stage command needs, built once per invocation.
type runtime struct {
	config       *config.Config
	settings     stage.Settings
	workspace    string
	workspaceFs  afero.Fs
	githubClient *github.Client
	event        stage.Event
}

// loadConfig reads configuration and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(config.Options{ConfigFile: configFile, EnvFile: envFile})
	if err != nil {
		return nil, err
	}

	repository, err := cmd.Flags().GetString("repository")
	if err != nil {
		return nil, err
	}
	if repository != "" {
		cfg.GitHub.Repository = repository
	}
	changelogPath, err := cmd.Flags().GetString("changelog-path")
	if err != nil {
		return nil, err
	}
	if changelogPath != "" {
		cfg.Release.ChangelogPath = changelogPath
	}

	if err := config.ValidateGitHubConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRuntime loads configuration, connects to GitHub and reads the event
// that triggered the run.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	workspace, err := cmd.Flags().GetString("workspace")
	if err != nil {
		return nil, err
	}
	if wd := os.Getenv("GITHUB_WORKSPACE"); wd != "" && !cmd.Flags().Changed("workspace") {
		workspace = wd
	}
	workspace, err = filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}
	workspaceFs := afero.NewBasePathFs(afero.NewOsFs(), workspace)

	versionFilePath, err := cmd.Flags().GetString("version-file-path")
	if err != nil {
		return nil, err
	}
	settings, err := buildSettings(cfg, workspaceFs, versionFilePath)
	if err != nil {
		return nil, err
	}

	githubClient, err := github.NewClient(cfg.GitHub)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GitHub client: %w", err)
	}

	event, err := stage.LoadEvent(afero.NewOsFs(), cfg.GitHub.EventName, cfg.GitHub.EventPath)
	if err != nil {
		return nil, err
	}

	logging.Debug("runtime ready",
		"repository", settings.Repository,
		"workspace", workspace,
		"version_file", settings.VersionFilePath,
		"event", event.Name)

	return &runtime{
		config:       cfg,
		settings:     settings,
		workspace:    workspace,
		workspaceFs:  workspaceFs,
		githubClient: githubClient,
		event:        event,
	}, nil
}

// buildSettings maps configuration onto stage settings. Without an explicit
// version file path the gem convention lib/<gem>/version.rb is used, taking
// the gem name from the workspace's gemspec when it is not configured.
func buildSettings(cfg *config.Config, ws afero.Fs, versionFilePath string) (stage.Settings, error) {
	policy, err := version.ParseFinalReleasePolicy(cfg.Release.FinalReleasePolicy)
	if err != nil {
		return stage.Settings{}, err
	}
	if cfg.Release.DevMarker != "" && !version.IsLabel(cfg.Release.DevMarker) {
		return stage.Settings{}, errs.Configuration(fmt.Errorf("invalid development marker %q: expected a pre-release label such as %q", cfg.Release.DevMarker, version.DefaultDevMarker))
	}

	gem := cfg.Release.GemName
	if gem == "" {
		if _, name, err := registry.FindGemspec(ws, ".", ""); err == nil {
			gem = name
		} else if versionFilePath == "" {
			return stage.Settings{}, fmt.Errorf("cannot derive the version file path, pass --version-file-path: %w", err)
		}
	}
	if versionFilePath == "" {
		versionFilePath = filepath.Join("lib", gem, "version.rb")
	}

	return stage.Settings{
		Repository:         cfg.GitHub.Repository,
		DefaultBranch:      cfg.GitHub.DefaultBranch,
		GemName:            gem,
		VersionFilePath:    versionFilePath,
		VersionConstant:    cfg.Release.VersionConstant,
		ChangelogPath:      cfg.Release.ChangelogPath,
		Label:              cfg.Release.Label,
		DevMarker:          cfg.Release.DevMarker,
		FinalReleasePolicy: policy,
	}, nil
}

// printf writes user facing output the way the commands report results.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
