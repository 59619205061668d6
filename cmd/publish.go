package cmd

import (
	"path/filepath"

	"github.com/danielolaszy/gemcut/internal/config"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/publish"
	"github.com/danielolaszy/gemcut/internal/registry"
	"github.com/danielolaszy/gemcut/internal/stage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// publishCmd pushes a merged release to RubyGems and creates the GitHub release.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a merged release to RubyGems and GitHub",
	Long: `Build the gem, push it to RubyGems with a trusted publishing token and create
the v<version> GitHub release with generated notes.

Runs only for a merged pull request from a release/v<version> branch; any other
event is skipped. A version already on RubyGems is not pushed again and an
existing release is left alone, so the command can be re-run after a failure.

Requires the id-token: write permission for the trusted publishing exchange.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawVersion, err := cmd.Flags().GetString("version")
		if err != nil {
			return err
		}
		mergeSHA, err := cmd.Flags().GetString("merge-sha")
		if err != nil {
			return err
		}
		artifactDir, err := cmd.Flags().GetString("artifact-dir")
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		if err := config.ValidateRubyGemsConfig(rt.config); err != nil {
			return err
		}

		if !filepath.IsAbs(artifactDir) {
			artifactDir = filepath.Join(rt.workspace, artifactDir)
		}
		coordinator := publish.NewCoordinator(
			registry.NewClient(rt.config.RubyGems),
			registry.NewExecBuilder(afero.NewOsFs(), nil),
			rt.githubClient,
			rt.settings.Repository,
			rt.settings.GemName,
		)

		result, err := stage.Publish(cmd.Context(), coordinator, rt.workspaceFs, rt.settings, stage.PublishInput{
			Event:       rt.event,
			Version:     rawVersion,
			MergeSHA:    mergeSHA,
			ArtifactDir: artifactDir,
		})
		if err != nil {
			return err
		}

		if result.Skipped {
			printf(cmd, "Publish skipped: %s\n", result.Reason)
			return nil
		}
		logging.Info("publish finished",
			"version", result.Version,
			"gem_published", result.GemPublished,
			"gem_already_published", result.GemAlreadyPublished,
			"release_created", result.ReleaseCreated)
		printf(cmd, "Published %s %s: %s\n", rt.settings.GemName, result.Version, result.ReleaseURL)
		return nil
	},
}

func init() {
	publishCmd.Flags().String("version", "", "Version to publish (default: taken from the merged release branch)")
	publishCmd.Flags().String("merge-sha", "", "Commit the release tag points at (default: the merge commit of the event)")
	publishCmd.Flags().String("artifact-dir", ".", "Directory holding the gemspec, relative to the workspace")
}
