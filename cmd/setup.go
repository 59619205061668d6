package cmd

import (
	"fmt"

	"github.com/danielolaszy/gemcut/internal/github"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/spf13/cobra"
)

const (
	labelColor       = "ededed"
	labelDescription = "Excluded from generated release notes"
)

// setupCmd prepares a repository for release automation.
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize GitHub repository",
	Long: `Initialize a GitHub repository with the label release automation relies on.

The label (GEMCUT_RELEASE_LABEL, default 'skip-changelog') is put on every pull
request gemcut opens. Exclude it in .github/release.yml so release notes only
list real changes:

  changelog:
    exclude:
      labels:
        - skip-changelog`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		githubClient, err := github.NewClient(cfg.GitHub)
		if err != nil {
			return fmt.Errorf("failed to initialize GitHub client: %w", err)
		}

		created, err := githubClient.EnsureLabel(cmd.Context(), cfg.GitHub.Repository, cfg.Release.Label, labelColor, labelDescription)
		if err != nil {
			return err
		}
		if created {
			logging.Info("label created", "repository", cfg.GitHub.Repository, "label", cfg.Release.Label)
			printf(cmd, "Created label %q in %s\n", cfg.Release.Label, cfg.GitHub.Repository)
		} else {
			printf(cmd, "Label %q already exists in %s\n", cfg.Release.Label, cfg.GitHub.Repository)
		}
		return nil
	},
}
