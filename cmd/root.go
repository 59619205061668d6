package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gemcut",
	Short: "gemcut cuts, publishes and announces gem releases",
	Long: `gemcut is a CLI tool that automates the release process of a Ruby gem
hosted on GitHub. Each stage runs as its own CI job:

1. prepare      - bump the version, write the changelog and open a release pull request
2. publish      - push the gem to RubyGems and create the GitHub release once that pull request is merged
3. post-release - move the default branch to the next development version or carry
                  a stable release's changelog to it, then announce the release

All state lives in the repository and on the registry, so every stage can be re-run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("repository", "r", "", "GitHub repository name (e.g., 'owner/repo'), defaults to GITHUB_REPOSITORY")
	rootCmd.PersistentFlags().String("workspace", ".", "Path of the checked out repository")
	rootCmd.PersistentFlags().String("version-file-path", "", "Version file relative to the workspace (default lib/<gem>/version.rb)")
	rootCmd.PersistentFlags().String("changelog-path", "", "Changelog relative to the workspace (default CHANGELOG.md)")
	rootCmd.PersistentFlags().String("config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().String("env-file", "", "Optional .env file loaded before the environment is read")

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(postReleaseCmd)
	rootCmd.AddCommand(setupCmd)
}
