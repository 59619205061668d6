package cmd

import (
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/stage"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/spf13/cobra"
)

// prepareCmd opens a release pull request for the next version.
var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Open a release pull request for the next version",
	Long: `Compute the next version, write it and a changelog entry generated from the
merged pull requests, and open a labelled pull request from release/v<version>
against the branch the workflow was started on.

Bump directives:
- release: drop the pre-release suffix (8.0.0.dev -> 8.0.0)
- patch, minor, major: increment that number, optionally adding --pre-release

The branch must be the default branch or a <major>.<minor>-stable branch.

Example:
  gemcut prepare --bump minor --pre-release rc1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawBump, err := cmd.Flags().GetString("bump")
		if err != nil {
			return err
		}
		bump, err := version.ParseBump(rawBump)
		if err != nil {
			return err
		}
		preRelease, err := cmd.Flags().GetString("pre-release")
		if err != nil {
			return err
		}
		baseBranch, err := cmd.Flags().GetString("base-branch")
		if err != nil {
			return err
		}
		previousTag, err := cmd.Flags().GetString("previous-tag")
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}

		result, err := stage.Prepare(cmd.Context(), rt.githubClient, rt.workspaceFs, rt.settings, stage.PrepareInput{
			Bump:        bump,
			PreRelease:  preRelease,
			BaseBranch:  baseBranch,
			PreviousTag: previousTag,
			Event:       rt.event,
		})
		if err != nil {
			return err
		}

		if result.PullRequest.Number == 0 {
			printf(cmd, "Nothing to prepare, %s stays at %s\n", rt.settings.VersionFilePath, result.Current)
			return nil
		}
		logging.Info("prepare finished", "version", result.Next, "pull_request", result.PullRequest.Number)
		printf(cmd, "Opened #%d %s (%s -> %s)\n", result.PullRequest.Number, result.PullRequest.URL, result.Current, result.Next)
		return nil
	},
}

func init() {
	prepareCmd.Flags().String("bump", "", "Bump directive: release, patch, minor or major")
	prepareCmd.Flags().String("pre-release", "", "Pre-release suffix for patch, minor and major bumps (e.g. rc1)")
	prepareCmd.Flags().String("base-branch", "", "Branch to release from (default: the branch of the triggering event)")
	prepareCmd.Flags().String("previous-tag", "", "Tag the release notes start from (default: the latest release)")
	_ = prepareCmd.MarkFlagRequired("bump")
}
