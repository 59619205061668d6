package cmd

import (
	"github.com/danielolaszy/gemcut/internal/announce"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/stage"
	"github.com/spf13/cobra"
)

// postReleaseCmd runs the follow-ups of a successful publish.
var postReleaseCmd = &cobra.Command{
	Use:   "post-release",
	Short: "Open the follow-up pull request and announce the release",
	Long: `Run after a successful publish:

- release from the default branch: open a pull request moving the version file to
  the next development version (8.0.0 -> 8.1.0.dev)
- release from a <major>.<minor>-stable branch: open a pull request copying the
  release's changelog entry to the default branch

Then announce the release on every configured channel. Channels:
- Slack: SLACK_WEBHOOK_URL
- Mastodon: MASTODON_INSTANCE and MASTODON_ACCESS_TOKEN
- Bluesky: BLUESKY_IDENTIFIER and BLUESKY_APP_PASSWORD

Channels without configuration are skipped and a failing channel never fails the command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawVersion, err := cmd.Flags().GetString("version")
		if err != nil {
			return err
		}
		targetBranch, err := cmd.Flags().GetString("target-branch")
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}

		result, err := stage.PostRelease(cmd.Context(), rt.githubClient, announce.NewAnnouncer(announce.DefaultTimeout), rt.settings, stage.PostReleaseInput{
			Event:        rt.event,
			Version:      rawVersion,
			TargetBranch: targetBranch,
			Channels:     announce.ChannelsFromConfig(rt.config.Announce, nil),
		})
		if result.Skipped {
			printf(cmd, "Post-release skipped: %s\n", result.Reason)
			return err
		}

		if result.PullRequest != nil {
			printf(cmd, "Opened #%d %s\n", result.PullRequest.Number, result.PullRequest.URL)
		}
		for _, name := range result.Report.Sent {
			printf(cmd, "Announced on %s\n", name)
		}
		if failed := result.Report.Err(); failed != nil {
			logging.Warn("some announcements failed", "error", failed)
			printf(cmd, "Announcement failures: %v\n", failed)
		}
		return err
	},
}

func init() {
	postReleaseCmd.Flags().String("version", "", "Released version (default: taken from the release branch of the event)")
	postReleaseCmd.Flags().String("target-branch", "", "Branch the release was merged into (default: looked up from the release pull request)")
}
