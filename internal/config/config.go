// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration parameters for one stage invocation.
type Config struct {
	GitHub   GitHubConfig
	Release  ReleaseConfig
	RubyGems RubyGemsConfig
	Announce AnnounceConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token string
	// Repository is "owner/repo".
	Repository string
	APIURL     string
	// EventPath and EventName describe the event that triggered the run.
	EventPath string
	EventName string
	// DefaultBranch skips the repository lookup when set.
	DefaultBranch string
}

// ReleaseConfig holds settings for how releases are prepared.
type ReleaseConfig struct {
	GemName            string
	VersionConstant    string
	ChangelogPath      string
	Label              string
	DevMarker          string
	FinalReleasePolicy string
}

// RubyGemsConfig holds the registry host and the CI identity token endpoint
// used for trusted publishing.
type RubyGemsConfig struct {
	Host             string
	Audience         string
	OIDCRequestURL   string
	OIDCRequestToken string
}

// AnnounceConfig holds the optional messaging endpoints.
type AnnounceConfig struct {
	SlackWebhookURL     string
	MastodonInstance    string
	MastodonAccessToken string
	BlueskyIdentifier   string
	BlueskyAppPassword  string
	BlueskyHost         string
}

// Options controls where configuration is read from besides the environment.
type Options struct {
	// ConfigFile is an optional YAML file with the same keys as the environment.
	ConfigFile string
	// EnvFile is an optional dotenv file loaded before the environment is read.
	EnvFile string
}

var envBindings = map[string]string{
	"github.token":                   "GITHUB_TOKEN",
	"github.repository":              "GITHUB_REPOSITORY",
	"github.api_url":                 "GITHUB_API_URL",
	"github.event_path":              "GITHUB_EVENT_PATH",
	"github.event_name":              "GITHUB_EVENT_NAME",
	"github.default_branch":          "GEMCUT_DEFAULT_BRANCH",
	"release.gem_name":               "GEMCUT_GEM_NAME",
	"release.version_constant":       "GEMCUT_VERSION_CONSTANT",
	"release.changelog_path":         "GEMCUT_CHANGELOG_PATH",
	"release.label":                  "GEMCUT_RELEASE_LABEL",
	"release.dev_marker":             "GEMCUT_DEV_MARKER",
	"release.final_release_policy":   "GEMCUT_FINAL_RELEASE_POLICY",
	"rubygems.host":                  "RUBYGEMS_HOST",
	"rubygems.audience":              "RUBYGEMS_OIDC_AUDIENCE",
	"rubygems.oidc_request_url":      "ACTIONS_ID_TOKEN_REQUEST_URL",
	"rubygems.oidc_request_token":    "ACTIONS_ID_TOKEN_REQUEST_TOKEN",
	"announce.slack_webhook_url":     "SLACK_WEBHOOK_URL",
	"announce.mastodon_instance":     "MASTODON_INSTANCE",
	"announce.mastodon_access_token": "MASTODON_ACCESS_TOKEN",
	"announce.bluesky_identifier":    "BLUESKY_IDENTIFIER",
	"announce.bluesky_app_password":  "BLUESKY_APP_PASSWORD",
	"announce.bluesky_host":          "BLUESKY_HOST",
}

// LoadConfig reads configuration from environment variables, an optional
// dotenv file and an optional config file. The environment wins.
func LoadConfig(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, errs.Configuration(fmt.Errorf("loading env file %s: %w", opts.EnvFile, err))
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	v.SetDefault("github.api_url", "https://api.github.com/")
	v.SetDefault("release.version_constant", "VERSION")
	v.SetDefault("release.changelog_path", "CHANGELOG.md")
	v.SetDefault("release.label", "skip-changelog")
	v.SetDefault("release.dev_marker", "dev")
	v.SetDefault("release.final_release_policy", "reject")
	v.SetDefault("rubygems.host", "https://rubygems.org")
	v.SetDefault("rubygems.audience", "rubygems.org")
	v.SetDefault("announce.bluesky_host", "https://bsky.social")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Configuration(fmt.Errorf("reading config file %s: %w", opts.ConfigFile, err))
		}
	}

	config := &Config{
		GitHub: GitHubConfig{
			Token:         v.GetString("github.token"),
			Repository:    v.GetString("github.repository"),
			APIURL:        v.GetString("github.api_url"),
			EventPath:     v.GetString("github.event_path"),
			EventName:     v.GetString("github.event_name"),
			DefaultBranch: v.GetString("github.default_branch"),
		},
		Release: ReleaseConfig{
			GemName:            v.GetString("release.gem_name"),
			VersionConstant:    v.GetString("release.version_constant"),
			ChangelogPath:      v.GetString("release.changelog_path"),
			Label:              v.GetString("release.label"),
			DevMarker:          v.GetString("release.dev_marker"),
			FinalReleasePolicy: v.GetString("release.final_release_policy"),
		},
		RubyGems: RubyGemsConfig{
			Host:             v.GetString("rubygems.host"),
			Audience:         v.GetString("rubygems.audience"),
			OIDCRequestURL:   v.GetString("rubygems.oidc_request_url"),
			OIDCRequestToken: v.GetString("rubygems.oidc_request_token"),
		},
		Announce: AnnounceConfig{
			SlackWebhookURL:     v.GetString("announce.slack_webhook_url"),
			MastodonInstance:    v.GetString("announce.mastodon_instance"),
			MastodonAccessToken: v.GetString("announce.mastodon_access_token"),
			BlueskyIdentifier:   v.GetString("announce.bluesky_identifier"),
			BlueskyAppPassword:  v.GetString("announce.bluesky_app_password"),
			BlueskyHost:         v.GetString("announce.bluesky_host"),
		},
	}

	return config, nil
}

// ValidateGitHubConfig checks what every stage needs to talk to GitHub.
func ValidateGitHubConfig(config *Config) error {
	var missingVars []string

	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}
	if config.GitHub.Repository == "" {
		missingVars = append(missingVars, "GITHUB_REPOSITORY")
	} else if parts := strings.Split(config.GitHub.Repository, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errs.Configuration(fmt.Errorf("invalid repository format: %s, expected format: owner/repo", config.GitHub.Repository))
	}

	if len(missingVars) > 0 {
		return errs.Configuration(fmt.Errorf("missing required environment variables: %v", missingVars))
	}

	return nil
}

// ValidateRubyGemsConfig checks what trusted publishing needs. The identity
// token endpoint is only present when the job has the id-token permission.
func ValidateRubyGemsConfig(config *Config) error {
	var missingVars []string

	if config.RubyGems.OIDCRequestURL == "" {
		missingVars = append(missingVars, "ACTIONS_ID_TOKEN_REQUEST_URL")
	}
	if config.RubyGems.OIDCRequestToken == "" {
		missingVars = append(missingVars, "ACTIONS_ID_TOKEN_REQUEST_TOKEN")
	}
	if len(missingVars) > 0 {
		return errs.Configuration(fmt.Errorf("missing required environment variables: %v (is the id-token: write permission granted?)", missingVars))
	}

	return nil
}
