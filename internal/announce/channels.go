package announce

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Slack posts to an incoming webhook.
type Slack struct {
	httpClient *http.Client
	webhookURL string
}

// NewSlack returns a Slack channel for webhookURL.
func NewSlack(httpClient *http.Client, webhookURL string) *Slack {
	return &Slack{httpClient: httpClient, webhookURL: webhookURL}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Validate() error {
	if s.webhookURL == "" {
		return fmt.Errorf("%w: SLACK_WEBHOOK_URL is empty", ErrNotConfigured)
	}
	return nil
}

func (s *Slack) Post(ctx context.Context, text string) error {
	return postJSON(ctx, s.httpClient, s.webhookURL, nil, map[string]string{"text": text}, nil)
}

// Mastodon posts a public status with an access token.
type Mastodon struct {
	httpClient *http.Client
	instance   string
	token      string
}

// NewMastodon returns a Mastodon channel. instance may be a bare host name.
func NewMastodon(httpClient *http.Client, instance, token string) *Mastodon {
	return &Mastodon{httpClient: httpClient, instance: normalizeHost(instance), token: token}
}

func (m *Mastodon) Name() string { return "mastodon" }

func (m *Mastodon) Validate() error {
	var missing []string
	if m.instance == "" {
		missing = append(missing, "MASTODON_INSTANCE")
	}
	if m.token == "" {
		missing = append(missing, "MASTODON_ACCESS_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

func (m *Mastodon) Post(ctx context.Context, text string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.token)
	body := map[string]string{"status": text, "visibility": "public"}
	return postJSON(ctx, m.httpClient, m.instance+"/api/v1/statuses", header, body, nil)
}

// Bluesky creates a feed post through an app password session.
type Bluesky struct {
	httpClient *http.Client
	host       string
	identifier string
	password   string
	now        func() time.Time
}

// NewBluesky returns a Bluesky channel for the PDS at host.
func NewBluesky(httpClient *http.Client, host, identifier, password string) *Bluesky {
	if host == "" {
		host = "https://bsky.social"
	}
	return &Bluesky{
		httpClient: httpClient,
		host:       normalizeHost(host),
		identifier: identifier,
		password:   password,
		now:        time.Now,
	}
}

func (b *Bluesky) Name() string { return "bluesky" }

func (b *Bluesky) Validate() error {
	var missing []string
	if b.identifier == "" {
		missing = append(missing, "BLUESKY_IDENTIFIER")
	}
	if b.password == "" {
		missing = append(missing, "BLUESKY_APP_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

type blueskySession struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
}

func (b *Bluesky) Post(ctx context.Context, text string) error {
	var session blueskySession
	login := map[string]string{"identifier": b.identifier, "password": b.password}
	if err := postJSON(ctx, b.httpClient, b.host+"/xrpc/com.atproto.server.createSession", nil, login, &session); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+session.AccessJwt)
	record := map[string]any{
		"repo":       session.DID,
		"collection": "app.bsky.feed.post",
		"record": map[string]any{
			"$type":     "app.bsky.feed.post",
			"text":      text,
			"createdAt": b.now().UTC().Format(time.RFC3339),
		},
	}
	if err := postJSON(ctx, b.httpClient, b.host+"/xrpc/com.atproto.repo.createRecord", header, record, nil); err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	return nil
}

func normalizeHost(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host
}
