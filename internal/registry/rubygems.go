// Package registry publishes built gems to RubyGems using trusted publishing.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielolaszy/gemcut/internal/config"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/hashicorp/go-cleanhttp"
)

var errNotFound = errors.New("not found")

const requestTimeout = 60 * time.Second

// Client talks to a RubyGems compatible registry.
type Client struct {
	httpClient *http.Client
	host       string
	audience   string
	tokens     TokenSource
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource replaces the Actions runtime token source.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// NewClient creates a registry client for cfg.Host.
func NewClient(cfg config.RubyGemsConfig, opts ...Option) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = requestTimeout

	c := &Client{
		httpClient: httpClient,
		host:       strings.TrimSuffix(cfg.Host, "/"),
		audience:   cfg.Audience,
	}
	if c.host == "" {
		c.host = "https://rubygems.org"
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = NewActionsTokenSource(c.httpClient, cfg.OIDCRequestURL, cfg.OIDCRequestToken)
	}
	return c
}

// Published reports whether v of gem is already on the registry.
func (c *Client) Published(ctx context.Context, gem string, v version.Version) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/versions/%s.json", c.host, url.PathEscape(gem))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	var versions []struct {
		Number string `json:"number"`
	}
	if err := doJSON(c.httpClient, req, &versions); err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("listing versions of %s: %w", gem, err)
	}

	for _, published := range versions {
		parsed, err := version.Parse(published.Number)
		if err != nil {
			continue
		}
		if parsed.Equal(v) {
			return true, nil
		}
	}
	return false, nil
}

// Push uploads a built gem. A short-lived API key is exchanged for the job's
// identity token on every call and never kept.
func (c *Client) Push(ctx context.Context, artifact Artifact) error {
	apiKey, err := c.exchangeToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/v1/gems", bytes.NewReader(artifact.Data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.ExternalService(fmt.Errorf("pushing %s: %w", artifact.Name, err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return errs.ExternalService(fmt.Errorf("pushing %s: registry responded %d: %s", artifact.Name, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	logging.Info("gem pushed", "gem", artifact.Name, "response", strings.TrimSpace(string(body)))
	return nil
}

func (c *Client) exchangeToken(ctx context.Context) (string, error) {
	jwt, err := c.tokens.IdentityToken(ctx, c.audience)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]string{"jwt": jwt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/v1/oidc/trusted_publisher/exchange_token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var exchanged struct {
		APIKey string `json:"rubygems_api_key"`
	}
	if err := doJSON(c.httpClient, req, &exchanged); err != nil {
		return "", fmt.Errorf("exchanging identity token for an api key: %w", err)
	}
	if exchanged.APIKey == "" {
		return "", errs.ExternalService(errors.New("token exchange returned no api key (is a trusted publisher configured for this workflow?)"))
	}

	logging.Debug("registry api key exchanged", "key", logging.MaskSensitive(exchanged.APIKey))
	return exchanged.APIKey, nil
}

// doJSON sends req and decodes a 2xx JSON body into out. Every failure is an
// external service error; a 404 also matches errNotFound.
func doJSON(httpClient *http.Client, req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return errs.ExternalService(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errs.ExternalService(fmt.Errorf("%w: %s %s", errNotFound, req.Method, req.URL.Path))
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errs.ExternalService(fmt.Errorf("%s %s responded %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.ExternalService(fmt.Errorf("decoding %s response: %w", req.URL.Path, err))
	}
	return nil
}
