package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/danielolaszy/gemcut/internal/errs"
)

// TokenSource hands out an identity token for the running CI job.
type TokenSource interface {
	IdentityToken(ctx context.Context, audience string) (string, error)
}

// ActionsTokenSource requests OIDC tokens from the GitHub Actions runtime.
// Both values are only present when the job was granted id-token: write.
type ActionsTokenSource struct {
	httpClient   *http.Client
	requestURL   string
	requestToken string
}

// NewActionsTokenSource returns a token source for the runtime endpoint.
func NewActionsTokenSource(httpClient *http.Client, requestURL, requestToken string) *ActionsTokenSource {
	return &ActionsTokenSource{httpClient: httpClient, requestURL: requestURL, requestToken: requestToken}
}

// IdentityToken fetches a signed token for audience.
func (s *ActionsTokenSource) IdentityToken(ctx context.Context, audience string) (string, error) {
	if s.requestURL == "" || s.requestToken == "" {
		return "", errs.Configuration(errors.New("identity token endpoint not available (set ACTIONS_ID_TOKEN_REQUEST_URL and ACTIONS_ID_TOKEN_REQUEST_TOKEN)"))
	}

	u, err := url.Parse(s.requestURL)
	if err != nil {
		return "", errs.Configuration(fmt.Errorf("invalid identity token url: %w", err))
	}
	if audience != "" {
		q := u.Query()
		q.Set("audience", audience)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.requestToken)
	req.Header.Set("Accept", "application/json")

	var payload struct {
		Value string `json:"value"`
	}
	if err := doJSON(s.httpClient, req, &payload); err != nil {
		return "", fmt.Errorf("requesting identity token: %w", err)
	}
	if payload.Value == "" {
		return "", errs.ExternalService(errors.New("identity token response carried no token"))
	}
	return payload.Value, nil
}
