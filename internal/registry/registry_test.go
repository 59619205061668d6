package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielolaszy/gemcut/internal/config"
	"github.com/danielolaszy/gemcut/internal/errs"
	"github.com/danielolaszy/gemcut/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token    string
	err      error
	audience string
}

func (s *staticTokens) IdentityToken(_ context.Context, audience string) (string, error) {
	s.audience = audience
	return s.token, s.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.RubyGemsConfig{Host: server.URL + "/", Audience: "rubygems.org"}, WithTokenSource(tokens))
}

func TestPublished(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		version  string
		expected bool
		wantErr  bool
	}{
		{name: "Version listed", status: 200, body: `[{"number":"8.0.0"},{"number":"7.4.2"}]`, version: "8.0.0", expected: true},
		{name: "Pre-release listed", status: 200, body: `[{"number":"8.0.0.rc1"}]`, version: "8.0.0.rc1", expected: true},
		{name: "Version missing", status: 200, body: `[{"number":"7.4.2"}]`, version: "8.0.0", expected: false},
		{name: "Gem never pushed", status: 404, body: `This rubygem could not be found.`, version: "0.1.0", expected: false},
		{name: "Registry down", status: 503, body: `unavailable`, version: "8.0.0", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/versions/alchemy_cms.json", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}, &staticTokens{})

			published, err := client.Published(context.Background(), "alchemy_cms", version.MustParse(tc.version))
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, errs.KindExternalService, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, published)
		})
	}
}

func TestPushExchangesToken(t *testing.T) {
	tokens := &staticTokens{token: "jwt-from-actions"}
	var pushed []byte

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/oidc/trusted_publisher/exchange_token":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "jwt-from-actions", body["jwt"])
			_, _ = io.WriteString(w, `{"rubygems_api_key":"rubygems_short_lived","name":"gemcut","expires_at":"2025-03-14T12:15:00Z"}`)
		case "/api/v1/gems":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "rubygems_short_lived", r.Header.Get("Authorization"))
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
			pushed, _ = io.ReadAll(r.Body)
			_, _ = io.WriteString(w, "Successfully registered gem: alchemy_cms (8.0.0)")
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}, tokens)

	err := client.Push(context.Background(), Artifact{Name: "alchemy_cms-8.0.0.gem", Data: []byte("gem-bytes")})
	require.NoError(t, err)
	assert.Equal(t, []byte("gem-bytes"), pushed)
	assert.Equal(t, "rubygems.org", tokens.audience)
}

func TestPushFailures(t *testing.T) {
	t.Run("Identity token unavailable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("registry must not be called without a token")
		}, &staticTokens{err: errs.Configuration(errors.New("no id-token permission"))})

		err := client.Push(context.Background(), Artifact{Name: "a.gem"})
		require.Error(t, err)
		assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
	})

	t.Run("No trusted publisher", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, &staticTokens{token: "jwt"})

		err := client.Push(context.Background(), Artifact{Name: "a.gem"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchanging identity token")
		assert.Equal(t, errs.KindExternalService, errs.KindOf(err))
	})

	t.Run("Push rejected", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/gems" {
				w.WriteHeader(http.StatusConflict)
				_, _ = io.WriteString(w, "Repushing of gem versions is not allowed.")
				return
			}
			_, _ = io.WriteString(w, `{"rubygems_api_key":"k"}`)
		}, &staticTokens{token: "jwt"})

		err := client.Push(context.Background(), Artifact{Name: "a.gem"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "409")
		assert.Contains(t, err.Error(), "Repushing")
	})
}

func TestActionsTokenSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer runtime-token", r.Header.Get("Authorization"))
		assert.Equal(t, "rubygems.org", r.URL.Query().Get("audience"))
		assert.Equal(t, "1", r.URL.Query().Get("api-version"))
		_, _ = io.WriteString(w, `{"count":1,"value":"signed.jwt.token"}`)
	}))
	defer server.Close()

	source := NewActionsTokenSource(server.Client(), server.URL+"/token?api-version=1", "runtime-token")
	token, err := source.IdentityToken(context.Background(), "rubygems.org")
	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", token)
}

func TestActionsTokenSourceNotConfigured(t *testing.T) {
	source := NewActionsTokenSource(http.DefaultClient, "", "")
	_, err := source.IdentityToken(context.Background(), "rubygems.org")
	require.Error(t, err)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
	assert.Contains(t, err.Error(), "ACTIONS_ID_TOKEN_REQUEST_URL")
}
