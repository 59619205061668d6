// Package announce posts release notifications to messaging services.
package announce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/danielolaszy/gemcut/internal/config"
	"github.com/danielolaszy/gemcut/internal/logging"
	"github.com/danielolaszy/gemcut/pkg/models"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// ErrNotConfigured indicates a channel is missing some of its settings.
var ErrNotConfigured = errors.New("channel not configured")

// DefaultTimeout bounds a single channel's post.
const DefaultTimeout = 10 * time.Second

// Channel is one messaging endpoint.
type Channel interface {
	Name() string
	// Validate reports ErrNotConfigured when the channel cannot be used.
	Validate() error
	Post(ctx context.Context, text string) error
}

// Report is the per-channel outcome of an announcement.
type Report struct {
	Sent    []string
	Skipped []string
	Failed  map[string]error
}

// Err combines every channel failure, or nil.
func (r Report) Err() error {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	var err error
	for _, name := range names {
		err = multierr.Append(err, fmt.Errorf("%s: %w", name, r.Failed[name]))
	}
	return err
}

// Message renders the announcement text for a release.
func Message(info models.ReleaseInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s has been released!", info.Name, info.Version)
	if info.URL != "" {
		fmt.Fprintf(&b, "\n\n%s", info.URL)
	}
	return b.String()
}

// Announcer dispatches to channels concurrently.
type Announcer struct {
	timeout time.Duration
}

// NewAnnouncer returns an announcer giving each channel timeout to respond.
// Zero uses DefaultTimeout.
func NewAnnouncer(timeout time.Duration) *Announcer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Announcer{timeout: timeout}
}

type outcome struct {
	name string
	err  error
}

// Announce posts info to every configured channel. Unconfigured channels are
// skipped. Each post has its own timeout and a failing channel never cancels
// the others; failures are recorded in the report and logged, never returned.
func (a *Announcer) Announce(ctx context.Context, info models.ReleaseInfo, channels ...Channel) Report {
	report := Report{Failed: map[string]error{}}

	var ready []Channel
	for _, ch := range channels {
		if err := ch.Validate(); err != nil {
			logging.Info("announcement channel skipped", "channel", ch.Name(), "reason", err)
			report.Skipped = append(report.Skipped, ch.Name())
			continue
		}
		ready = append(ready, ch)
	}
	if len(ready) == 0 {
		logging.Info("no announcement channels configured")
		return report
	}

	text := Message(info)
	p := pool.NewWithResults[outcome]().WithMaxGoroutines(len(ready))
	for _, ch := range ready {
		p.Go(func() outcome {
			postCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			return outcome{name: ch.Name(), err: ch.Post(postCtx, text)}
		})
	}

	for _, o := range p.Wait() {
		if o.err != nil {
			logging.Warn("announcement failed", "channel", o.name, "error", o.err)
			report.Failed[o.name] = o.err
			continue
		}
		logging.Info("announcement sent", "channel", o.name)
		report.Sent = append(report.Sent, o.name)
	}
	sort.Strings(report.Sent)
	return report
}

// ChannelsFromConfig returns every supported channel built from cfg. Channels
// with missing settings are still returned and skipped at announce time.
func ChannelsFromConfig(cfg config.AnnounceConfig, httpClient *http.Client) []Channel {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultClient()
	}
	return []Channel{
		NewSlack(httpClient, cfg.SlackWebhookURL),
		NewMastodon(httpClient, cfg.MastodonInstance, cfg.MastodonAccessToken),
		NewBluesky(httpClient, cfg.BlueskyHost, cfg.BlueskyIdentifier, cfg.BlueskyAppPassword),
	}
}
