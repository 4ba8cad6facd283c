// Package threads implements the announce.Platform capability for Meta
// Threads via the graph.threads.net API.
//
// Threads never receives media bytes directly: a post's media must already
// be reachable at a public URL, which the platform fetches server-side. The
// two-phase container/publish flow requires waiting for the container to
// finish processing before the publish call.
package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/logutil"
	"github.com/blacktop/arbiter/internal/store"
)

const (
	providerName = "threads"

	defaultBaseURL = "https://graph.threads.net"

	// settleDelay is the flat wait the fixed strategy gives Meta's servers
	// to process an uploaded container before publish.
	settleDelay = 45 * time.Second

	// quoteLookupLimit is the page size of the recent-posts lookup. Only
	// the first page is consulted.
	quoteLookupLimit = 100

	statusPollAttempts = 20
	statusPollInterval = 5 * time.Second

	requestTimeout = 30 * time.Second
)

// WaitFunc blocks until the media container is ready to publish.
type WaitFunc func(ctx context.Context, c *Client, containerID string) error

// Config contains everything the Threads platform needs.
type Config struct {
	AccessToken string
	UserID      string
	// AssetBaseURL is the public root under which processed demo videos
	// are reachable, e.g. a raw.githubusercontent.com tree.
	AssetBaseURL string
	// BaseURL overrides the Graph API origin, for tests.
	BaseURL    string
	HTTPClient *http.Client
	// SettleWait overrides the media-ready strategy. Default polls the
	// container status; PollStatus and FixedDelay are provided.
	SettleWait WaitFunc
}

// Client implements announce.Platform for Threads.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	accessToken  string
	userID       string
	assetBaseURL string
	settleWait   WaitFunc
}

// New constructs a Threads platform. The access token and user ID come from
// the credential store; their absence is a precondition failure.
func New(cfg Config) (*Client, error) {
	var missing []string
	if strings.TrimSpace(cfg.AccessToken) == "" {
		missing = append(missing, store.KeyThreadsAccessToken)
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		missing = append(missing, store.KeyThreadsUserID)
	}
	if len(missing) > 0 {
		return nil, announce.MissingCredentialError{Platform: providerName, Keys: missing}
	}

	client := &Client{
		httpClient:   cfg.HTTPClient,
		baseURL:      cfg.BaseURL,
		accessToken:  cfg.AccessToken,
		userID:       cfg.UserID,
		assetBaseURL: strings.TrimRight(cfg.AssetBaseURL, "/"),
		settleWait:   cfg.SettleWait,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: requestTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.settleWait == nil {
		client.settleWait = PollStatus
	}
	return client, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Upload is a URL-reference upload: no bytes move here. Videos resolve to
// their published asset URL; images must already be public URLs.
func (c *Client) Upload(_ context.Context, ref announce.MediaRef) (announce.MediaHandle, error) {
	switch ref.Kind {
	case announce.MediaVideo:
		if c.assetBaseURL == "" {
			return announce.MediaHandle{}, announce.ValidationError{Platform: providerName, Reason: "no asset base URL configured for video posts"}
		}
		return announce.MediaHandle{
			ID:   fmt.Sprintf("%s/videos/%s.mp4", c.assetBaseURL, ref.VideoID),
			Kind: ref.Kind,
		}, nil
	case announce.MediaImage:
		if !strings.HasPrefix(ref.ImagePath, "http://") && !strings.HasPrefix(ref.ImagePath, "https://") {
			return announce.MediaHandle{}, announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("image %q is not publicly reachable", ref.ImagePath)}
		}
		return announce.MediaHandle{ID: ref.ImagePath, Kind: ref.Kind}, nil
	default:
		return announce.MediaHandle{}, announce.ValidationError{Platform: providerName, Reason: "no media to upload"}
	}
}

// Compose creates a media container, waits for it to settle when media is
// attached, publishes it, and returns the published post's permalink.
func (c *Client) Compose(ctx context.Context, in announce.ComposeInput) (announce.Published, error) {
	params := url.Values{}
	params.Set("text", in.Text)
	switch {
	case in.Media == nil:
		params.Set("media_type", "TEXT")
	case in.Media.Kind == announce.MediaVideo:
		params.Set("media_type", "VIDEO")
		params.Set("video_url", in.Media.ID)
	case in.Media.Kind == announce.MediaImage:
		params.Set("media_type", "IMAGE")
		params.Set("image_url", in.Media.ID)
	}
	if in.ReplyTo != "" {
		params.Set("reply_to_id", in.ReplyTo)
	}
	if in.QuoteID != "" {
		params.Set("quote_post_id", in.QuoteID)
	}

	var container struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/%s/threads", c.userID), params, &container); err != nil {
		return announce.Published{}, fmt.Errorf("create container: %w", err)
	}
	logutil.Debugf("threads container created: id=%s", container.ID)

	if in.Media != nil {
		if err := c.settleWait(ctx, c, container.ID); err != nil {
			return announce.Published{}, fmt.Errorf("await media ready: %w", err)
		}
	}

	publishParams := url.Values{}
	publishParams.Set("creation_id", container.ID)
	var published struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/%s/threads_publish", c.userID), publishParams, &published); err != nil {
		return announce.Published{}, fmt.Errorf("publish thread: %w", err)
	}

	permalink, err := c.permalink(ctx, published.ID)
	if err != nil {
		return announce.Published{}, err
	}
	return announce.Published{PostID: published.ID, Permalink: permalink}, nil
}

// ResolveQuote fetches the account's recent posts and matches the permalink.
// Only the first page is consulted; older posts cannot be quoted.
func (c *Client) ResolveQuote(ctx context.Context, permalink string) (string, error) {
	params := url.Values{}
	params.Set("fields", "id,permalink")
	params.Set("limit", fmt.Sprintf("%d", quoteLookupLimit))

	var page struct {
		Data []struct {
			ID        string `json:"id"`
			Permalink string `json:"permalink"`
		} `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/%s/threads", c.userID), params, &page); err != nil {
		return "", fmt.Errorf("list recent posts: %w", err)
	}

	want := normalizePermalink(permalink)
	for _, post := range page.Data {
		if normalizePermalink(post.Permalink) == want {
			return post.ID, nil
		}
	}
	return "", announce.ResolutionError{Platform: providerName, Permalink: permalink}
}

// PollStatus waits for the container to report FINISHED, checking the
// status field at a fixed interval.
func PollStatus(ctx context.Context, c *Client, containerID string) error {
	return retry.Do(
		func() error {
			params := url.Values{}
			params.Set("fields", "status,error_message")
			var status struct {
				Status       string `json:"status"`
				ErrorMessage string `json:"error_message"`
			}
			if err := c.call(ctx, http.MethodGet, "/"+containerID, params, &status); err != nil {
				return retry.Unrecoverable(err)
			}
			switch status.Status {
			case "FINISHED", "PUBLISHED":
				return nil
			case "ERROR", "EXPIRED":
				return retry.Unrecoverable(fmt.Errorf("container %s processing failed: %s (%s)", containerID, status.Status, status.ErrorMessage))
			default:
				return fmt.Errorf("container %s not ready: %s", containerID, status.Status)
			}
		},
		retry.Attempts(statusPollAttempts),
		retry.Delay(statusPollInterval),
		retry.MaxDelay(statusPollInterval),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logutil.Debugf("threads container wait %d: %v", n+1, err)
		}),
	)
}

// FixedDelay is the original flat settle wait, kept for callers that prefer
// the simpler behavior.
func FixedDelay(ctx context.Context, _ *Client, _ string) error {
	timer := time.NewTimer(settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) permalink(ctx context.Context, postID string) (string, error) {
	params := url.Values{}
	params.Set("fields", "id,permalink")
	var post struct {
		Permalink string `json:"permalink"`
	}
	if err := c.call(ctx, http.MethodGet, "/"+postID, params, &post); err != nil {
		return "", fmt.Errorf("fetch permalink: %w", err)
	}
	return post.Permalink, nil
}

// call issues one Graph API request with the access token appended and
// decodes the JSON response into out. Non-2xx responses surface the API's
// error payload.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.accessToken)

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, apiErrorDetail(resp.StatusCode, body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func apiErrorDetail(status int, body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Sprintf("HTTP %d: %s (%s, code %d)", status, payload.Error.Message, payload.Error.Type, payload.Error.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
}

func normalizePermalink(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimRight(trimmed, "/")
}
