// Package github implements the announce.Platform capability for the
// challenge repositories themselves: winner entries land in the challenge
// README, demo videos are stored base64-inline in the asset repository, and
// winners are congratulated on their submission issues.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/logutil"
	"github.com/blacktop/arbiter/internal/store"
)

const (
	providerName = "github"

	prizesMarker  = "\n### Prizes:"
	winnersHeader = "\n### Winners:\n"

	requestTimeout = 30 * time.Second
)

// Config contains everything the GitHub platform needs.
type Config struct {
	// Token is the personal access token from the credential store.
	Token    string
	Username string
	// Repo is the challenge repository receiving the winners section.
	Repo string
	// DemoVideoRepo is the public asset repository for demo videos.
	DemoVideoRepo string
	// ProcessedDir is where the transcoder leaves videos and thumbnails.
	ProcessedDir string
	// BaseURL overrides the API origin, for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Client implements announce.Platform plus the orchestrator's AssetStore
// and IssueReplier collaborations.
type Client struct {
	api          *gogithub.Client
	username     string
	repo         string
	demoRepo     string
	processedDir string
}

// New constructs a GitHub platform from the stored personal access token.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, announce.MissingCredentialError{Platform: providerName, Keys: []string{store.KeyGitHubAccessToken}}
	}
	if cfg.Username == "" || cfg.DemoVideoRepo == "" {
		return nil, announce.ValidationError{Platform: providerName, Reason: "github.username and github.demo_video_repo must be configured"}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))

	api := gogithub.NewClient(authed)
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		api.BaseURL = base
	}

	return &Client{
		api:          api,
		username:     cfg.Username,
		repo:         cfg.Repo,
		demoRepo:     cfg.DemoVideoRepo,
		processedDir: cfg.ProcessedDir,
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Upload resolves the video reference against the asset repository. The
// bytes themselves were published by PublishVideo during the orchestrator's
// asset step, so the handle is just the video ID.
func (c *Client) Upload(_ context.Context, ref announce.MediaRef) (announce.MediaHandle, error) {
	if ref.Kind != announce.MediaVideo {
		return announce.MediaHandle{}, announce.ValidationError{Platform: providerName, Reason: "only demo videos can be attached to winner entries"}
	}
	return announce.MediaHandle{ID: ref.VideoID, Kind: ref.Kind}, nil
}

// Compose appends one winner entry to the challenge README's winners
// section. The returned post ID is the new content SHA, which is also the
// chain the next entry builds on.
func (c *Client) Compose(ctx context.Context, in announce.ComposeInput) (announce.Published, error) {
	if c.repo == "" {
		return announce.Published{}, announce.ValidationError{Platform: providerName, Reason: "no challenge repository selected"}
	}

	readme, _, _, err := c.api.Repositories.GetContents(ctx, c.username, c.repo, "README.md", nil)
	if err != nil {
		return announce.Published{}, fmt.Errorf("fetch README: %w", err)
	}
	content, err := readme.GetContent()
	if err != nil {
		return announce.Published{}, fmt.Errorf("decode README: %w", err)
	}

	entry := "* " + strings.TrimRight(in.Text, "\n")
	if in.Media != nil {
		videoURL := c.assetURL("videos", in.Media.ID+".mp4")
		thumbURL := c.assetURL("thumbnails", in.Media.ID+".jpg")
		entry += fmt.Sprintf("\n [![demo_video](%s)](%s)", thumbURL, videoURL)
	}

	updated, err := insertWinnerEntry(content, entry)
	if err != nil {
		return announce.Published{}, err
	}

	res, _, err := c.api.Repositories.UpdateFile(ctx, c.username, c.repo, "README.md", &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr("Update README with challenge winners"),
		Content: []byte(updated),
		SHA:     readme.SHA,
	})
	if err != nil {
		return announce.Published{}, fmt.Errorf("update README: %w", err)
	}

	permalink := fmt.Sprintf("https://github.com/%s/%s/", c.username, c.repo)
	return announce.Published{PostID: res.Content.GetSHA(), Permalink: permalink}, nil
}

// ResolveQuote has no meaning on GitHub: winner entries cannot quote other
// posts.
func (c *Client) ResolveQuote(_ context.Context, permalink string) (string, error) {
	return "", announce.ResolutionError{Platform: providerName, Permalink: permalink}
}

// PublishVideo stores the processed demo video (and its thumbnail when one
// exists) base64-inline in the asset repository, making both reachable at
// stable raw URLs. Re-publishing an already-stored video is a no-op update.
func (c *Client) PublishVideo(ctx context.Context, videoID string) error {
	videoPath := filepath.Join(c.processedDir, videoID+".mp4")
	if err := c.putFile(ctx, videoPath, "videos/"+videoID+".mp4", fmt.Sprintf("Upload video: %s", videoID)); err != nil {
		return err
	}

	thumbPath := filepath.Join(c.processedDir, videoID+".jpg")
	if _, err := os.Stat(thumbPath); err == nil {
		if err := c.putFile(ctx, thumbPath, "thumbnails/"+videoID+".jpg", fmt.Sprintf("Upload thumbnail: %s", videoID)); err != nil {
			return err
		}
	}
	return nil
}

// ReplyToIssue posts a comment on the submission issue identified by its
// URL.
func (c *Client) ReplyToIssue(ctx context.Context, issueURL, body string) error {
	number, repo, err := parseIssueURL(issueURL)
	if err != nil {
		return err
	}
	_, _, err = c.api.Issues.CreateComment(ctx, c.username, repo, number, &gogithub.IssueComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("comment on issue %d: %w", number, err)
	}
	return nil
}

// ListChallenges returns the org's challenge repositories, first page,
// newest first.
func (c *Client) ListChallenges(ctx context.Context, org string) ([]*gogithub.Repository, error) {
	repos, _, err := c.api.Repositories.ListByOrg(ctx, org, &gogithub.RepositoryListByOrgOptions{
		Sort:      "created",
		Direction: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("list %s repositories: %w", org, err)
	}
	return repos, nil
}

func (c *Client) putFile(ctx context.Context, localPath, repoPath, message string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("processed file %q not found", localPath)}
		}
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(message),
		Content: data,
	}

	// An existing file needs its SHA for the update to succeed.
	existing, _, resp, err := c.api.Repositories.GetContents(ctx, c.username, c.demoRepo, repoPath, nil)
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		// new file
	case err != nil:
		return fmt.Errorf("check %s: %w", repoPath, err)
	}

	logutil.Debugf("uploading %s to %s/%s (%d bytes)", repoPath, c.username, c.demoRepo, len(data))
	if _, _, err := c.api.Repositories.CreateFile(ctx, c.username, c.demoRepo, repoPath, opts); err != nil {
		return fmt.Errorf("upload %s: %w", repoPath, err)
	}
	return nil
}

func (c *Client) assetURL(kind, name string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/refs/heads/main/%s/%s", c.username, c.demoRepo, kind, name)
}

// insertWinnerEntry places entry at the end of the winners section, directly
// above the prizes section, creating the winners heading on first use.
func insertWinnerEntry(readme, entry string) (string, error) {
	marker := strings.Index(readme, prizesMarker)
	if marker < 0 {
		return "", announce.ValidationError{Platform: providerName, Reason: "README has no prizes section to anchor the winners list"}
	}

	insert := entry + "\n"
	if !strings.Contains(readme[:marker], strings.TrimSuffix(winnersHeader, "\n")) {
		insert = winnersHeader + insert
	}
	return readme[:marker] + insert + readme[marker:], nil
}

func parseIssueURL(issueURL string) (number int, repo string, err error) {
	parsed, err := url.Parse(issueURL)
	if err != nil {
		return 0, "", announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("invalid issue URL %q", issueURL)}
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	// owner/repo/issues/N
	if len(segments) < 4 || segments[len(segments)-2] != "issues" {
		return 0, "", announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("not an issue URL: %q", issueURL)}
	}
	number, err = strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return 0, "", announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("issue URL %q has no issue number", issueURL)}
	}
	return number, segments[1], nil
}
