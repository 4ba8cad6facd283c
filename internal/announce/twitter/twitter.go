// Package twitter implements the announce.Platform capability for X
// (Twitter) on top of gotwi, which owns the OAuth 1.0a request signing the
// media upload protocol requires.
package twitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/media/upload"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/michimani/gotwi/resources"
	"github.com/michimani/gotwi/tweet/managetweet"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/config"
	"github.com/blacktop/arbiter/internal/logutil"
)

const (
	providerName = "twitter"

	// chunkSize is the APPEND segment size for video uploads.
	chunkSize = 4 * 1024 * 1024

	processingPollAttempts = 10
)

var httpTimeout = 30 * time.Second

// Client implements announce.Platform for X (Twitter).
type Client struct {
	api          *gotwi.Client
	username     string
	processedDir string
}

// New constructs a Twitter platform using gotwi and OAuth 1.0a user-context
// credentials from the configuration.
func New(cfg config.Twitter, processedDir string) (*Client, error) {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"twitter.username", cfg.Username},
		{"twitter.consumer_key", cfg.ConsumerKey},
		{"twitter.consumer_secret", cfg.ConsumerSecret},
		{"twitter.access_token", cfg.AccessToken},
		{"twitter.access_token_secret", cfg.AccessTokenSecret},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return nil, announce.MissingCredentialError{Platform: providerName, Keys: missing}
	}

	client, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           &http.Client{Timeout: httpTimeout},
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessTokenSecret,
		APIKey:               cfg.ConsumerKey,
		APIKeySecret:         cfg.ConsumerSecret,
		Debug:                logutil.Verbose(),
	})
	if err != nil {
		return nil, fmt.Errorf("create X client: %w", err)
	}
	if !client.IsReady() {
		return nil, fmt.Errorf("twitter client not ready")
	}

	return &Client{api: client, username: cfg.Username, processedDir: processedDir}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// Upload moves the referenced media into X's media storage. Images take the
// single-segment path; videos stream in chunked APPEND segments and wait for
// server-side processing to finish.
func (c *Client) Upload(ctx context.Context, ref announce.MediaRef) (announce.MediaHandle, error) {
	switch ref.Kind {
	case announce.MediaImage:
		mediaID, err := c.uploadImage(ctx, ref.ImagePath)
		if err != nil {
			return announce.MediaHandle{}, err
		}
		return announce.MediaHandle{ID: mediaID, Kind: ref.Kind}, nil
	case announce.MediaVideo:
		videoPath := filepath.Join(c.processedDir, ref.VideoID+".mp4")
		mediaID, err := c.uploadVideo(ctx, videoPath)
		if err != nil {
			return announce.MediaHandle{}, err
		}
		return announce.MediaHandle{ID: mediaID, Kind: ref.Kind}, nil
	default:
		return announce.MediaHandle{}, announce.ValidationError{Platform: providerName, Reason: "no media to upload"}
	}
}

// Compose publishes one tweet with optional media, reply target, and quote
// target, returning the tweet's permalink.
func (c *Client) Compose(ctx context.Context, in announce.ComposeInput) (announce.Published, error) {
	input := &managetweettypes.CreateInput{
		Text: gotwi.String(in.Text),
	}
	if in.Media != nil {
		input.Media = &managetweettypes.CreateInputMedia{MediaIDs: []string{in.Media.ID}}
	}
	if in.ReplyTo != "" {
		input.Reply = &managetweettypes.CreateInputReply{InReplyToTweetID: in.ReplyTo}
	}
	if in.QuoteID != "" {
		input.QuoteTweetID = gotwi.String(in.QuoteID)
	}

	logutil.Debugf("posting tweet: media=%v reply_to=%s quote=%s", in.Media != nil, in.ReplyTo, in.QuoteID)
	res, err := managetweet.Create(ctx, c.api, input)
	if err != nil {
		return announce.Published{}, fmt.Errorf("post tweet: %w", unwrapGotwiError(err))
	}

	id := strVal(res.Data.ID)
	if id == "" {
		return announce.Published{}, fmt.Errorf("post tweet: response carried no tweet ID")
	}
	return announce.Published{
		PostID:    id,
		Permalink: fmt.Sprintf("https://x.com/%s/status/%s", c.username, id),
	}, nil
}

// ResolveQuote extracts the tweet ID from a status permalink. X permalinks
// embed the post ID directly, so no timeline lookup is needed.
func (c *Client) ResolveQuote(_ context.Context, permalink string) (string, error) {
	parsed, err := url.Parse(permalink)
	if err != nil {
		return "", announce.ResolutionError{Platform: providerName, Permalink: permalink}
	}
	host := parsed.Hostname()
	if host != "x.com" && host != "twitter.com" {
		return "", announce.ResolutionError{Platform: providerName, Permalink: permalink}
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 3 || segments[1] != "status" || segments[2] == "" {
		return "", announce.ResolutionError{Platform: providerName, Permalink: permalink}
	}
	return segments[2], nil
}

func (c *Client) uploadImage(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("image %q not found", imagePath)}
		}
		return "", fmt.Errorf("read image: %w", err)
	}

	mediaType, category, err := resolveImageType(imagePath, data)
	if err != nil {
		return "", err
	}

	logutil.Debugf("initialize upload: media_type=%s bytes=%d", mediaType, len(data))
	initRes, err := upload.Initialize(ctx, c.api, &uploadtypes.InitializeInput{
		MediaType:     mediaType,
		TotalBytes:    len(data),
		MediaCategory: category,
	})
	if err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	if err := partialError(initRes.Errors); err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	mediaID := initRes.Data.MediaID

	if err := c.appendSegment(ctx, mediaID, 0, data); err != nil {
		return "", err
	}

	return c.finalize(ctx, mediaID)
}

func (c *Client) uploadVideo(ctx context.Context, videoPath string) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("processed video %q not found", videoPath)}
		}
		return "", fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat video: %w", err)
	}
	totalBytes := info.Size()

	logutil.Debugf("initialize video upload: bytes=%d path=%s", totalBytes, videoPath)
	initRes, err := upload.Initialize(ctx, c.api, &uploadtypes.InitializeInput{
		MediaType:     uploadtypes.MediaTypeMP4,
		TotalBytes:    int(totalBytes),
		MediaCategory: uploadtypes.MediaCategoryTweetVideo,
	})
	if err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	if err := partialError(initRes.Errors); err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	mediaID := initRes.Data.MediaID
	logutil.Debugf("initialize complete: media_id=%s", mediaID)

	sent, err := appendChunks(ctx, file, chunkSize, func(ctx context.Context, segment int, chunk []byte) error {
		return c.appendSegment(ctx, mediaID, segment, chunk)
	})
	if err != nil {
		return "", err
	}
	if sent != totalBytes {
		return "", fmt.Errorf("append upload: sent %d of %d bytes", sent, totalBytes)
	}

	return c.finalize(ctx, mediaID)
}

// appendChunks reads r to EOF in chunkSize pieces and hands each to send
// with a strictly increasing segment index starting at 0. The first send
// failure aborts the upload; there is no per-chunk retry.
func appendChunks(ctx context.Context, r io.Reader, chunkSize int, send func(ctx context.Context, segment int, chunk []byte) error) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	segment := 0
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if sendErr := send(ctx, segment, buf[:n]); sendErr != nil {
				return total, fmt.Errorf("append segment %d: %w", segment, sendErr)
			}
			total += int64(n)
			segment++
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("read chunk: %w", err)
		}
	}
}

func (c *Client) appendSegment(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	appendIn := &uploadtypes.AppendInput{
		MediaID:      mediaID,
		Media:        bytes.NewReader(chunk),
		SegmentIndex: segment,
	}
	appendIn.GenerateBoundary()

	logutil.Debugf("append upload: media_id=%s segment=%d bytes=%d", mediaID, segment, len(chunk))
	appendRes, err := upload.Append(ctx, c.api, appendIn)
	if err != nil {
		return fmt.Errorf("append upload: %w", err)
	}
	if err := partialError(appendRes.Errors); err != nil {
		return fmt.Errorf("append upload: %w", err)
	}
	return nil
}

// finalize signals completion and waits out any server-side processing. The
// state is refreshed by re-issuing FINALIZE after the platform's suggested
// delay, which X treats as a status re-check for an already-finalized
// upload.
func (c *Client) finalize(ctx context.Context, mediaID string) (string, error) {
	finalizeRes, err := upload.Finalize(ctx, c.api, &uploadtypes.FinalizeInput{MediaID: mediaID})
	if err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	if err := partialError(finalizeRes.Errors); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	state := finalizeRes.Data.ProcessingInfo.State
	checkAfter := finalizeRes.Data.ProcessingInfo.CheckAfterSecs
	logutil.Debugf("finalize state=%s media_id=%s", state, mediaID)

	err = retry.Do(
		func() error {
			switch state {
			case "", resources.ProcessingInfoStateSucceeded:
				return nil
			case resources.ProcessingInfoStateInProgress, resources.ProcessingInfoStatePending:
				if err := sleepCtx(ctx, time.Duration(checkAfter)*time.Second); err != nil {
					return retry.Unrecoverable(err)
				}
				res, err := upload.Finalize(ctx, c.api, &uploadtypes.FinalizeInput{MediaID: mediaID})
				if err != nil {
					return retry.Unrecoverable(fmt.Errorf("check processing: %w", err))
				}
				state = res.Data.ProcessingInfo.State
				checkAfter = res.Data.ProcessingInfo.CheckAfterSecs
				if state == "" || state == resources.ProcessingInfoStateSucceeded {
					return nil
				}
				return fmt.Errorf("media %s still processing: state=%s", mediaID, state)
			default:
				return retry.Unrecoverable(fmt.Errorf("media processing failed: state=%s", state))
			}
		},
		retry.Attempts(processingPollAttempts),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logutil.Debugf("media %s processing check %d: %v", mediaID, n+1, err)
		}),
	)
	if err != nil {
		return "", err
	}
	return mediaID, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func resolveImageType(path string, data []byte) (uploadtypes.MediaType, uploadtypes.MediaCategory, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return uploadtypes.MediaTypeJPEG, uploadtypes.MediaCategoryTweetImage, nil
	case ".png":
		return uploadtypes.MediaTypePNG, uploadtypes.MediaCategoryTweetImage, nil
	case ".gif":
		return uploadtypes.MediaTypeGIF, uploadtypes.MediaCategoryTweetGIF, nil
	case ".webp":
		return uploadtypes.MediaTypeWebP, uploadtypes.MediaCategoryTweetImage, nil
	}

	// fallback to simple detection
	detected := http.DetectContentType(data)
	switch {
	case strings.Contains(detected, "jpeg"):
		return uploadtypes.MediaTypeJPEG, uploadtypes.MediaCategoryTweetImage, nil
	case strings.Contains(detected, "png"):
		return uploadtypes.MediaTypePNG, uploadtypes.MediaCategoryTweetImage, nil
	case strings.Contains(detected, "gif"):
		return uploadtypes.MediaTypeGIF, uploadtypes.MediaCategoryTweetGIF, nil
	case strings.Contains(detected, "webp"):
		return uploadtypes.MediaTypeWebP, uploadtypes.MediaCategoryTweetImage, nil
	}

	return "", "", announce.ValidationError{Platform: providerName, Reason: fmt.Sprintf("unsupported image type for %q", path)}
}

func partialError(partials []resources.PartialError) error {
	if len(partials) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(partials))
	for _, pe := range partials {
		switch {
		case pe.Detail != nil && *pe.Detail != "":
			msgs = append(msgs, *pe.Detail)
		case pe.Title != nil && *pe.Title != "":
			msgs = append(msgs, *pe.Title)
		case pe.ResourceType != nil:
			msgs = append(msgs, fmt.Sprintf("%s", *pe.ResourceType))
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "unknown error")
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func unwrapGotwiError(err error) error {
	var gwErr *gotwi.GotwiError
	if errors.As(err, &gwErr) && gwErr != nil {
		return fmt.Errorf("%s", summarizeGotwiError(gwErr))
	}
	return err
}

func summarizeGotwiError(err *gotwi.GotwiError) string {
	if err == nil {
		return "unknown X API error"
	}

	parts := make([]string, 0, 4)
	if err.Title != "" {
		parts = append(parts, err.Title)
	}
	if err.Detail != "" {
		parts = append(parts, err.Detail)
	}
	for _, apiErr := range err.APIErrors {
		if apiErr.Message != "" {
			parts = append(parts, apiErr.Message)
		}
	}
	if len(parts) == 0 {
		if msg := err.Error(); msg != "" {
			parts = append(parts, msg)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "X API request failed")
	}

	return strings.Join(parts, "; ")
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
