package announce

import (
	"context"
	"fmt"

	"github.com/blacktop/arbiter/internal/logutil"
)

// AssetStore publishes a processed demo video (and its thumbnail) to the
// public asset repository, making it reachable at a stable URL before any
// platform references it.
type AssetStore interface {
	PublishVideo(ctx context.Context, videoID string) error
}

// IssueReplier posts a congratulation comment on a submission issue during
// the GitHub announcement.
type IssueReplier interface {
	ReplyToIssue(ctx context.Context, issueURL, body string) error
}

// TargetResult is the per-platform outcome of one announcement.
type TargetResult struct {
	Platform string
	URL      string
	Err      error
}

// Orchestrator fans one judged challenge out to the requested platforms.
type Orchestrator struct {
	platforms map[string]Platform
	assets    AssetStore
	issues    IssueReplier
}

// NewOrchestrator builds an orchestrator over the given platform set. assets
// and issues may be nil when no GitHub-backed side effects are wanted.
func NewOrchestrator(platforms map[string]Platform, assets AssetStore, issues IssueReplier) *Orchestrator {
	return &Orchestrator{platforms: platforms, assets: assets, issues: issues}
}

// Announce publishes the announcement to each target in turn. Demo videos
// are published to the asset repository first; a failure there aborts the
// whole operation since later threads depend on those URLs. After that,
// each platform is attempted independently: one platform's failure is
// recorded in its TargetResult and never blocks the others.
func (o *Orchestrator) Announce(ctx context.Context, ann Announcement, targets []string) ([]TargetResult, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no target platforms selected")
	}
	for _, target := range targets {
		if _, ok := o.platforms[target]; !ok {
			return nil, fmt.Errorf("unsupported platform %q", target)
		}
	}

	if o.assets != nil {
		for _, sub := range ann.Submissions {
			if sub.VideoID == "" {
				return nil, ValidationError{Platform: PlatformGitHub, Reason: fmt.Sprintf("submission by %s has no video", sub.GitHubUser)}
			}
			logutil.Infof("publishing demo video %s to asset repository", sub.VideoID)
			if err := o.assets.PublishVideo(ctx, sub.VideoID); err != nil {
				return nil, fmt.Errorf("publish demo video %s: %w", sub.VideoID, err)
			}
		}
	}

	results := make([]TargetResult, 0, len(targets))
	for _, target := range targets {
		platform := o.platforms[target]
		result := TargetResult{Platform: target}

		thread, err := ann.BuildThread(target)
		if err != nil {
			result.Err = err
			results = append(results, result)
			continue
		}

		// Winner issue replies go out before the README update, matching
		// the announcement flow users already expect.
		if target == PlatformGitHub && o.issues != nil {
			if err := o.replyToIssues(ctx, ann); err != nil {
				result.Err = err
				results = append(results, result)
				continue
			}
		}

		logutil.Infof("publishing %d posts to %s", len(thread.Posts), target)
		published, err := PublishThread(ctx, platform, thread)
		if err != nil {
			logutil.Errorf("%s announcement failed: %v", target, err)
			result.Err = err
		} else {
			logutil.Infof("%s announcement published: %s", target, published.ThreadURL)
			result.URL = published.ThreadURL
		}
		results = append(results, result)
	}

	return results, nil
}

func (o *Orchestrator) replyToIssues(ctx context.Context, ann Announcement) error {
	for _, sub := range ann.Submissions {
		if sub.IssueReply == "" {
			continue
		}
		if err := o.issues.ReplyToIssue(ctx, sub.IssueURL, sub.IssueReply); err != nil {
			return fmt.Errorf("reply to %s: %w", sub.IssueURL, err)
		}
	}
	return nil
}
