package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/announce/github"
	"github.com/blacktop/arbiter/internal/announce/threads"
	"github.com/blacktop/arbiter/internal/announce/twitter"
	"github.com/blacktop/arbiter/internal/config"
	"github.com/blacktop/arbiter/internal/store"
)

var supportedTargets = map[string]struct{}{
	announce.PlatformTwitter: {},
	announce.PlatformThreads: {},
	announce.PlatformGitHub:  {},
}

func allTargets() []string {
	return []string{announce.PlatformGitHub, announce.PlatformThreads, announce.PlatformTwitter}
}

func normalizeTargets(values []string) ([]string, error) {
	if len(values) == 0 {
		return allTargets(), nil
	}

	result := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return allTargets(), nil
		}
		if _, ok := supportedTargets[raw]; !ok {
			return nil, fmt.Errorf("unsupported target %q", raw)
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, raw)
	}

	if len(result) == 0 {
		return nil, errors.New("no targets selected")
	}

	sort.Strings(result)
	return result, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Store.Path)
}

func assetBaseURL(cfg *config.Config) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/refs/heads/main",
		cfg.GitHub.Username, cfg.GitHub.DemoVideoRepo)
}

// storedValue reads a credential from the store, mapping absence to an
// empty string so the providers report it as a missing credential.
func storedValue(ctx context.Context, st *store.Store, key string) (string, error) {
	value, err := st.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return value, err
}

func newGitHubClient(ctx context.Context, cfg *config.Config, st *store.Store, repo string) (*github.Client, error) {
	if missing := cfg.MissingPlatformFields(announce.PlatformGitHub); len(missing) > 0 {
		return nil, fmt.Errorf("config incomplete, set %s", strings.Join(missing, ", "))
	}
	token, err := storedValue(ctx, st, store.KeyGitHubAccessToken)
	if err != nil {
		return nil, err
	}
	return github.New(github.Config{
		Token:         token,
		Username:      cfg.GitHub.Username,
		Repo:          repo,
		DemoVideoRepo: cfg.GitHub.DemoVideoRepo,
		ProcessedDir:  cfg.Video.ProcessedDir,
	})
}

// buildPlatforms constructs one announce.Platform per requested target.
// The returned GitHub client doubles as the orchestrator's asset store and
// issue replier; it is nil when GitHub could not be configured and was not
// itself a target.
func buildPlatforms(ctx context.Context, cfg *config.Config, st *store.Store, repo string, targets []string) (map[string]announce.Platform, *github.Client, error) {
	platforms := make(map[string]announce.Platform, len(targets))
	var errs []error

	gh, ghErr := newGitHubClient(ctx, cfg, st, repo)

	for _, target := range targets {
		switch target {
		case announce.PlatformTwitter:
			if missing := cfg.MissingPlatformFields(target); len(missing) > 0 {
				errs = append(errs, fmt.Errorf("twitter: config incomplete, set %s", strings.Join(missing, ", ")))
				continue
			}
			client, err := twitter.New(cfg.Twitter, cfg.Video.ProcessedDir)
			if err != nil {
				errs = append(errs, fmt.Errorf("twitter: %w", err))
				continue
			}
			platforms[target] = client

		case announce.PlatformThreads:
			if missing := cfg.MissingPlatformFields(target); len(missing) > 0 {
				errs = append(errs, fmt.Errorf("threads: config incomplete, set %s", strings.Join(missing, ", ")))
				continue
			}
			// Threads ingests media by URL from the GitHub asset repo,
			// so a working GitHub client is a precondition.
			if ghErr != nil {
				errs = append(errs, fmt.Errorf("threads: demo videos are served from the github asset repo: %w", ghErr))
				continue
			}
			token, err := storedValue(ctx, st, store.KeyThreadsAccessToken)
			if err != nil {
				return nil, nil, err
			}
			userID, err := storedValue(ctx, st, store.KeyThreadsUserID)
			if err != nil {
				return nil, nil, err
			}
			client, err := threads.New(threads.Config{
				AccessToken:  token,
				UserID:       userID,
				AssetBaseURL: assetBaseURL(cfg),
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("threads: %w", err))
				continue
			}
			platforms[target] = client

		case announce.PlatformGitHub:
			if ghErr != nil {
				errs = append(errs, fmt.Errorf("github: %w", ghErr))
				continue
			}
			platforms[target] = gh

		default:
			errs = append(errs, fmt.Errorf("target %q is not implemented", target))
		}
	}

	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	if ghErr != nil {
		// Only reachable for targets that carry their own media bytes
		// (twitter uploads straight from the processed dir).
		gh = nil
	}
	return platforms, gh, nil
}

// newOrchestrator wires the platform set with the GitHub-backed side
// effects when available.
func newOrchestrator(platforms map[string]announce.Platform, gh *github.Client) *announce.Orchestrator {
	var assets announce.AssetStore
	var issues announce.IssueReplier
	if gh != nil {
		assets = gh
		issues = gh
	}
	return announce.NewOrchestrator(platforms, assets, issues)
}
