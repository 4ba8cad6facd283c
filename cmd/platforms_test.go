package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacktop/arbiter/internal/config"
	"github.com/blacktop/arbiter/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "arbiter.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// Threads posts reference demo videos by URL in the GitHub asset repo, so a
// threads announcement with GitHub unconfigured must fail up front rather
// than composing posts that point at media nobody published.
func TestBuildPlatformsThreadsNeedsAssetRepo(t *testing.T) {
	cfg := config.Default()
	cfg.Threads.AppID = "app-id"
	cfg.Threads.AppSecret = "app-secret"

	ctx := context.Background()
	st := testStore(t)
	if err := st.Set(ctx, store.KeyThreadsAccessToken, "th-access"); err != nil {
		t.Fatal(err)
	}
	if err := st.Set(ctx, store.KeyThreadsUserID, "12345"); err != nil {
		t.Fatal(err)
	}

	_, _, err := buildPlatforms(ctx, &cfg, st, "challenge-1", []string{"threads"})
	if err == nil {
		t.Fatal("expected error with github unconfigured")
	}
	if !strings.Contains(err.Error(), "github") {
		t.Errorf("error does not name the asset repo dependency: %v", err)
	}
}

func TestBuildPlatformsTwitterOnlyWithoutGitHub(t *testing.T) {
	cfg := config.Default()
	cfg.Twitter.Username = "organizer"
	cfg.Twitter.ConsumerKey = "ck"
	cfg.Twitter.ConsumerSecret = "cs"
	cfg.Twitter.AccessToken = "at"
	cfg.Twitter.AccessTokenSecret = "as"

	ctx := context.Background()
	platforms, gh, err := buildPlatforms(ctx, &cfg, testStore(t), "challenge-1", []string{"twitter"})
	if err != nil {
		t.Fatalf("buildPlatforms: %v", err)
	}
	if _, ok := platforms["twitter"]; !ok {
		t.Error("twitter platform missing")
	}
	if gh != nil {
		t.Error("expected nil github client when unconfigured")
	}
}

func TestBuildPlatformsGitHubTargetNeedsConfig(t *testing.T) {
	cfg := config.Default()
	_, _, err := buildPlatforms(context.Background(), &cfg, testStore(t), "challenge-1", []string{"github"})
	if err == nil {
		t.Fatal("expected error with github unconfigured")
	}
}
