package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, KeyTwitterAccessToken, "token-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, KeyTwitterAccessToken)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "token-1" {
		t.Errorf("Get() = %q, want %q", got, "token-1")
	}

	// Overwrite replaces the previous value.
	if err := s.Set(ctx, KeyTwitterAccessToken, "token-2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err = s.Get(ctx, KeyTwitterAccessToken)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "token-2" {
		t.Errorf("Get() after overwrite = %q, want %q", got, "token-2")
	}
}

func TestGetMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "never_set")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestExists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, KeyThreadsUserID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if ok {
		t.Error("Exists() = true for unset key")
	}

	if err := s.Set(ctx, KeyThreadsUserID, "1234"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, KeyThreadsUserID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Error("Exists() = false for set key")
	}

	if err := s.Set(ctx, KeyThreadsUserID, ""); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, KeyThreadsUserID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if ok {
		t.Error("Exists() = true for empty value")
	}
}

func TestDeleteAndKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, key := range []string{KeyThreadsAccessToken, KeyGitHubAccessToken} {
		if err := s.Set(ctx, key, "v"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Delete(ctx, KeyThreadsAccessToken); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// Deleting again is fine.
	if err := s.Delete(ctx, KeyThreadsAccessToken); err != nil {
		t.Fatalf("Delete() second call error = %v", err)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != KeyGitHubAccessToken {
		t.Errorf("Keys() = %v, want [%s]", keys, KeyGitHubAccessToken)
	}
}
