package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, defaultListenAddr)
	}
	if cfg.GitHub.Org != defaultOrg {
		t.Errorf("Org = %q, want %q", cfg.GitHub.Org, defaultOrg)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
listen_addr = "0.0.0.0:9999"
base_url = "https://arbiter.example.com"

[store]
path = "/tmp/arbiter/settings.db"

[twitter]
username = "organizer"
consumer_key = "ck"
consumer_secret = "cs"
access_token = "at"
access_token_secret = "as"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:9999" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Store.Path != "/tmp/arbiter/settings.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if got := cfg.MissingPlatformFields("twitter"); len(got) != 0 {
		t.Errorf("MissingPlatformFields(twitter) = %v, want none", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestMissingPlatformFields(t *testing.T) {
	cfg := Default()
	tests := []struct {
		platform string
		want     int
	}{
		{"twitter", 5},
		{"threads", 2},
		{"github", 2},
		{"unknown", 0},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			if got := cfg.MissingPlatformFields(tt.platform); len(got) != tt.want {
				t.Errorf("MissingPlatformFields(%q) = %v, want %d entries", tt.platform, got, tt.want)
			}
		})
	}
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "arbiter.example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for non-http origin")
	}
}
