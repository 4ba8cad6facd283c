// Package config loads and validates the arbiter configuration file.
//
// Every credential and platform setting the publisher needs is an explicit
// field here; providers never read the process environment directly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultListenAddr   = "127.0.0.1:8787"
	defaultBaseURL      = "https://localhost:8787"
	defaultStorePath    = "~/.local/share/arbiter/settings.db"
	defaultProcessedDir = "~/.local/share/arbiter/processed_videos"
	defaultLogDir       = "~/.local/share/arbiter/logs"
	defaultDownloadDir  = "~/.local/share/arbiter/downloaded_videos"
	defaultScriptPath   = "./process_video.sh"
	defaultOrg          = "Algorithm-Arena"
)

// Server contains the dashboard HTTP API settings.
type Server struct {
	ListenAddr string `toml:"listen_addr"`
	// BaseURL is the externally visible origin used to build OAuth
	// redirect URLs, e.g. "https://arbiter.example.com".
	BaseURL string `toml:"base_url"`
}

// Store contains the credential store settings.
type Store struct {
	Path string `toml:"path"`
}

// Video contains settings for the external transcoding collaborator.
type Video struct {
	ProcessedDir string `toml:"processed_dir"`
	LogDir       string `toml:"log_dir"`
	DownloadDir  string `toml:"download_dir"`
	Script       string `toml:"script"`
}

// GitHub configures the challenge org and the asset repository that holds
// processed demo videos and thumbnails.
type GitHub struct {
	Username      string `toml:"username"`
	Org           string `toml:"org"`
	DemoVideoRepo string `toml:"demo_video_repo"`
}

// Twitter contains the OAuth 1.0a application credentials plus the OAuth2
// client used for the authorization-code flow.
type Twitter struct {
	Username          string `toml:"username"`
	ConsumerKey       string `toml:"consumer_key"`
	ConsumerSecret    string `toml:"consumer_secret"`
	AccessToken       string `toml:"access_token"`
	AccessTokenSecret string `toml:"access_token_secret"`
	OAuth2ClientID    string `toml:"oauth2_client_id"`
	OAuth2Secret      string `toml:"oauth2_client_secret"`
}

// Threads contains the Meta Threads application credentials.
type Threads struct {
	AppID     string `toml:"app_id"`
	AppSecret string `toml:"app_secret"`
}

// Config encapsulates all configuration values for arbiter.
type Config struct {
	Server  Server  `toml:"server"`
	Store   Store   `toml:"store"`
	Video   Video   `toml:"video"`
	GitHub  GitHub  `toml:"github"`
	Twitter Twitter `toml:"twitter"`
	Threads Threads `toml:"threads"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			ListenAddr: defaultListenAddr,
			BaseURL:    defaultBaseURL,
		},
		Store: Store{Path: defaultStorePath},
		Video: Video{
			ProcessedDir: defaultProcessedDir,
			LogDir:       defaultLogDir,
			DownloadDir:  defaultDownloadDir,
			Script:       defaultScriptPath,
		},
		GitHub: GitHub{Org: defaultOrg},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/arbiter/config.toml")
}

// Load parses the configuration file at path, falling back to the default
// location when path is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	} else {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		path = expanded
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if normErr := cfg.normalize(); normErr != nil {
				return nil, normErr
			}
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Store.Path,
		&c.Video.ProcessedDir,
		&c.Video.LogDir,
		&c.Video.DownloadDir,
		&c.Video.Script,
	} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

// Validate ensures the configuration is usable for serving.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr must not be empty")
	}
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url must not be empty")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("server.base_url %q must be an http(s) origin", c.Server.BaseURL)
	}
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	return nil
}

// MissingPlatformFields reports the config fields a platform still needs
// before an announcement can target it. Token-store keys are checked
// separately by the providers.
func (c *Config) MissingPlatformFields(platform string) []string {
	var missing []string
	add := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	switch platform {
	case "twitter":
		add("twitter.username", c.Twitter.Username)
		add("twitter.consumer_key", c.Twitter.ConsumerKey)
		add("twitter.consumer_secret", c.Twitter.ConsumerSecret)
		add("twitter.access_token", c.Twitter.AccessToken)
		add("twitter.access_token_secret", c.Twitter.AccessTokenSecret)
	case "threads":
		add("threads.app_id", c.Threads.AppID)
		add("threads.app_secret", c.Threads.AppSecret)
	case "github":
		add("github.username", c.GitHub.Username)
		add("github.demo_video_repo", c.GitHub.DemoVideoRepo)
	}
	return missing
}

func expandPath(pathValue string) (string, error) {
	value := strings.TrimSpace(pathValue)
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if value == "~" {
			return home, nil
		}
		value = filepath.Join(home, value[2:])
	}
	return value, nil
}
