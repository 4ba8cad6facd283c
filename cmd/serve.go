package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/config"
	"github.com/blacktop/arbiter/internal/server"
	"github.com/blacktop/arbiter/internal/store"
	"github.com/blacktop/arbiter/internal/videoproc"
)

type announcerFunc func(ctx context.Context, ann announce.Announcement, targets []string) ([]announce.TargetResult, error)

func (f announcerFunc) Announce(ctx context.Context, ann announce.Announcement, targets []string) ([]announce.TargetResult, error) {
	return f(ctx, ann, targets)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(*cfg, st, requestAnnouncer(cfg, st), newProcessor(cfg))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
}

// requestAnnouncer builds the platform set per request so freshly stored
// OAuth tokens take effect without a restart.
func requestAnnouncer(cfg *config.Config, st *store.Store) announcerFunc {
	return func(ctx context.Context, ann announce.Announcement, targets []string) ([]announce.TargetResult, error) {
		normalized, err := normalizeTargets(targets)
		if err != nil {
			return nil, err
		}
		platforms, gh, err := buildPlatforms(ctx, cfg, st, ann.Repo, normalized)
		if err != nil {
			return nil, err
		}
		return newOrchestrator(platforms, gh).Announce(ctx, ann, normalized)
	}
}

func newProcessor(cfg *config.Config) *videoproc.Processor {
	return &videoproc.Processor{
		Dir:         cfg.Video.ProcessedDir,
		LogDir:      cfg.Video.LogDir,
		DownloadDir: cfg.Video.DownloadDir,
		Script:      cfg.Video.Script,
	}
}
