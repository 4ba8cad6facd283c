package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/store"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage platform credentials",
	}
	cmd.AddCommand(newAuthStatusCommand())
	return cmd
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which platforms are ready to announce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			storedKeys := map[string][]string{
				announce.PlatformTwitter: {store.KeyTwitterAccessToken, store.KeyTwitterRefreshToken},
				announce.PlatformThreads: {store.KeyThreadsAccessToken, store.KeyThreadsUserID},
				announce.PlatformGitHub:  {store.KeyGitHubAccessToken},
			}

			for _, platform := range allTargets() {
				missing := cfg.MissingPlatformFields(platform)
				absent, err := missingStoreKeys(ctx, st, storedKeys[platform])
				if err != nil {
					return err
				}
				printPlatformStatus(out, platform, missing, absent)
			}
			return nil
		},
	}
}

func missingStoreKeys(ctx context.Context, st *store.Store, keys []string) ([]string, error) {
	var absent []string
	for _, key := range keys {
		ok, err := st.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			absent = append(absent, key)
		}
	}
	return absent, nil
}

func printPlatformStatus(out io.Writer, platform string, missingConfig, missingStored []string) {
	if len(missingConfig) == 0 && len(missingStored) == 0 {
		fmt.Fprintf(out, "%-8s ready\n", platform)
		return
	}
	var parts []string
	if len(missingConfig) > 0 {
		parts = append(parts, "config: "+strings.Join(missingConfig, ", "))
	}
	if len(missingStored) > 0 {
		parts = append(parts, "stored: "+strings.Join(missingStored, ", "))
	}
	fmt.Fprintf(out, "%-8s missing %s\n", platform, strings.Join(parts, "; "))
}
