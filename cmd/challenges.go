package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newChallengesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "challenges",
		Short: "List the org's challenge repositories, newest first",
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
			gh, err := newGitHubClient(ctx, cfg, st, "")
			if err != nil {
				return err
			}

			repos, err := gh.ListChallenges(ctx, cfg.GitHub.Org)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, repo := range repos {
				created := ""
				if ts := repo.GetCreatedAt(); !ts.IsZero() {
					created = ts.Format("2006-01-02")
				}
				fmt.Fprintf(out, "%-12s %-40s %s\n", created, repo.GetName(), repo.GetDescription())
			}
			return nil
		},
	}
}
