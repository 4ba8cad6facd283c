package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blacktop/arbiter/internal/announce"
)

func newAnnounceCommand() *cobra.Command {
	var (
		judgmentFile string
		targetsFlag  []string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Publish a judged challenge's winners",
		Long: "announce reads a judgment document and publishes the winner threads " +
			"to the selected targets. Demo videos must already be processed.",
		Args: cobra.NoArgs,
		Example: `  arbiter announce --file judgment.json
  arbiter announce --file judgment.json --target twitter --target threads
  arbiter announce --file judgment.json --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ann, err := readJudgment(judgmentFile)
			if err != nil {
				return err
			}
			targets, err := normalizeTargets(targetsFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				return printDryRun(out, ann, targets)
			}

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
			platforms, gh, err := buildPlatforms(ctx, cfg, st, ann.Repo, targets)
			if err != nil {
				return err
			}

			results, err := newOrchestrator(platforms, gh).Announce(ctx, *ann, targets)
			if err != nil {
				return err
			}

			var errs []error
			for _, res := range results {
				if res.Err != nil {
					fmt.Fprintf(out, "%s failed: %v\n", res.Platform, res.Err)
					errs = append(errs, fmt.Errorf("%s: %w", res.Platform, res.Err))
					continue
				}
				fmt.Fprintf(out, "announced on %s: %s\n", res.Platform, res.URL)
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVarP(&judgmentFile, "file", "f", "", "Judgment document (JSON)")
	cmd.Flags().StringSliceVarP(&targetsFlag, "target", "t", nil, "Targets to announce on (twitter, threads, github, or all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the threads without publishing")
	cmd.Flags().SortFlags = false
	cmd.MarkFlagRequired("file")

	return cmd
}

func readJudgment(path string) (*announce.Announcement, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open judgment: %w", err)
		}
		defer f.Close()
		r = f
	}

	var ann announce.Announcement
	if err := json.NewDecoder(r).Decode(&ann); err != nil {
		return nil, fmt.Errorf("decode judgment: %w", err)
	}
	if len(ann.Submissions) == 0 {
		return nil, errors.New("judgment has no submissions")
	}
	return &ann, nil
}

func printDryRun(out io.Writer, ann *announce.Announcement, targets []string) error {
	for _, target := range targets {
		thread, err := ann.BuildThread(target)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[dry-run] %s thread (%d posts):\n", target, len(thread.Posts))
		for i, post := range thread.Posts {
			fmt.Fprintf(out, "  %d: %q", i, post.Text)
			if post.Media.Kind != announce.MediaNone {
				fmt.Fprintf(out, " [video %s]", post.Media.VideoID)
			}
			if post.QuoteOfKey != "" {
				fmt.Fprintf(out, " [quoting %s]", post.QuoteOfKey)
			}
			fmt.Fprintln(out)
		}
	}
	return nil
}
