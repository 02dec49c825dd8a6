package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/sitecheck/pkg/sitecheck"
)

func newRootCmd() *cobra.Command {
	return newRootCmdWith(newApp())
}

func newRootCmdWith(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sitecheck",
		Short:         "Website performance and API shape checks",
		Long:          `sitecheck audits a page with Lighthouse, reports broken page resources, validates a posts API and writes dated CSV reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}
	a.bindFlags(rootCmd)

	rootCmd.AddCommand(
		newLighthouseCmd(a),
		newResourcesCmd(a),
		newPostsCmd(a),
		newRunCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func newLighthouseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lighthouse",
		Short: "Audit the page with Lighthouse and write the scores report",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := a.newRunner()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := r.RunLighthouse(cmd.Context(), sitecheck.NewRunID())
			if err != nil {
				return err
			}
			printLighthouse(cmd.OutOrStdout(), res)
			return r.Verdict(&sitecheck.Summary{Lighthouse: res})
		},
	}
}

func newResourcesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Load the page in headless Chrome and report non-200 requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := a.newRunner()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := r.RunResources(cmd.Context(), sitecheck.NewRunID())
			if err != nil {
				return err
			}
			printResources(cmd.OutOrStdout(), res)
			return r.Verdict(&sitecheck.Summary{Resources: res})
		},
	}
}

func newPostsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "posts",
		Short: "Validate every post served by the posts API",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := a.newRunner()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := r.RunPosts(cmd.Context(), sitecheck.NewRunID())
			if err != nil {
				return err
			}
			printPosts(cmd.OutOrStdout(), res)
			return r.Verdict(&sitecheck.Summary{Posts: res})
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every check concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := a.newRunner()
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := r.RunAll(cmd.Context())
			printSummary(cmd.OutOrStdout(), s)
			return err
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run every check on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("schedule") {
				a.cfg.Schedule = schedule
			}

			r, cleanup, err := a.newRunner()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			s := sitecheck.NewScheduler(a.cfg.Schedule, func(ctx context.Context) error {
				summary, err := r.RunAll(ctx)
				printSummary(out, summary)
				return err
			}, a.logger.Named("scheduler"))

			if err := s.Start(ctx); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", a.cfg.Schedule, err)
			}
			fmt.Fprintf(out, "Watching %s (%s), next run %s\n", a.cfg.URL, a.cfg.Schedule, s.NextRun().Format("2006-01-02 15:04:05"))

			<-ctx.Done()
			s.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule, e.g. \"@every 6h\" or \"0 6 * * *\" (default from config, @daily)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show median Lighthouse scores and recent broken-request counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.History.Path == "" {
				return errors.New("history requires --db or history.path in the config")
			}
			h, err := sitecheck.OpenHistory(a.cfg.History.Path)
			if err != nil {
				return err
			}
			defer h.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "History for %s (last %d runs)\n", a.cfg.URL, a.cfg.History.Window)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tMEDIAN\tSAMPLES")
			for _, c := range sitecheck.Categories {
				med, n, err := h.Median(ctx, a.cfg.URL, c, a.cfg.History.Window, "")
				if errors.Is(err, sitecheck.ErrNoHistory) {
					fmt.Fprintf(tw, "%s\t-\t0\n", sitecheck.CategoryScore{Category: c}.Name())
					continue
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%.2f\t%d\n", sitecheck.CategoryScore{Category: c}.Name(), med, n)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			trend, err := h.BrokenTrend(ctx, a.cfg.URL, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Broken requests, newest first: %v\n", trend)
			a.logger.Debug("history read", zap.Int("resource_runs", len(trend)))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "How many resource runs to show")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// No config or logger needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitecheck %s\n", version)
		},
	}
}

func printLighthouse(w io.Writer, res *sitecheck.LighthouseResult) {
	fmt.Fprintf(w, "Lighthouse scores for %s\n", res.Audit.URL)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range res.Audit.Categories {
		score := c.FormatScore()
		if score == "" {
			score = "n/a"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name(), score)
	}
	tw.Flush()
	for _, reg := range res.Regressions {
		fmt.Fprintf(w, "  REGRESSION %s: %.2f (median %.2f over %d runs)\n", reg.Category, reg.Score, reg.Median, reg.Samples)
	}
	fmt.Fprintf(w, "Report: %s\n", res.Report)
}

func printResources(w io.Writer, res *sitecheck.ResourcesResult) {
	fmt.Fprintf(w, "%d broken requests on %s\n", len(res.Broken), res.URL)
	for _, b := range res.Broken {
		fmt.Fprintf(w, "  %d %s\n", b.Status, b.URL)
	}
	fmt.Fprintf(w, "Report: %s\n", res.Report)
}

func printPosts(w io.Writer, res *sitecheck.PostsResult) {
	fmt.Fprintf(w, "%d posts checked, %d failed\n", len(res.Results), res.Failed)
	for _, r := range res.Results {
		if !r.Valid() {
			fmt.Fprintf(w, "  %s\n", r.Message())
		}
	}
	fmt.Fprintf(w, "Report: %s\n", res.Report)
}

func printSummary(w io.Writer, s *sitecheck.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	if s.Lighthouse != nil {
		printLighthouse(w, s.Lighthouse)
	}
	if s.Resources != nil {
		printResources(w, s.Resources)
	}
	if s.Posts != nil {
		printPosts(w, s.Posts)
	}
}
