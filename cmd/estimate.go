package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/config"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/estimate"
)

var estimateTargets string

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Print the projected duration of a scrape",
	RunE: func(cmd *cobra.Command, _ []string) error {
		selected, err := selectTargets(estimateTargets)
		if err != nil {
			return err
		}
		stats, err := estimate.NewStore(cfg.Estimate.StatsFile).Load()
		if err != nil {
			zap.L().Warn("duration history unreadable, estimating from nothing", zap.Error(err))
			stats = estimate.NewAverageStats()
		}
		minutes, seconds := estimate.Estimate(stats, selected)
		fmt.Fprintf(os.Stdout, "Estimated time for %d targets: %dm%02ds\n", len(selected), minutes, seconds)
		return nil
	},
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List configured targets with their average durations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		all, err := config.LoadTargets(cfg.Scrape.TargetsFile)
		if err != nil {
			return err
		}
		stats, err := estimate.NewStore(cfg.Estimate.StatsFile).Load()
		if err != nil {
			zap.L().Warn("duration history unreadable", zap.Error(err))
			stats = nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "KEY\tREGION\tSUB\tADAPTER\tAVG\tRUNS")
		_, _ = fmt.Fprintln(w, "---\t------\t---\t-------\t---\t----")
		for _, t := range all {
			avg, runs := "-", 0
			if a, ok := stats.Lookup(t); ok {
				avg = fmt.Sprintf("%.1fs", a.AverageSeconds)
				runs = a.Count
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", t.Key, t.Region, t.SubRegion, t.Adapter, avg, runs)
		}
		return w.Flush()
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateTargets, "targets", config.AllTargets, "comma-separated target keys, or all")
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(targetsCmd)
}
