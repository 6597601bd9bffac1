package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/batch"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/cache"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/config"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/estimate"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/filter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/runner"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/sites"
)

var scrapeTargets string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run targets and write a bundle",
	Long:  "Runs the selected targets sequentially. SIGINT or SIGTERM lets the current attempt finish, then stops without writing a bundle.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		selected, err := selectTargets(scrapeTargets)
		if err != nil {
			return err
		}

		flt, suppressed, err := openFilter()
		if err != nil {
			return err
		}

		flag := &runner.Flag{}
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case sig := <-sigs:
				zap.L().Warn("signal received, stopping after the current attempt", zap.String("signal", sig.String()))
				flag.Set()
			case <-done:
			}
		}()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		env := cfg.AdapterEnv(zap.L(), flt)
		run := runner.New(sites.NewRegistry(), env, cfg.Scrape.Retry(), flag, zap.L())
		engine := batch.New(run, flag, estimate.NewStore(cfg.Estimate.StatsFile), newCacheManager(), st,
			batch.Options{Timeout: cfg.Scrape.Timeout(), Format: cfg.Output.Format}, zap.L())

		report, err := engine.Run(ctx, selected)
		if serr := suppressed.Save(); serr != nil {
			zap.L().Warn("failed to write suppression list", zap.Error(serr))
		}
		if report != nil {
			printReport(os.Stdout, report, err)
		}
		return err
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeTargets, "targets", config.AllTargets, "comma-separated target keys, or all")
	rootCmd.AddCommand(scrapeCmd)
}

// selectTargets loads the targets file and resolves keys, logging unknown ones.
func selectTargets(keys string) ([]model.Target, error) {
	all, err := config.LoadTargets(cfg.Scrape.TargetsFile)
	if err != nil {
		return nil, err
	}
	selected, unknown := config.SelectTargets(all, strings.Split(keys, ","))
	for _, k := range unknown {
		zap.L().Warn("unknown target, skipping", zap.String("target", k))
	}
	if len(selected) == 0 {
		return nil, eris.Errorf("no known targets in %q", keys)
	}
	return selected, nil
}

// openFilter reads the keyword and suppression files once for a run.
func openFilter() (*filter.Filter, *filter.SuppressionSet, error) {
	suppressed, err := filter.LoadSuppressionSet(cfg.Filter.SuppressFile)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load suppression list")
	}
	flt, err := filter.Open(cfg.Filter.KeywordsFile, suppressed)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load keywords")
	}
	if flt.KeywordsMissing() {
		zap.L().Warn("keyword file missing, every listing will be filtered out", zap.String("path", cfg.Filter.KeywordsFile))
	}
	return flt, suppressed, nil
}

func newCacheManager() *cache.Manager {
	return cache.NewManager(cache.Options{
		Dir:        cfg.Output.Dir,
		Prefix:     cfg.Output.Prefix,
		LatestName: cfg.Output.LatestName,
		Limit:      cfg.Output.Retention,
	}, zap.L())
}

// printReport writes the per-target summary and the run result.
func printReport(out io.Writer, r *batch.Report, runErr error) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TARGET\tSTATUS\tATTEMPTS\tRECORDS\tELAPSED\tERROR")
	_, _ = fmt.Fprintln(w, "------\t------\t--------\t-------\t-------\t-----")
	for _, o := range r.Outcomes {
		status := "ok"
		switch {
		case o.Cancelled:
			status = "cancelled"
		case !o.Success:
			status = "failed"
		}
		records := len(o.Records)
		if o.IsPlaceholder() {
			records = 0
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1fs\t%s\n",
			o.Target.Key, status, o.Attempts, records, o.ElapsedSeconds(), o.Err)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d/%d targets succeeded (estimated %dm%02ds)\n",
		r.Succeeded(), len(r.Outcomes), r.EstimateMinutes, r.EstimateSeconds)
	if runErr != nil {
		_, _ = fmt.Fprintf(out, "Run failed: %v\n", runErr)
		return
	}
	_, _ = fmt.Fprintf(out, "Output: %s\n", r.OutputPath)
}
