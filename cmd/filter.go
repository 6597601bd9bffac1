package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/batch"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/export"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Re-filter the latest bundle with the current keywords and suppression list",
	Long:  "Reads the latest bundle, re-scores every record against the keyword file, drops suppressed codes, and writes the result as a new bundle entry.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		cm := newCacheManager()
		latest := cm.Latest(cfg.Output.Format)
		b, err := export.ReadFile(latest)
		if err != nil {
			return eris.Wrap(err, "filter: read latest bundle")
		}

		flt, _, err := openFilter()
		if err != nil {
			return err
		}

		before := b.RecordCount()
		out, err := export.Refilter(b, flt.Apply)
		if err != nil {
			return err
		}

		path, err := cm.Write(batch.EncoderFor(cfg.Output.Format, out))
		if err != nil {
			return err
		}
		zap.L().Info("bundle re-filtered",
			zap.Int("records_before", before),
			zap.Int("records_after", out.RecordCount()),
			zap.String("path", path),
		)
		fmt.Fprintf(os.Stdout, "Records: %d -> %d\nOutput: %s\n", before, out.RecordCount(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
}
