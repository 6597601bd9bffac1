package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/filter"
)

var suppressCmd = &cobra.Command{
	Use:   "suppress",
	Short: "Manage codes excluded from every result",
}

var suppressAddCmd = &cobra.Command{
	Use:   "add <code>...",
	Short: "Add solicitation codes to the suppression list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := filter.LoadSuppressionSet(cfg.Filter.SuppressFile)
		if err != nil {
			return eris.Wrap(err, "load suppression list")
		}
		added := 0
		for _, code := range args {
			if set.Add(code) {
				added++
			}
		}
		if added == 0 {
			fmt.Fprintln(os.Stderr, "Nothing new to suppress.")
			return nil
		}
		if err := set.Save(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Added %d, %d suppressed in total\n", added, set.Len())
		return nil
	},
}

var suppressListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the suppression list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		set, err := filter.LoadSuppressionSet(cfg.Filter.SuppressFile)
		if err != nil {
			return eris.Wrap(err, "load suppression list")
		}
		for _, id := range set.IDs() {
			fmt.Fprintln(os.Stdout, id)
		}
		return nil
	},
}

func init() {
	suppressCmd.AddCommand(suppressAddCmd)
	suppressCmd.AddCommand(suppressListCmd)
	rootCmd.AddCommand(suppressCmd)
}
