package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lanesville-research/parcel-cli/internal/report"
)

var (
	reportTop  int
	reportJSON bool
)

var reportCmd = &cobra.Command{
	Use:   "report <area>",
	Short: "Summarize a cached area: totals, classes, and top owners",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("local"); err != nil {
			return err
		}

		table, err := loadCachedTable(args[0])
		if err != nil {
			return err
		}

		opts := report.Options{TopN: reportTop}
		if dir, err := loadAreas(); err == nil {
			opts.LocalAreas = dir.All()
		}
		sum := report.Summarize(table, opts)

		if reportJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}
		return formatSummary(cmd.OutOrStdout(), sum)
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "how many owners and cities to list")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit the summary as JSON")
	rootCmd.AddCommand(reportCmd)
}

func formatSummary(out io.Writer, sum *report.Summary) error {
	p := message.NewPrinter(language.English)

	p.Fprintf(out, "Area: %s (fetched %s)\n\n", sum.Area, sum.FetchedAt.Format("2006-01-02 15:04"))
	p.Fprintf(out, "Parcels:          %d (%d with geometry)\n", sum.Parcels, sum.WithGeometry)
	p.Fprintf(out, "Total acreage:    %.1f (avg %.1f)\n", sum.TotalAcres, sum.AvgAcres)
	p.Fprintf(out, "Assessed value:   $%.0f (median $%.0f)\n", sum.TotalAssessed, sum.MedianAssessed)
	p.Fprintf(out, "Est. annual tax:  $%.0f\n", sum.TotalTaxes)
	p.Fprintf(out, "Owner residency:  %d local, %d out-of-area, %d unknown\n",
		sum.Residency.Local, sum.Residency.OutOfArea, sum.Residency.Unknown)

	if len(sum.Classes) > 0 {
		fmt.Fprintf(out, "\nProperty classes\n")
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tDESCRIPTION\tPARCELS\tACRES\tASSESSED")
		for _, c := range sum.Classes {
			p.Fprintf(w, "%s\t%s\t%d\t%.1f\t$%.0f\n", c.Code, c.Desc, c.Parcels, c.Acres, c.Assessed)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(sum.TopOwners) > 0 {
		fmt.Fprintf(out, "\nTop owners\n")
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "OWNER\tPARCELS\tACRES\tASSESSED\tEST. TAX")
		for _, o := range sum.TopOwners {
			p.Fprintf(w, "%s\t%d\t%.1f\t$%.0f\t$%.0f\n", o.Owner, o.Parcels, o.Acres, o.Assessed, o.Taxes)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(sum.MailingCities) > 0 {
		fmt.Fprintf(out, "\nOwner mailing cities\n")
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "CITY\tPARCELS")
		for _, c := range sum.MailingCities {
			p.Fprintf(w, "%s\t%d\n", c.City, c.Parcels)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
