package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
	"github.com/lanesville-research/parcel-cli/internal/report"
)

var (
	ownersSort  string
	ownersLimit int
)

var ownersCmd = &cobra.Command{
	Use:   "owners <area>",
	Short: "List owner portfolios for a cached area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("local"); err != nil {
			return err
		}
		switch ownersSort {
		case report.SortByParcels, report.SortByAcres, report.SortByValue, report.SortByName:
		default:
			return eris.Errorf("unknown sort %q: want parcels, acres, value, or name", ownersSort)
		}

		table, err := loadCachedTable(args[0])
		if err != nil {
			return err
		}

		owners := report.Portfolios(table, ownersSort)
		if ownersLimit > 0 && len(owners) > ownersLimit {
			owners = owners[:ownersLimit]
		}
		return formatOwners(cmd.OutOrStdout(), owners)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <area> <owner>",
	Short: "Find a cached area's parcels by owner name",
	Long:  "Case-insensitive substring match against the owner field.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("local"); err != nil {
			return err
		}

		table, err := loadCachedTable(args[0])
		if err != nil {
			return err
		}

		matches := table.FilterOwner(args[1])
		if len(matches) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No parcels match owner %q in %s\n", args[1], table.Area)
			return nil
		}
		return formatParcels(cmd.OutOrStdout(), matches)
	},
}

func init() {
	ownersCmd.Flags().StringVar(&ownersSort, "sort", report.SortByAcres, "sort order: parcels, acres, value, name")
	ownersCmd.Flags().IntVar(&ownersLimit, "limit", 25, "cap the list (0 means all)")
	rootCmd.AddCommand(ownersCmd)
	rootCmd.AddCommand(searchCmd)
}

func formatOwners(out io.Writer, owners []report.OwnerStat) error {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tPARCELS\tACRES\tASSESSED\tEST. TAX")
	fmt.Fprintln(w, "-----\t-------\t-----\t--------\t--------")
	for _, o := range owners {
		p.Fprintf(w, "%s\t%d\t%.1f\t$%.0f\t$%.0f\n", o.Owner, o.Parcels, o.Acres, o.Assessed, o.Taxes)
	}
	return w.Flush()
}

func formatParcels(out io.Writer, records []parcel.Record) error {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "PARCEL\tOWNER\tCLASS\tADDRESS\tACRES\tASSESSED")
	fmt.Fprintln(w, "------\t-----\t-----\t-------\t-----\t--------")
	for i := range records {
		r := &records[i]
		p.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t$%.0f\n",
			r.ParcelID, r.Owner, r.PropertyClass, r.PropertyAddress, r.Acreage, r.AssessedValue)
	}
	return w.Flush()
}
