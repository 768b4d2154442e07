package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lanesville-research/parcel-cli/internal/parcel"
	"github.com/lanesville-research/parcel-cli/internal/store"
)

var areasCmd = &cobra.Command{
	Use:   "areas",
	Short: "List the configured areas and their cache status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := loadAreas()
		if err != nil {
			return err
		}

		st, err := newStore()
		if err != nil {
			return err
		}
		cached, err := st.Areas()
		if err != nil {
			return err
		}

		return formatAreas(cmd.OutOrStdout(), dir.All(), cached)
	},
}

func init() {
	rootCmd.AddCommand(areasCmd)
}

func formatAreas(out io.Writer, areas []parcel.Area, cached []store.CachedArea) error {
	bySlug := make(map[string]store.CachedArea, len(cached))
	for _, c := range cached {
		bySlug[c.Area] = c
	}

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTOWN\tZIP\tCACHED\tPARCELS\tFETCHED")
	fmt.Fprintln(w, "----\t----\t---\t------\t-------\t-------")

	for _, a := range areas {
		c, ok := bySlug[a.Slug()]
		if !ok {
			fmt.Fprintf(w, "%s\t%s\t%s\tno\t-\t-\n", a.Name, a.Town, a.Zip)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\tyes\t%d\t%s\n",
			a.Name, a.Town, a.Zip, c.Records, c.FetchedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
