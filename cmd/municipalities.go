package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lanesville-research/parcel-cli/internal/arcgis"
)

var muniField string

var municipalitiesCmd = &cobra.Command{
	Use:   "municipalities",
	Short: "List the municipalities the parcel service covers",
	Long: "Runs a distinct-values query against the service's municipality field. " +
		"Useful for checking how the service spells a town before adding it to the areas file.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		client := newClient()
		values, err := client.DistinctValues(cmd.Context(), muniField, arcgis.QueryParams{})
		if err != nil {
			return err
		}

		if len(values) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No values for field %s (try --field MuniName or --field MUNICIPALITY)\n", muniField)
			return nil
		}
		for _, v := range values {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	},
}

func init() {
	municipalitiesCmd.Flags().StringVar(&muniField, "field", "MUNI_NAME", "municipality attribute field to query")
	rootCmd.AddCommand(municipalitiesCmd)
}
