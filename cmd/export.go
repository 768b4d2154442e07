package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lanesville-research/parcel-cli/internal/export"
	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <area>",
	Short: "Export a cached area's parcels to a file",
	Long: "Writes the cached parcels for an area in the chosen format: " +
		strings.Join(export.Formats(), ", ") + ".",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("local"); err != nil {
			return err
		}

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		table, err := loadCachedTable(args[0])
		if err != nil {
			return err
		}

		path := exportOut
		if path == "" {
			path = export.DefaultFilename(table.Area, format)
		}

		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		if err := export.Write(f, format, table); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", path)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d parcels to %s\n", table.Len(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: "+strings.Join(export.Formats(), ", "))
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default derived from area and format)")
	rootCmd.AddCommand(exportCmd)
}

// loadCachedTable loads an area's cache, resolving directory names but
// also accepting raw slugs so imported datasets stay reachable.
func loadCachedTable(query string) (*parcel.Table, error) {
	slug := strings.TrimSpace(query)
	if dir, err := loadAreas(); err == nil {
		if a, ok := dir.ByName(query); ok {
			slug = a.Slug()
		}
	}

	st, err := newStore()
	if err != nil {
		return nil, err
	}
	table, err := st.Load(slug)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, eris.Errorf("no cached parcels for %q (run \"parcels fetch %s\" first)", query, query)
	}
	return table, nil
}
