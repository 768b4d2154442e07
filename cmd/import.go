package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lanesville-research/parcel-cli/internal/history"
	"github.com/lanesville-research/parcel-cli/internal/ingest"
	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

var importArea string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import parcels from a shapefile, GeoJSON, CSV, or XLSX file",
	Long: "Reads features from a local file, runs them through the same normalizer a " +
		"fetch uses, and caches them under the given area name. CSV and XLSX rolls " +
		"import without geometry; shapefiles (bare or zipped) and GeoJSON keep " +
		"their boundaries.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("local"); err != nil {
			return err
		}
		if strings.TrimSpace(importArea) == "" {
			return eris.New("--area is required: the name to cache the parcels under")
		}

		schema, err := loadSchema()
		if err != nil {
			return err
		}
		st, err := newStore()
		if err != nil {
			return err
		}

		// Known directory areas keep their county; anything else is a
		// free-form dataset name.
		area := parcel.Area{Name: importArea}
		if dir, err := loadAreas(); err == nil {
			if a, ok := dir.ByName(importArea); ok {
				area = a
			}
		}

		start := time.Now()
		raws, err := ingest.File(args[0])
		if err != nil {
			return err
		}

		n := newNormalizer(schema, area)
		table, skipped := n.NormalizeAll(area.Slug(), raws)
		if err := st.Save(table); err != nil {
			return err
		}

		if hist := openHistory(cmd); hist != nil {
			defer hist.Close()
			entry := history.Entry{
				Area:     area.Slug(),
				Endpoint: "file://" + args[0],
				Status:   history.StatusOK,
				Records:  table.Len(),
				Skipped:  skipped,
				Duration: time.Since(start),
			}
			if _, err := hist.Record(cmd.Context(), entry); err != nil {
				zap.L().Warn("fetch log write failed", zap.Error(err))
			}
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(), "Imported %d parcels from %s (%d skipped)\n",
			table.Len(), args[0], skipped)
		p.Fprintf(cmd.OutOrStdout(), "Cache: %s\n", st.Path(area.Slug()))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importArea, "area", "", "area name to cache the parcels under (required)")
	rootCmd.AddCommand(importCmd)
}
