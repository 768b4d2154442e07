package main

import (
	"context"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lanesville-research/parcel-cli/internal/arcgis"
	"github.com/lanesville-research/parcel-cli/internal/history"
	"github.com/lanesville-research/parcel-cli/internal/parcel"
)

var (
	fetchEnvelope bool
	fetchWithin   bool
	fetchWhere    string
	fetchBBox     string
	fetchMax      int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <area>",
	Short: "Fetch parcels for an area into the local cache",
	Long: "Queries the configured parcel service for the area's municipality, normalizes " +
		"the features, and replaces the area's cache file. The prior cache survives any failure.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dir, err := loadAreas()
		if err != nil {
			return err
		}
		area, err := resolveArea(dir, args[0])
		if err != nil {
			return err
		}

		schema, err := loadSchema()
		if err != nil {
			return err
		}

		st, err := newStore()
		if err != nil {
			return err
		}

		client := newClient()
		params, err := fetchParams(area)
		if err != nil {
			return err
		}

		hist := openHistory(cmd)
		if hist != nil {
			defer hist.Close()
		}

		start := time.Now()
		table, skipped, err := runFetch(ctx, client, schema, area, params)

		if hist != nil {
			entry := history.Entry{
				Area:     area.Slug(),
				Endpoint: client.Endpoint(),
				Duration: time.Since(start),
			}
			if err != nil {
				entry.Status = history.StatusFailed
				entry.Error = err.Error()
			} else {
				entry.Status = history.StatusOK
				entry.Records = table.Len()
				entry.Skipped = skipped
			}
			if _, recErr := hist.Record(ctx, entry); recErr != nil {
				zap.L().Warn("fetch log write failed", zap.Error(recErr))
			}
		}
		if err != nil {
			return err
		}

		if err := st.Save(table); err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(), "Fetched %d parcels for %s (%d skipped) in %s\n",
			table.Len(), area.Name, skipped, time.Since(start).Round(time.Millisecond))
		p.Fprintf(cmd.OutOrStdout(), "Cache: %s\n", st.Path(area.Slug()))
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchEnvelope, "envelope", false, "query by the area's bounding box instead of municipality name")
	fetchCmd.Flags().BoolVar(&fetchWithin, "within", false, "keep only parcels whose centroid falls inside the area's bounding box")
	fetchCmd.Flags().StringVar(&fetchWhere, "where", "", "custom where clause, overriding the municipality filter")
	fetchCmd.Flags().StringVar(&fetchBBox, "bbox", "", "custom bounding box as minLng,minLat,maxLng,maxLat")
	fetchCmd.Flags().IntVar(&fetchMax, "max", 0, "cap on records fetched (default from config; 0 means unlimited)")
	rootCmd.AddCommand(fetchCmd)
}

// fetchParams builds the upstream query for an area from the flags.
func fetchParams(area parcel.Area) (arcgis.QueryParams, error) {
	var p arcgis.QueryParams

	switch {
	case fetchWhere != "":
		p.Where = fetchWhere
	case fetchBBox != "":
		box, err := parseBBox(fetchBBox)
		if err != nil {
			return p, err
		}
		p.BBox = &box
	case fetchEnvelope:
		box := area.BBox()
		p.BBox = &box
	default:
		p.Where = arcgis.MunicipalityWhere(area.Town)
	}
	return p, nil
}

// runFetch pulls and normalizes one area's parcels.
func runFetch(ctx context.Context, client *arcgis.Client, schema *parcel.Schema, area parcel.Area, params arcgis.QueryParams) (*parcel.Table, int, error) {
	log := zap.L().With(zap.String("area", area.Slug()))

	if total, err := client.Count(ctx, params); err == nil {
		log.Info("parcels available upstream", zap.Int("count", total))
	} else {
		log.Warn("count query failed, fetching anyway", zap.Error(err))
	}

	maxRecords := cfg.Source.MaxRecords
	if fetchMax > 0 {
		maxRecords = fetchMax
	}

	features, err := client.QueryAll(ctx, params, maxRecords)
	if err != nil {
		return nil, 0, err
	}

	raws := make([]parcel.Raw, 0, len(features))
	for _, f := range features {
		raw := parcel.Raw{Attributes: f.Attributes}
		if f.Geometry != nil {
			raw.Rings = f.Geometry.Rings
		}
		raws = append(raws, raw)
	}

	n := newNormalizer(schema, area)
	table, skipped := n.NormalizeAll(area.Slug(), raws)

	if fetchWithin {
		dropped := clipToArea(table, area)
		if dropped > 0 {
			log.Info("clipped to area bounds", zap.Int("dropped", dropped))
		}
	}
	return table, skipped, nil
}

// clipToArea drops records whose centroid falls outside the area's
// bounding box, returning how many were removed. Records without
// geometry always stay.
func clipToArea(table *parcel.Table, area parcel.Area) int {
	box := area.BBox()
	kept := table.Records[:0]
	dropped := 0

	for i := range table.Records {
		rec := table.Records[i]
		lng, lat, ok := rec.Centroid()
		if ok && (lng < box.MinLng || lng > box.MaxLng || lat < box.MinLat || lat > box.MaxLat) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	table.Records = kept
	return dropped
}

// parseBBox parses a minLng,minLat,maxLng,maxLat string.
func parseBBox(s string) (arcgis.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return arcgis.BBox{}, eris.Errorf("bbox %q: want minLng,minLat,maxLng,maxLat", s)
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return arcgis.BBox{}, eris.Errorf("bbox %q: %q is not a number", s, part)
		}
		vals[i] = v
	}

	box := arcgis.BBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}
	if box.MinLng >= box.MaxLng || box.MinLat >= box.MaxLat {
		return arcgis.BBox{}, eris.Errorf("bbox %q: min must be less than max", s)
	}
	return box, nil
}
