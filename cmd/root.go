package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lanesville-research/parcel-cli/internal/arcgis"
	"github.com/lanesville-research/parcel-cli/internal/config"
	"github.com/lanesville-research/parcel-cli/internal/history"
	"github.com/lanesville-research/parcel-cli/internal/parcel"
	"github.com/lanesville-research/parcel-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "parcels",
	Short: "Tax parcel browser for the Catskills towns",
	Long:  "Fetches tax parcel data from the county GIS services, normalizes it into a local cache, and serves reports, exports, and a map viewer on top.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient builds the upstream query client from configuration.
func newClient() *arcgis.Client {
	return arcgis.NewClient(arcgis.Options{
		Endpoint:   cfg.Source.Endpoint,
		UserAgent:  cfg.Source.UserAgent,
		Timeout:    time.Duration(cfg.Source.TimeoutSecs) * time.Second,
		PageSize:   cfg.Source.PageSize,
		MaxRetries: cfg.Source.MaxRetries,
		RateLimit:  cfg.Source.RateLimit,
	})
}

// newStore opens the cache directory from configuration.
func newStore() (*store.Store, error) {
	return store.New(cfg.Data.Dir)
}

// openHistory opens the fetch log next to the cache. History failures
// never block the main flow, so callers log and continue on error.
func openHistory(cmd *cobra.Command) *history.Log {
	path := filepath.Join(cfg.Data.Dir, "history.db")
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		zap.L().Warn("fetch log unavailable", zap.Error(err))
		return nil
	}
	l, err := history.Open(path)
	if err != nil {
		zap.L().Warn("fetch log unavailable", zap.Error(err))
		return nil
	}
	if err := l.Migrate(cmd.Context()); err != nil {
		zap.L().Warn("fetch log migration failed", zap.Error(err))
		_ = l.Close()
		return nil
	}
	return l
}

// loadAreas loads the area directory, honoring the configured override.
func loadAreas() (*parcel.Directory, error) {
	return parcel.LoadAreas(cfg.Data.AreasFile)
}

// loadSchema loads the field schema, honoring the configured override.
func loadSchema() (*parcel.Schema, error) {
	return parcel.LoadSchema(cfg.Data.SchemaFile)
}

// newNormalizer builds the normalizer for an area's county.
func newNormalizer(schema *parcel.Schema, area parcel.Area) *parcel.Normalizer {
	return parcel.NewNormalizer(schema, parcel.Options{
		MillRate: cfg.Tax.MillRate,
		County:   area.County,
	})
}

// resolveArea finds a directory entry by name or zip.
func resolveArea(dir *parcel.Directory, query string) (parcel.Area, error) {
	a, ok := dir.ByName(query)
	if !ok {
		return parcel.Area{}, fmt.Errorf("unknown area %q (run \"parcels areas\" for the list)", query)
	}
	return a, nil
}
