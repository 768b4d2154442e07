package main

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lanesville-research/parcel-cli/internal/arcgis"
)

var discoverTimeout int

var discoverCmd = &cobra.Command{
	Use:   "discover [endpoint ...]",
	Short: "Probe candidate parcel service endpoints",
	Long: "Fetches layer metadata from each configured candidate endpoint (plus any given " +
		"as arguments) and reports which ones answer like a live parcel layer.",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints := append([]string{}, cfg.Source.CandidateEndpoints...)
		endpoints = append(endpoints, args...)
		if len(endpoints) == 0 {
			return fmt.Errorf("no candidate endpoints configured")
		}

		results := probeEndpoints(cmd, endpoints)
		return formatProbes(cmd.OutOrStdout(), results)
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 10, "per-endpoint timeout in seconds")
	rootCmd.AddCommand(discoverCmd)
}

// probeResult is one endpoint's metadata response, or the failure to get one.
type probeResult struct {
	Endpoint string
	Info     *arcgis.ServiceInfo
	Elapsed  time.Duration
	Err      error
}

// probeEndpoints fetches layer info from every endpoint, a few at a time.
// Results come back in the input order regardless of completion order.
func probeEndpoints(cmd *cobra.Command, endpoints []string) []probeResult {
	results := make([]probeResult, len(endpoints))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(4)

	for i, ep := range endpoints {
		i, ep := i, ep
		g.Go(func() error {
			client := arcgis.NewClient(arcgis.Options{
				Endpoint:  ep,
				UserAgent: cfg.Source.UserAgent,
				Timeout:   time.Duration(discoverTimeout) * time.Second,
			})

			start := time.Now()
			info, err := client.Info(ctx)
			res := probeResult{Endpoint: ep, Info: info, Elapsed: time.Since(start), Err: err}
			if err != nil {
				zap.L().Debug("endpoint probe failed", zap.String("endpoint", ep), zap.Error(err))
			}

			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	// Probes never return an error; failures land in their result slot.
	_ = g.Wait()
	return results
}

func formatProbes(out io.Writer, results []probeResult) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tSTATUS\tLAYER\tGEOMETRY\tFIELDS\tLATENCY")
	fmt.Fprintln(w, "--------\t------\t-----\t--------\t------\t-------")

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\tunreachable\t-\t-\t-\t%s\n", r.Endpoint, r.Elapsed.Round(time.Millisecond))
			continue
		}
		status := "ok"
		if !parcelLayer(r.Info) {
			status = "not a parcel layer"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Endpoint, status, r.Info.Name, r.Info.GeometryType,
			len(r.Info.Fields), r.Elapsed.Round(time.Millisecond))
	}
	return w.Flush()
}

// parcelLayer reports whether the metadata looks like a polygon layer with
// a parcel identifier field.
func parcelLayer(info *arcgis.ServiceInfo) bool {
	if info == nil || info.GeometryType != "esriGeometryPolygon" {
		return false
	}
	for _, f := range info.Fields {
		switch f.Name {
		case "PRINT_KEY", "PRINTKEY", "SBL", "PARCEL_ID", "PARCELID":
			return true
		}
	}
	return false
}
