package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lanesville-research/parcel-cli/internal/store"
)

var cacheClearAll bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local parcel cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached area files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		cached, err := st.Areas()
		if err != nil {
			return err
		}
		if len(cached) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty. Run \"parcels fetch <area>\" first.")
			return nil
		}
		return formatCache(cmd.OutOrStdout(), cached)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [area]",
	Short: "Delete cached files for one area, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}

		if cacheClearAll {
			cached, err := st.Areas()
			if err != nil {
				return err
			}
			for _, c := range cached {
				if err := st.Remove(c.Area); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached area(s)\n", len(cached))
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("give an area to clear, or --all")
		}
		area := args[0]
		if dir, err := loadAreas(); err == nil {
			if a, ok := dir.ByName(area); ok {
				area = a.Slug()
			}
		}
		if err := st.Remove(area); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed cache for %s\n", area)
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path [area]",
	Short: "Print the cache directory, or one area's cache file path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), st.Dir())
			return nil
		}

		area := args[0]
		if dir, err := loadAreas(); err == nil {
			if a, ok := dir.ByName(area); ok {
				area = a.Slug()
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), st.Path(area))
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "clear every cached area")
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd, cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

func formatCache(out io.Writer, cached []store.CachedArea) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "AREA\tPARCELS\tFETCHED\tSIZE\tFILE")
	fmt.Fprintln(w, "----\t-------\t-------\t----\t----")
	for _, c := range cached {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			c.Area, c.Records, c.FetchedAt.Format("2006-01-02 15:04"),
			humanize.Bytes(uint64(c.Size)), c.Path)
	}
	return w.Flush()
}
