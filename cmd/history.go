package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lanesville-research/parcel-cli/internal/history"
)

var (
	historyLimit int
	historyKeep  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the fetch log",
}

var historyListCmd = &cobra.Command{
	Use:   "list [area]",
	Short: "List recent fetches, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := requireHistory(cmd)
		if err != nil {
			return err
		}
		defer hist.Close()

		var entries []history.Entry
		if len(args) == 1 {
			area := args[0]
			if dir, err := loadAreas(); err == nil {
				if a, ok := dir.ByName(area); ok {
					area = a.Slug()
				}
			}
			entries, err = hist.ByArea(cmd.Context(), area, historyLimit)
		} else {
			entries, err = hist.Recent(cmd.Context(), historyLimit)
		}
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No fetches logged yet.")
			return nil
		}
		return formatHistory(cmd.OutOrStdout(), entries)
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Per-area fetch totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := requireHistory(cmd)
		if err != nil {
			return err
		}
		defer hist.Close()

		stats, err := hist.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No fetches logged yet.")
			return nil
		}
		return formatHistoryStats(cmd.OutOrStdout(), stats)
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Trim the fetch log, keeping the newest entries per area",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := requireHistory(cmd)
		if err != nil {
			return err
		}
		defer hist.Close()

		removed, err := hist.Prune(cmd.Context(), historyKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d fetch log entries\n", removed)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "entries to show")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 50, "entries to keep per area")
	historyCmd.AddCommand(historyListCmd, historyStatsCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// requireHistory opens the fetch log or fails the command. Unlike fetches,
// where logging is best effort, the history commands have nothing to do
// without it.
func requireHistory(cmd *cobra.Command) (*history.Log, error) {
	hist := openHistory(cmd)
	if hist == nil {
		return nil, eris.New("fetch log unavailable (check data.dir)")
	}
	return hist, nil
}

func formatHistory(out io.Writer, entries []history.Entry) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAREA\tSTATUS\tRECORDS\tSKIPPED\tTOOK\tWHEN")
	fmt.Fprintln(w, "--\t----\t------\t-------\t-------\t----\t----")
	for _, e := range entries {
		status := e.Status
		if e.Status == history.StatusFailed && e.Error != "" {
			status = fmt.Sprintf("failed (%s)", truncate(e.Error, 40))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncate(e.ID, 8), e.Area, status, e.Records, e.Skipped,
			e.Duration.Round(time.Millisecond), e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func formatHistoryStats(out io.Writer, stats []history.AreaStats) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "AREA\tFETCHES\tFAILURES\tLAST STATUS\tLAST COUNT\tLAST FETCH")
	fmt.Fprintln(w, "----\t-------\t--------\t-----------\t----------\t----------")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\t%s\n",
			s.Area, s.Fetches, s.Failures, s.LastStatus, s.LastCount,
			s.LastFetch.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// truncate shortens s to at most n characters.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
