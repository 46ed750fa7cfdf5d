// internal/cli/history.go
package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Slade66/hourglass/internal/history"
	"github.com/Slade66/hourglass/internal/observer"
)

var (
	historyPath  string
	historyLimit int
	historySince time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs and a summary of the period.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(historyDB(historyPath))
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		runs, err := store.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		since := time.Now().Add(-historySince)
		stats, err := store.Stats(ctx, since)
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), runs, stats, since)
	},
}

// historyDB returns the database named by a --history/--path flag, or the
// configured one when the flag is empty. run and history share it.
func historyDB(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.History.Path
}

func printHistory(out io.Writer, runs []history.Run, stats *history.Stats, since time.Time) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded yet")
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tLENGTH\tRAN\tOUTCOME")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				observer.FormatRemaining(r.Total),
				observer.FormatRemaining(r.Elapsed()),
				r.Outcome)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(out, "\nsince %s: %d sessions, %d finished, %d cancelled, %s counted down\n",
		since.Local().Format("2006-01-02 15:04"),
		stats.Sessions, stats.Completed, stats.Cancelled,
		observer.FormatRemaining(stats.Elapsed))
	return err
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyPath, "path", "", "History database (defaults to history.path from the config)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list")
	historyCmd.Flags().DurationVar(&historySince, "since", 24*time.Hour, "Period the summary covers")
}
