// internal/cli/run.go
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Slade66/hourglass/internal/chime"
	"github.com/Slade66/hourglass/internal/history"
	"github.com/Slade66/hourglass/internal/hourglass"
	"github.com/Slade66/hourglass/internal/logger"
	"github.com/Slade66/hourglass/internal/observer"
)

var (
	runDuration time.Duration
	runChime    bool
	runHistory  string
	runNoRecord bool
	runQuiet    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Count a duration down in this terminal.",
	Long: `Count a duration down in this terminal.

Ctrl-C cancels the countdown. Sending SIGUSR1 to the process pauses it,
sending it again resumes it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger().With().Str("component", "cli").Logger()

		hg, err := hourglass.NewWithDuration(runDuration)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		notes := out
		if runQuiet {
			notes = io.Discard
		} else {
			bar := observer.NewCountdownBar(out, runDuration)
			bar.Render(runDuration)
			hg.SetListener(bar)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		toggle := make(chan os.Signal, 1)
		signal.Notify(toggle, syscall.SIGUSR1)
		defer signal.Stop(toggle)

		startedAt := time.Now()
		state, err := countdown(ctx, hg, toggle, notes)
		if err != nil {
			return err
		}
		run := &history.Run{
			Outcome:   state.String(),
			Total:     hg.Total(),
			Remaining: hg.TimeRemaining(),
			StartedAt: startedAt,
			EndedAt:   time.Now(),
		}

		switch state {
		case hourglass.StateFinished:
			if runChime {
				if err := chime.Play(); err != nil {
					log.Warn().Err(err).Msg("could not play chime")
				}
			}
		case hourglass.StateCancelled:
			fmt.Fprintf(notes, "\n✋ cancelled with %s left\n", observer.FormatRemaining(run.Remaining))
		}

		if runNoRecord {
			return nil
		}
		path := historyDB(runHistory)
		// ctx is already cancelled after Ctrl-C.
		if err := recordRun(cmd.Context(), path, run); err != nil {
			return err
		}
		log.Debug().Int64("run_id", run.ID).Str("path", path).Msg("run recorded")
		return nil
	},
}

// countdown starts hg and blocks until it ends. Cancelling ctx cancels the
// countdown; every value received on toggle pauses or resumes it.
func countdown(ctx context.Context, hg *hourglass.Hourglass, toggle <-chan os.Signal, notes io.Writer) (hourglass.State, error) {
	if err := hg.Start(); err != nil {
		return hg.State(), err
	}

	for {
		select {
		case <-hg.Done():
			return hg.State(), nil
		case <-ctx.Done():
			hg.Cancel()
			<-hg.Done()
			return hg.State(), nil
		case <-toggle:
			togglePause(hg, notes)
		}
	}
}

func togglePause(hg *hourglass.Hourglass, notes io.Writer) {
	log := logger.GetLogger()
	switch hg.State() {
	case hourglass.StateRunning:
		if err := hg.Pause(); err != nil {
			log.Debug().Err(err).Msg("pause ignored")
			return
		}
		fmt.Fprintf(notes, "\n⏸  paused with %s left\n", observer.FormatRemaining(hg.TimeRemaining()))
	case hourglass.StatePaused:
		if err := hg.Resume(); err != nil {
			log.Debug().Err(err).Msg("resume ignored")
			return
		}
		fmt.Fprintln(notes, "▶  resumed")
	}
}

func recordRun(ctx context.Context, path string, run *history.Run) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, run)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 25*time.Minute, "Length of the countdown")
	runCmd.Flags().BoolVar(&runChime, "chime", false, "Play a chime when the countdown finishes")
	runCmd.Flags().StringVar(&runHistory, "history", "", "History database (defaults to history.path from the config)")
	runCmd.Flags().BoolVar(&runNoRecord, "no-history", false, "Do not record the run")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not draw the countdown")
}
