// internal/cli/remote.go
package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Slade66/hourglass/internal/client"
	"github.com/Slade66/hourglass/internal/observer"
	"github.com/Slade66/hourglass/internal/status"
	"github.com/Slade66/hourglass/pkg/task"
)

var (
	remoteURL       string
	remoteDuration  time.Duration
	remoteAutostart bool
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Drive hourglasses held by the worker through the API.",
}

var remoteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Queue a new hourglass.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := apiClient().Create(cmd.Context(), remoteDuration, remoteAutostart)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var remoteStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show one hourglass, or all of them.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		if len(args) == 1 {
			info, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), []status.StatusInfo{*info})
		}
		infos, err := c.List(cmd.Context())
		if err != nil {
			return err
		}
		return printStatus(cmd.OutOrStdout(), infos)
	},
}

// actionCmd builds the subcommand that queues action for one hourglass.
func actionCmd(action task.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().Act(cmd.Context(), args[0], action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s queued for %s\n", action, args[0])
			return nil
		},
	}
}

func apiClient() *client.Client {
	url := remoteURL
	if url == "" {
		url = cfg.API.URL
	}
	return client.New(url)
}

func printStatus(out io.Writer, infos []status.StatusInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(out, "no hourglasses")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tOWNER\tLENGTH\tREMAINING\tERROR")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.ID,
			info.State,
			info.Owner,
			observer.FormatRemaining(time.Duration(info.TotalMs)*time.Millisecond),
			observer.FormatRemaining(time.Duration(info.RemainingMs)*time.Millisecond),
			info.Error)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.PersistentFlags().StringVar(&remoteURL, "api", "", "API base URL (defaults to api.url from the config)")

	remoteCmd.AddCommand(remoteCreateCmd, remoteStatusCmd)
	remoteCmd.AddCommand(
		actionCmd(task.ActionStart, "Start an idle hourglass."),
		actionCmd(task.ActionPause, "Pause a running hourglass."),
		actionCmd(task.ActionResume, "Resume a paused hourglass."),
		actionCmd(task.ActionCancel, "Cancel an hourglass."),
	)

	remoteCreateCmd.Flags().DurationVarP(&remoteDuration, "duration", "d", 25*time.Minute, "Length of the countdown")
	remoteCreateCmd.Flags().BoolVar(&remoteAutostart, "start", false, "Start the hourglass as soon as it is created")
}
