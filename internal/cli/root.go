// internal/cli/root.go
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Slade66/hourglass/internal/config"
	"github.com/Slade66/hourglass/internal/logger"
)

var (
	configPath string
	logLevel   string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "hourglass",
	Short:         "Count durations down to zero.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if f := cmd.Flag("log-level"); f != nil && f.Changed {
			loaded.Log.Level = logLevel
		}
		logger.GetLoggerConfigured(logger.ParseLevel(loaded.Log.Level))
		cfg = loaded
		return nil
	},
}

// Execute runs the command line. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.GetLogger().Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "hourglass.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
