package cmd

import (
	"github.com/spf13/cobra"

	"github.com/instant-compose/devloop/internal/errors"
	"github.com/instant-compose/devloop/internal/services"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild on every change without serving",
	Long: `Run the initial build and rebuild whenever a source file or Gradle build
script changes. Nothing is served; use this when another server hosts the
bundle.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addBuildFlags(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, mergeKeys(buildFlagKeys))
	if err != nil {
		return err
	}

	svc := services.NewWatchService(cfg, newLogger(cfg), services.WithOutput(cmd.OutOrStdout()))
	if err := svc.Watch(cmd.Context()); err != nil {
		return errors.Enhance(err, cfg.Server.Port, cfg.Server.MaxPortAttempts, cfg.Build.Command)
	}

	return nil
}
