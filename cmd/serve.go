package cmd

import (
	"github.com/spf13/cobra"

	"github.com/instant-compose/devloop/internal/errors"
	"github.com/instant-compose/devloop/internal/services"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"dev"},
	Short:   "Build, serve and live-reload the web bundle",
	Long: `Run the initial build, serve the bundle over HTTP and rebuild whenever a
source file or Gradle build script changes. Connected browsers are told to
reload after every successful build. Stop with Ctrl+C.

Examples:
  devloop serve
  devloop serve --port 3000 --host 127.0.0.1
  devloop dev --debounce 1s --open`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addServerFlags(serveCmd.Flags())
	addBuildFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, mergeKeys(serverFlagKeys, buildFlagKeys))
	if err != nil {
		return err
	}

	svc := services.NewServeService(cfg, newLogger(cfg), services.WithOutput(cmd.OutOrStdout()))
	if err := svc.Serve(cmd.Context()); err != nil {
		return errors.Enhance(err, cfg.Server.Port, cfg.Server.MaxPortAttempts, cfg.Build.Command)
	}

	return nil
}
