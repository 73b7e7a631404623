package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/instant-compose/devloop/internal/config"
	"github.com/instant-compose/devloop/internal/errors"
	"github.com/instant-compose/devloop/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "devloop",
	Short: "Live development server for Compose web projects",
	Long: `devloop watches a Compose Multiplatform web project, rebuilds the browser
bundle with Gradle whenever sources or build scripts change, serves the result
and tells every connected browser to reload.

Quick Start:
  devloop serve                   Build, serve and reload on change
  devloop watch                   Rebuild on change without serving
  devloop config show             Print the effective configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .devloop.yml, can also use DEVLOOP_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "warn", "log level (debug, info, warn, error)")
}

// initConfig points viper at the config file and enables DEVLOOP_ environment
// overrides. A missing config file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DEVLOOP_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".devloop")
	}

	viper.SetEnvPrefix("DEVLOOP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig binds the given flags, decodes the configuration and anchors
// its paths to the project root.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	bindings["log.level"] = "log-level"
	if err := bindFlags(cmd, bindings); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewEnhancedError("Failed to load configuration", err,
			errors.ConfigurationError(err.Error(), configPath()))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	if err := cfg.Resolve(cwd); err != nil {
		return nil, errors.NewEnhancedError("Failed to locate project", err,
			errors.ConfigurationError(err.Error(), configPath()))
	}

	return cfg, nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "devloop",
	})
}

func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}

	return ".devloop.yml"
}
