package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/instant-compose/devloop/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect devloop configuration",
	Long: `Inspect the configuration devloop runs with.

Examples:
  devloop config show                       # Effective configuration as YAML
  devloop config show --format json         # Effective configuration as JSON
  devloop config validate                   # Validate .devloop.yml
  devloop config validate --file dev.yml    # Validate a specific file`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Decode a configuration file on top of the defaults and check ports,
timeouts, build command and watch paths.`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after applying defaults, the config file,
DEVLOOP_ environment variables and resolving paths against the project root.`,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .devloop.yml)")

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	targetFile := configFile
	if targetFile == "" {
		targetFile = viper.ConfigFileUsed()
	}
	if targetFile == "" {
		if _, err := os.Stat(".devloop.yml"); err != nil {
			return fmt.Errorf("no configuration file found, use --file to name one")
		}
		targetFile = ".devloop.yml"
	}

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if _, err := config.LoadFrom(v); err != nil {
		return fmt.Errorf("%s: %w", targetFile, err)
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid\n", targetFile)
	return err
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
}
