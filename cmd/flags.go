package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/instant-compose/devloop/internal/config"
)

// Viper keys for the flags registered below, keyed by configuration path.
var (
	serverFlagKeys = map[string]string{
		"server.port":              "port",
		"server.host":              "host",
		"server.max_port_attempts": "max-port-attempts",
		"server.open":              "open",
	}
	buildFlagKeys = map[string]string{
		"watch.debounce":   "debounce",
		"build.output_dir": "output-dir",
	}
)

func addServerFlags(fs *pflag.FlagSet) {
	fs.IntP("port", "p", config.DefaultPort, "Port to serve on, the next free port is used when it is taken")
	fs.String("host", "0.0.0.0", "Host to bind to")
	fs.Int("max-port-attempts", config.DefaultMaxPortAttempts, "Number of consecutive ports to try")
	fs.Bool("open", false, "Open the browser once the initial build finished")
}

func addBuildFlags(fs *pflag.FlagSet) {
	fs.Duration("debounce", config.DefaultDebounce, "Quiet period before a change triggers a rebuild")
	fs.String("output-dir", "", "Directory the build writes the bundle to (relative to the project root)")
}

// bindFlags binds each viper key to the named flag of cmd. Flags the user
// did not set leave the configured value in place.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			return fmt.Errorf("command %s has no flag --%s", cmd.Name(), name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}

	return nil
}

func mergeKeys(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}

	return out
}
