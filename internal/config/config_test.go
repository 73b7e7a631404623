package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deverrors "github.com/instant-compose/devloop/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.MaxPortAttempts)
	assert.Equal(t, "/dev-server", cfg.Server.LivePath)
	assert.Equal(t, 10*time.Second, cfg.Server.CacheMaxAge)
	assert.Equal(t, "index.html", cfg.Server.DefaultDocument)
	assert.True(t, cfg.Server.Compression)

	assert.Equal(t, "./gradlew", cfg.Build.Command)
	assert.Contains(t, cfg.Build.Args, "--console=plain")
	assert.Equal(t, []string{"TERM=xterm-256color"}, cfg.Build.Env)
	assert.Equal(t, []string{".js", ".wasm", ".html"}, cfg.Build.ServedExtensions)
	assert.Equal(t, DefaultNoisePatterns, cfg.Build.NoisePatterns)

	assert.Equal(t, []string{"composeApp/src"}, cfg.Watch.SourcePaths)
	assert.Equal(t, []string{".gradle.kts"}, cfg.Watch.ConfigSuffixes)
	assert.ElementsMatch(t, []string{"build", "node_modules", "kotlin-js-store"}, cfg.Watch.IgnoreDirs)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
server:
  port: 3000
  max_port_attempts: 5
build:
  command: make
  args: [web]
  env: ["NODE_ENV=development"]
watch:
  debounce: 250ms
  source_paths: [web/src]
  ignore_globs: ["**/*.tmp"]
`)))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.MaxPortAttempts)
	assert.Equal(t, "make", cfg.Build.Command)
	assert.Equal(t, []string{"web"}, cfg.Build.Args)
	assert.Equal(t, []string{"NODE_ENV=development"}, cfg.Build.Env)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, []string{"web/src"}, cfg.Watch.SourcePaths)
	assert.Equal(t, []string{"**/*.tmp"}, cfg.Watch.IgnoreGlobs)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEVLOOP_SERVER_PORT", "9090")
	t.Setenv("DEVLOOP_WATCH_SOURCE_PATHS", "app/src,shared/src")

	v := viper.New()
	v.SetEnvPrefix("DEVLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"app/src", "shared/src"}, cfg.Watch.SourcePaths)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "not in valid range"},
		{"no attempts", func(c *Config) { c.Server.MaxPortAttempts = 0 }, "max_port_attempts"},
		{"range overflow", func(c *Config) { c.Server.Port = 65530; c.Server.MaxPortAttempts = 20 }, "exceeds 65535"},
		{"root live path", func(c *Config) { c.Server.LivePath = "/" }, "live_path"},
		{"nested default document", func(c *Config) { c.Server.DefaultDocument = "a/index.html" }, "default_document"},
		{"empty command", func(c *Config) { c.Build.Command = "  " }, "command cannot be empty"},
		{"bad env entry", func(c *Config) { c.Build.Env = []string{"NOEQUALS"} }, "KEY=VALUE"},
		{"extension without dot", func(c *Config) { c.Build.ServedExtensions = []string{"js"} }, "must start with a dot"},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = 0 }, "debounce must be positive"},
		{"absolute source path", func(c *Config) { c.Watch.SourcePaths = []string{"/abs"} }, "relative"},
		{"escaping source path", func(c *Config) { c.Watch.SourcePaths = []string{"../x"} }, "relative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(viper.New())
			require.NoError(t, err)

			tt.mutate(cfg)
			err = Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("root contains sources", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "composeApp", "src"), 0o755))

		cfg, err := LoadFrom(viper.New())
		require.NoError(t, err)
		require.NoError(t, cfg.Resolve(root))

		assert.Equal(t, root, cfg.Watch.Root)
		assert.Equal(t, root, cfg.Build.Dir)
		assert.Equal(t, filepath.Join(root, "gradlew"), cfg.Build.Command)
		assert.Equal(t, filepath.Join(root, "composeApp/build/dist/js/developmentExecutable"), cfg.Build.OutputDir)
		assert.Equal(t, filepath.Join(root, "composeApp/src/webMain/resources"), cfg.Build.ResourcesDir)
	})

	t.Run("run from nested module", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "composeApp"), 0o755))
		nested := filepath.Join(root, "dev")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		cfg, err := LoadFrom(viper.New())
		require.NoError(t, err)
		require.NoError(t, cfg.Resolve(nested))

		assert.Equal(t, root, cfg.Watch.Root)
	})

	t.Run("bare command is looked up on PATH", func(t *testing.T) {
		root := t.TempDir()
		cfg, err := LoadFrom(viper.New())
		require.NoError(t, err)
		cfg.Build.Command = "make"

		require.NoError(t, cfg.Resolve(root))
		assert.Equal(t, "make", cfg.Build.Command)
	})

	t.Run("missing explicit root", func(t *testing.T) {
		cfg, err := LoadFrom(viper.New())
		require.NoError(t, err)
		cfg.Watch.Root = filepath.Join(t.TempDir(), "missing")

		assert.Error(t, cfg.Resolve(t.TempDir()))
	})
}

func TestLoadFromReportsConfigErrors(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 70000)

	_, err := LoadFrom(v)
	require.Error(t, err)

	var de *deverrors.DevError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, deverrors.CodeConfig, de.Code)
	assert.Equal(t, deverrors.ErrorTypeConfig, de.Type)
	assert.Contains(t, err.Error(), "port 70000 is not in valid range")
}
