// Package config provides configuration management for devloop using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// Values are read from .devloop.yml (or the file named by DEVLOOP_CONFIG_FILE
// or --config), overridden by DEVLOOP_<SECTION>_<KEY> environment variables
// and finally by flags bound through viper.BindPFlag. Defaults describe a
// Compose Multiplatform web project built with the Gradle wrapper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	deverrors "github.com/instant-compose/devloop/internal/errors"
)

// Config is the complete devloop configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Build  BuildConfig  `mapstructure:"build" yaml:"build"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// ServerConfig controls the HTTP server, port selection and the banner.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	MaxPortAttempts int           `mapstructure:"max_port_attempts" yaml:"max_port_attempts"`
	LivePath        string        `mapstructure:"live_path" yaml:"live_path"`
	CacheMaxAge     time.Duration `mapstructure:"cache_max_age" yaml:"cache_max_age"`
	DefaultDocument string        `mapstructure:"default_document" yaml:"default_document"`
	Compression     bool          `mapstructure:"compression" yaml:"compression"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	ShowQR          bool          `mapstructure:"show_qr" yaml:"show_qr"`
	Open            bool          `mapstructure:"open" yaml:"open"`
}

// BuildConfig describes the build command and where its output is served from.
type BuildConfig struct {
	Command          string   `mapstructure:"command" yaml:"command"`
	Args             []string `mapstructure:"args" yaml:"args"`
	Dir              string   `mapstructure:"dir" yaml:"dir"`
	Env              []string `mapstructure:"env" yaml:"env"`
	OutputDir        string   `mapstructure:"output_dir" yaml:"output_dir"`
	ResourcesDir     string   `mapstructure:"resources_dir" yaml:"resources_dir"`
	ServedExtensions []string `mapstructure:"served_extensions" yaml:"served_extensions"`
	NoisePatterns    []string `mapstructure:"noise_patterns" yaml:"noise_patterns"`
}

// WatchConfig selects which changes below the project root trigger a rebuild.
type WatchConfig struct {
	Root           string        `mapstructure:"root" yaml:"root"`
	SourcePaths    []string      `mapstructure:"source_paths" yaml:"source_paths"`
	ConfigSuffixes []string      `mapstructure:"config_suffixes" yaml:"config_suffixes"`
	IgnoreDirs     []string      `mapstructure:"ignore_dirs" yaml:"ignore_dirs"`
	IgnoreGlobs    []string      `mapstructure:"ignore_globs" yaml:"ignore_globs"`
	Debounce       time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// LogConfig sets the level and format of the diagnostic log.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Defaults mirrored by SetDefaults.
const (
	DefaultPort            = 8080
	DefaultMaxPortAttempts = 20
	DefaultDebounce        = 500 * time.Millisecond
	DefaultCacheMaxAge     = 10 * time.Second
	DefaultLivePath        = "/dev-server"
)

// DefaultNoisePatterns are build output lines that carry no information for
// the operator.
var DefaultNoisePatterns = []string{
	"> Task :",
	"BUILD FAILED",
	"Run with --stacktrace",
	"Run with --info",
	"Run with --debug",
	"Run with --scan",
	"Get more help at https://help.gradle.org",
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.max_port_attempts", DefaultMaxPortAttempts)
	v.SetDefault("server.live_path", DefaultLivePath)
	v.SetDefault("server.cache_max_age", DefaultCacheMaxAge)
	v.SetDefault("server.default_document", "index.html")
	v.SetDefault("server.compression", true)
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("server.show_qr", true)
	v.SetDefault("server.open", false)

	v.SetDefault("build.command", "./gradlew")
	v.SetDefault("build.args", []string{
		":composeApp:jsBrowserDevelopmentExecutableDistribution",
		"--quiet",
		"--console=plain",
		"-Dorg.gradle.color=true",
		"-Pkotlin.colors.enabled=true",
	})
	// KEY=VALUE pairs; viper lowercases map keys, which env names cannot survive.
	v.SetDefault("build.env", []string{"TERM=xterm-256color"})
	v.SetDefault("build.output_dir", "composeApp/build/dist/js/developmentExecutable")
	v.SetDefault("build.resources_dir", "composeApp/src/webMain/resources")
	v.SetDefault("build.served_extensions", []string{".js", ".wasm", ".html"})
	v.SetDefault("build.noise_patterns", DefaultNoisePatterns)

	v.SetDefault("watch.source_paths", []string{"composeApp/src"})
	v.SetDefault("watch.config_suffixes", []string{".gradle.kts"})
	v.SetDefault("watch.ignore_dirs", []string{"build", "node_modules", "kotlin-js-store"})
	v.SetDefault("watch.ignore_globs", []string{})
	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v. Defaults are
// registered first so a bare viper instance yields a usable configuration.
// List values set through the environment are comma separated.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, deverrors.NewConfigError("decoding configuration", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, deverrors.NewConfigError("invalid configuration", err)
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func Validate(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateBuildConfig(&cfg.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}
	if err := validateWatchConfig(&cfg.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 asks the kernel for a port and is only useful in tests.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.MaxPortAttempts < 1 {
		return fmt.Errorf("max_port_attempts must be at least 1, got %d", config.MaxPortAttempts)
	}
	if config.Port+config.MaxPortAttempts-1 > 65535 {
		return fmt.Errorf("port range %d+%d exceeds 65535", config.Port, config.MaxPortAttempts)
	}
	if !strings.HasPrefix(config.LivePath, "/") || config.LivePath == "/" {
		return fmt.Errorf("live_path must be an absolute, non-root path: %q", config.LivePath)
	}
	if config.CacheMaxAge < 0 {
		return fmt.Errorf("cache_max_age cannot be negative")
	}
	if config.DefaultDocument == "" || strings.ContainsAny(config.DefaultDocument, `/\`) {
		return fmt.Errorf("default_document must be a plain file name: %q", config.DefaultDocument)
	}
	if config.MaxConnections < 0 {
		return fmt.Errorf("max_connections cannot be negative")
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	if strings.TrimSpace(config.Command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if config.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	for _, kv := range config.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("env entry %q must have the form KEY=VALUE", kv)
		}
	}
	for _, ext := range config.ServedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("served extension %q must start with a dot", ext)
		}
	}

	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", config.Debounce)
	}
	if len(config.SourcePaths) == 0 && len(config.ConfigSuffixes) == 0 {
		return fmt.Errorf("at least one source path or config suffix is required")
	}
	for _, p := range config.SourcePaths {
		if p == "" || filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(p), "..") {
			return fmt.Errorf("source path %q must be relative to the watch root", p)
		}
	}

	return nil
}

// Resolve anchors every relative path in cfg to the watch root. When no root
// is configured it is discovered from cwd: cwd itself when it contains the
// first source path's top-level directory, otherwise its parent when that
// does (running from a nested module), otherwise cwd.
func (cfg *Config) Resolve(cwd string) error {
	root := cfg.Watch.Root
	if root == "" {
		root = discoverRoot(cwd, cfg.Watch.SourcePaths)
	} else if !filepath.IsAbs(root) {
		root = filepath.Join(cwd, root)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving watch root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", root)
	}
	cfg.Watch.Root = root

	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	cfg.Build.OutputDir = anchor(cfg.Build.OutputDir)
	cfg.Build.ResourcesDir = anchor(cfg.Build.ResourcesDir)
	if cfg.Build.Dir == "" {
		cfg.Build.Dir = root
	} else {
		cfg.Build.Dir = anchor(cfg.Build.Dir)
	}
	if strings.ContainsRune(cfg.Build.Command, filepath.Separator) && !filepath.IsAbs(cfg.Build.Command) {
		cfg.Build.Command = filepath.Join(cfg.Build.Dir, cfg.Build.Command)
	}

	return nil
}

func discoverRoot(cwd string, sourcePaths []string) string {
	if len(sourcePaths) == 0 {
		return cwd
	}
	marker := strings.Split(filepath.ToSlash(filepath.Clean(sourcePaths[0])), "/")[0]

	for _, candidate := range []string{cwd, filepath.Dir(cwd)} {
		if info, err := os.Stat(filepath.Join(candidate, marker)); err == nil && info.IsDir() {
			return candidate
		}
	}

	return cwd
}
