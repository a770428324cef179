// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package config

import (
	"encoding/json"
	"errors"
	"net"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/gobwas/glob"
	"github.com/spf13/viper"
)

// Reload loader kinds.
const (
	LoaderStatic  = "static"
	LoaderNative  = "native"
	LoaderProcess = "process"
)

// Config is the top-level crossweb configuration.
type Config struct {
	App       AppConfig                 `mapstructure:"app" yaml:"app"`
	IPC       IPCConfig                 `mapstructure:"ipc" yaml:"ipc"`
	Loop      LoopConfig                `mapstructure:"loop" yaml:"loop"`
	Reload    ReloadConfig              `mapstructure:"reload" yaml:"reload"`
	DevServer DevServerConfig           `mapstructure:"devserver" yaml:"devserver"`
	Log       LogConfig                 `mapstructure:"log" yaml:"log"`
	Plugins   map[string]map[string]any `mapstructure:"plugins" yaml:"plugins,omitempty"`
}

// AppConfig identifies the application and where its web content lives.
type AppConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Platform string `mapstructure:"platform" yaml:"platform"`
	WebDir   string `mapstructure:"web_dir" yaml:"web_dir"`
}

// IPCConfig bounds the wire protocol and the ingress queue.
type IPCConfig struct {
	QueueCapacity  int           `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	MaxIDLen       int           `mapstructure:"max_id_len" yaml:"max_id_len"`
	MaxCommandLen  int           `mapstructure:"max_command_len" yaml:"max_command_len"`
	MaxPayloadLen  int           `mapstructure:"max_payload_len" yaml:"max_payload_len"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// LoopConfig controls the cooperative host loop.
type LoopConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ReloadConfig selects how the module is loaded and rebuilt.
type ReloadConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Loader       string        `mapstructure:"loader" yaml:"loader"`
	Artifact     string        `mapstructure:"artifact" yaml:"artifact"`
	ScratchDir   string        `mapstructure:"scratch_dir" yaml:"scratch_dir"`
	BuildCommand string        `mapstructure:"build_command" yaml:"build_command"`
	BuildDir     string        `mapstructure:"build_dir" yaml:"build_dir"`
	BuildTimeout time.Duration `mapstructure:"build_timeout" yaml:"build_timeout"`
	Watch        []string      `mapstructure:"watch" yaml:"watch"`
	Ignore       []string      `mapstructure:"ignore" yaml:"ignore"`
}

// DevServerConfig controls the browser-backed development webview.
type DevServerConfig struct {
	Listen      string   `mapstructure:"listen" yaml:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Level  string `mapstructure:"level" yaml:"level"`
}

// SetDefaults installs every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crossweb")
	v.SetDefault("app.platform", "desktop")
	v.SetDefault("app.web_dir", "web")

	v.SetDefault("ipc.queue_capacity", 64)
	v.SetDefault("ipc.max_id_len", 64)
	v.SetDefault("ipc.max_command_len", 256)
	v.SetDefault("ipc.max_payload_len", 4096)
	v.SetDefault("ipc.request_timeout", "30s")

	v.SetDefault("loop.interval", "16ms")

	v.SetDefault("reload.enabled", false)
	v.SetDefault("reload.loader", LoaderStatic)
	v.SetDefault("reload.build_timeout", "2m")
	v.SetDefault("reload.watch", []string{"."})
	v.SetDefault("reload.ignore", []string{".git", "**/.git", "*.swp", "*~", "**/node_modules", "*.so"})

	v.SetDefault("devserver.listen", "127.0.0.1:7370")
	v.SetDefault("devserver.cors_origins", []string{})

	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
}

// SetupEnv binds CROSSWEB_* environment variables, e.g.
// CROSSWEB_IPC_QUEUE_CAPACITY for ipc.queue_capacity.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("CROSSWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix CROSSWEB_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cwerr.Errorf(cwerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cwerr.Errorf(cwerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, cwerr.Errorf(cwerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// PluginConfigs returns each plugins.<name> section as a JSON blob.
func (c *Config) PluginConfigs() (map[string]json.RawMessage, error) {
	if len(c.Plugins) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(c.Plugins))
	for name, section := range c.Plugins {
		blob, err := json.Marshal(section)
		if err != nil {
			return nil, cwerr.Wrap(err, cwerr.CodeConfigParseInvalidFormat, "encoding plugin config", cwerr.FieldPlugin(name))
		}
		out[name] = blob
	}
	return out, nil
}

// PluginEnabled reports whether a plugin is enabled. A plugin is enabled
// unless plugins.<name>.enabled is false.
func (c *Config) PluginEnabled(name string) bool {
	section, ok := c.Plugins[name]
	if !ok {
		return true
	}
	switch v := section["enabled"].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err != nil || b
	default:
		return true
	}
}

// EnabledPlugins maps every name in names to PluginEnabled.
func (c *Config) EnabledPlugins(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = c.PluginEnabled(name)
	}
	return out
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateApp()...)
	errs = append(errs, c.validateIPC()...)
	errs = append(errs, c.validateLoop()...)
	errs = append(errs, c.validateReload()...)
	errs = append(errs, c.validateDevServer()...)
	errs = append(errs, c.validateLog()...)

	return errs
}

func (c *Config) validateApp() []error {
	var errs []error

	if c.App.Name == "" {
		errs = append(errs, invalid("config: app.name must not be empty"))
	}
	if c.App.Platform == "" {
		errs = append(errs, invalid("config: app.platform must not be empty"))
	}

	return errs
}

func (c *Config) validateIPC() []error {
	var errs []error

	positive := []struct {
		key   string
		value int
	}{
		{"ipc.queue_capacity", c.IPC.QueueCapacity},
		{"ipc.max_id_len", c.IPC.MaxIDLen},
		{"ipc.max_command_len", c.IPC.MaxCommandLen},
		{"ipc.max_payload_len", c.IPC.MaxPayloadLen},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, invalid("config: %s must be greater than 0, got %d", p.key, p.value))
		}
	}

	if c.IPC.RequestTimeout < 0 {
		errs = append(errs, invalid("config: ipc.request_timeout must not be negative, got %s", c.IPC.RequestTimeout))
	}

	return errs
}

func (c *Config) validateLoop() []error {
	if c.Loop.Interval <= 0 {
		return []error{invalid("config: loop.interval must be greater than 0, got %s", c.Loop.Interval)}
	}
	return nil
}

func (c *Config) validateReload() []error {
	var errs []error

	validLoaders := []string{LoaderStatic, LoaderNative, LoaderProcess}
	if !slices.Contains(validLoaders, c.Reload.Loader) {
		errs = append(errs, invalid("config: reload.loader must be one of [%s], got %q",
			strings.Join(validLoaders, ", "), c.Reload.Loader))
	}

	if c.Reload.Loader != LoaderStatic && c.Reload.Loader != "" && c.Reload.Artifact == "" {
		errs = append(errs, invalid("config: reload.artifact is required for the %s loader", c.Reload.Loader))
	}

	if c.Reload.BuildTimeout < 0 {
		errs = append(errs, invalid("config: reload.build_timeout must not be negative, got %s", c.Reload.BuildTimeout))
	}

	if c.Reload.Enabled && len(c.Reload.Watch) == 0 {
		errs = append(errs, invalid("config: reload.watch must list at least one directory when reload is enabled"))
	}

	for i, pattern := range c.Reload.Ignore {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, cwerr.Errorf(cwerr.CodeConfigValidateInvalidValue,
				"config: reload.ignore[%d] %q is not a valid pattern: %w", i, pattern, err))
		}
	}

	return errs
}

func (c *Config) validateDevServer() []error {
	var errs []error

	listen := c.DevServer.Listen
	if listen == "" {
		return []error{invalid("config: devserver.listen must not be empty")}
	}

	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return []error{cwerr.Errorf(cwerr.CodeConfigValidateInvalidValue,
			"config: devserver.listen must be a valid host:port address, got %q: %w", listen, err)}
	}
	// Port 0 picks a free port.
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("config: devserver.listen port must be a number, got %q", portStr))
	} else if port < 0 || port > 65535 {
		errs = append(errs, invalid("config: devserver.listen port must be between 0 and 65535, got %d", port))
	}

	for i, origin := range c.DevServer.CORSOrigins {
		if origin == "" {
			errs = append(errs, invalid("config: devserver.cors_origins[%d] must not be empty", i))
		}
	}

	return errs
}

func (c *Config) validateLog() []error {
	var errs []error

	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		errs = append(errs, invalid("config: log.format must be one of [json, text], got %q", c.Log.Format))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, invalid("config: log.level must be one of [debug, info, warn, error], got %q", c.Log.Level))
	}

	return errs
}

// PluginNames returns the configured plugin section names, sorted.
func (c *Config) PluginNames() []string {
	names := make([]string, 0, len(c.Plugins))
	for name := range c.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func invalid(format string, args ...any) error {
	return cwerr.Errorf(cwerr.CodeConfigValidateInvalidValue, format, args...)
}
