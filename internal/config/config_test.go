// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crossweb-dev/crossweb/internal/config"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crossweb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Name: "demo", Platform: "desktop", WebDir: "web"},
		IPC:       config.IPCConfig{QueueCapacity: 64, MaxIDLen: 64, MaxCommandLen: 256, MaxPayloadLen: 4096, RequestTimeout: 30 * time.Second},
		Loop:      config.LoopConfig{Interval: 16 * time.Millisecond},
		Reload:    config.ReloadConfig{Loader: config.LoaderStatic, Watch: []string{"."}},
		DevServer: config.DevServerConfig{Listen: "127.0.0.1:7370"},
		Log:       config.LogConfig{Format: "text", Level: "info"},
	}
}

func TestLoadDefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "crossweb", cfg.App.Name)
	assert.Equal(t, "desktop", cfg.App.Platform)
	assert.Equal(t, 64, cfg.IPC.QueueCapacity)
	assert.Equal(t, 64, cfg.IPC.MaxIDLen)
	assert.Equal(t, 256, cfg.IPC.MaxCommandLen)
	assert.Equal(t, 4096, cfg.IPC.MaxPayloadLen)
	assert.Equal(t, 30*time.Second, cfg.IPC.RequestTimeout)
	assert.Equal(t, 16*time.Millisecond, cfg.Loop.Interval)
	assert.False(t, cfg.Reload.Enabled)
	assert.Equal(t, config.LoaderStatic, cfg.Reload.Loader)
	assert.Equal(t, 2*time.Minute, cfg.Reload.BuildTimeout)
	assert.Equal(t, []string{"."}, cfg.Reload.Watch)
	assert.Contains(t, cfg.Reload.Ignore, "**/node_modules")
	assert.Equal(t, "127.0.0.1:7370", cfg.DevServer.Listen)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
app:
  name: notes
  web_dir: ./site
ipc:
  queue_capacity: 8
  request_timeout: 5s
reload:
  enabled: true
  loader: native
  artifact: ./build/module.so
  build_command: go build -buildmode=plugin -o ./build/module.so ./cmd/crossweb-plug
plugins:
  fs:
    root: ./data
  keystore:
    enabled: false
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "notes", cfg.App.Name)
	assert.Equal(t, "./site", cfg.App.WebDir)
	assert.Equal(t, 8, cfg.IPC.QueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.IPC.RequestTimeout)
	assert.True(t, cfg.Reload.Enabled)
	assert.Equal(t, config.LoaderNative, cfg.Reload.Loader)
	assert.Equal(t, "./build/module.so", cfg.Reload.Artifact)
	assert.Equal(t, []string{"fs", "keystore"}, cfg.PluginNames())

	assert.True(t, cfg.PluginEnabled("fs"))
	assert.False(t, cfg.PluginEnabled("keystore"))
	assert.True(t, cfg.PluginEnabled("unlisted"))

	blobs, err := cfg.PluginConfigs()
	require.NoError(t, err)
	var fsCfg struct {
		Root string `json:"root"`
	}
	require.NoError(t, json.Unmarshal(blobs["fs"], &fsCfg))
	assert.Equal(t, "./data", fsCfg.Root)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CROSSWEB_DEVSERVER_LISTEN", "0.0.0.0:9000")
	t.Setenv("CROSSWEB_IPC_QUEUE_CAPACITY", "16")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.DevServer.Listen)
	assert.Equal(t, 16, cfg.IPC.QueueCapacity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, cwerr.HasCode(err, cwerr.CodeConfigLoadReadFailure))
}

func TestLoadValidationCalledAtLoadTime(t *testing.T) {
	path := writeConfig(t, `
reload:
  loader: dlopen
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, cwerr.HasCode(err, cwerr.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "reload.loader")
}

func TestFromViperUsesGivenInstance(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("app.name", "from-viper")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "from-viper", cfg.App.Name)
}

func TestDefaultConfigYAMLIsValid(t *testing.T) {
	path := writeConfig(t, string(config.DefaultConfigYAML))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.PluginEnabled("fs"))
	assert.True(t, cfg.PluginEnabled("keystore"))
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty app name", func(c *config.Config) { c.App.Name = "" }, "app.name"},
		{"empty platform", func(c *config.Config) { c.App.Platform = "" }, "app.platform"},
		{"zero queue", func(c *config.Config) { c.IPC.QueueCapacity = 0 }, "ipc.queue_capacity"},
		{"zero id bound", func(c *config.Config) { c.IPC.MaxIDLen = 0 }, "ipc.max_id_len"},
		{"negative payload bound", func(c *config.Config) { c.IPC.MaxPayloadLen = -1 }, "ipc.max_payload_len"},
		{"negative timeout", func(c *config.Config) { c.IPC.RequestTimeout = -time.Second }, "ipc.request_timeout"},
		{"zero interval", func(c *config.Config) { c.Loop.Interval = 0 }, "loop.interval"},
		{"unknown loader", func(c *config.Config) { c.Reload.Loader = "dlopen" }, "reload.loader"},
		{"native without artifact", func(c *config.Config) { c.Reload.Loader = config.LoaderNative }, "reload.artifact"},
		{"process without artifact", func(c *config.Config) { c.Reload.Loader = config.LoaderProcess }, "reload.artifact"},
		{"negative build timeout", func(c *config.Config) { c.Reload.BuildTimeout = -time.Second }, "reload.build_timeout"},
		{"enabled without watch", func(c *config.Config) {
			c.Reload.Enabled = true
			c.Reload.Watch = nil
		}, "reload.watch"},
		{"bad ignore pattern", func(c *config.Config) { c.Reload.Ignore = []string{"[unclosed"} }, "reload.ignore[0]"},
		{"empty listen", func(c *config.Config) { c.DevServer.Listen = "" }, "devserver.listen"},
		{"listen without port", func(c *config.Config) { c.DevServer.Listen = "localhost" }, "host:port"},
		{"listen bad port", func(c *config.Config) { c.DevServer.Listen = "localhost:http" }, "must be a number"},
		{"listen port range", func(c *config.Config) { c.DevServer.Listen = "localhost:70000" }, "between 0 and 65535"},
		{"empty origin", func(c *config.Config) { c.DevServer.CORSOrigins = []string{""} }, "cors_origins[0]"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)

			var msgs []string
			for _, err := range errs {
				assert.True(t, cwerr.IsInvalidInput(err), "error %v should be invalid input", err)
				msgs = append(msgs, err.Error())
			}
			assert.Contains(t, strings.Join(msgs, "\n"), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.Loop.Interval = 0
	cfg.Log.Format = "xml"

	assert.Len(t, cfg.Validate(), 3)
}

func TestValidateAllowsEphemeralPortAndUpperCaseLevel(t *testing.T) {
	cfg := validConfig()
	cfg.DevServer.Listen = "127.0.0.1:0"
	cfg.Log.Level = "DEBUG"
	assert.Empty(t, cfg.Validate())
}

func TestPluginEnabledParsesStrings(t *testing.T) {
	cfg := validConfig()
	cfg.Plugins = map[string]map[string]any{
		"fs":       {"enabled": "false"},
		"keystore": {"enabled": "yes-please"},
	}

	assert.False(t, cfg.PluginEnabled("fs"))
	assert.True(t, cfg.PluginEnabled("keystore"), "unparseable values leave the plugin on")
	assert.Equal(t, map[string]bool{"fs": false, "keystore": true, "app": true},
		cfg.EnabledPlugins([]string{"fs", "keystore", "app"}))
}

func TestPluginConfigsEmpty(t *testing.T) {
	blobs, err := validConfig().PluginConfigs()
	require.NoError(t, err)
	assert.Nil(t, blobs)
}
