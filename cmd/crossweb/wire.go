// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/crossweb-dev/crossweb/internal/config"
	"github.com/crossweb-dev/crossweb/internal/host"
	"github.com/crossweb-dev/crossweb/internal/ipc"
	"github.com/crossweb-dev/crossweb/internal/metrics"
	"github.com/crossweb-dev/crossweb/internal/plugins"
	"github.com/crossweb-dev/crossweb/internal/plugins/app"
	"github.com/crossweb-dev/crossweb/internal/reload"
	"github.com/crossweb-dev/crossweb/internal/reload/goplugin"
	"github.com/crossweb-dev/crossweb/internal/runtime"
	"github.com/crossweb-dev/crossweb/internal/webview"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// Shell holds the wired desktop host and manages its lifecycle.
type Shell struct {
	Config   *config.Config
	Bridge   *ipc.Bridge
	Server   *webview.Server
	Manager  *reload.Manager
	Loop     *host.Loop
	Registry *prometheus.Registry
	logger   *slog.Logger
}

// WireShell creates all subsystems and wires them together. Nothing is
// loaded or listening until Run.
func WireShell(cfg *config.Config, logger *slog.Logger) (*Shell, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// 1. Wire protocol and bridge.
	codec := ipc.NewCodec(ipc.Limits{
		MaxIDLen:      cfg.IPC.MaxIDLen,
		MaxCommandLen: cfg.IPC.MaxCommandLen,
		MaxPayloadLen: cfg.IPC.MaxPayloadLen,
	})
	bridge := ipc.NewBridge(codec, ipc.NewQueue(cfg.IPC.QueueCapacity), ipc.WithLogger(logger))

	// 2. Module loading.
	loader, err := newLoader(cfg, logger)
	if err != nil {
		return nil, err
	}
	blobs, err := cfg.PluginConfigs()
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeCLISetupFailure, "encoding plugin configs")
	}

	var watcher reload.ChangeDetector
	if cfg.Reload.Enabled {
		w, err := reload.NewWatcher(cfg.Reload.Watch, cfg.Reload.Ignore)
		if err != nil {
			return nil, cwerr.Wrap(err, cwerr.CodeCLISetupFailure, "creating source watcher")
		}
		watcher = w
	}

	var builder reload.Builder
	if argv := reload.ParseCommand(cfg.Reload.BuildCommand); len(argv) > 0 {
		builder = &reload.CommandBuilder{
			Argv:    argv,
			Dir:     cfg.Reload.BuildDir,
			Timeout: cfg.Reload.BuildTimeout,
		}
	}

	// 3. Metrics and dev webview. The hooks read the manager, which is
	// created once the server exists.
	registry := metrics.NewRegistry()
	var mgr *reload.Manager

	srv, err := webview.New(webview.Config{
		ListenAddr:  cfg.DevServer.Listen,
		WebDir:      cfg.App.WebDir,
		CORSOrigins: cfg.DevServer.CORSOrigins,
		Name:        cfg.App.Name,
		Version:     version,
		Gatherer:    registry,
	}, bridge,
		webview.WithLogger(logger),
		webview.WithConnectHook(func(clients int) {
			if table := mgr.Table(); table != nil {
				table.Notify(webview.EventConnected, fmt.Sprintf(`{"clients":%d}`, clients))
			}
		}),
		webview.WithStatus(func(st *webview.Status) {
			st.Generation = mgr.Generation()
			st.ReloadState = mgr.State().String()
			if err := mgr.LastError(); err != nil {
				st.LastError = err.Error()
			}
			h := mgr.Health()
			st.Reload = &h
		}),
	)
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeCLISetupFailure, "creating dev webview")
	}
	if err := bridge.Attach(srv); err != nil && !cwerr.HasCode(err, cwerr.CodeIPCTransportUnavailable) {
		return nil, cwerr.Wrap(err, cwerr.CodeCLISetupFailure, "attaching dev webview")
	}

	// 4. Reload manager and host loop.
	mgr = reload.NewManager(reload.Options{
		Loader:   loader,
		Artifact: cfg.Reload.Artifact,
		Builder:  builder,
		Watcher:  watcher,
		Host:     bridge,
		Init: module.InitOptions{
			Platform:       cfg.App.Platform,
			Plugins:        blobs,
			RequestTimeout: cfg.IPC.RequestTimeout,
			Webview:        srv,
		},
		Logger: logger,
	})

	loop := host.NewLoop(bridge, mgr,
		host.WithHotReload(cfg.Reload.Enabled),
		host.WithInterval(cfg.Loop.Interval),
		host.WithLoopLogger(logger),
	)

	return &Shell{
		Config:   cfg,
		Bridge:   bridge,
		Server:   srv,
		Manager:  mgr,
		Loop:     loop,
		Registry: registry,
		logger:   logger,
	}, nil
}

// Run loads the initial module, then serves the dev webview and ticks the
// host loop until ctx ends or either fails. A nil listener listens on the
// configured address.
func (s *Shell) Run(ctx context.Context, ln net.Listener) error {
	if err := s.Manager.Load(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if ln == nil {
			return s.Server.Start(gctx)
		}
		return s.Server.Serve(gctx, ln)
	})
	g.Go(func() error {
		return s.Loop.Run(gctx)
	})
	return g.Wait()
}

// newLoader picks the module loader named by reload.loader.
func newLoader(cfg *config.Config, logger *slog.Logger) (reload.Loader, error) {
	switch cfg.Reload.Loader {
	case config.LoaderStatic, "":
		enabled := cfg.EnabledPlugins(builtinNames())
		return reload.StaticLoader(func() module.Module {
			return runtime.New(runtime.Options{
				Name:      cfg.App.Name,
				Version:   version,
				Factories: plugins.Factories(enabled),
				Logger:    logger,
			}).Module()
		}), nil
	case config.LoaderNative:
		if !reload.NativeSupported {
			return nil, cwerr.New(cwerr.CodeReloadLoadUnsupported, "this build cannot load native modules; use the process loader")
		}
		return &reload.NativeLoader{ScratchDir: cfg.Reload.ScratchDir}, nil
	case config.LoaderProcess:
		return &goplugin.Loader{Logger: logger}, nil
	default:
		return nil, cwerr.Errorf(cwerr.CodeConfigValidateInvalidValue, "unknown reload loader %q", cfg.Reload.Loader)
	}
}

// builtinNames lists the app plugin and every bundled plugin.
func builtinNames() []string {
	names := []string{app.Name}
	for _, b := range plugins.Builtins() {
		names = append(names, b.Name)
	}
	return names
}
