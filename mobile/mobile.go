// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package mobile is the gomobile binding surface. The embedding app
// forwards frames from its webview through Invoke and evaluates nothing
// itself: responses and events come back through Callback.
package mobile

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/crossweb-dev/crossweb/internal/host"
	"github.com/crossweb-dev/crossweb/internal/plugins"
	"github.com/crossweb-dev/crossweb/internal/reload"
	"github.com/crossweb-dev/crossweb/internal/runtime"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

const stopTimeout = 5 * time.Second

// Callback is implemented by the embedding app.
type Callback interface {
	OnResponse(id, response string)
	OnEvent(event, data string)
}

// Config is the JSON accepted by Start.
type Config struct {
	Name             string                     `json:"name"`
	Platform         string                     `json:"platform"`
	RequestTimeoutMS int64                      `json:"request_timeout_ms"`
	Plugins          map[string]json.RawMessage `json:"plugins"`
	// Enabled limits the built-in plugins; empty enables all.
	Enabled []string `json:"enabled"`
}

type session struct {
	worker  *host.Worker
	manager *reload.Manager
	runtime *runtime.Runtime
}

var (
	mu      sync.Mutex
	current *session
)

// Start boots the runtime. Calling Start while running is an error.
func Start(cb Callback, configJSON string) error {
	if cb == nil {
		return cwerr.New(cwerr.CodeCLIInputInvalid, "callback is required")
	}

	cfg := Config{Name: "crossweb", RequestTimeoutMS: 30000}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
			return cwerr.Wrap(err, cwerr.CodeConfigParseInvalidFormat, "parsing mobile config")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return cwerr.New(cwerr.CodeServerStartFailure, "runtime already started")
	}

	var enabled map[string]bool
	if len(cfg.Enabled) > 0 {
		enabled = make(map[string]bool, len(cfg.Enabled))
		for _, name := range cfg.Enabled {
			enabled[name] = true
		}
	}

	rt := runtime.New(runtime.Options{Name: cfg.Name, Factories: plugins.Factories(enabled)})
	w := host.NewWorker(cb.OnResponse, host.WithEvents(cb.OnEvent))
	mgr := reload.NewManager(reload.Options{
		Loader: reload.StaticLoader(func() module.Module { return rt.Module() }),
		Host:   w,
		Init: module.InitOptions{
			Platform:       cfg.Platform,
			Plugins:        cfg.Plugins,
			RequestTimeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		},
	})
	if err := mgr.Load(context.Background()); err != nil {
		_ = w.Close(context.Background())
		return err
	}
	if err := w.Start(mgr); err != nil {
		_ = mgr.Close(context.Background())
		return err
	}

	current = &session{worker: w, manager: mgr, runtime: rt}
	return nil
}

func active() (*session, error) {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil, cwerr.New(cwerr.CodeIPCTransportUnavailable, "runtime not started")
	}
	return current, nil
}

// Invoke dispatches one request; the reply arrives via OnResponse.
func Invoke(id, command, payload string) error {
	s, err := active()
	if err != nil {
		return err
	}
	return s.worker.Invoke(id, command, payload)
}

// Emit notifies every plugin of a host event such as a lifecycle change.
func Emit(event, data string) error {
	s, err := active()
	if err != nil {
		return err
	}
	if table := s.manager.Table(); table != nil {
		table.Notify(event, data)
	}
	return nil
}

// Stop waits briefly for outstanding requests and shuts the runtime down.
// Stopping a stopped runtime is a no-op.
func Stop() error {
	mu.Lock()
	s := current
	current = nil
	mu.Unlock()
	if s == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return cwerr.Join(s.worker.Close(ctx), s.manager.Close(ctx))
}
