// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package app is the built-in plugin that reports runtime information to
// the page.
package app

import (
	"context"
	"encoding/json"

	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

const Name = "app"

// Info describes the running module generation.
type Info struct {
	Instance   string   `json:"instance"`
	Name       string   `json:"name"`
	Version    string   `json:"version,omitempty"`
	Platform   string   `json:"platform"`
	Generation uint64   `json:"generation"`
	Plugins    []string `json:"plugins"`
	Pending    int      `json:"pending"`
	Uptime     string   `json:"uptime,omitempty"`
}

// Inspector supplies Info.
type Inspector interface {
	Info() Info
}

type Plugin struct {
	inspector Inspector
}

var _ sdk.Invoker = (*Plugin)(nil)

func New(inspector Inspector) *Plugin {
	return &Plugin{inspector: inspector}
}

func (p *Plugin) Name() string { return Name }
func (p *Plugin) Version() int { return 1 }

func (p *Plugin) Invoke(_ context.Context, sub string, payload []byte, respond sdk.Responder) error {
	switch sub {
	case "info":
		sdk.Reply(respond, struct {
			OK bool `json:"ok"`
			Info
		}{OK: true, Info: p.inspector.Info()})
	case "ping":
		var echo any
		if len(payload) > 0 && json.Unmarshal(payload, &echo) != nil {
			echo = string(payload)
		}
		sdk.Reply(respond, map[string]any{"ok": true, "pong": echo})
	default:
		return sdk.ErrUnsupported
	}
	return nil
}
