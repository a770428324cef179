// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package goplugin runs a crossweb module as a child process using
// HashiCorp go-plugin over net/rpc. The host dispenses the "module" plugin
// and binds its entry points like any other loaded module; host callbacks
// travel back on a broker stream.
package goplugin

import (
	"net/rpc"
	"os/exec"
	"slices"
	"time"

	"github.com/hashicorp/go-plugin"

	"github.com/crossweb-dev/crossweb/pkg/module"
)

const (
	protocolVersion = 1
	magicCookieKey  = "CROSSWEB_PLUGIN"
	magicCookieVal  = "Y3Jvc3N3ZWItbW9kdWxl" // "crossweb-module" base64

	// PluginName is the key the module is dispensed under.
	PluginName = "module"
)

func HandshakeConfig() plugin.HandshakeConfig {
	return plugin.HandshakeConfig{
		ProtocolVersion:  protocolVersion,
		MagicCookieKey:   magicCookieKey,
		MagicCookieValue: magicCookieVal,
	}
}

// PluginMap returns the plugin set for the host side. The child side uses
// Serve instead.
func PluginMap() map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginName: &ModulePlugin{},
	}
}

func ClientConfig(binaryPath string, args []string) *plugin.ClientConfig {
	return &plugin.ClientConfig{
		HandshakeConfig:  HandshakeConfig(),
		Plugins:          PluginMap(),
		Cmd:              buildCommand(binaryPath, args),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		StartTimeout:     30 * time.Second,
	}
}

func buildCommand(binaryPath string, args []string) *exec.Cmd {
	return exec.Command(binaryPath, slices.Clone(args)...) // #nosec G204 -- artifact path comes from local config
}

// ModulePlugin is the go-plugin glue for a module. Impl is only set on the
// child side.
type ModulePlugin struct {
	Impl module.Module
}

func (p *ModulePlugin) Server(b *plugin.MuxBroker) (interface{}, error) {
	return &Server{impl: p.Impl, broker: b}, nil
}

func (p *ModulePlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return NewClient(c, b), nil
}

// Serve runs m as a go-plugin child. It blocks until the host goes away.
func Serve(m module.Module) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: HandshakeConfig(),
		Plugins: map[string]plugin.Plugin{
			PluginName: &ModulePlugin{Impl: m},
		},
	})
}

// Wire types. net/rpc encodes them with gob.

type InitArgs struct {
	Platform       string
	Plugins        map[string][]byte
	RequestTimeout time.Duration
}

type InvokeArgs struct {
	ID      string
	Command string
	Payload string
}

type EventArgs struct {
	Event string
	Data  string
}

type RespondArgs struct {
	ID       string
	Response string
}
