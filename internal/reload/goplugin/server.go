// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package goplugin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/rpc"
	"sync"

	"github.com/hashicorp/go-plugin"

	"github.com/crossweb-dev/crossweb/internal/reload"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// Server exposes a module's entry points over net/rpc in the child.
type Server struct {
	impl   module.Module
	broker *plugin.MuxBroker

	mu   sync.Mutex
	host *hostClient
}

func resolve[F any](s *Server, name string) (F, error) {
	if s.impl == nil {
		var zero F
		return zero, cwerr.New(cwerr.CodeReloadLoadFailure, "no module served")
	}
	return reload.Lookup[F](s.impl, name)
}

// Symbols reports which entry points the module exports.
func (s *Server) Symbols(_ any, names *[]string) error {
	if s.impl == nil {
		return nil
	}
	for _, name := range module.Required {
		if _, err := s.impl.Lookup(name); err == nil {
			*names = append(*names, name)
		}
	}
	return nil
}

// SetHost dials the host callback stream and hands the module a Host
// backed by it.
func (s *Server) SetHost(brokerID uint32, ok *bool) error {
	fn, err := resolve[func(module.Host)](s, module.SymbolSetHost)
	if err != nil {
		return err
	}
	conn, err := s.broker.Dial(brokerID)
	if err != nil {
		return cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "dialing host callbacks")
	}

	h := &hostClient{client: rpc.NewClient(conn)}
	s.mu.Lock()
	prev := s.host
	s.host = h
	s.mu.Unlock()
	if prev != nil {
		_ = prev.client.Close()
	}

	fn(h)
	*ok = true
	return nil
}

func (s *Server) Init(args InitArgs, ok *bool) error {
	fn, err := resolve[func(context.Context, module.InitOptions) error](s, module.SymbolInit)
	if err != nil {
		return err
	}
	opts := module.InitOptions{Platform: args.Platform, RequestTimeout: args.RequestTimeout}
	if len(args.Plugins) > 0 {
		opts.Plugins = make(map[string]json.RawMessage, len(args.Plugins))
		for name, raw := range args.Plugins {
			opts.Plugins[name] = raw
		}
	}
	if err := fn(context.Background(), opts); err != nil {
		return err
	}
	*ok = true
	return nil
}

func (s *Server) Invoke(args InvokeArgs, ok *bool) error {
	fn, err := resolve[func(context.Context, string, string, string)](s, module.SymbolInvoke)
	if err != nil {
		return err
	}
	fn(context.Background(), args.ID, args.Command, args.Payload)
	*ok = true
	return nil
}

func (s *Server) Update(_ any, ok *bool) error {
	fn, err := resolve[func(context.Context)](s, module.SymbolUpdate)
	if err != nil {
		return err
	}
	fn(context.Background())
	*ok = true
	return nil
}

func (s *Server) Cleanup(_ any, ok *bool) error {
	fn, err := resolve[func(context.Context)](s, module.SymbolCleanup)
	if err != nil {
		return err
	}
	fn(context.Background())
	*ok = true
	return nil
}

func (s *Server) PreReload(_ any, state *[]byte) error {
	fn, err := resolve[func() ([]byte, error)](s, module.SymbolPreReload)
	if err != nil {
		return err
	}
	data, err := fn()
	if err != nil {
		return err
	}
	*state = data
	return nil
}

func (s *Server) PostReload(state []byte, ok *bool) error {
	fn, err := resolve[func([]byte) error](s, module.SymbolPostReload)
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	*ok = true
	return nil
}

func (s *Server) Emit(args EventArgs, ok *bool) error {
	fn, err := resolve[func(string, string)](s, module.SymbolEmit)
	if err != nil {
		return err
	}
	fn(args.Event, args.Data)
	*ok = true
	return nil
}

func (s *Server) Notify(args EventArgs, ok *bool) error {
	fn, err := resolve[func(string, string)](s, module.SymbolNotify)
	if err != nil {
		return err
	}
	fn(args.Event, args.Data)
	*ok = true
	return nil
}

// hostClient is the child's view of the host.
type hostClient struct {
	client *rpc.Client
}

func (h *hostClient) Respond(id, response string) {
	if err := h.client.Call("Plugin.Respond", RespondArgs{ID: id, Response: response}, new(bool)); err != nil {
		slog.Warn("host respond failed", "request_id", id, "error", err)
	}
}

func (h *hostClient) Emit(event, data string) {
	if err := h.client.Call("Plugin.Emit", EventArgs{Event: event, Data: data}, new(bool)); err != nil {
		slog.Warn("host emit failed", "event", event, "error", err)
	}
}

// HostServer serves module.Host callbacks on the host side of the broker.
type HostServer struct {
	host module.Host
}

func (h *HostServer) Respond(args RespondArgs, ok *bool) error {
	h.host.Respond(args.ID, args.Response)
	*ok = true
	return nil
}

func (h *HostServer) Emit(args EventArgs, ok *bool) error {
	h.host.Emit(args.Event, args.Data)
	*ok = true
	return nil
}
