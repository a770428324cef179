// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package goplugin

import (
	"context"
	"log/slog"
	"net/rpc"
	"sync"

	"github.com/hashicorp/go-plugin"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// Client is a module running in a child process. Only the symbols the
// child reports are resolvable, so binding fails the same way it would for
// an incomplete shared object.
type Client struct {
	client *rpc.Client
	broker *plugin.MuxBroker
	logger *slog.Logger

	symOnce sync.Once
	symbols map[string]bool
	symErr  error

	closeOnce sync.Once
	kill      func()
}

var _ module.Module = (*Client)(nil)

func NewClient(c *rpc.Client, b *plugin.MuxBroker) *Client {
	return &Client{client: c, broker: b, logger: slog.Default()}
}

func (c *Client) loadSymbols() error {
	c.symOnce.Do(func() {
		var names []string
		if err := c.client.Call("Plugin.Symbols", new(any), &names); err != nil {
			c.symErr = cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "listing module symbols")
			return
		}
		c.symbols = make(map[string]bool, len(names))
		for _, name := range names {
			c.symbols[name] = true
		}
	})
	return c.symErr
}

func (c *Client) Lookup(name string) (any, error) {
	if err := c.loadSymbols(); err != nil {
		return nil, err
	}
	if !c.symbols[name] {
		return nil, cwerr.New(cwerr.CodeReloadSymbolNotFound, "symbol not exported by module process", cwerr.FieldSymbol(name))
	}

	switch name {
	case module.SymbolSetHost:
		return c.SetHost, nil
	case module.SymbolInit:
		return c.Init, nil
	case module.SymbolInvoke:
		return c.Invoke, nil
	case module.SymbolUpdate:
		return c.Update, nil
	case module.SymbolCleanup:
		return c.Cleanup, nil
	case module.SymbolPreReload:
		return c.PreReload, nil
	case module.SymbolPostReload:
		return c.PostReload, nil
	case module.SymbolEmit:
		return c.Emit, nil
	case module.SymbolNotify:
		return c.Notify, nil
	}
	return nil, cwerr.New(cwerr.CodeReloadSymbolNotFound, "unknown symbol", cwerr.FieldSymbol(name))
}

// Close stops the child process, or just the connection when the client
// was not started by a Loader.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.kill != nil {
			c.kill()
			return
		}
		err = c.client.Close()
	})
	return err
}

// invoke runs one call and gives up when ctx ends. An abandoned call still
// completes in the background.
func (c *Client) invoke(ctx context.Context, method string, args, reply any) error {
	call := c.client.Go("Plugin."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case done := <-call.Done:
		return done.Error
	}
}

func (c *Client) warn(method string, err error) {
	if err != nil {
		c.logger.Warn("module call failed", "method", method, "error", err)
	}
}

// SetHost serves h on a fresh broker stream and tells the child to dial it.
func (c *Client) SetHost(h module.Host) {
	id := c.broker.NextId()
	go c.broker.AcceptAndServe(id, &HostServer{host: h})
	c.warn(module.SymbolSetHost, c.client.Call("Plugin.SetHost", id, new(bool)))
}

func (c *Client) Init(ctx context.Context, opts module.InitOptions) error {
	args := InitArgs{Platform: opts.Platform, RequestTimeout: opts.RequestTimeout}
	if len(opts.Plugins) > 0 {
		args.Plugins = make(map[string][]byte, len(opts.Plugins))
		for name, raw := range opts.Plugins {
			args.Plugins[name] = raw
		}
	}
	if err := c.invoke(ctx, "Init", args, new(bool)); err != nil {
		return cwerr.Wrap(err, cwerr.CodeReloadInitFailure, "initializing module process")
	}
	return nil
}

func (c *Client) Invoke(ctx context.Context, id, command, payload string) {
	err := c.invoke(ctx, "Invoke", InvokeArgs{ID: id, Command: command, Payload: payload}, new(bool))
	if err != nil {
		c.logger.Warn("module invoke failed", "request_id", id, "command", command, "error", err)
	}
}

func (c *Client) Update(ctx context.Context) {
	c.warn(module.SymbolUpdate, c.invoke(ctx, "Update", new(any), new(bool)))
}

func (c *Client) Cleanup(ctx context.Context) {
	c.warn(module.SymbolCleanup, c.invoke(ctx, "Cleanup", new(any), new(bool)))
}

func (c *Client) PreReload() ([]byte, error) {
	var state []byte
	if err := c.client.Call("Plugin.PreReload", new(any), &state); err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeReloadStateInvalid, "capturing module process state")
	}
	return state, nil
}

func (c *Client) PostReload(state []byte) error {
	if err := c.client.Call("Plugin.PostReload", state, new(bool)); err != nil {
		return cwerr.Wrap(err, cwerr.CodeReloadStateInvalid, "restoring module process state")
	}
	return nil
}

func (c *Client) Emit(event, data string) {
	c.warn(module.SymbolEmit, c.client.Call("Plugin.Emit", EventArgs{Event: event, Data: data}, new(bool)))
}

func (c *Client) Notify(event, data string) {
	c.warn(module.SymbolNotify, c.client.Call("Plugin.Notify", EventArgs{Event: event, Data: data}, new(bool)))
}
