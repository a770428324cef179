// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package goplugin

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-plugin"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// Loader starts module executables built with cmd/crossweb-module.
type Loader struct {
	Args   []string
	Logger *slog.Logger
}

func (l *Loader) Load(ctx context.Context, path string) (module.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "starting module process", cwerr.FieldPath(path))
	}

	pc := plugin.NewClient(ClientConfig(path, l.Args))
	rpcClient, err := pc.Client()
	if err != nil {
		pc.Kill()
		return nil, cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "starting module process", cwerr.FieldPath(path))
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		pc.Kill()
		return nil, cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "dispensing module", cwerr.FieldPath(path))
	}
	c, ok := raw.(*Client)
	if !ok {
		pc.Kill()
		return nil, cwerr.New(cwerr.CodeReloadLoadFailure, "unexpected module client type", cwerr.FieldPath(path))
	}
	c.kill = pc.Kill
	if l.Logger != nil {
		c.logger = l.Logger
	}

	if err := c.loadSymbols(); err != nil {
		pc.Kill()
		return nil, err
	}
	return c, nil
}
