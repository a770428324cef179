// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Command crossweb-plug is the native module artifact. Build it with
//
//	go build -buildmode=plugin -o module.so ./cmd/crossweb-plug
//
// and point reload.artifact at module.so with reload.loader set to native.
// Each build is loaded into the host as a fresh copy, so the package-level
// runtime below is new for every generation.
package main

import (
	"context"

	"github.com/crossweb-dev/crossweb/internal/plugins"
	"github.com/crossweb-dev/crossweb/internal/runtime"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

var rt = runtime.New(runtime.Options{
	Name:      "crossweb-plug",
	Factories: plugins.Factories(nil),
})

func SetHost(h module.Host) { rt.SetHost(h) }

func Init(ctx context.Context, opts module.InitOptions) error { return rt.Init(ctx, opts) }

func Invoke(ctx context.Context, id, command, payload string) { rt.Invoke(ctx, id, command, payload) }

func Update(ctx context.Context) { rt.Update(ctx) }

func Cleanup(ctx context.Context) { rt.Cleanup(ctx) }

func PreReload() ([]byte, error) { return rt.PreReload() }

func PostReload(state []byte) error { return rt.PostReload(state) }

func Emit(event, data string) { rt.Emit(event, data) }

func Notify(event, data string) { rt.Notify(event, data) }

func main() {}
