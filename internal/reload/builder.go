// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package reload

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// DefaultBuildTimeout bounds one rebuild.
const DefaultBuildTimeout = 2 * time.Minute

// outputTail is how much build output is kept on the error.
const outputTail = 2048

// Builder produces a fresh module artifact.
type Builder interface {
	Build(ctx context.Context) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context) error

func (f BuilderFunc) Build(ctx context.Context) error { return f(ctx) }

// CommandBuilder runs an external build command such as
// "go build -buildmode=plugin -o app.so ./cmd/crossweb-plug".
type CommandBuilder struct {
	Argv    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// Output, when set, also receives the combined build output.
	Output io.Writer
}

// ParseCommand splits a build command line on whitespace. Quoting is not
// interpreted; configure Argv directly for arguments with spaces.
func ParseCommand(line string) []string {
	return strings.Fields(line)
}

func (b *CommandBuilder) Build(ctx context.Context) error {
	if len(b.Argv) == 0 {
		return cwerr.New(cwerr.CodeReloadBuildFailure, "no build command configured")
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultBuildTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.Argv[0], b.Argv[1:]...)
	cmd.Dir = b.Dir
	cmd.WaitDelay = time.Second
	if len(b.Env) > 0 {
		cmd.Env = append(os.Environ(), b.Env...)
	}

	var out bytes.Buffer
	if b.Output != nil {
		cmd.Stdout = io.MultiWriter(&out, b.Output)
	} else {
		cmd.Stdout = &out
	}
	cmd.Stderr = cmd.Stdout

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		return cwerr.Wrap(err, cwerr.CodeReloadBuildFailure, "build command failed",
			cwerr.Field("command", strings.Join(b.Argv, " ")),
			cwerr.Field("output", tail(out.String(), outputTail)),
			cwerr.Field("elapsed", time.Since(start).String()),
		)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
