// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := cwerr.New(
		cwerr.CodeDispatchPluginNotFound,
		"unknown plugin",
		cwerr.FieldPlugin("keystore"),
		cwerr.FieldCommand("keystore.get"),
	)

	require.Error(t, err)
	assert.Equal(t, cwerr.CodeDispatchPluginNotFound, cwerr.CodeOf(err))
	assert.True(t, cwerr.HasCode(err, cwerr.CodeDispatchPluginNotFound))

	fields := cwerr.FieldsOf(err)
	assert.Equal(t, "keystore", fields["plugin"])
	assert.Equal(t, "keystore.get", fields["command"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := cwerr.Errorf(cwerr.CodeFSWriteFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, cwerr.CodeFSWriteFailure, cwerr.CodeOf(err))
	assert.Contains(t, err.Error(), "write failed")
}

// ---------------------------------------------------------------------------
// Wrap / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("symbol missing")
	err := cwerr.Wrap(root, cwerr.CodeReloadSymbolNotFound, "binding module", cwerr.FieldSymbol("Invoke"))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, cwerr.IsNotFound(err))
	assert.True(t, cwerr.IsReload(err))
	assert.Equal(t, "Invoke", cwerr.FieldsOf(err)["symbol"])
}

func TestWrapKeepsInnermostCode(t *testing.T) {
	inner := cwerr.New(cwerr.CodeReloadWatchFailure, "bad pattern")
	err := cwerr.Wrap(inner, cwerr.CodeCLISetupFailure, "creating source watcher")

	assert.Equal(t, cwerr.CodeReloadWatchFailure, cwerr.CodeOf(err))
	assert.False(t, cwerr.HasCode(err, cwerr.CodeCLISetupFailure))
	assert.Contains(t, err.Error(), "creating source watcher")

	plain := cwerr.Wrap(fmt.Errorf("disk"), cwerr.CodeCLISetupFailure, "encoding plugin configs")
	assert.Equal(t, cwerr.CodeCLISetupFailure, cwerr.CodeOf(plain))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, cwerr.Wrap(nil, cwerr.CodeReloadLoadFailure, "x"))
	assert.NoError(t, cwerr.Wrapf(nil, cwerr.CodeReloadLoadFailure, "x %d", 1))
	assert.NoError(t, cwerr.With(nil, cwerr.FieldPath("/tmp")))
}

func TestWithKeepsExistingCode(t *testing.T) {
	err := cwerr.New(cwerr.CodeIPCQueueFull, "ipc queue full")
	err = cwerr.With(err, cwerr.FieldRequestID("abc"))

	assert.Equal(t, cwerr.CodeIPCQueueFull, cwerr.CodeOf(err))
	assert.Equal(t, "abc", cwerr.FieldsOf(err)["request_id"])
	assert.True(t, cwerr.IsIPC(err))
}

func TestWithPlainErrorGetsInternalCode(t *testing.T) {
	err := cwerr.With(fmt.Errorf("plain"), cwerr.Field("k", "v"))
	assert.Equal(t, cwerr.CodeServerInternalFailure, cwerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func TestPredicates(t *testing.T) {
	tests := []struct {
		name     string
		code     cwerr.Code
		notFound bool
		invalid  bool
		timeout  bool
	}{
		{name: "frame invalid", code: cwerr.CodeIPCFrameInvalid, invalid: true},
		{name: "encode invalid input", code: cwerr.CodeIPCEncodeInvalid, invalid: true},
		{name: "plugin not found", code: cwerr.CodeDispatchPluginNotFound, notFound: true},
		{name: "request timeout", code: cwerr.CodeDispatchTimeout, timeout: true},
		{name: "build failure", code: cwerr.CodeReloadBuildFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cwerr.New(tt.code, tt.name)
			assert.Equal(t, tt.notFound, cwerr.IsNotFound(err))
			assert.Equal(t, tt.invalid, cwerr.IsInvalidInput(err))
			assert.Equal(t, tt.timeout, cwerr.IsTimeout(err))
		})
	}
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, cwerr.Code(""), cwerr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, cwerr.Code(""), cwerr.CodeOf(nil))
	assert.False(t, cwerr.HasCode(nil, cwerr.CodeIPCFrameInvalid))
}

// ---------------------------------------------------------------------------
// Join
// ---------------------------------------------------------------------------

func TestJoinAllNilReturnsNil(t *testing.T) {
	assert.NoError(t, cwerr.Join(nil, nil))
}

func TestJoinKeepsFirstCode(t *testing.T) {
	a := stderrors.New("a")
	b := cwerr.New(cwerr.CodePluginInitFailure, "b")
	err := cwerr.Join(a, nil, b)

	require.Error(t, err)
	assert.ErrorIs(t, err, a)
	assert.Equal(t, cwerr.CodePluginInitFailure, cwerr.CodeOf(err))
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}
