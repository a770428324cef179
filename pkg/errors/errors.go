// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package errors wraps samber/oops with the machine-readable codes used
// across crossweb. Codes are dotted paths whose last segment is the reason
// (not_found, invalid, timeout, failure, ...).
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeIPCFrameInvalid         Code = "ipc.frame.invalid"
	CodeIPCPayloadInvalid       Code = "ipc.payload.invalid"
	CodeIPCEncodeInvalid        Code = "ipc.encode.invalid_input"
	CodeIPCQueueFull            Code = "ipc.queue.full"
	CodeIPCTransportUnavailable Code = "ipc.transport.unavailable"

	CodeDispatchCommandInvalid Code = "dispatch.command.invalid"
	CodeDispatchPluginNotFound Code = "dispatch.plugin.not_found"
	CodeDispatchUnsupported    Code = "dispatch.command.unsupported"
	CodeDispatchUnavailable    Code = "dispatch.plugin.unavailable"
	CodeDispatchTimeout        Code = "dispatch.request.timeout"

	CodePluginInitFailure                Code = "plugin.init.failure"
	CodePluginInvokeFailure              Code = "plugin.invoke.failure"
	CodePluginLifecycleTransitionInvalid Code = "plugin.lifecycle.transition.invalid"

	CodeReloadBuildFailure      Code = "reload.build.failure"
	CodeReloadLoadFailure       Code = "reload.load.failure"
	CodeReloadLoadUnsupported   Code = "reload.load.unsupported"
	CodeReloadSymbolNotFound    Code = "reload.symbol.not_found"
	CodeReloadSymbolInvalid     Code = "reload.symbol.invalid"
	CodeReloadStateInvalid      Code = "reload.state.invalid"
	CodeReloadInitFailure       Code = "reload.init.failure"
	CodeReloadWatchFailure      Code = "reload.watch.failure"
	CodeReloadNotBound          Code = "reload.table.not_found"
	CodeReloadTransitionInvalid Code = "reload.lifecycle.transition.invalid"

	CodeKeystoreInvalidInput   Code = "keystore.request.invalid_input"
	CodeKeystoreNotFound       Code = "keystore.key.not_found"
	CodeKeystoreStoreFailure   Code = "keystore.store.failure"
	CodeKeystoreDeleteFailure  Code = "keystore.delete.failure"
	CodeKeystoreListFailure    Code = "keystore.list.failure"
	CodeKeystoreCryptoFailure  Code = "keystore.crypto.failure"
	CodeKeystoreCipherInvalid  Code = "keystore.ciphertext.invalid"

	CodeFSPathInvalid   Code = "fs.path.invalid"
	CodeFSNotFound      Code = "fs.file.not_found"
	CodeFSReadFailure   Code = "fs.read.failure"
	CodeFSWriteFailure  Code = "fs.write.failure"
	CodeFSRequestInvalid Code = "fs.request.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerInternalFailure Code = "server.internal.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
	CodeCLIServerDown   Code = "cli.server.unavailable"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPlugin(value string) Attr {
	return Field("plugin", value)
}

func FieldCommand(value string) Attr {
	return Field("command", value)
}

func FieldRequestID(value string) Attr {
	return Field("request_id", value)
}

func FieldSymbol(value string) Attr {
	return Field("symbol", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// Wrap adds msg and fields to err. code applies only when err carries no
// code of its own; oops reports the innermost code of a chain.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsIPC reports whether err originated in the wire layer.
func IsIPC(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "ipc.")
}

// IsReload reports whether err originated in the reload subsystem.
func IsReload(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "reload.")
}

// Join combines errs, keeping the code of the first coded error. It returns
// nil when every element is nil.
func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}

	code := CodeServerInternalFailure
	for _, err := range errs {
		if c := CodeOf(err); c != "" {
			code = c
			break
		}
	}
	return oops.Code(code).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
