// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin

import (
	"log/slog"
	"sync/atomic"

	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

// OnceResponder forwards only the first reply.
type OnceResponder struct {
	next    sdk.Responder
	used    atomic.Bool
	logger  *slog.Logger
	request string
}

// Once wraps next so that it fires at most once. A nil next discards the
// reply.
func Once(id string, next sdk.Responder, logger *slog.Logger) *OnceResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnceResponder{next: next, logger: logger, request: id}
}

// Respond delivers response if nothing was delivered before. It reports
// whether this call won.
func (o *OnceResponder) Respond(response string) bool {
	if !o.used.CompareAndSwap(false, true) {
		o.logger.Debug("dropping duplicate response", "request_id", o.request)
		return false
	}
	if o.next != nil {
		o.next(response)
	}
	return true
}

// Responded reports whether a reply was already delivered.
func (o *OnceResponder) Responded() bool {
	return o.used.Load()
}

// Func returns Respond as an sdk.Responder.
func (o *OnceResponder) Func() sdk.Responder {
	return func(response string) { o.Respond(response) }
}
