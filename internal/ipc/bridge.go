// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package ipc

import (
	"log/slog"
	"sync"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// Error replies sent when a frame cannot be queued.
const (
	ReplyInvalidFrame   = `{"ok":false,"error":"invalid frame"}`
	ReplyInvalidPayload = `{"ok":false,"error":"invalid payload"}`
	ReplyQueueFull      = `{"ok":false,"error":"ipc queue full"}`
)

// Webview evaluates script in the hosted page. Implementations may deliver
// asynchronously.
type Webview interface {
	Eval(script string) error
}

// Bridge couples a webview to the inbound queue. HandleMessage may be called
// from the transport's goroutine; scripts are evaluated one at a time.
type Bridge struct {
	codec  *Codec
	queue  *Queue
	ledger *Ledger
	logger *slog.Logger

	mu      sync.RWMutex
	webview Webview

	evalMu sync.Mutex
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge returns a detached bridge.
func NewBridge(codec *Codec, queue *Queue, opts ...Option) *Bridge {
	b := &Bridge{
		codec:  codec,
		queue:  queue,
		ledger: NewLedger(0),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Codec() *Codec { return b.codec }
func (b *Bridge) Queue() *Queue { return b.queue }

// Ledger returns the ledger tracking dispatched request ids.
func (b *Bridge) Ledger() *Ledger { return b.ledger }

// Webview returns the attached webview, or nil.
func (b *Bridge) Webview() Webview {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.webview
}

// Attach binds wv, resets the queue and installs the JS bridge.
func (b *Bridge) Attach(wv Webview) error {
	b.mu.Lock()
	b.webview = wv
	b.mu.Unlock()
	b.queue.Clear()
	b.ledger.Reset()

	if wv == nil {
		return nil
	}
	if err := b.eval("bridge", BridgeScript()); err != nil {
		return cwerr.Wrap(err, cwerr.CodeIPCTransportUnavailable, "installing bridge script")
	}
	return nil
}

// Inject re-evaluates the bridge script, for pages that reloaded.
func (b *Bridge) Inject() error {
	return b.eval("bridge", BridgeScript())
}

// Detach unbinds the webview and drops queued messages.
func (b *Bridge) Detach() {
	b.mu.Lock()
	b.webview = nil
	b.mu.Unlock()
	b.queue.Clear()
	b.ledger.Reset()
}

// HandleMessage decodes frame and queues it. Rejected frames whose id could
// be recovered get an error reply. It reports whether the frame was queued.
func (b *Bridge) HandleMessage(frame string) bool {
	msg, err := b.codec.Decode(frame)
	if err != nil {
		reply, result := ReplyInvalidFrame, ResultInvalidFrame
		if cwerr.HasCode(err, cwerr.CodeIPCPayloadInvalid) {
			reply, result = ReplyInvalidPayload, ResultInvalidPayload
		}
		FramesReceived.WithLabelValues(result).Inc()
		b.logger.Warn("dropping ipc frame", "error", err, "request_id", msg.ID)
		if msg.ID != "" {
			b.reply(msg.ID, reply)
		}
		return false
	}

	if !b.queue.Push(msg) {
		FramesReceived.WithLabelValues(ResultQueueFull).Inc()
		b.logger.Warn("ipc queue full", "request_id", msg.ID, "command", msg.Command, "capacity", b.queue.Cap())
		b.reply(msg.ID, ReplyQueueFull)
		return false
	}

	FramesReceived.WithLabelValues(ResultAccepted).Inc()
	return true
}

// Receive pops the next queued message and opens its id in the ledger.
func (b *Bridge) Receive() (Message, bool) {
	msg, ok := b.queue.Pop()
	if ok {
		b.ledger.Open(msg.ID)
	}
	return msg, ok
}

// Respond delivers response to the request id. Empty ids are ignored, as
// is any reply after the first for a received request.
func (b *Bridge) Respond(id, response string) {
	if id == "" {
		return
	}
	if !b.ledger.Settle(id) {
		ScriptsEvaluated.WithLabelValues("response", "duplicate").Inc()
		b.logger.Debug("dropping duplicate response", "request_id", id)
		return
	}
	b.reply(id, response)
}

func (b *Bridge) reply(id, response string) {
	if err := b.eval("response", ResponseScript(id, []byte(response))); err != nil {
		b.logger.Debug("response not delivered", "request_id", id, "error", err)
	}
}

// Emit sends an event to the page. Delivery is best-effort.
func (b *Bridge) Emit(event, data string) {
	if event == "" {
		return
	}
	if err := b.eval("event", EventScript(event, []byte(data))); err != nil {
		b.logger.Debug("event not delivered", "event", event, "error", err)
	}
}

func (b *Bridge) eval(kind, script string) error {
	wv := b.Webview()
	if wv == nil {
		ScriptsEvaluated.WithLabelValues(kind, "dropped").Inc()
		return cwerr.New(cwerr.CodeIPCTransportUnavailable, "no webview attached")
	}

	b.evalMu.Lock()
	defer b.evalMu.Unlock()

	if err := wv.Eval(script); err != nil {
		ScriptsEvaluated.WithLabelValues(kind, "error").Inc()
		return err
	}
	ScriptsEvaluated.WithLabelValues(kind, "ok").Inc()
	return nil
}
