// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package host

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crossweb-dev/crossweb/internal/ipc"
	"github.com/crossweb-dev/crossweb/internal/reload"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// DefaultUpdateInterval is how often a Worker runs the module update hook.
const DefaultUpdateInterval = 100 * time.Millisecond

// ReplyNoModule answers a request accepted while no module is bound.
const ReplyNoModule = `{"ok":false,"error":"no module loaded"}`

// Delivery receives each response, keyed by request id.
type Delivery func(id, response string)

// TableSource yields the bound entry points; *reload.Manager implements it.
type TableSource interface {
	Table() *reload.EntryPoints
}

// Worker dispatches every request on its own goroutine. Responses arrive
// through Delivery in completion order, which need not match submission
// order.
type Worker struct {
	deliver  Delivery
	events   func(event, data string)
	interval time.Duration
	ledger   *ipc.Ledger
	logger   *slog.Logger

	mu      sync.Mutex
	src     TableSource
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	running sync.WaitGroup
	updater sync.WaitGroup
}

var _ module.Host = (*Worker)(nil)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithEvents receives module events.
func WithEvents(fn func(event, data string)) WorkerOption {
	return func(w *Worker) { w.events = fn }
}

// WithUpdateInterval sets how often the update hook runs. Zero or
// negative disables it.
func WithUpdateInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.interval = d }
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewWorker(deliver Delivery, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		deliver:  deliver,
		interval: DefaultUpdateInterval,
		ledger:   ipc.NewLedger(0),
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Respond delivers the first reply for each invoked id; later replies for
// the same request, such as a timeout racing a late answer across a
// reload, are dropped.
func (w *Worker) Respond(id, response string) {
	if w.deliver == nil || id == "" {
		return
	}
	if !w.ledger.Settle(id) {
		w.logger.Debug("dropping duplicate response", "request_id", id)
		return
	}
	w.deliver(id, response)
}

func (w *Worker) Emit(event, data string) {
	if w.events != nil && event != "" {
		w.events(event, data)
	}
}

// Start binds the table source and starts the update hook.
func (w *Worker) Start(src TableSource) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return cwerr.New(cwerr.CodeIPCTransportUnavailable, "worker closed")
	}
	w.src = src

	if w.interval > 0 {
		w.updater.Add(1)
		go w.updateLoop()
	}
	return nil
}

func (w *Worker) updateLoop() {
	defer w.updater.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if table := w.table(); table != nil {
				table.Update(w.ctx)
			}
		}
	}
}

func (w *Worker) table() *reload.EntryPoints {
	w.mu.Lock()
	src := w.src
	w.mu.Unlock()
	if src == nil {
		return nil
	}
	return src.Table()
}

// Invoke runs one request in the background.
func (w *Worker) Invoke(id, command, payload string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return cwerr.New(cwerr.CodeIPCTransportUnavailable, "worker closed", cwerr.FieldRequestID(id))
	}
	if w.src == nil {
		w.mu.Unlock()
		return cwerr.New(cwerr.CodeIPCTransportUnavailable, "worker not started", cwerr.FieldRequestID(id))
	}
	w.running.Add(1)
	w.mu.Unlock()
	w.ledger.Open(id)

	go func() {
		defer w.running.Done()
		table := w.table()
		if table == nil {
			w.logger.Warn("no module bound", "request_id", id, "command", command)
			w.Respond(id, ReplyNoModule)
			return
		}
		table.Invoke(w.ctx, id, command, payload)
	}()
	return nil
}

// Wait blocks until every accepted request has returned from the module.
func (w *Worker) Wait() {
	w.running.Wait()
}

// Close refuses new requests, waits for outstanding ones until ctx ends,
// then stops the update hook.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.running.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = cwerr.Wrap(ctx.Err(), cwerr.CodeServerShutdownFailure, "waiting for requests")
	}
	w.cancel()
	w.updater.Wait()
	return err
}
