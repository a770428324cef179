// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

// ReplyTimeout is sent when a request outlives its deadline.
const ReplyTimeout = `{"ok":false,"error":"request timed out"}`

// DefaultRequestTimeout matches the web helper's own call timeout.
const DefaultRequestTimeout = 30 * time.Second

// PendingEntry is the serializable part of an in-flight request.
type PendingEntry struct {
	ID       string    `cbor:"id" json:"id"`
	Command  string    `cbor:"command" json:"command"`
	Deadline time.Time `cbor:"deadline,omitempty" json:"deadline,omitzero"`
}

type pendingRequest struct {
	entry  PendingEntry
	once   *OnceResponder
	cancel context.CancelFunc
}

// Pending tracks dispatched requests until they are answered or expire.
// A zero timeout disables expiry, leaving unanswered requests pending.
type Pending struct {
	mu       sync.Mutex
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	requests map[string]*pendingRequest
}

// PendingOption configures a Pending tracker.
type PendingOption func(*Pending)

// WithClock overrides the time source used for deadlines.
func WithClock(now func() time.Time) PendingOption {
	return func(p *Pending) { p.now = now }
}

// WithPendingLogger sets the tracker logger.
func WithPendingLogger(logger *slog.Logger) PendingOption {
	return func(p *Pending) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPending(timeout time.Duration, opts ...PendingOption) *Pending {
	p := &Pending{
		timeout:  timeout,
		now:      time.Now,
		logger:   slog.Default(),
		requests: make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pending) Timeout() time.Duration { return p.timeout }

// Track registers a request and returns the context and responder to
// dispatch it with. The context is cancelled once the request is answered,
// expires or is abandoned.
func (p *Pending) Track(ctx context.Context, id, command string, respond sdk.Responder) (context.Context, sdk.Responder) {
	entry := PendingEntry{ID: id, Command: command}
	if p.timeout > 0 {
		entry.Deadline = p.now().Add(p.timeout)
	}

	ctx, cancel := context.WithCancel(ctx)
	req := &pendingRequest{entry: entry, once: Once(id, respond, p.logger), cancel: cancel}

	p.mu.Lock()
	if prev, ok := p.requests[id]; ok {
		p.logger.Warn("request id reused while pending", "request_id", id, "previous_command", prev.entry.Command)
	}
	p.requests[id] = req
	PendingRequests.Set(float64(len(p.requests)))
	p.mu.Unlock()

	return ctx, func(response string) {
		if req.once.Respond(response) {
			p.finish(req)
		}
	}
}

// finish removes req if it is still the tracked request for its id.
func (p *Pending) finish(req *pendingRequest) {
	p.mu.Lock()
	if cur, ok := p.requests[req.entry.ID]; ok && cur == req {
		delete(p.requests, req.entry.ID)
	}
	PendingRequests.Set(float64(len(p.requests)))
	p.mu.Unlock()
	req.cancel()
}

// Expire answers every request whose deadline is at or before now with
// ReplyTimeout and returns how many expired.
func (p *Pending) Expire(now time.Time) int {
	p.mu.Lock()
	var expired []*pendingRequest
	for id, req := range p.requests {
		if req.entry.Deadline.IsZero() || now.Before(req.entry.Deadline) {
			continue
		}
		delete(p.requests, id)
		expired = append(expired, req)
	}
	PendingRequests.Set(float64(len(p.requests)))
	p.mu.Unlock()

	for _, req := range expired {
		if req.once.Respond(ReplyTimeout) {
			Dispatches.WithLabelValues(labelUnrouted, StatusTimeout).Inc()
			p.logger.Warn("request timed out", "request_id", req.entry.ID, "command", req.entry.Command)
		}
		req.cancel()
	}
	return len(expired)
}

// Len returns the number of pending requests.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Snapshot returns the pending entries sorted by id.
func (p *Pending) Snapshot() []PendingEntry {
	p.mu.Lock()
	out := make([]PendingEntry, 0, len(p.requests))
	for _, req := range p.requests {
		out = append(out, req.entry)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore adopts entries captured by Snapshot, typically from a previous
// module generation. rebind supplies the responder for each id. Ids that are
// already tracked are skipped. It returns how many entries were adopted.
func (p *Pending) Restore(entries []PendingEntry, rebind func(id string) sdk.Responder) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, ok := p.requests[e.ID]; ok {
			continue
		}
		var respond sdk.Responder
		if rebind != nil {
			respond = rebind(e.ID)
		}
		p.requests[e.ID] = &pendingRequest{
			entry:  e,
			once:   Once(e.ID, respond, p.logger),
			cancel: func() {},
		}
		n++
	}
	PendingRequests.Set(float64(len(p.requests)))
	return n
}

// Abandon drops every pending request without replying.
func (p *Pending) Abandon() int {
	p.mu.Lock()
	reqs := p.requests
	p.requests = make(map[string]*pendingRequest)
	PendingRequests.Set(0)
	p.mu.Unlock()

	for _, req := range reqs {
		req.cancel()
	}
	return len(reqs)
}
