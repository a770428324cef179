// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package health tracks the failure history of components that fail and
// recover at runtime, such as the reload manager.
package health

import (
	"sync"
	"time"
)

// Metrics is a point-in-time snapshot safe to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	Available     bool       `json:"available"`
}

// Tracker records successes and failures. It starts available; a failure
// makes it unavailable until the next success.
type Tracker struct {
	mu           sync.RWMutex
	available    bool
	lastErr      error
	failedAt     time.Time
	succeededAt  time.Time
	failureCount int64
	nowFunc      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{available: true, nowFunc: time.Now}
}

// RecordSuccess marks the component available and clears the last error.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	t.available = true
	t.lastErr = nil
	t.succeededAt = t.nowFunc()
	t.mu.Unlock()
}

// RecordFailure marks the component unavailable and increments the
// cumulative failure count.
func (t *Tracker) RecordFailure(err error) {
	t.mu.Lock()
	t.available = false
	t.lastErr = err
	t.failedAt = t.nowFunc()
	t.failureCount++
	t.mu.Unlock()
}

// LastError returns the error of the most recent failure, or nil after a
// success.
func (t *Tracker) LastError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastErr
}

// SetNowFunc overrides the time source (for testing).
func (t *Tracker) SetNowFunc(fn func() time.Time) {
	t.mu.Lock()
	t.nowFunc = fn
	t.mu.Unlock()
}

func (t *Tracker) Metrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := Metrics{FailureCount: t.failureCount, Available: t.available}
	if t.failureCount > 0 {
		at := t.failedAt
		m.LastFailureAt = &at
	}
	if !t.succeededAt.IsZero() {
		at := t.succeededAt
		m.LastSuccessAt = &at
	}
	if t.lastErr != nil {
		m.LastError = t.lastErr.Error()
	}
	return m
}
