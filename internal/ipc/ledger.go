// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package ipc

import "sync"

// DefaultLedgerHistory is how many settled ids a Ledger remembers.
const DefaultLedgerHistory = 1024

// Ledger keeps replies single-shot per dispatched request on the host side,
// whichever module generation produces them. Open marks an id in flight;
// the first Settle for it passes and later ones are refused until the id
// is opened again. Ids that were never opened always pass.
type Ledger struct {
	mu       sync.Mutex
	history  int
	seq      uint64
	inflight map[string]struct{}
	settled  map[string]uint64
	order    []settledID
}

type settledID struct {
	id  string
	seq uint64
}

// NewLedger returns a ledger remembering up to history settled ids. A
// non-positive history takes DefaultLedgerHistory.
func NewLedger(history int) *Ledger {
	if history <= 0 {
		history = DefaultLedgerHistory
	}
	return &Ledger{
		history:  history,
		inflight: make(map[string]struct{}),
		settled:  make(map[string]uint64),
	}
}

// Open marks id as dispatched and awaiting its reply.
func (l *Ledger) Open(id string) {
	if id == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.settled, id)
	l.inflight[id] = struct{}{}
}

// Settle reports whether a reply for id may be delivered.
func (l *Ledger) Settle(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.inflight[id]; ok {
		delete(l.inflight, id)
		l.seq++
		l.settled[id] = l.seq
		l.order = append(l.order, settledID{id: id, seq: l.seq})
		for len(l.order) > l.history {
			old := l.order[0]
			l.order = l.order[1:]
			if l.settled[old.id] == old.seq {
				delete(l.settled, old.id)
			}
		}
		return true
	}
	_, done := l.settled[id]
	return !done
}

// InFlight returns the number of opened, unsettled ids.
func (l *Ledger) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}

// Reset forgets every id, for a page that went away.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight = make(map[string]struct{})
	l.settled = make(map[string]uint64)
	l.order = nil
}
