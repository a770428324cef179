// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package reload

import (
	"sync"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// State is the binding state of a Manager.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateBound
	StateReloading
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateBound:
		return "bound"
	case StateReloading:
		return "reloading"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
// Failed keeps the previous binding, so it may reload again; a failed
// initial load may be retried.
var validTransitions = map[State]map[State]bool{
	StateUnloaded: {
		StateLoading: true,
	},
	StateLoading: {
		StateBound:    true,
		StateUnloaded: true,
	},
	StateBound: {
		StateReloading: true,
		StateUnloaded:  true,
	},
	StateReloading: {
		StateBound:  true,
		StateFailed: true,
	},
	StateFailed: {
		StateReloading: true,
		StateUnloaded:  true,
	},
}

// ValidTransition returns true if transitioning from one state to another is allowed.
func ValidTransition(from, to State) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}

type stateMachine struct {
	mu    sync.RWMutex
	state State
}

func (m *stateMachine) get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *stateMachine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ValidTransition(m.state, to) {
		return cwerr.Errorf(cwerr.CodeReloadTransitionInvalid,
			"invalid reload state transition: %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}
