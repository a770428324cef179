// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin

import (
	"sync"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// PluginState represents the lifecycle state of a registered plugin.
type PluginState int

const (
	StateRegistered PluginState = iota
	StateInitializing
	StateRunning
	StateStopped
	StateError
)

func (s PluginState) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
var validTransitions = map[PluginState]map[PluginState]bool{
	StateRegistered: {
		StateInitializing: true,
		StateStopped:      true,
	},
	StateInitializing: {
		StateRunning: true,
		StateError:   true,
	},
	StateRunning: {
		StateStopped: true,
	},
	StateError: {
		StateStopped: true,
	},
	StateStopped: {},
}

// ValidTransition returns true if transitioning from one state to another is allowed.
func ValidTransition(from, to PluginState) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}

// Instance tracks the lifecycle state of one registered plugin.
type Instance struct {
	mu    sync.RWMutex
	name  string
	state PluginState
}

// NewInstance creates a new plugin instance with the given name and initial state.
func NewInstance(name string, state PluginState) *Instance {
	return &Instance{
		name:  name,
		state: state,
	}
}

func (i *Instance) Name() string {
	return i.name
}

// State returns the current plugin state.
func (i *Instance) State() PluginState {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// TransitionTo attempts to transition to a new state. Returns an error if the
// transition is not valid.
func (i *Instance) TransitionTo(newState PluginState) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !ValidTransition(i.state, newState) {
		return cwerr.Errorf(cwerr.CodePluginLifecycleTransitionInvalid,
			"invalid state transition for %s: %s -> %s", i.name, i.state, newState)
	}

	i.state = newState
	return nil
}
