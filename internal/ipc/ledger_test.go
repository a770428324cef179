// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package ipc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossweb-dev/crossweb/internal/ipc"
)

func TestLedgerSettlesOncePerOpen(t *testing.T) {
	l := ipc.NewLedger(0)

	l.Open("r1")
	assert.Equal(t, 1, l.InFlight())
	assert.True(t, l.Settle("r1"))
	assert.False(t, l.Settle("r1"))
	assert.Equal(t, 0, l.InFlight())

	// A page may reuse an id once its request is answered.
	l.Open("r1")
	assert.True(t, l.Settle("r1"))
	assert.False(t, l.Settle("r1"))
}

func TestLedgerPassesUnknownIDs(t *testing.T) {
	l := ipc.NewLedger(0)
	assert.True(t, l.Settle("never-opened"))
	assert.True(t, l.Settle("never-opened"))
	l.Open("")
	assert.Equal(t, 0, l.InFlight())
}

func TestLedgerForgetsOldestSettledIDs(t *testing.T) {
	l := ipc.NewLedger(2)
	for _, id := range []string{"a", "b", "c"} {
		l.Open(id)
		require.True(t, l.Settle(id))
	}

	assert.True(t, l.Settle("a"), "evicted ids are unknown again")
	assert.False(t, l.Settle("b"))
	assert.False(t, l.Settle("c"))
}

func TestLedgerReopenSurvivesEvictionOfEarlierSettle(t *testing.T) {
	l := ipc.NewLedger(2)
	l.Open("a")
	require.True(t, l.Settle("a"))
	l.Open("a")
	require.True(t, l.Settle("a"))
	l.Open("b")
	require.True(t, l.Settle("b"))

	assert.False(t, l.Settle("a"))
}

func TestLedgerReset(t *testing.T) {
	l := ipc.NewLedger(0)
	l.Open("a")
	l.Open("b")
	require.True(t, l.Settle("b"))

	l.Reset()
	assert.Equal(t, 0, l.InFlight())
	assert.True(t, l.Settle("b"))
}
