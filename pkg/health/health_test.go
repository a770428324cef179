// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package health_test

import (
	"errors"
	"testing"
	"time"

	"github.com/crossweb-dev/crossweb/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStartsAvailable(t *testing.T) {
	m := health.NewTracker().Metrics()
	assert.True(t, m.Available)
	assert.Zero(t, m.FailureCount)
	assert.Nil(t, m.LastFailureAt)
	assert.Nil(t, m.LastSuccessAt)
	assert.Empty(t, m.LastError)
}

func TestTrackerFailureThenRecovery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := health.NewTracker()
	tr.SetNowFunc(func() time.Time { return now })

	boom := errors.New("build failed")
	tr.RecordFailure(boom)
	tr.RecordFailure(boom)

	m := tr.Metrics()
	assert.False(t, m.Available)
	assert.Equal(t, int64(2), m.FailureCount)
	require.NotNil(t, m.LastFailureAt)
	assert.Equal(t, now, *m.LastFailureAt)
	assert.Equal(t, "build failed", m.LastError)
	assert.ErrorIs(t, tr.LastError(), boom)

	now = now.Add(time.Minute)
	tr.RecordSuccess()

	m = tr.Metrics()
	assert.True(t, m.Available)
	assert.Equal(t, int64(2), m.FailureCount, "failure count is cumulative")
	require.NotNil(t, m.LastSuccessAt)
	assert.Equal(t, now, *m.LastSuccessAt)
	assert.Empty(t, m.LastError)
	assert.NoError(t, tr.LastError())
}
