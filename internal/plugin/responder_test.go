// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/crossweb-dev/crossweb/internal/plugin"
	"github.com/stretchr/testify/assert"
)

func TestOnceConcurrentCallersDeliverOnce(t *testing.T) {
	var delivered atomic.Int32
	once := plugin.Once("1", func(string) { delivered.Add(1) }, nil)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			once.Respond("x")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), delivered.Load())
	assert.True(t, once.Responded())
}

func TestOnceNilNext(t *testing.T) {
	once := plugin.Once("1", nil, nil)
	assert.True(t, once.Respond("discarded"))
	assert.False(t, once.Respond("again"))
}
