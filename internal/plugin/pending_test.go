// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin_test

import (
	"context"
	"testing"
	"time"

	"github.com/crossweb-dev/crossweb/internal/plugin"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return epoch }
}

func TestPendingReplyClearsEntry(t *testing.T) {
	p := plugin.NewPending(time.Second, plugin.WithClock(fixedClock()))
	r := &replies{}

	ctx, respond := p.Track(context.Background(), "1", "fs.read", r.respond)
	assert.Equal(t, 1, p.Len())

	respond("done")
	respond("again")
	assert.Equal(t, []string{"done"}, r.got)
	assert.Equal(t, 0, p.Len())
	assert.Error(t, ctx.Err(), "context cancelled once answered")
}

func TestPendingExpireRepliesTimeoutOnce(t *testing.T) {
	p := plugin.NewPending(time.Second, plugin.WithClock(fixedClock()))
	r := &replies{}

	ctx, respond := p.Track(context.Background(), "1", "slow.op", r.respond)
	assert.Equal(t, 0, p.Expire(epoch.Add(500*time.Millisecond)))
	assert.Equal(t, 1, p.Expire(epoch.Add(time.Second)))

	respond("late")
	assert.Equal(t, []string{plugin.ReplyTimeout}, r.got)
	assert.Equal(t, 0, p.Len())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestPendingZeroTimeoutNeverExpires(t *testing.T) {
	p := plugin.NewPending(0)
	r := &replies{}
	p.Track(context.Background(), "1", "slow.op", r.respond)

	assert.Equal(t, 0, p.Expire(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, p.Len())
	assert.True(t, p.Snapshot()[0].Deadline.IsZero())
}

func TestPendingSnapshotRestore(t *testing.T) {
	old := plugin.NewPending(time.Second, plugin.WithClock(fixedClock()))
	old.Track(context.Background(), "b", "fs.read", nil)
	old.Track(context.Background(), "a", "keystore.get", nil)

	snap := old.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, epoch.Add(time.Second), snap[0].Deadline)

	r := &replies{}
	fresh := plugin.NewPending(time.Second)
	n := fresh.Restore(snap, func(id string) sdk.Responder {
		return func(resp string) { r.respond(id + "=" + resp) }
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, fresh.Restore(snap, nil), "already tracked ids are skipped")

	assert.Equal(t, 2, fresh.Expire(epoch.Add(2*time.Second)))
	assert.ElementsMatch(t, []string{"a=" + plugin.ReplyTimeout, "b=" + plugin.ReplyTimeout}, r.got)
}

func TestPendingAbandon(t *testing.T) {
	p := plugin.NewPending(time.Minute)
	r := &replies{}
	ctx, respond := p.Track(context.Background(), "1", "x.y", r.respond)

	assert.Equal(t, 1, p.Abandon())
	assert.Equal(t, 0, p.Len())
	assert.Error(t, ctx.Err())

	respond("still delivered")
	assert.Equal(t, []string{"still delivered"}, r.got)
}

func TestPendingReusedIDKeepsNewest(t *testing.T) {
	p := plugin.NewPending(time.Minute)
	r := &replies{}
	_, first := p.Track(context.Background(), "1", "x.a", r.respond)
	_, second := p.Track(context.Background(), "1", "x.b", r.respond)

	first("one")
	assert.Equal(t, 1, p.Len(), "stale responder does not clear the newer entry")
	second("two")
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, []string{"one", "two"}, r.got)
}
