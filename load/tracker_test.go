// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package load

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/internal/clock"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/membership"
	"github.com/tochemey/grainplacement/metric"
	"github.com/tochemey/grainplacement/transport/inmem"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	addrA = address.New("127.0.0.1", 3000, 1)
	addrB = address.New("127.0.0.1", 3001, 1)
	addrC = address.New("127.0.0.1", 3002, 1)
)

type cluster struct {
	network  *inmem.Network
	members  *membership.Static
	clock    *clock.Fake
	trackers map[address.Address]*Tracker
}

func newCluster(t *testing.T, addrs ...address.Address) *cluster {
	t.Helper()
	ctx := context.Background()
	c := &cluster{
		network:  inmem.NewNetwork(inmem.WithSerialization()),
		members:  membership.NewStatic(),
		clock:    clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		trackers: make(map[address.Address]*Tracker),
	}
	for _, addr := range addrs {
		tr := c.network.Transport(addr)
		c.trackers[addr] = NewTracker(c.members, tr,
			WithClock(c.clock),
			WithGossipInterval(time.Second),
			WithLogger(log.DiscardLogger),
			WithMetric(metric.Noop()))
		require.NoError(t, tr.Start(ctx))
		c.members.Join(membership.Member{Address: addr})
	}
	return c
}

func TestCounter(t *testing.T) {
	c := newCluster(t, addrA)
	tracker := c.trackers[addrA]
	tracker.Increment()
	tracker.Increment()
	tracker.Decrement()
	assert.EqualValues(t, 1, tracker.Count())
	assert.EqualValues(t, 1, tracker.PredictedLoad(addrA))

	tracker.Decrement()
	tracker.Decrement()
	assert.Zero(t, tracker.Count())
}

func TestApply(t *testing.T) {
	c := newCluster(t, addrA)
	tracker := c.trackers[addrA]

	assert.True(t, tracker.Apply(Snapshot{Origin: addrB, Count: 4, Version: 2}))
	// older and equal versions are discarded whatever their content
	assert.False(t, tracker.Apply(Snapshot{Origin: addrB, Count: 9, Version: 1}))
	assert.False(t, tracker.Apply(Snapshot{Origin: addrB, Count: 9, Version: 2}))
	// wall clock plays no role
	assert.False(t, tracker.Apply(Snapshot{Origin: addrB, Count: 9, Version: 2, PublishedAt: time.Now().Add(time.Hour)}))

	held, ok := tracker.Snapshot(addrB)
	require.True(t, ok)
	assert.EqualValues(t, 4, held.Count)

	assert.True(t, tracker.Apply(Snapshot{Origin: addrB, Count: 1, Version: 3}))
	assert.EqualValues(t, 1, tracker.PredictedLoad(addrB))

	// own and anonymous snapshots are ignored
	assert.False(t, tracker.Apply(Snapshot{Origin: addrA, Count: 100, Version: 10}))
	assert.False(t, tracker.Apply(Snapshot{Count: 100, Version: 10}))

	tracker.Forget(addrB)
	_, ok = tracker.Snapshot(addrB)
	assert.False(t, ok)
	// a forgotten silo starts over
	assert.True(t, tracker.Apply(Snapshot{Origin: addrB, Count: 2, Version: 1}))
}

func TestPredictedLoad(t *testing.T) {
	t.Run("With local delta until the next snapshot", func(t *testing.T) {
		c := newCluster(t, addrA)
		tracker := c.trackers[addrA]
		require.True(t, tracker.Apply(Snapshot{Origin: addrB, Count: 2, Version: 1}))

		tracker.RecordPlacement(addrB)
		tracker.RecordPlacement(addrB)
		// placements on self are counted exactly by the host
		tracker.RecordPlacement(addrA)
		assert.EqualValues(t, 4, tracker.PredictedLoad(addrB))
		assert.Zero(t, tracker.PredictedLoad(addrA))

		require.True(t, tracker.Apply(Snapshot{Origin: addrB, Count: 3, Version: 2}))
		assert.EqualValues(t, 3, tracker.PredictedLoad(addrB))
	})
	t.Run("With no snapshot at all", func(t *testing.T) {
		c := newCluster(t, addrA)
		tracker := c.trackers[addrA]
		assert.Zero(t, tracker.PredictedLoad(addrB))
		tracker.RecordPlacement(addrB)
		assert.EqualValues(t, 1, tracker.PredictedLoad(addrB))
	})
	t.Run("With stale snapshots replaced by the mean", func(t *testing.T) {
		c := newCluster(t, addrA)
		tracker := c.trackers[addrA]
		require.True(t, tracker.Apply(Snapshot{Origin: addrB, Count: 10, Version: 1}))

		// stale age defaults to three gossip intervals
		c.clock.Advance(2 * time.Second)
		require.True(t, tracker.Apply(Snapshot{Origin: addrC, Count: 4, Version: 1}))
		assert.EqualValues(t, 10, tracker.PredictedLoad(addrB))

		c.clock.Advance(1500 * time.Millisecond)
		// B is stale, C is fresh
		assert.EqualValues(t, 4, tracker.PredictedLoad(addrB))
		assert.EqualValues(t, 4, tracker.PredictedLoad(addrC))

		tracker.RecordPlacement(addrB)
		assert.EqualValues(t, 5, tracker.PredictedLoad(addrB))

		c.clock.Advance(10 * time.Second)
		// nothing usable left
		assert.EqualValues(t, 1, tracker.PredictedLoad(addrB))
		assert.Zero(t, tracker.PredictedLoad(addrC))
	})
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, addrA, addrB, addrC)
	a := c.trackers[addrA]
	a.Increment()
	a.Increment()

	require.NoError(t, a.Publish(ctx))
	for _, addr := range []address.Address{addrB, addrC} {
		assert.EqualValues(t, 2, c.trackers[addr].PredictedLoad(addrA))
	}

	c.network.Partition(addrA, addrC)
	a.Increment()
	err := a.Publish(ctx)
	require.ErrorIs(t, err, gerrors.ErrUnreachableTarget)
	// the reachable peer still got the snapshot
	assert.EqualValues(t, 3, c.trackers[addrB].PredictedLoad(addrA))
	assert.EqualValues(t, 2, c.trackers[addrC].PredictedLoad(addrA))

	c.network.HealAll()
	require.NoError(t, a.Publish(ctx))
	assert.EqualValues(t, 3, c.trackers[addrC].PredictedLoad(addrA))
	held, ok := c.trackers[addrC].Snapshot(addrA)
	require.True(t, ok)
	assert.EqualValues(t, 3, held.Version)
}

func TestScheduledGossip(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, addrA, addrB)
	a := c.trackers[addrA]
	b := c.trackers[addrB]

	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Start(ctx))
	a.Increment()

	c.clock.Advance(500 * time.Millisecond)
	_, ok := b.Snapshot(addrA)
	assert.False(t, ok)

	c.clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		return b.PredictedLoad(addrA) == 1
	}, time.Second, 10*time.Millisecond)

	// departed silos are forgotten
	require.NoError(t, b.Start(ctx))
	require.True(t, a.Apply(Snapshot{Origin: addrB, Count: 7, Version: 100}))
	c.members.Leave(addrB)
	_, ok = a.Snapshot(addrB)
	assert.False(t, ok)

	require.NoError(t, a.Stop(ctx))
	require.NoError(t, a.Stop(ctx))
	require.NoError(t, b.Stop(ctx))
	assert.Zero(t, c.clock.Tickers())
}

func TestHandleSnapshot(t *testing.T) {
	c := newCluster(t, addrA)
	_, err := c.trackers[addrA].handleSnapshot(context.Background(), addrB, "garbage")
	require.Error(t, err)

	resp, err := c.trackers[addrA].handleSnapshot(context.Background(), addrB, Snapshot{Origin: addrB, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, Ack{Applied: true}, resp)
}
