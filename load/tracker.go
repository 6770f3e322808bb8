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

// Package load tracks how many activations every silo hosts.
//
// Each silo knows its own count exactly. Other silos' counts are learned
// through periodic gossip of versioned snapshots and are corrected locally
// with the number of placements this silo directed to them since their last
// snapshot. Placement decisions read the current estimates and never wait
// for gossip.
package load

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/internal/clock"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/membership"
	"github.com/tochemey/grainplacement/metric"
	"github.com/tochemey/grainplacement/transport"
)

// RouteGossip is the transport route receiving load snapshots
const RouteGossip = "load.gossip"

// DefaultGossipInterval is the default publish interval
const DefaultGossipInterval = time.Minute

// Snapshot is the activation count of a silo at a given version.
// Newer versions replace older ones; wall clock time is never compared.
type Snapshot struct {
	Origin      address.Address
	Count       int64
	Version     uint64
	PublishedAt time.Time
}

// Ack acknowledges a snapshot
type Ack struct {
	Applied bool
}

func init() {
	transport.Register(Snapshot{})
	transport.Register(Ack{})
}

type held struct {
	snapshot   Snapshot
	receivedAt time.Time
}

// Tracker maintains the local activation counter and the load estimates of peers
type Tracker struct {
	self      address.Address
	members   membership.Provider
	transport transport.Transport

	count   *atomic.Int64
	version *atomic.Uint64

	mu        sync.RWMutex
	snapshots map[address.Address]held
	deltas    map[address.Address]int64

	clock      clock.Clock
	interval   time.Duration
	staleAfter time.Duration
	logger     log.Logger
	metric     *metric.PlacementMetric

	startMu     sync.Mutex
	started     *atomic.Bool
	ticker      clock.Ticker
	stopCh      chan struct{}
	doneCh      chan struct{}
	unsubscribe func()
}

// NewTracker creates a Tracker for the local silo and registers the gossip
// route on the transport.
func NewTracker(members membership.Provider, tr transport.Transport, opts ...Option) *Tracker {
	tracker := &Tracker{
		self:      tr.Address(),
		members:   members,
		transport: tr,
		count:     atomic.NewInt64(0),
		version:   atomic.NewUint64(0),
		snapshots: make(map[address.Address]held),
		deltas:    make(map[address.Address]int64),
		clock:     clock.New(),
		interval:  DefaultGossipInterval,
		logger:    log.DefaultLogger,
		started:   atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(tracker)
	}

	if tracker.staleAfter <= 0 {
		tracker.staleAfter = 3 * tracker.interval
	}

	tr.Handle(RouteGossip, tracker.handleSnapshot)
	return tracker
}

// Increment records a new local activation
func (t *Tracker) Increment() {
	t.count.Inc()
}

// Decrement records a removed local activation
func (t *Tracker) Decrement() {
	if t.count.Dec() < 0 {
		t.count.Store(0)
		t.logger.Warnf("%s activation counter went negative", t.self)
	}
}

// Count returns the exact local activation count
func (t *Tracker) Count() int64 {
	return t.count.Load()
}

// RecordPlacement notes that this silo directed an activation to target.
// The estimate of target grows by one until its next snapshot arrives.
func (t *Tracker) RecordPlacement(target address.Address) {
	if target == t.self {
		return
	}
	t.mu.Lock()
	t.deltas[target]++
	t.mu.Unlock()
}

// Apply installs a snapshot when it is newer than the held one.
// It reports whether the snapshot was applied.
func (t *Tracker) Apply(snapshot Snapshot) bool {
	if snapshot.Origin == t.self || snapshot.Origin.IsZero() {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.snapshots[snapshot.Origin]; ok && current.snapshot.Version >= snapshot.Version {
		return false
	}

	t.snapshots[snapshot.Origin] = held{snapshot: snapshot, receivedAt: t.clock.Now()}
	delete(t.deltas, snapshot.Origin)
	return true
}

// Snapshot returns the held snapshot of a peer
func (t *Tracker) Snapshot(addr address.Address) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	current, ok := t.snapshots[addr]
	return current.snapshot, ok
}

// Forget drops everything known about a departed silo
func (t *Tracker) Forget(addr address.Address) {
	t.mu.Lock()
	delete(t.snapshots, addr)
	delete(t.deltas, addr)
	t.mu.Unlock()
}

// PredictedLoad estimates the activation count of addr.
//
// The local silo is exact. A peer with a usable snapshot is estimated at
// snapshot count plus local delta. A snapshot older than the stale age is
// unusable; a peer without a usable snapshot is estimated at the mean of
// the usable estimates (zero when there are none) plus its local delta.
func (t *Tracker) PredictedLoad(addr address.Address) int64 {
	if addr == t.self {
		return t.count.Load()
	}

	now := t.clock.Now()
	t.mu.RLock()
	defer t.mu.RUnlock()

	delta := t.deltas[addr]
	if current, ok := t.snapshots[addr]; ok && t.usable(current, now) {
		return current.snapshot.Count + delta
	}

	var sum, usable int64
	for origin, current := range t.snapshots {
		if t.usable(current, now) {
			sum += current.snapshot.Count + t.deltas[origin]
			usable++
		}
	}

	if usable == 0 {
		return delta
	}
	return sum/usable + delta
}

func (t *Tracker) usable(current held, now time.Time) bool {
	return now.Sub(current.receivedAt) <= t.staleAfter
}

// Publish sends the local snapshot to every live peer concurrently.
// Every peer is attempted; failures are logged and the first one is returned.
func (t *Tracker) Publish(ctx context.Context) error {
	snapshot := Snapshot{
		Origin:      t.self,
		Count:       t.count.Load(),
		Version:     t.version.Inc(),
		PublishedAt: t.clock.Now().UTC(),
	}

	eg := new(errgroup.Group)
	for _, member := range t.members.Members() {
		peer := member.Address
		if peer == t.self {
			continue
		}

		eg.Go(func() error {
			if _, err := t.transport.Request(ctx, peer, RouteGossip, snapshot); err != nil {
				t.logger.Debugf("%s failed to publish load snapshot to %s: %v", t.self, peer, err)
				return fmt.Errorf("failed to publish load snapshot to %s: %w", peer, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Start schedules the periodic publish and forgets departed silos
func (t *Tracker) Start(ctx context.Context) error {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	if t.started.Load() {
		return nil
	}

	t.unsubscribe = t.members.Subscribe(func(event membership.Event) {
		if event.Type == membership.MemberLeft {
			t.Forget(event.Member.Address)
		}
	})

	t.ticker = t.clock.NewTicker(t.interval)
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.started.Store(true)

	go t.publishLoop(context.WithoutCancel(ctx))
	return nil
}

// Stop stops the periodic publish
func (t *Tracker) Stop(context.Context) error {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	if !t.started.Load() {
		return nil
	}
	t.started.Store(false)

	close(t.stopCh)
	<-t.doneCh
	t.ticker.Stop()
	t.unsubscribe()
	return nil
}

func (t *Tracker) publishLoop(ctx context.Context) {
	defer close(t.doneCh)
	for {
		select {
		case <-t.ticker.C():
			publishCtx, cancel := context.WithTimeout(ctx, t.interval)
			if err := t.Publish(publishCtx); err != nil {
				t.logger.Warnf("%s load gossip round incomplete: %v", t.self, err)
			}
			cancel()
		case <-t.stopCh:
			return
		}
	}
}

func (t *Tracker) handleSnapshot(ctx context.Context, _ address.Address, request any) (any, error) {
	snapshot, ok := request.(Snapshot)
	if !ok {
		return nil, fmt.Errorf("unexpected load gossip payload %T", request)
	}
	applied := t.Apply(snapshot)
	t.metric.RecordSnapshot(ctx, applied)
	return Ack{Applied: applied}, nil
}
