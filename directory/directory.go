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

// Package directory implements the grain directory: the cluster-wide record
// of which silo hosts the single activation of an identity.
//
// The identity space is partitioned over the live silos with a consistent
// hash ring. Register, Lookup and Unregister are executed by the silo owning
// the partition of the identity, which serializes them per identity through
// its Store. When the Store is distributed (etcd, Redis) every silo talks to
// it directly and no partition routing happens.
//
// The directory reacts to membership changes: records owned by a departed
// silo are dropped, and records whose partition moved are handed off to the
// new partition owner. Until a previous owner has handed off, the new owner
// resolves local misses against it before answering.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/hash"
	"github.com/tochemey/grainplacement/internal/clock"
	"github.com/tochemey/grainplacement/internal/ring"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/membership"
	"github.com/tochemey/grainplacement/transport"
)

// stripeCount is the number of locks serializing the local partition per identity
const stripeCount = 64

// Directory is the grain directory of a silo
type Directory struct {
	self      address.Address
	store     Store
	members   membership.Provider
	transport transport.Transport
	ring      *ring.Ring

	retries      int
	minBackoff   time.Duration
	maxBackoff   time.Duration
	virtualNodes int
	hasher       hash.Hasher
	clock        clock.Clock
	logger       log.Logger

	mu          sync.Mutex
	started     *atomic.Bool
	unsubscribe func()
	departed    goset.Set[address.Address]
	transition  *transition
	stripes     [stripeCount]sync.Mutex
	signal      chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New creates a Directory backed by store and registers the partition
// routes on the transport.
func New(store Store, members membership.Provider, tr transport.Transport, opts ...Option) *Directory {
	d := &Directory{
		self:         tr.Address(),
		store:        store,
		members:      members,
		transport:    tr,
		retries:      3,
		minBackoff:   10 * time.Millisecond,
		maxBackoff:   500 * time.Millisecond,
		virtualNodes: ring.DefaultVirtualNodes,
		hasher:       hash.DefaultHasher(),
		clock:        clock.New(),
		logger:       log.DefaultLogger,
		started:      atomic.NewBool(false),
		departed:     goset.NewSet[address.Address](),
		transition:   newTransition(),
		signal:       make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt.Apply(d)
	}

	d.ring = ring.New(ring.WithHasher(d.hasher), ring.WithVirtualNodes(d.virtualNodes))

	tr.Handle(RouteRegister, d.handleRegister)
	tr.Handle(RouteLookup, d.handleLookup)
	tr.Handle(RouteUnregister, d.handleUnregister)
	tr.Handle(RouteHandoff, d.handleHandoff)
	return d
}

// Start builds the partition ring and follows membership changes
func (d *Directory) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started.Load() {
		return nil
	}

	d.rebuild()
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.unsubscribe = d.members.Subscribe(d.onMembershipEvent)
	d.started.Store(true)

	go d.maintenanceLoop()
	d.logger.Infof("%s grain directory started with %d partition owners", d.self, d.ring.Size())
	return nil
}

// Stop stops following membership changes and closes the store
func (d *Directory) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started.Load() {
		return nil
	}
	d.started.Store(false)
	d.unsubscribe()
	close(d.stopCh)
	<-d.doneCh
	return d.store.Close()
}

// PartitionOwners returns the number of silos sharing the identity space
func (d *Directory) PartitionOwners() int {
	return d.ring.Size()
}

// Owner returns the silo owning the partition of identity
func (d *Directory) Owner(identity grain.Identity) (address.Address, bool) {
	if d.store.Distributed() {
		return d.self, true
	}
	return d.ring.Owner(identity.Bytes())
}

// Register registers candidate as the host of identity unless another silo
// already is. A rejected Registration carries the existing record.
func (d *Directory) Register(ctx context.Context, identity grain.Identity, candidate address.Address) (Registration, error) {
	record := Record{
		Identity:     identity,
		Server:       candidate,
		RegisteredAt: d.clock.Now().UTC(),
	}

	owner, err := d.route(identity)
	if err != nil {
		return Registration{}, err
	}

	if owner == d.self {
		return d.registerLocal(ctx, record)
	}

	resp, err := d.request(ctx, owner, RouteRegister, RegisterRequest{Record: record})
	if err != nil {
		return Registration{}, err
	}
	out, ok := resp.(RegisterResponse)
	if !ok {
		return Registration{}, fmt.Errorf("unexpected register response %T", resp)
	}
	return out.Registration, nil
}

// Lookup returns the silo hosting identity
func (d *Directory) Lookup(ctx context.Context, identity grain.Identity) (address.Address, bool, error) {
	record, found, err := d.LookupRecord(ctx, identity)
	return record.Server, found, err
}

// LookupRecord returns the record of identity
func (d *Directory) LookupRecord(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	owner, err := d.route(identity)
	if err != nil {
		return Record{}, false, err
	}

	if owner == d.self {
		return d.lookupLocal(ctx, identity)
	}

	resp, err := d.request(ctx, owner, RouteLookup, LookupRequest{Identity: identity})
	if err != nil {
		return Record{}, false, err
	}
	out, ok := resp.(LookupResponse)
	if !ok {
		return Record{}, false, fmt.Errorf("unexpected lookup response %T", resp)
	}
	return out.Record, out.Found, nil
}

// Unregister removes the record of identity only when expectedOwner holds it
func (d *Directory) Unregister(ctx context.Context, identity grain.Identity, expectedOwner address.Address) (bool, error) {
	owner, err := d.route(identity)
	if err != nil {
		return false, err
	}

	if owner == d.self {
		return d.unregisterLocal(ctx, identity, expectedOwner)
	}

	resp, err := d.request(ctx, owner, RouteUnregister, UnregisterRequest{Identity: identity, Owner: expectedOwner})
	if err != nil {
		return false, err
	}
	out, ok := resp.(UnregisterResponse)
	if !ok {
		return false, fmt.Errorf("unexpected unregister response %T", resp)
	}
	return out.Deleted, nil
}

// route returns the silo executing the operations of identity
func (d *Directory) route(identity grain.Identity) (address.Address, error) {
	if d.store.Distributed() {
		return d.self, nil
	}
	owner, ok := d.ring.Owner(identity.Bytes())
	if !ok {
		return address.Address{}, gerrors.ErrSiloNotStarted
	}
	return owner, nil
}

// request calls a partition owner, retrying with backoff while it is unreachable
func (d *Directory) request(ctx context.Context, owner address.Address, route string, payload any) (any, error) {
	var (
		response any
		terminal error
	)

	retrier := retry.NewRetrier(d.retries+1, d.minBackoff, d.maxBackoff)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		resp, err := d.transport.Request(ctx, owner, route, payload)
		if err != nil {
			if errors.Is(err, gerrors.ErrUnreachableTarget) {
				d.logger.Debugf("%s directory partition %s unreachable: %v", d.self, owner, err)
				return err
			}
			terminal = err
			return nil
		}
		response = resp
		return nil
	})

	if err != nil {
		if errors.Is(err, gerrors.ErrUnreachableTarget) {
			return nil, err
		}
		return nil, gerrors.NewUnreachableTargetError(owner.String(), err)
	}
	if terminal != nil {
		return nil, terminal
	}
	return response, nil
}

func (d *Directory) stripe(identity grain.Identity) *sync.Mutex {
	return &d.stripes[d.hasher.HashCode(identity.Bytes())%stripeCount]
}

func (d *Directory) registerLocal(ctx context.Context, record Record) (Registration, error) {
	lock := d.stripe(record.Identity)
	lock.Lock()
	defer lock.Unlock()

	existing, found, err := d.resolve(ctx, record.Identity)
	if err != nil {
		return Registration{}, err
	}
	if found {
		return Registration{Record: existing}, nil
	}

	stored, inserted, err := d.store.PutIfAbsent(ctx, record)
	if err != nil {
		return Registration{}, err
	}
	return Registration{Record: stored, Accepted: inserted}, nil
}

func (d *Directory) lookupLocal(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	lock := d.stripe(identity)
	lock.Lock()
	defer lock.Unlock()
	return d.resolve(ctx, identity)
}

func (d *Directory) unregisterLocal(ctx context.Context, identity grain.Identity, expectedOwner address.Address) (bool, error) {
	lock := d.stripe(identity)
	lock.Lock()
	defer lock.Unlock()

	deleted, err := d.store.DeleteIf(ctx, identity, expectedOwner)
	if err != nil {
		return false, err
	}

	for _, previous := range d.transition.previousOwners(d.self, identity.Bytes()) {
		resp, err := d.request(ctx, previous, RouteUnregister, UnregisterRequest{Identity: identity, Owner: expectedOwner, Local: true})
		if err != nil {
			return deleted, err
		}
		if out, ok := resp.(UnregisterResponse); ok && out.Deleted {
			deleted = true
		}
	}
	return deleted, nil
}

// resolve reads the local partition. On a miss it asks the previous owners
// that have not handed off yet and adopts the record one of them still holds.
// The caller holds the stripe lock of identity.
func (d *Directory) resolve(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	record, found, err := d.store.Get(ctx, identity)
	if err != nil || found {
		return record, found, err
	}

	for _, previous := range d.transition.previousOwners(d.self, identity.Bytes()) {
		resp, err := d.request(ctx, previous, RouteLookup, LookupRequest{Identity: identity, Local: true})
		if err != nil {
			return Record{}, false, err
		}
		out, ok := resp.(LookupResponse)
		if !ok {
			return Record{}, false, fmt.Errorf("unexpected lookup response %T", resp)
		}
		if !out.Found || !d.ring.Contains(out.Record.Server) {
			continue
		}

		stored, _, err := d.store.PutIfAbsent(ctx, out.Record)
		if err != nil {
			return Record{}, false, err
		}
		d.logger.Debugf("%s adopted identity=(%s) from previous partition owner %s", d.self, identity, previous)
		return stored, true, nil
	}
	return Record{}, false, nil
}

func (d *Directory) handleRegister(ctx context.Context, _ address.Address, request any) (any, error) {
	req, ok := request.(RegisterRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected register request %T", request)
	}
	registration, err := d.registerLocal(ctx, req.Record)
	if err != nil {
		return nil, err
	}
	return RegisterResponse{Registration: registration}, nil
}

func (d *Directory) handleLookup(ctx context.Context, _ address.Address, request any) (any, error) {
	req, ok := request.(LookupRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected lookup request %T", request)
	}
	var (
		record Record
		found  bool
		err    error
	)
	if req.Local {
		record, found, err = d.store.Get(ctx, req.Identity)
	} else {
		record, found, err = d.lookupLocal(ctx, req.Identity)
	}
	if err != nil {
		return nil, err
	}
	return LookupResponse{Record: record, Found: found}, nil
}

func (d *Directory) handleUnregister(ctx context.Context, _ address.Address, request any) (any, error) {
	req, ok := request.(UnregisterRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected unregister request %T", request)
	}
	var (
		deleted bool
		err     error
	)
	if req.Local {
		deleted, err = d.store.DeleteIf(ctx, req.Identity, req.Owner)
	} else {
		deleted, err = d.unregisterLocal(ctx, req.Identity, req.Owner)
	}
	if err != nil {
		return nil, err
	}
	return UnregisterResponse{Deleted: deleted}, nil
}

// handleHandoff stores the received records with register-if-absent semantics.
// A record losing against an existing one is dropped, and so is a record
// hosted by a silo that is no longer a member. The sender stops being a
// pending previous owner once it handed off under the current ring view.
func (d *Directory) handleHandoff(ctx context.Context, from address.Address, request any) (any, error) {
	req, ok := request.(HandoffRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected handoff request %T", request)
	}

	accepted := 0
	for _, record := range req.Records {
		if !d.ring.Contains(record.Server) {
			continue
		}
		lock := d.stripe(record.Identity)
		lock.Lock()
		stored, inserted, err := d.store.PutIfAbsent(ctx, record)
		lock.Unlock()
		if err != nil {
			return nil, err
		}
		if inserted {
			accepted++
			continue
		}
		if stored.Server != record.Server {
			d.logger.Warnf("%s handoff from %s: identity=(%s) already registered on %s, dropping record of %s",
				d.self, from, record.Identity, stored.Server, record.Server)
		}
	}

	d.transition.acknowledge(from, req.View)
	return HandoffResponse{Accepted: accepted}, nil
}

func (d *Directory) onMembershipEvent(event membership.Event) {
	previous := ring.New(ring.WithHasher(d.hasher), ring.WithVirtualNodes(d.virtualNodes))
	previous.Set(d.ring.Members())
	d.rebuild()

	if !d.store.Distributed() {
		d.transition.begin(d.self, previous, d.ring.Members())
	}
	if event.Type == membership.MemberLeft {
		d.departed.Add(event.Member.Address)
		d.transition.forget(event.Member.Address)
	}
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *Directory) rebuild() {
	d.ring.Set(membership.Addresses(d.members.Members()))
}

// maintenanceLoop runs the cleanup and the handoff triggered by membership
// changes. An incomplete run is retried after the maximum backoff.
func (d *Directory) maintenanceLoop() {
	defer close(d.doneCh)

	var retryC <-chan time.Time
	for {
		select {
		case <-d.signal:
		case <-retryC:
		case <-d.stopCh:
			return
		}

		retryC = nil
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-d.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		if !d.reconcile(ctx) {
			retryC = time.After(d.maxBackoff)
		}
		cancel()
	}
}

// reconcile drops the records of departed silos and hands off the records
// this silo no longer owns. It reports whether both completed.
func (d *Directory) reconcile(ctx context.Context) bool {
	complete := true
	for _, departed := range d.departed.ToSlice() {
		deleted, err := d.store.DeleteOwnedBy(ctx, departed)
		if err != nil {
			d.logger.Warnf("%s failed to drop records of departed silo %s: %v", d.self, departed, err)
			complete = false
			continue
		}
		d.departed.Remove(departed)
		if deleted > 0 {
			d.logger.Infof("%s dropped %d records of departed silo %s", d.self, deleted, departed)
		}
	}

	if d.store.Distributed() {
		return complete
	}

	if err := d.Handoff(ctx); err != nil {
		d.logger.Warnf("%s directory handoff incomplete: %v", d.self, err)
		return false
	}
	return complete
}

// Handoff sends the records whose partition moved to their new owner and
// removes them locally once the new owner acknowledged them. Every other
// partition owner receives a handoff, empty or not, so that it stops
// resolving misses against this silo.
func (d *Directory) Handoff(ctx context.Context) error {
	if d.store.Distributed() {
		return nil
	}

	members := d.ring.Members()
	view := viewOf(members)
	moving := make(map[address.Address][]Record, len(members))
	for _, member := range members {
		if member != d.self {
			moving[member] = nil
		}
	}
	if err := d.store.Range(ctx, func(record Record) bool {
		owner, ok := d.ring.Owner(record.Identity.Bytes())
		if ok && owner != d.self {
			moving[owner] = append(moving[owner], record)
		}
		return true
	}); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	for owner, records := range moving {
		eg.Go(func() error {
			if _, err := d.request(ctx, owner, RouteHandoff, HandoffRequest{Records: records, View: view}); err != nil {
				return err
			}
			for _, record := range records {
				if _, err := d.store.DeleteIf(ctx, record.Identity, record.Server); err != nil {
					return err
				}
			}
			if len(records) > 0 {
				d.logger.Debugf("%s handed off %d records to %s", d.self, len(records), owner)
			}
			return nil
		})
	}
	return eg.Wait()
}
