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

// Package silo assembles the placement subsystem of a cluster member.
//
// A Silo wires the membership provider and the transport it is given to the
// load tracker, the grain directory, the strategy registry, the placement
// coordinator and the activation host, and runs them as one unit.
package silo

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/activation"
	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/config"
	"github.com/tochemey/grainplacement/coordinator"
	"github.com/tochemey/grainplacement/directory"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/internal/clock"
	"github.com/tochemey/grainplacement/internal/errorschain"
	"github.com/tochemey/grainplacement/load"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/membership"
	"github.com/tochemey/grainplacement/metric"
	"github.com/tochemey/grainplacement/placement"
	"github.com/tochemey/grainplacement/transport"
)

// service is a membership provider with its own lifecycle, such as Memberlist
type service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// drainer is a membership provider able to advertise a shutting down silo
type drainer interface {
	SetDraining(draining bool) error
}

// Silo is a cluster member able to place and host grains
type Silo struct {
	config    *config.Config
	self      address.Address
	members   membership.Provider
	transport transport.Transport
	activator activation.Activator

	store     directory.Store
	metric    *metric.PlacementMetric
	clock     clock.Clock
	filter    *placement.Filter
	directors map[string]placement.Director
	rand      placement.Rand

	registry    *placement.Registry
	tracker     *load.Tracker
	directory   *directory.Directory
	host        *activation.Host
	coordinator *coordinator.Coordinator

	logger  log.Logger
	mu      sync.Mutex
	started *atomic.Bool
}

// New creates a Silo. activator is the actor runtime creating the activations.
func New(cfg *config.Config, members membership.Provider, tr transport.Transport, activator activation.Activator, opts ...Option) (*Silo, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := tr.Address().Validate(); err != nil {
		return nil, err
	}

	silo := &Silo{
		config:    cfg,
		self:      tr.Address(),
		members:   members,
		transport: tr,
		activator: activator,
		clock:     clock.New(),
		filter:    placement.NewFilter(),
		directors: make(map[string]placement.Director),
		logger:    cfg.Logger,
		started:   atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(silo)
	}

	if silo.store == nil {
		silo.store = directory.NewMemoryStore()
	}

	if silo.metric == nil {
		placementMetric, err := metric.Global()
		if err != nil {
			return nil, err
		}
		silo.metric = placementMetric
	}

	silo.registry = placement.NewRegistry(cfg.Normalize(cfg.DefaultStrategy))
	for name, director := range silo.directors {
		if err := silo.registry.RegisterDirector(name, director); err != nil {
			return nil, err
		}
	}
	for kind := range cfg.Strategies {
		if err := silo.registry.Attach(kind, cfg.StrategyFor(kind)); err != nil {
			return nil, err
		}
	}

	silo.tracker = load.NewTracker(members, tr,
		load.WithClock(silo.clock),
		load.WithGossipInterval(cfg.GossipInterval),
		load.WithStaleAfter(cfg.SnapshotStaleAfter),
		load.WithLogger(silo.logger),
		load.WithMetric(silo.metric))

	silo.directory = directory.New(silo.store, members, tr,
		directory.WithLogger(silo.logger),
		directory.WithRetries(cfg.DirectoryRetries),
		directory.WithBackoff(cfg.MinRetryBackoff, cfg.MaxRetryBackoff),
		directory.WithVirtualNodes(cfg.VirtualNodes),
		directory.WithClock(silo.clock))

	silo.host = activation.NewHost(activator, tr,
		activation.WithLogger(silo.logger),
		activation.WithMetric(silo.metric),
		activation.WithCounter(silo.tracker),
		activation.WithRegistrar(silo.directory),
		activation.WithMaxLocalWorkers(cfg.MaxLocalWorkers))

	coordinatorOpts := []coordinator.Option{
		coordinator.WithLogger(silo.logger),
		coordinator.WithMetric(silo.metric),
		coordinator.WithLoads(silo.tracker),
		coordinator.WithFilter(silo.filter),
		coordinator.WithMaxAttempts(cfg.MaxPlacementAttempts),
		coordinator.WithBackoff(cfg.MinRetryBackoff, cfg.MaxRetryBackoff),
		coordinator.WithRegisterTimeout(cfg.RegisterTimeout),
		coordinator.WithActivateTimeout(cfg.ActivateTimeout),
	}
	if silo.rand != nil {
		coordinatorOpts = append(coordinatorOpts, coordinator.WithRand(silo.rand))
	}
	silo.coordinator = coordinator.New(silo.self, silo.registry, members, silo.directory, silo.host, coordinatorOpts...)
	return silo, nil
}

// Start starts the silo: transport first, then membership, directory and load gossip
func (s *Silo) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}

	if err := errorschain.New(errorschain.ReturnFirst()).
		AddErrorFn(func() error { return s.transport.Start(ctx) }).
		AddErrorFn(func() error { return s.startMembership(ctx) }).
		AddErrorFn(func() error { return s.directory.Start(ctx) }).
		AddErrorFn(func() error { return s.tracker.Start(ctx) }).
		Error(); err != nil {
		s.logger.Errorf("%s failed to start: %v", s.self, err)
		_ = s.shutdown(context.WithoutCancel(ctx))
		return err
	}

	s.started.Store(true)
	s.logger.Infof("%s silo started", s.self)
	return nil
}

// Stop deactivates the local grains and stops the silo
func (s *Silo) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return nil
	}
	s.started.Store(false)

	if d, ok := s.members.(drainer); ok {
		if err := d.SetDraining(true); err != nil {
			s.logger.Warnf("%s failed to advertise draining: %v", s.self, err)
		}
	}

	if err := s.shutdown(ctx); err != nil {
		s.logger.Errorf("%s failed to stop cleanly: %v", s.self, err)
		return err
	}
	s.logger.Infof("%s silo stopped", s.self)
	return nil
}

func (s *Silo) shutdown(ctx context.Context) error {
	return errorschain.New(errorschain.ReturnAll()).
		AddErrorFn(func() error { return s.host.Stop(ctx) }).
		AddErrorFn(func() error { return s.tracker.Stop(ctx) }).
		AddErrorFn(func() error { return s.directory.Stop(ctx) }).
		AddErrorFn(func() error { return s.stopMembership(ctx) }).
		AddErrorFn(func() error { return s.transport.Stop(ctx) }).
		Error()
}

func (s *Silo) startMembership(ctx context.Context) error {
	if svc, ok := s.members.(service); ok {
		return svc.Start(ctx)
	}
	return nil
}

func (s *Silo) stopMembership(ctx context.Context) error {
	if svc, ok := s.members.(service); ok {
		return svc.Stop(ctx)
	}
	return nil
}

// Place places identity in the cluster and activates it
func (s *Silo) Place(ctx context.Context, identity grain.Identity) (*coordinator.Placement, error) {
	if !s.started.Load() {
		return nil, gerrors.ErrSiloNotStarted
	}
	return s.coordinator.Place(ctx, identity)
}

// Lookup returns the silo hosting identity
func (s *Silo) Lookup(ctx context.Context, identity grain.Identity) (address.Address, bool, error) {
	if !s.started.Load() {
		return address.Address{}, false, gerrors.ErrSiloNotStarted
	}
	return s.directory.Lookup(ctx, identity)
}

// Deactivate destroys the activation of identity wherever it lives.
// Identities without a directory record are looked for on the local silo,
// where stateless workers live.
func (s *Silo) Deactivate(ctx context.Context, identity grain.Identity) (bool, error) {
	if !s.started.Load() {
		return false, gerrors.ErrSiloNotStarted
	}
	if err := identity.Validate(); err != nil {
		return false, err
	}

	owner, found, err := s.directory.Lookup(ctx, identity)
	if err != nil {
		return false, err
	}
	if !found {
		return s.host.Deactivate(ctx, identity)
	}
	return s.host.DeactivateOn(ctx, owner, identity)
}

// Address returns the silo address
func (s *Silo) Address() address.Address {
	return s.self
}

// Registry returns the strategy registry
func (s *Silo) Registry() *placement.Registry {
	return s.registry
}

// Tracker returns the load tracker
func (s *Silo) Tracker() *load.Tracker {
	return s.tracker
}

// Directory returns the grain directory
func (s *Silo) Directory() *directory.Directory {
	return s.directory
}

// Host returns the activation host
func (s *Silo) Host() *activation.Host {
	return s.host
}
