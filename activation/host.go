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

package activation

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/internal/errorschain"
	"github.com/tochemey/grainplacement/internal/xsync"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/metric"
	"github.com/tochemey/grainplacement/placement"
	"github.com/tochemey/grainplacement/transport"
)

// single is the activation of a single-activation grain.
// ready is closed once the activator returned; err holds its failure.
type single struct {
	ready chan struct{}
	err   error
}

// Host runs the activations of the local silo
type Host struct {
	self      address.Address
	activator Activator
	transport transport.Transport

	counter         Counter
	registrar       Registrar
	maxLocalWorkers int
	logger          log.Logger
	metric          *metric.PlacementMetric

	singles  *xsync.Map[grain.Identity, *single]
	workers  *xsync.Map[grain.Identity, int]
	stopping *atomic.Bool
}

// NewHost creates a Host and registers the activation routes on the transport
func NewHost(activator Activator, tr transport.Transport, opts ...Option) *Host {
	host := &Host{
		self:            tr.Address(),
		activator:       activator,
		transport:       tr,
		maxLocalWorkers: runtime.NumCPU(),
		logger:          log.DefaultLogger,
		singles:         xsync.NewMap[grain.Identity, *single](),
		workers:         xsync.NewMap[grain.Identity, int](),
		stopping:        atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(host)
	}

	tr.Handle(RouteActivate, host.handleActivate)
	tr.Handle(RouteDeactivate, host.handleDeactivate)
	return host
}

// Activate creates an activation of identity on the local silo following
// strategy. It returns false when no new activation was needed: the grain is
// already active, or the stateless worker cap is reached.
func (h *Host) Activate(ctx context.Context, identity grain.Identity, strategy placement.Strategy) (bool, error) {
	if strategy.IsMultiActivation() {
		return h.activateWorker(ctx, identity, strategy.MaxLocal())
	}
	return h.activateSingle(ctx, identity)
}

// ActivateOn instructs target to create an activation of identity.
// The local silo is served without going through the transport.
func (h *Host) ActivateOn(ctx context.Context, target address.Address, identity grain.Identity, strategy placement.Strategy) (bool, error) {
	if target == h.self {
		return h.Activate(ctx, identity, strategy)
	}

	resp, err := h.transport.Request(ctx, target, RouteActivate, ActivateRequest{
		Identity:        identity,
		MultiActivation: strategy.IsMultiActivation(),
		MaxLocal:        strategy.MaxLocal(),
	})
	if err != nil {
		return false, err
	}

	out, ok := resp.(ActivateResponse)
	if !ok {
		return false, fmt.Errorf("unexpected activate response %T", resp)
	}
	return out.Created, nil
}

// Deactivate destroys a local activation of identity and, for a
// single-activation grain, removes its directory record when it still
// points at this silo. A stateless worker loses one instance per call.
func (h *Host) Deactivate(ctx context.Context, identity grain.Identity) (bool, error) {
	if entry, ok := h.singles.Get(identity); ok {
		return h.deactivateSingle(ctx, identity, entry)
	}

	if h.releaseWorker(identity) {
		h.removed(ctx)
		return true, h.activator.Deactivate(ctx, identity)
	}
	return false, nil
}

// DeactivateOn instructs target to destroy its activation of identity
func (h *Host) DeactivateOn(ctx context.Context, target address.Address, identity grain.Identity) (bool, error) {
	if target == h.self {
		return h.Deactivate(ctx, identity)
	}

	resp, err := h.transport.Request(ctx, target, RouteDeactivate, DeactivateRequest{Identity: identity})
	if err != nil {
		return false, err
	}

	out, ok := resp.(DeactivateResponse)
	if !ok {
		return false, fmt.Errorf("unexpected deactivate response %T", resp)
	}
	return out.Deactivated, nil
}

// IsActive reports whether identity has a ready single activation on this silo
func (h *Host) IsActive(identity grain.Identity) bool {
	entry, ok := h.singles.Get(identity)
	if !ok {
		return false
	}
	select {
	case <-entry.ready:
		return entry.err == nil
	default:
		return false
	}
}

// Workers returns the number of stateless worker instances of identity
func (h *Host) Workers(identity grain.Identity) int {
	count, _ := h.workers.Get(identity)
	return count
}

// Identities returns the grains with a single activation on this silo
func (h *Host) Identities() []grain.Identity {
	return h.singles.Keys()
}

// Stop deactivates every local activation
func (h *Host) Stop(ctx context.Context) error {
	if h.stopping.Swap(true) {
		return nil
	}

	chain := errorschain.New(errorschain.ReturnAll())
	for _, identity := range h.singles.Keys() {
		if entry, ok := h.singles.Get(identity); ok {
			_, err := h.deactivateSingle(ctx, identity, entry)
			chain.AddError(err)
		}
	}

	for _, identity := range h.workers.Keys() {
		for h.releaseWorker(identity) {
			h.removed(ctx)
			chain.AddError(h.activator.Deactivate(ctx, identity))
		}
	}
	return chain.Error()
}

func (h *Host) activateSingle(ctx context.Context, identity grain.Identity) (bool, error) {
	if h.stopping.Load() {
		return false, gerrors.ErrSiloNotStarted
	}

	entry := &single{ready: make(chan struct{})}
	actual, loaded := h.singles.LoadOrStore(identity, entry)
	if loaded {
		select {
		case <-actual.ready:
			return false, actual.err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if err := h.activator.Activate(ctx, identity); err != nil {
		entry.err = gerrors.NewErrActivationFailed(err)
		h.singles.Delete(identity)
		close(entry.ready)
		h.logger.Warnf("%s failed to activate identity=(%s): %v", h.self, identity, err)
		return false, entry.err
	}

	close(entry.ready)
	h.added(ctx)
	h.logger.Debugf("%s activated identity=(%s)", h.self, identity)
	return true, nil
}

func (h *Host) deactivateSingle(ctx context.Context, identity grain.Identity, entry *single) (bool, error) {
	select {
	case <-entry.ready:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	if entry.err != nil {
		return false, nil
	}

	removed := false
	h.singles.Update(identity, func(current *single, exists bool) (*single, bool) {
		if exists && current == entry {
			removed = true
			return nil, false
		}
		return current, exists
	})
	if !removed {
		return false, nil
	}

	h.removed(ctx)
	err := h.activator.Deactivate(ctx, identity)

	// a record left behind still points at a live silo: the next placement
	// activates the grain there again, and a departed silo's records are
	// dropped by the directory
	if h.registrar != nil {
		if _, uerr := h.registrar.Unregister(ctx, identity, h.self); uerr != nil {
			h.logger.Warnf("%s failed to unregister identity=(%s): %v", h.self, identity, uerr)
		}
	}

	h.logger.Debugf("%s deactivated identity=(%s)", h.self, identity)
	return true, err
}

func (h *Host) activateWorker(ctx context.Context, identity grain.Identity, maxLocal int) (bool, error) {
	if h.stopping.Load() {
		return false, gerrors.ErrSiloNotStarted
	}

	limit := maxLocal
	if limit <= 0 {
		limit = h.maxLocalWorkers
	}

	created := false
	h.workers.Update(identity, func(count int, _ bool) (int, bool) {
		if count >= limit {
			return count, true
		}
		created = true
		return count + 1, true
	})
	if !created {
		return false, nil
	}

	if err := h.activator.Activate(ctx, identity); err != nil {
		h.releaseWorker(identity)
		h.logger.Warnf("%s failed to activate a worker of identity=(%s): %v", h.self, identity, err)
		return false, gerrors.NewErrActivationFailed(err)
	}

	h.added(ctx)
	return true, nil
}

func (h *Host) releaseWorker(identity grain.Identity) bool {
	released := false
	h.workers.Update(identity, func(count int, exists bool) (int, bool) {
		if !exists || count <= 0 {
			return 0, false
		}
		released = true
		return count - 1, count > 1
	})
	return released
}

func (h *Host) added(ctx context.Context) {
	if h.counter != nil {
		h.counter.Increment()
	}
	h.metric.AddActivations(ctx, 1)
}

func (h *Host) removed(ctx context.Context) {
	if h.counter != nil {
		h.counter.Decrement()
	}
	h.metric.AddActivations(ctx, -1)
}

func (h *Host) handleActivate(ctx context.Context, _ address.Address, request any) (any, error) {
	req, ok := request.(ActivateRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected activate request %T", request)
	}

	var (
		created bool
		err     error
	)
	if req.MultiActivation {
		created, err = h.activateWorker(ctx, req.Identity, req.MaxLocal)
	} else {
		created, err = h.activateSingle(ctx, req.Identity)
	}
	if err != nil {
		return nil, err
	}
	return ActivateResponse{Created: created}, nil
}

func (h *Host) handleDeactivate(ctx context.Context, _ address.Address, request any) (any, error) {
	req, ok := request.(DeactivateRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected deactivate request %T", request)
	}
	deactivated, err := h.Deactivate(ctx, req.Identity)
	if err != nil {
		return nil, err
	}
	return DeactivateResponse{Deactivated: deactivated}, nil
}
