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

// Package coordinator drives a placement request end to end.
//
// For an identity that is not active anywhere, the Coordinator resolves the
// strategy of its kind, narrows the live members down to the compatible
// servers, lets the director pick one, registers the choice in the grain
// directory and instructs the chosen server to activate the grain. A lost
// registration race adopts the winner. Unreachable servers and failed
// activations are retried on another candidate until the attempts run out.
package coordinator

import (
	"context"
	"errors"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"github.com/google/uuid"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/directory"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/hash"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/membership"
	"github.com/tochemey/grainplacement/metric"
	"github.com/tochemey/grainplacement/placement"
)

// Directory is the grain directory used by the Coordinator
type Directory interface {
	Register(ctx context.Context, identity grain.Identity, candidate address.Address) (directory.Registration, error)
	Lookup(ctx context.Context, identity grain.Identity) (address.Address, bool, error)
	Unregister(ctx context.Context, identity grain.Identity, expectedOwner address.Address) (bool, error)
}

// Activator sends activation instructions to the silos
type Activator interface {
	ActivateOn(ctx context.Context, target address.Address, identity grain.Identity, strategy placement.Strategy) (bool, error)
}

// Loads provides the load estimates and learns about the placements taken
type Loads interface {
	placement.LoadEstimator
	RecordPlacement(target address.Address)
}

// Placement describes where an identity was placed
type Placement struct {
	// RequestID identifies the placement request in the logs
	RequestID uuid.UUID
	Identity  grain.Identity
	// Server hosts the activation
	Server   address.Address
	Strategy placement.Strategy
	// Attempts is the number of attempts it took
	Attempts int
	// Conflict is set when another placement registered the identity first
	Conflict bool
	// Existing is set when the identity was already registered before the request
	Existing bool
}

// Coordinator places grains in the cluster
type Coordinator struct {
	self      address.Address
	registry  *placement.Registry
	members   membership.Provider
	directory Directory
	activator Activator

	filter          *placement.Filter
	loads           Loads
	maxAttempts     int
	minBackoff      time.Duration
	maxBackoff      time.Duration
	registerTimeout time.Duration
	activateTimeout time.Duration
	rand            placement.Rand
	hasher          hash.Hasher
	logger          log.Logger
	metric          *metric.PlacementMetric
}

// New creates a Coordinator running on the silo self
func New(self address.Address, registry *placement.Registry, members membership.Provider, dir Directory, activator Activator, opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		self:            self,
		registry:        registry,
		members:         members,
		directory:       dir,
		activator:       activator,
		filter:          placement.NewFilter(),
		maxAttempts:     5,
		minBackoff:      10 * time.Millisecond,
		maxBackoff:      500 * time.Millisecond,
		registerTimeout: 3 * time.Second,
		activateTimeout: 5 * time.Second,
		hasher:          hash.DefaultHasher(),
		logger:          log.DefaultLogger,
	}

	for _, opt := range opts {
		opt.Apply(coordinator)
	}
	return coordinator
}

// Place places identity in the cluster and returns where it lives.
//
// The returned error is *errors.NoCompatibleServerError when no live member
// can host the kind, *errors.UnknownStrategyError for an unregistered custom
// strategy, *errors.PlacementExhaustedError once every attempt failed, or the
// context error when ctx ends first.
func (c *Coordinator) Place(ctx context.Context, identity grain.Identity) (*Placement, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	strategy := c.registry.StrategyFor(identity.Kind())
	result := &Placement{
		RequestID: uuid.New(),
		Identity:  identity,
		Strategy:  strategy,
	}

	director, err := c.registry.DirectorFor(strategy)
	if err != nil {
		c.metric.RecordPlacement(ctx, strategy.String(), metric.OutcomeFailed, time.Since(start))
		return nil, err
	}

	var (
		excluded = goset.NewThreadUnsafeSet[address.Address]()
		fatal    error
		last     error
	)

	retrier := retry.NewRetrier(c.maxAttempts, c.minBackoff, c.maxBackoff)
	runErr := retrier.RunContext(ctx, func(ctx context.Context) error {
		result.Attempts++
		if last != nil {
			c.metric.RecordRetry(ctx, retryReason(last))
			c.logger.Debugf("%s placement %s of identity=(%s) retrying, attempt %d: %v",
				c.self, result.RequestID, identity, result.Attempts, last)
		}

		err := c.attempt(ctx, director, excluded, result)
		switch {
		case err == nil:
			return nil
		case isFatal(ctx, err):
			fatal = err
			return nil
		default:
			last = err
			return err
		}
	})

	elapsed := time.Since(start)
	switch {
	case ctx.Err() != nil && (fatal != nil || runErr != nil):
		c.metric.RecordPlacement(ctx, strategy.String(), metric.OutcomeCancelled, elapsed)
		return nil, ctx.Err()
	case fatal != nil:
		c.metric.RecordPlacement(ctx, strategy.String(), metric.OutcomeFailed, elapsed)
		return nil, fatal
	case runErr != nil:
		c.metric.RecordPlacement(ctx, strategy.String(), metric.OutcomeFailed, elapsed)
		c.logger.Warnf("%s placement %s of identity=(%s) failed after %d attempts: %v",
			c.self, result.RequestID, identity, result.Attempts, last)
		return nil, gerrors.NewPlacementExhaustedError(identity.String(), result.Attempts, last)
	}

	outcome := metric.OutcomePlaced
	switch {
	case result.Existing:
		outcome = metric.OutcomeExisting
	case result.Conflict:
		outcome = metric.OutcomeConflict
		c.metric.RecordConflict(ctx, strategy.String())
	}
	c.metric.RecordPlacement(ctx, strategy.String(), outcome, elapsed)
	c.logger.Debugf("%s placement %s placed identity=(%s) on %s (strategy=%s, attempts=%d, outcome=%s)",
		c.self, result.RequestID, identity, result.Server, strategy, result.Attempts, outcome)
	return result, nil
}

// attempt runs one pass of the placement state machine
func (c *Coordinator) attempt(ctx context.Context, director placement.Director, excluded goset.Set[address.Address], result *Placement) error {
	identity := result.Identity
	strategy := result.Strategy
	result.Conflict = false
	result.Existing = false

	live := c.liveMembers()
	if !strategy.IsMultiActivation() {
		done, err := c.lookup(ctx, identity, live, result)
		if done || err != nil {
			return err
		}
	}

	servers, err := c.filter.Eligible(identity.Kind(), c.members.Members())
	if err != nil {
		return err
	}

	candidates := servers.Without(func(addr address.Address) bool {
		return excluded.Contains(addr)
	})
	if len(candidates) == 0 {
		// every compatible server failed once: start over with all of them
		excluded.Clear()
		candidates = servers
	}

	target, err := director.Decide(strategy, identity, candidates, &placement.DecisionContext{
		Local:  c.self,
		Loads:  c.loads,
		Rand:   c.rand,
		Hasher: c.hasher,
	})
	if err != nil {
		return err
	}
	if !candidates.Contains(target) {
		return gerrors.ErrInvalidDecision
	}
	if c.loads != nil {
		c.loads.RecordPlacement(target)
	}

	if strategy.IsMultiActivation() {
		if err := c.activate(ctx, target, identity, strategy); err != nil {
			excluded.Add(target)
			return err
		}
		result.Server = target
		return nil
	}

	registration, err := c.register(ctx, identity, target)
	if err != nil {
		if ctx.Err() != nil {
			// the partition may have applied the registration before the cancellation
			c.unregister(ctx, identity, target)
		}
		return err
	}

	if !registration.Accepted {
		owner := registration.Record.Server
		if !live.Contains(owner) {
			c.unregister(ctx, identity, owner)
			return errDeadOwner
		}
		result.Conflict = true
		if err := c.activate(ctx, owner, identity, strategy); err != nil {
			return ownerErr(owner, err)
		}
		result.Server = owner
		return nil
	}

	if ctx.Err() != nil {
		c.unregister(ctx, identity, target)
		return ctx.Err()
	}

	if err := c.activate(ctx, target, identity, strategy); err != nil {
		c.unregister(ctx, identity, target)
		excluded.Add(target)
		return err
	}
	result.Server = target
	return nil
}

// lookup is the fast path of single-activation grains: an identity with a
// live record is forwarded to its owner. A record held by a departed silo
// is removed. It returns true when the placement is complete.
func (c *Coordinator) lookup(ctx context.Context, identity grain.Identity, live placement.Servers, result *Placement) (bool, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.registerTimeout)
	owner, found, err := c.directory.Lookup(lookupCtx, identity)
	cancel()
	if err != nil || !found {
		return false, err
	}

	if !live.Contains(owner) {
		c.logger.Debugf("%s identity=(%s) registered on departed silo %s", c.self, identity, owner)
		c.unregister(ctx, identity, owner)
		return false, nil
	}

	if err := c.activate(ctx, owner, identity, result.Strategy); err != nil {
		return false, ownerErr(owner, err)
	}

	result.Server = owner
	result.Existing = true
	return true, nil
}

func (c *Coordinator) register(ctx context.Context, identity grain.Identity, target address.Address) (directory.Registration, error) {
	registerCtx, cancel := context.WithTimeout(ctx, c.registerTimeout)
	defer cancel()
	return c.directory.Register(registerCtx, identity, target)
}

func (c *Coordinator) activate(ctx context.Context, target address.Address, identity grain.Identity, strategy placement.Strategy) error {
	activateCtx, cancel := context.WithTimeout(ctx, c.activateTimeout)
	defer cancel()
	_, err := c.activator.ActivateOn(activateCtx, target, identity, strategy)
	return err
}

// unregister removes the record of identity when owner still holds it.
// It runs on a context detached from the request so that a cancelled
// placement does not leave its registration behind.
func (c *Coordinator) unregister(ctx context.Context, identity grain.Identity, owner address.Address) {
	unregisterCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.registerTimeout)
	defer cancel()
	if _, err := c.directory.Unregister(unregisterCtx, identity, owner); err != nil {
		c.logger.Warnf("%s failed to unregister identity=(%s) from %s: %v", c.self, identity, owner, err)
	}
}

func (c *Coordinator) liveMembers() placement.Servers {
	return placement.NewServers(membership.Addresses(c.members.Members())...)
}

var errDeadOwner = errors.New("identity registered on a departed silo")

// ownerErr reports a failed activation on the live owner of a record.
// The record stays in place; the next attempt routes to the same owner.
func ownerErr(owner address.Address, err error) error {
	if errors.Is(err, gerrors.ErrUnreachableTarget) || errors.Is(err, gerrors.ErrActivationFailed) {
		return err
	}
	return gerrors.NewUnreachableTargetError(owner.String(), err)
}

// isFatal reports whether err ends the placement without another attempt
func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, gerrors.ErrNoCompatibleServer) ||
		errors.Is(err, gerrors.ErrUnknownStrategy) ||
		errors.Is(err, gerrors.ErrInvalidDecision) ||
		errors.Is(err, gerrors.ErrInvalidStrategy)
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, gerrors.ErrUnreachableTarget):
		return "unreachable"
	case errors.Is(err, gerrors.ErrActivationFailed):
		return "activation_failed"
	case errors.Is(err, errDeadOwner):
		return "dead_owner"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
