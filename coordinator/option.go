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

package coordinator

import (
	"time"

	"github.com/tochemey/grainplacement/hash"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/metric"
	"github.com/tochemey/grainplacement/placement"
)

// Option is the interface that applies a Coordinator option.
type Option interface {
	// Apply sets the Option value of a Coordinator.
	Apply(coordinator *Coordinator)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(coordinator *Coordinator)

// Apply applies the Coordinator's option
func (f OptionFunc) Apply(coordinator *Coordinator) {
	f(coordinator)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		coordinator.logger = logger
	})
}

// WithMetric sets the metric instruments
func WithMetric(placementMetric *metric.PlacementMetric) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		coordinator.metric = placementMetric
	})
}

// WithLoads sets the load estimates used by LoadBased directors
func WithLoads(loads Loads) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		coordinator.loads = loads
	})
}

// WithFilter sets the compatibility filter
func WithFilter(filter *placement.Filter) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		coordinator.filter = filter
	})
}

// WithMaxAttempts bounds the attempts of a placement
func WithMaxAttempts(attempts int) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		if attempts > 0 {
			coordinator.maxAttempts = attempts
		}
	})
}

// WithBackoff sets the backoff bounds between two attempts
func WithBackoff(minimum, maximum time.Duration) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		if minimum > 0 && maximum >= minimum {
			coordinator.minBackoff = minimum
			coordinator.maxBackoff = maximum
		}
	})
}

// WithRegisterTimeout bounds every directory call
func WithRegisterTimeout(timeout time.Duration) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		if timeout > 0 {
			coordinator.registerTimeout = timeout
		}
	})
}

// WithActivateTimeout bounds every activation instruction
func WithActivateTimeout(timeout time.Duration) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		if timeout > 0 {
			coordinator.activateTimeout = timeout
		}
	})
}

// WithRand sets the random source of the directors
func WithRand(rand placement.Rand) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		coordinator.rand = rand
	})
}

// WithHasher sets the hasher of the HashBased director
func WithHasher(hasher hash.Hasher) Option {
	return OptionFunc(func(coordinator *Coordinator) {
		coordinator.hasher = hasher
	})
}
