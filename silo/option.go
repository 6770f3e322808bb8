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

package silo

import (
	"github.com/tochemey/grainplacement/directory"
	"github.com/tochemey/grainplacement/internal/clock"
	"github.com/tochemey/grainplacement/metric"
	"github.com/tochemey/grainplacement/placement"
)

// Option is the interface that applies a Silo option.
type Option interface {
	// Apply sets the Option value of a Silo.
	Apply(silo *Silo)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(silo *Silo)

// Apply applies the Silo's option
func (f OptionFunc) Apply(silo *Silo) {
	f(silo)
}

// WithStore sets the directory store. The default is an in-memory store.
func WithStore(store directory.Store) Option {
	return OptionFunc(func(silo *Silo) {
		silo.store = store
	})
}

// WithMetric sets the metric instruments. The default records on the global meter provider.
func WithMetric(placementMetric *metric.PlacementMetric) Option {
	return OptionFunc(func(silo *Silo) {
		silo.metric = placementMetric
	})
}

// WithClock sets the clock driving the load gossip
func WithClock(clk clock.Clock) Option {
	return OptionFunc(func(silo *Silo) {
		silo.clock = clk
	})
}

// WithFilter sets the compatibility filter
func WithFilter(filter *placement.Filter) Option {
	return OptionFunc(func(silo *Silo) {
		silo.filter = filter
	})
}

// WithDirector registers the director of a custom strategy
func WithDirector(name string, director placement.Director) Option {
	return OptionFunc(func(silo *Silo) {
		silo.directors[name] = director
	})
}

// WithRand sets the random source of the directors
func WithRand(rand placement.Rand) Option {
	return OptionFunc(func(silo *Silo) {
		silo.rand = rand
	})
}
