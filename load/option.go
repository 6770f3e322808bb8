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
	"time"

	"github.com/tochemey/grainplacement/internal/clock"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/metric"
)

// Option is the interface that applies a Tracker option.
type Option interface {
	// Apply sets the Option value of a Tracker.
	Apply(tracker *Tracker)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(tracker *Tracker)

// Apply applies the Tracker's option
func (f OptionFunc) Apply(tracker *Tracker) {
	f(tracker)
}

// WithClock sets the clock driving the gossip schedule and snapshot staleness
func WithClock(clk clock.Clock) Option {
	return OptionFunc(func(tracker *Tracker) {
		tracker.clock = clk
	})
}

// WithGossipInterval sets the publish interval
func WithGossipInterval(interval time.Duration) Option {
	return OptionFunc(func(tracker *Tracker) {
		if interval > 0 {
			tracker.interval = interval
		}
	})
}

// WithStaleAfter sets the age after which a received snapshot is ignored
func WithStaleAfter(staleAfter time.Duration) Option {
	return OptionFunc(func(tracker *Tracker) {
		if staleAfter > 0 {
			tracker.staleAfter = staleAfter
		}
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(tracker *Tracker) {
		tracker.logger = logger
	})
}

// WithMetric sets the metric instruments
func WithMetric(placementMetric *metric.PlacementMetric) Option {
	return OptionFunc(func(tracker *Tracker) {
		tracker.metric = placementMetric
	})
}
