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
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/metric"
)

// Option is the interface that applies a Host option.
type Option interface {
	// Apply sets the Option value of a Host.
	Apply(host *Host)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(host *Host)

// Apply applies the Host's option
func (f OptionFunc) Apply(host *Host) {
	f(host)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(host *Host) {
		host.logger = logger
	})
}

// WithMetric sets the metric instruments
func WithMetric(placementMetric *metric.PlacementMetric) Option {
	return OptionFunc(func(host *Host) {
		host.metric = placementMetric
	})
}

// WithCounter sets the local activation counter, usually the load tracker
func WithCounter(counter Counter) Option {
	return OptionFunc(func(host *Host) {
		host.counter = counter
	})
}

// WithRegistrar sets the directory used to unregister deactivated grains
func WithRegistrar(registrar Registrar) Option {
	return OptionFunc(func(host *Host) {
		host.registrar = registrar
	})
}

// WithMaxLocalWorkers sets the stateless worker cap used when a strategy does not set one
func WithMaxLocalWorkers(maxLocal int) Option {
	return OptionFunc(func(host *Host) {
		if maxLocal > 0 {
			host.maxLocalWorkers = maxLocal
		}
	})
}
