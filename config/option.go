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

package config

import (
	"time"

	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/placement"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *Config)

// Apply applies the Config's option
func (f OptionFunc) Apply(c *Config) {
	f(c)
}

// WithGossipInterval sets the load snapshot broadcast period
func WithGossipInterval(interval time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.GossipInterval = interval
	})
}

// WithSnapshotStaleAfter sets the age after which a load snapshot is ignored
func WithSnapshotStaleAfter(staleAfter time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.SnapshotStaleAfter = staleAfter
	})
}

// WithSampleSize sets the default LoadBased sample size
func WithSampleSize(size int) Option {
	return OptionFunc(func(config *Config) {
		config.SampleSize = size
	})
}

// WithMaxPlacementAttempts sets the attempts bound of a placement
func WithMaxPlacementAttempts(attempts int) Option {
	return OptionFunc(func(config *Config) {
		config.MaxPlacementAttempts = attempts
	})
}

// WithRetryBackoff sets the backoff bounds between placement attempts
func WithRetryBackoff(minimum, maximum time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.MinRetryBackoff = minimum
		config.MaxRetryBackoff = maximum
	})
}

// WithDirectoryRetries sets the retries of an unreachable directory partition
func WithDirectoryRetries(retries int) Option {
	return OptionFunc(func(config *Config) {
		config.DirectoryRetries = retries
	})
}

// WithRegisterTimeout sets the timeout of directory calls
func WithRegisterTimeout(timeout time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.RegisterTimeout = timeout
	})
}

// WithActivateTimeout sets the timeout of activation instructions
func WithActivateTimeout(timeout time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.ActivateTimeout = timeout
	})
}

// WithMaxLocalWorkers sets the default stateless worker cap
func WithMaxLocalWorkers(maxLocal int) Option {
	return OptionFunc(func(config *Config) {
		config.MaxLocalWorkers = maxLocal
	})
}

// WithDefaultStrategy sets the strategy of the actor kinds without an attached one
func WithDefaultStrategy(strategy placement.Strategy) Option {
	return OptionFunc(func(config *Config) {
		config.DefaultStrategy = strategy
	})
}

// WithStrategy attaches a strategy to an actor kind
func WithStrategy(kind string, strategy placement.Strategy) Option {
	return OptionFunc(func(config *Config) {
		if config.Strategies == nil {
			config.Strategies = make(map[string]placement.Strategy)
		}
		config.Strategies[kind] = strategy
	})
}

// WithVirtualNodes sets the number of directory ring points per silo
func WithVirtualNodes(count int) Option {
	return OptionFunc(func(config *Config) {
		config.VirtualNodes = count
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(config *Config) {
		config.Logger = logger
	})
}
