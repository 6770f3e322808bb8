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

// Package config holds the tunables of a silo
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/tochemey/grainplacement/internal/validation"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/placement"
)

// Default values
const (
	DefaultGossipInterval       = time.Minute
	DefaultSampleSize           = placement.DefaultSampleSize
	DefaultMaxPlacementAttempts = 5
	DefaultMinRetryBackoff      = 10 * time.Millisecond
	DefaultMaxRetryBackoff      = 500 * time.Millisecond
	DefaultDirectoryRetries     = 3
	DefaultRegisterTimeout      = 3 * time.Second
	DefaultActivateTimeout      = 5 * time.Second
	DefaultVirtualNodes         = 64
)

// Config holds the placement tunables of a silo
type Config struct {
	// GossipInterval is the period of the load snapshot broadcast
	GossipInterval time.Duration
	// SnapshotStaleAfter is the age after which a received load snapshot is ignored.
	// It defaults to three gossip intervals.
	SnapshotStaleAfter time.Duration
	// SampleSize is the number of servers sampled by LoadBased strategies
	// created without an explicit sample size
	SampleSize int
	// MaxPlacementAttempts bounds the attempts of a single placement
	MaxPlacementAttempts int
	// MinRetryBackoff and MaxRetryBackoff bound the wait between two attempts
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	// DirectoryRetries is the number of retries of a directory call
	// whose partition owner is unreachable
	DirectoryRetries int
	// RegisterTimeout bounds every directory call
	RegisterTimeout time.Duration
	// ActivateTimeout bounds every activation instruction
	ActivateTimeout time.Duration
	// MaxLocalWorkers caps the stateless worker instances of an identity per silo
	// when the strategy does not set its own cap
	MaxLocalWorkers int
	// DefaultStrategy applies to the actor kinds without an attached strategy
	DefaultStrategy placement.Strategy
	// Strategies attaches a strategy to actor kinds
	Strategies map[string]placement.Strategy
	// VirtualNodes is the number of directory ring points per silo
	VirtualNodes int
	// Logger is the silo logger
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// New creates a Config with the default values and applies the given options
func New(opts ...Option) *Config {
	config := &Config{
		GossipInterval:       DefaultGossipInterval,
		SampleSize:           DefaultSampleSize,
		MaxPlacementAttempts: DefaultMaxPlacementAttempts,
		MinRetryBackoff:      DefaultMinRetryBackoff,
		MaxRetryBackoff:      DefaultMaxRetryBackoff,
		DirectoryRetries:     DefaultDirectoryRetries,
		RegisterTimeout:      DefaultRegisterTimeout,
		ActivateTimeout:      DefaultActivateTimeout,
		MaxLocalWorkers:      runtime.NumCPU(),
		DefaultStrategy:      placement.NewRandom(),
		Strategies:           make(map[string]placement.Strategy),
		VirtualNodes:         DefaultVirtualNodes,
		Logger:               log.DefaultLogger,
	}

	for _, opt := range opts {
		opt.Apply(config)
	}

	if config.SnapshotStaleAfter <= 0 {
		config.SnapshotStaleAfter = 3 * config.GossipInterval
	}
	return config
}

// Validate checks the configuration
func (x *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddAssertion(x.GossipInterval > 0, "GossipInterval must be positive").
		AddAssertion(x.SnapshotStaleAfter >= x.GossipInterval, "SnapshotStaleAfter must not be shorter than GossipInterval").
		AddAssertion(x.SampleSize > 0, "SampleSize must be positive").
		AddAssertion(x.MaxPlacementAttempts > 0, "MaxPlacementAttempts must be positive").
		AddAssertion(x.MinRetryBackoff > 0, "MinRetryBackoff must be positive").
		AddAssertion(x.MaxRetryBackoff >= x.MinRetryBackoff, "MaxRetryBackoff must not be shorter than MinRetryBackoff").
		AddAssertion(x.DirectoryRetries >= 0, "DirectoryRetries must not be negative").
		AddAssertion(x.RegisterTimeout > 0, "RegisterTimeout must be positive").
		AddAssertion(x.ActivateTimeout > 0, "ActivateTimeout must be positive").
		AddAssertion(x.MaxLocalWorkers > 0, "MaxLocalWorkers must be positive").
		AddAssertion(x.VirtualNodes > 0, "VirtualNodes must be positive").
		AddAssertion(x.Logger != nil, "Logger is required").
		AddValidator(x.DefaultStrategy)

	for kind, strategy := range x.Strategies {
		chain = chain.
			AddAssertion(kind != "", "strategy attached to an empty actor kind").
			AddValidator(kindStrategy{kind: kind, strategy: strategy})
	}
	return chain.Validate()
}

// StrategyFor returns the strategy attached to kind with the configured
// defaults applied to its unset parameters
func (x *Config) StrategyFor(kind string) placement.Strategy {
	strategy, ok := x.Strategies[kind]
	if !ok {
		strategy = x.DefaultStrategy
	}
	return x.Normalize(strategy)
}

// Normalize applies the configured defaults to the unset parameters of strategy.
// A LoadBased strategy at the default sample size takes SampleSize.
func (x *Config) Normalize(strategy placement.Strategy) placement.Strategy {
	switch strategy.Type() {
	case placement.StatelessWorker:
		if strategy.MaxLocal() == 0 {
			return strategy.WithMaxLocal(x.MaxLocalWorkers)
		}
	case placement.LoadBased:
		if strategy.SampleSize() == placement.DefaultSampleSize && x.SampleSize != placement.DefaultSampleSize {
			return placement.NewLoadBased(x.SampleSize)
		}
	}
	return strategy
}

type kindStrategy struct {
	kind     string
	strategy placement.Strategy
}

func (x kindStrategy) Validate() error {
	if err := x.strategy.Validate(); err != nil {
		return fmt.Errorf("actor kind %q: %w", x.kind, err)
	}
	return nil
}
