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

package membership

import (
	"time"

	"github.com/tochemey/grainplacement/log"
)

// Option is the interface that applies a Memberlist option.
type Option interface {
	// Apply sets the Option value of a Memberlist.
	Apply(provider *Memberlist)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(provider *Memberlist)

// Apply applies the Memberlist's option
func (f OptionFunc) Apply(provider *Memberlist) {
	f(provider)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(provider *Memberlist) {
		provider.logger = logger
	})
}

// WithSeeds sets the gossip addresses (host:port) of existing members to join
func WithSeeds(seeds ...string) Option {
	return OptionFunc(func(provider *Memberlist) {
		provider.seeds = seeds
	})
}

// WithMaxJoinAttempts sets the max join attempts
func WithMaxJoinAttempts(attempts int) Option {
	return OptionFunc(func(provider *Memberlist) {
		provider.maxJoinAttempts = attempts
	})
}

// WithJoinRetryInterval sets the join retry interval
func WithJoinRetryInterval(interval time.Duration) Option {
	return OptionFunc(func(provider *Memberlist) {
		provider.joinRetryInterval = interval
	})
}

// WithJoinTimeout sets the join timeout
func WithJoinTimeout(timeout time.Duration) Option {
	return OptionFunc(func(provider *Memberlist) {
		provider.joinTimeout = timeout
	})
}

// WithShutdownTimeout sets the timeout used to broadcast the leave intent
func WithShutdownTimeout(timeout time.Duration) Option {
	return OptionFunc(func(provider *Memberlist) {
		provider.shutdownTimeout = timeout
	})
}

// WithName sets the memberlist node name. Defaults to a random UUID.
func WithName(name string) Option {
	return OptionFunc(func(provider *Memberlist) {
		provider.name = name
	})
}
