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

package directory

import (
	"time"

	"github.com/tochemey/grainplacement/hash"
	"github.com/tochemey/grainplacement/internal/clock"
	"github.com/tochemey/grainplacement/log"
)

// Option is the interface that applies a Directory option.
type Option interface {
	// Apply sets the Option value of a Directory.
	Apply(directory *Directory)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(directory *Directory)

// Apply applies the Directory's option
func (f OptionFunc) Apply(directory *Directory) {
	f(directory)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(directory *Directory) {
		directory.logger = logger
	})
}

// WithRetries sets how many times an unreachable partition owner is retried
func WithRetries(retries int) Option {
	return OptionFunc(func(directory *Directory) {
		if retries >= 0 {
			directory.retries = retries
		}
	})
}

// WithBackoff sets the retry backoff bounds
func WithBackoff(initial, maximum time.Duration) Option {
	return OptionFunc(func(directory *Directory) {
		if initial > 0 && maximum >= initial {
			directory.minBackoff = initial
			directory.maxBackoff = maximum
		}
	})
}

// WithVirtualNodes sets the number of ring points per silo
func WithVirtualNodes(count int) Option {
	return OptionFunc(func(directory *Directory) {
		directory.virtualNodes = count
	})
}

// WithHasher sets the ring hasher
func WithHasher(hasher hash.Hasher) Option {
	return OptionFunc(func(directory *Directory) {
		directory.hasher = hasher
	})
}

// WithClock sets the clock stamping new records
func WithClock(clk clock.Clock) Option {
	return OptionFunc(func(directory *Directory) {
		directory.clock = clk
	})
}
