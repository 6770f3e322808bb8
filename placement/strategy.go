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

package placement

import (
	"fmt"
	"strings"

	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/internal/validation"
)

// DefaultSampleSize is the number of servers sampled by the load-based director
const DefaultSampleSize = 2

// StrategyType enumerates the placement strategies
type StrategyType int

const (
	// Random picks a uniformly random compatible server
	Random StrategyType = iota
	// PreferLocal picks the local server when it is compatible
	PreferLocal
	// HashBased picks a server deterministically from the identity hash
	HashBased
	// LoadBased picks the least loaded server among a random sample
	LoadBased
	// StatelessWorker allows several local activations of the same identity
	StatelessWorker
	// Custom delegates the decision to a registered director
	Custom
)

// String returns the string representation of the strategy type
func (x StrategyType) String() string {
	switch x {
	case Random:
		return "random"
	case PreferLocal:
		return "prefer-local"
	case HashBased:
		return "hash-based"
	case LoadBased:
		return "load-based"
	case StatelessWorker:
		return "stateless-worker"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Strategy is an immutable placement policy attached to an actor kind.
// Use the New* constructors to build one.
type Strategy struct {
	kind       StrategyType
	sampleSize int
	maxLocal   int
	name       string
}

// NewRandom creates the Random strategy
func NewRandom() Strategy {
	return Strategy{kind: Random}
}

// NewPreferLocal creates the PreferLocal strategy
func NewPreferLocal() Strategy {
	return Strategy{kind: PreferLocal}
}

// NewHashBased creates the HashBased strategy
func NewHashBased() Strategy {
	return Strategy{kind: HashBased}
}

// NewLoadBased creates the LoadBased strategy sampling sampleSize servers.
// A non-positive sampleSize selects DefaultSampleSize.
func NewLoadBased(sampleSize int) Strategy {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return Strategy{kind: LoadBased, sampleSize: sampleSize}
}

// NewStatelessWorker creates the StatelessWorker strategy allowing up to
// maxLocal activations per server. A non-positive maxLocal defers to the
// silo configuration.
func NewStatelessWorker(maxLocal int) Strategy {
	if maxLocal < 0 {
		maxLocal = 0
	}
	return Strategy{kind: StatelessWorker, maxLocal: maxLocal}
}

// NewCustom creates a strategy resolved by name in the registry
func NewCustom(name string) Strategy {
	return Strategy{kind: Custom, name: name}
}

// Type returns the strategy type
func (s Strategy) Type() StrategyType {
	return s.kind
}

// SampleSize returns the load-based sample size
func (s Strategy) SampleSize() int {
	return s.sampleSize
}

// MaxLocal returns the stateless worker local cap. Zero means unset.
func (s Strategy) MaxLocal() int {
	return s.maxLocal
}

// Name returns the custom director name, or the strategy type name
func (s Strategy) Name() string {
	if s.kind == Custom {
		return s.name
	}
	return s.kind.String()
}

// IsMultiActivation reports whether the strategy skips the grain directory
func (s Strategy) IsMultiActivation() bool {
	return s.kind == StatelessWorker
}

// Equals reports whether both strategies are the same
func (s Strategy) Equals(other Strategy) bool {
	return s == other
}

// WithMaxLocal returns a copy of a stateless worker strategy with its cap set
func (s Strategy) WithMaxLocal(maxLocal int) Strategy {
	if s.kind == StatelessWorker && maxLocal > 0 {
		s.maxLocal = maxLocal
	}
	return s
}

// String returns a readable form such as load-based(2)
func (s Strategy) String() string {
	switch s.kind {
	case LoadBased:
		return fmt.Sprintf("%s(%d)", s.kind, s.sampleSize)
	case StatelessWorker:
		return fmt.Sprintf("%s(%d)", s.kind, s.maxLocal)
	case Custom:
		return fmt.Sprintf("%s(%s)", s.kind, s.name)
	default:
		return s.kind.String()
	}
}

// Validate checks the strategy parameters
func (s Strategy) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddAssertion(s.kind >= Random && s.kind <= Custom, "unknown strategy type")

	switch s.kind {
	case LoadBased:
		chain = chain.AddAssertion(s.sampleSize >= 1, "sample size must be at least 1")
	case StatelessWorker:
		chain = chain.AddAssertion(s.maxLocal >= 0, "max local workers must not be negative")
	case Custom:
		chain = chain.AddAssertion(strings.TrimSpace(s.name) != "", "custom strategy name is required")
	}

	if err := chain.Validate(); err != nil {
		return gerrors.NewErrInvalidStrategy(err.Error())
	}
	return nil
}
