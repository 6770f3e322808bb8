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
	"strings"
	"sync"

	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/internal/xsync"
)

// Registry maps actor kinds to strategies and strategies to directors.
// A kind's strategy is resolved once and cached: after the first Attach or
// StrategyFor call it can no longer change.
type Registry struct {
	defaultStrategy Strategy
	strategies      *xsync.Map[string, Strategy]

	mu        sync.RWMutex
	directors map[string]Director
	builtins  map[StrategyType]Director
}

// NewRegistry creates a Registry falling back to defaultStrategy for kinds
// without an attached strategy.
func NewRegistry(defaultStrategy Strategy) *Registry {
	return &Registry{
		defaultStrategy: defaultStrategy,
		strategies:      xsync.NewMap[string, Strategy](),
		directors:       make(map[string]Director),
		builtins: map[StrategyType]Director{
			Random:          randomDirector{},
			PreferLocal:     preferLocalDirector{},
			HashBased:       hashBasedDirector{},
			LoadBased:       loadBasedDirector{},
			StatelessWorker: preferLocalDirector{},
		},
	}
}

// Attach binds a strategy to an actor kind. Attaching the same strategy
// twice is a no-op; attaching a different one fails.
func (r *Registry) Attach(kind string, strategy Strategy) error {
	if strings.TrimSpace(kind) == "" {
		return gerrors.NewErrInvalidStrategy("actor kind is required")
	}
	if err := strategy.Validate(); err != nil {
		return err
	}
	actual, loaded := r.strategies.LoadOrStore(kind, strategy)
	if loaded && !actual.Equals(strategy) {
		return gerrors.NewErrStrategyAlreadyAttached(kind)
	}
	return nil
}

// StrategyFor returns the strategy of an actor kind
func (r *Registry) StrategyFor(kind string) Strategy {
	strategy, _ := r.strategies.LoadOrStore(kind, r.defaultStrategy)
	return strategy
}

// RegisterDirector registers the director of a custom strategy
func (r *Registry) RegisterDirector(name string, director Director) error {
	if strings.TrimSpace(name) == "" {
		return gerrors.NewErrInvalidStrategy("director name is required")
	}
	if director == nil {
		return gerrors.NewErrInvalidStrategy("director is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.directors[name]; ok {
		return gerrors.NewErrInvalidStrategy("director (" + name + ") already registered")
	}
	r.directors[name] = director
	return nil
}

// DirectorFor resolves the director of a strategy.
// An unregistered custom strategy yields *errors.UnknownStrategyError.
func (r *Registry) DirectorFor(strategy Strategy) (Director, error) {
	if strategy.Type() != Custom {
		director, ok := r.builtins[strategy.Type()]
		if !ok {
			return nil, gerrors.NewUnknownStrategyError(strategy.Name())
		}
		return director, nil
	}

	r.mu.RLock()
	director, ok := r.directors[strategy.Name()]
	r.mu.RUnlock()
	if !ok {
		return nil, gerrors.NewUnknownStrategyError(strategy.Name())
	}
	return director, nil
}
