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
	goset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/membership"
)

// Predicate is an extra compatibility rule. It returns true when member
// may host an activation of kind.
type Predicate func(kind string, member membership.Member) bool

// Filter narrows the live members down to the servers able to host a kind
type Filter struct {
	predicates []Predicate
}

// FilterOption configures a Filter
type FilterOption func(*Filter)

// WithPredicate adds a compatibility rule. Every rule must accept a member.
func WithPredicate(predicate Predicate) FilterOption {
	return func(f *Filter) {
		f.predicates = append(f.predicates, predicate)
	}
}

// NewFilter creates a Filter
func NewFilter(opts ...FilterOption) *Filter {
	f := new(Filter)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Eligible returns the members that host kind and accept new activations.
// It fails with *errors.NoCompatibleServerError when none qualifies.
func (f *Filter) Eligible(kind string, members []membership.Member) (Servers, error) {
	eligible := goset.NewThreadUnsafeSet[address.Address]()
	for _, member := range members {
		if f.accepts(kind, member) {
			eligible.Add(member.Address)
		}
	}

	if eligible.Cardinality() == 0 {
		return nil, gerrors.NewNoCompatibleServerError(kind)
	}
	return NewServers(eligible.ToSlice()...), nil
}

func (f *Filter) accepts(kind string, member membership.Member) bool {
	if member.Address.IsZero() || !member.Accepting() || !member.Hosts(kind) {
		return false
	}
	for _, predicate := range f.predicates {
		if !predicate(kind, member) {
			return false
		}
	}
	return true
}
