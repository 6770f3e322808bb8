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

// Package ring implements a consistent hash ring with virtual nodes.
// The grain directory uses it to map an identity to its owning partition.
package ring

import (
	"slices"
	"sort"
	"strconv"

	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/hash"
)

// DefaultVirtualNodes is the number of points each member occupies on the ring
const DefaultVirtualNodes = 64

type point struct {
	hash   uint64
	member address.Address
}

type snapshot struct {
	points  []point
	members []address.Address
}

// Ring is safe for concurrent use. Readers never block: every Set publishes
// a new immutable snapshot.
type Ring struct {
	hasher       hash.Hasher
	virtualNodes int
	current      *atomic.Pointer[snapshot]
}

// Option configures a Ring
type Option func(*Ring)

// WithHasher sets the hasher used for ring positions and keys
func WithHasher(hasher hash.Hasher) Option {
	return func(r *Ring) {
		r.hasher = hasher
	}
}

// WithVirtualNodes sets the number of virtual nodes per member
func WithVirtualNodes(count int) Option {
	return func(r *Ring) {
		if count > 0 {
			r.virtualNodes = count
		}
	}
}

// New creates an empty Ring
func New(opts ...Option) *Ring {
	r := &Ring{
		hasher:       hash.DefaultHasher(),
		virtualNodes: DefaultVirtualNodes,
		current:      atomic.NewPointer(&snapshot{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set replaces the ring members
func (r *Ring) Set(members []address.Address) {
	sorted := slices.Clone(members)
	address.Sort(sorted)
	sorted = slices.Compact(sorted)

	points := make([]point, 0, len(sorted)*r.virtualNodes)
	for _, member := range sorted {
		prefix := member.String() + "#"
		for i := range r.virtualNodes {
			points = append(points, point{
				hash:   r.hasher.HashCode([]byte(prefix + strconv.Itoa(i))),
				member: member,
			})
		}
	}

	slices.SortFunc(points, func(a, b point) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			return a.member.Compare(b.member)
		}
	})

	r.current.Store(&snapshot{points: points, members: sorted})
}

// Owner returns the member owning key. It returns false when the ring is empty.
func (r *Ring) Owner(key []byte) (address.Address, bool) {
	snap := r.current.Load()
	if len(snap.points) == 0 {
		return address.Address{}, false
	}

	code := r.hasher.HashCode(key)
	idx := sort.Search(len(snap.points), func(i int) bool {
		return snap.points[i].hash >= code
	})
	if idx == len(snap.points) {
		idx = 0
	}
	return snap.points[idx].member, true
}

// Members returns the sorted ring members
func (r *Ring) Members() []address.Address {
	return slices.Clone(r.current.Load().members)
}

// Contains reports whether addr is a ring member
func (r *Ring) Contains(addr address.Address) bool {
	_, found := slices.BinarySearchFunc(r.current.Load().members, addr, address.Address.Compare)
	return found
}

// Size returns the number of members
func (r *Ring) Size() int {
	return len(r.current.Load().members)
}
