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
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
)

type staticLoads map[address.Address]int64

func (s staticLoads) PredictedLoad(addr address.Address) int64 {
	return s[addr]
}

func servers(n int) Servers {
	addrs := make([]address.Address, 0, n)
	for i := range n {
		addrs = append(addrs, address.New("10.0.0.1", 3000+i, 1))
	}
	return NewServers(addrs...)
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestServers(t *testing.T) {
	a := address.New("10.0.0.1", 3000, 1)
	b := address.New("10.0.0.1", 3001, 1)
	set := NewServers(b, a, b)
	assert.Equal(t, Servers{a, b}, set)
	assert.True(t, set.Contains(a))
	assert.False(t, set.Contains(address.New("10.0.0.1", 3000, 2)))
	assert.Equal(t, Servers{b}, set.Without(func(addr address.Address) bool { return addr == a }))
}

func TestDirectorsEmptySet(t *testing.T) {
	registry := NewRegistry(NewRandom())
	target := grain.NewIdentity("user", "1")
	for _, strategy := range []Strategy{NewRandom(), NewPreferLocal(), NewHashBased(), NewLoadBased(2), NewStatelessWorker(2)} {
		director, err := registry.DirectorFor(strategy)
		require.NoError(t, err)
		_, err = director.Decide(strategy, target, nil, &DecisionContext{})
		require.ErrorIs(t, err, gerrors.ErrNoCompatibleServer, strategy.String())
		var noCompatible *gerrors.NoCompatibleServerError
		require.ErrorAs(t, err, &noCompatible)
		assert.Equal(t, "user", noCompatible.Kind)
	}
}

func TestRandomDirector(t *testing.T) {
	set := servers(4)
	dctx := &DecisionContext{Rand: newRand(1)}
	hits := make(map[address.Address]int)
	for i := range 4000 {
		addr, err := randomDirector{}.Decide(NewRandom(), grain.NewIdentity("user", fmt.Sprint(i)), set, dctx)
		require.NoError(t, err)
		require.True(t, set.Contains(addr))
		hits[addr]++
	}
	require.Len(t, hits, 4)
	for _, count := range hits {
		assert.InDelta(t, 1000, count, 200)
	}

	// a nil context falls back to the global source
	addr, err := randomDirector{}.Decide(NewRandom(), grain.NewIdentity("user", "1"), set, nil)
	require.NoError(t, err)
	assert.True(t, set.Contains(addr))
}

func TestPreferLocalDirector(t *testing.T) {
	set := servers(5)
	for i := range 100 {
		target := grain.NewIdentity("user", fmt.Sprint(i))
		local := set[i%len(set)]
		addr, err := preferLocalDirector{}.Decide(NewPreferLocal(), target, set, &DecisionContext{Local: local, Rand: newRand(uint64(i))})
		require.NoError(t, err)
		assert.Equal(t, local, addr)

		outsider := address.New("10.0.0.2", 3000, 1)
		addr, err = preferLocalDirector{}.Decide(NewPreferLocal(), target, set, &DecisionContext{Local: outsider, Rand: newRand(uint64(i))})
		require.NoError(t, err)
		assert.True(t, set.Contains(addr))
	}
}

func TestHashBasedDirector(t *testing.T) {
	set := servers(7)
	reversed := make([]address.Address, len(set))
	for i, addr := range set {
		reversed[len(set)-1-i] = addr
	}
	shuffled := NewServers(reversed...)

	for i := range 500 {
		target := grain.NewIdentity("user", fmt.Sprint(i))
		first, err := hashBasedDirector{}.Decide(NewHashBased(), target, set, &DecisionContext{Local: set[0]})
		require.NoError(t, err)
		second, err := hashBasedDirector{}.Decide(NewHashBased(), target, shuffled, &DecisionContext{Local: set[3], Rand: newRand(uint64(i))})
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, set[xxh3.Hash(target.Bytes())%uint64(len(set))], first)
	}
}

func TestLoadBasedDirector(t *testing.T) {
	a := address.New("10.0.0.1", 3000, 1)
	b := address.New("10.0.0.1", 3001, 1)
	target := grain.NewIdentity("user", "1")

	t.Run("With the least loaded server", func(t *testing.T) {
		dctx := &DecisionContext{Loads: staticLoads{a: 5, b: 2}, Rand: newRand(7)}
		addr, err := loadBasedDirector{}.Decide(NewLoadBased(2), target, NewServers(a, b), dctx)
		require.NoError(t, err)
		assert.Equal(t, b, addr)
	})
	t.Run("With a tie going to the lower address", func(t *testing.T) {
		for seed := range uint64(20) {
			dctx := &DecisionContext{Loads: staticLoads{a: 3, b: 3}, Rand: newRand(seed)}
			addr, err := loadBasedDirector{}.Decide(NewLoadBased(2), target, NewServers(b, a), dctx)
			require.NoError(t, err)
			assert.Equal(t, a, addr)
		}
	})
	t.Run("With the sample covering every server", func(t *testing.T) {
		set := servers(6)
		loads := staticLoads{}
		for i, addr := range set {
			loads[addr] = int64(10 - i)
		}
		addr, err := loadBasedDirector{}.Decide(NewLoadBased(10), target, set, &DecisionContext{Loads: loads})
		require.NoError(t, err)
		assert.Equal(t, set[5], addr)
	})
	t.Run("With a sample never picking the unique maximum", func(t *testing.T) {
		set := servers(8)
		rnd := newRand(99)
		for round := range 300 {
			loads := staticLoads{}
			maxAddr := set[rnd.IntN(len(set))]
			for _, addr := range set {
				loads[addr] = int64(rnd.IntN(50))
			}
			loads[maxAddr] = 100
			dctx := &DecisionContext{Loads: loads, Rand: newRand(uint64(round))}
			addr, err := loadBasedDirector{}.Decide(NewLoadBased(2), target, set, dctx)
			require.NoError(t, err)
			require.True(t, set.Contains(addr))
			assert.NotEqual(t, maxAddr, addr)
		}
	})
	t.Run("With sampling bounded by d", func(t *testing.T) {
		set := servers(8)
		sampled := &countingLoads{seen: make(map[address.Address]int)}
		_, err := loadBasedDirector{}.Decide(NewLoadBased(3), target, set, &DecisionContext{Loads: sampled, Rand: newRand(3)})
		require.NoError(t, err)
		assert.Len(t, sampled.seen, 3)
	})
	t.Run("With no estimator", func(t *testing.T) {
		addr, err := loadBasedDirector{}.Decide(Strategy{kind: LoadBased}, target, NewServers(b, a), nil)
		require.NoError(t, err)
		assert.Equal(t, a, addr)
	})
}

type countingLoads struct {
	seen map[address.Address]int
}

func (c *countingLoads) PredictedLoad(addr address.Address) int64 {
	c.seen[addr]++
	return 0
}

func TestDirectorFunc(t *testing.T) {
	a := address.New("10.0.0.1", 3000, 1)
	director := DirectorFunc(func(Strategy, grain.Identity, Servers, *DecisionContext) (address.Address, error) {
		return a, nil
	})
	addr, err := director.Decide(NewCustom("x"), grain.NewIdentity("user", "1"), NewServers(a), nil)
	require.NoError(t, err)
	assert.Equal(t, a, addr)
}
