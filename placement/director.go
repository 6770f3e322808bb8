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
	"math/rand/v2"
	"slices"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/hash"
)

// Servers is a sorted, duplicate free set of server addresses
type Servers []address.Address

// NewServers builds a Servers set from arbitrary addresses
func NewServers(addrs ...address.Address) Servers {
	servers := slices.Clone(addrs)
	address.Sort(servers)
	return Servers(slices.Compact(servers))
}

// Contains reports whether addr belongs to the set
func (s Servers) Contains(addr address.Address) bool {
	_, found := slices.BinarySearchFunc(s, addr, address.Address.Compare)
	return found
}

// Without returns the set minus the given addresses
func (s Servers) Without(excluded func(address.Address) bool) Servers {
	out := make(Servers, 0, len(s))
	for _, addr := range s {
		if !excluded(addr) {
			out = append(out, addr)
		}
	}
	return out
}

// LoadEstimator predicts the number of activations hosted by a server
type LoadEstimator interface {
	PredictedLoad(addr address.Address) int64
}

// Rand is the source of randomness used by the directors
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

type noLoad struct{}

func (noLoad) PredictedLoad(address.Address) int64 {
	return 0
}

// DecisionContext carries every input of a placement decision
// that is not the strategy, the target or the candidate servers.
type DecisionContext struct {
	// Local is the address of the silo taking the decision
	Local address.Address
	// Loads provides the predicted activation count of every server
	Loads LoadEstimator
	// Rand is the random source. Defaults to math/rand/v2.
	Rand Rand
	// Hasher hashes identities. Defaults to xxh3.
	Hasher hash.Hasher
}

func (x *DecisionContext) intN(n int) int {
	if x == nil || x.Rand == nil {
		return globalRand{}.IntN(n)
	}
	return x.Rand.IntN(n)
}

func (x *DecisionContext) hasher() hash.Hasher {
	if x == nil || x.Hasher == nil {
		return hash.DefaultHasher()
	}
	return x.Hasher
}

func (x *DecisionContext) loads() LoadEstimator {
	if x == nil || x.Loads == nil {
		return noLoad{}
	}
	return x.Loads
}

func (x *DecisionContext) local() address.Address {
	if x == nil {
		return address.Address{}
	}
	return x.Local
}

// Director picks the server hosting a new activation.
// Implementations must not perform I/O and must return a member of servers.
type Director interface {
	Decide(strategy Strategy, target grain.Identity, servers Servers, dctx *DecisionContext) (address.Address, error)
}

// DirectorFunc adapts a function to the Director interface
type DirectorFunc func(strategy Strategy, target grain.Identity, servers Servers, dctx *DecisionContext) (address.Address, error)

// Decide calls f
func (f DirectorFunc) Decide(strategy Strategy, target grain.Identity, servers Servers, dctx *DecisionContext) (address.Address, error) {
	return f(strategy, target, servers, dctx)
}

type randomDirector struct{}

func (randomDirector) Decide(_ Strategy, target grain.Identity, servers Servers, dctx *DecisionContext) (address.Address, error) {
	if len(servers) == 0 {
		return address.Address{}, gerrors.NewNoCompatibleServerError(target.Kind())
	}
	return servers[dctx.intN(len(servers))], nil
}

type preferLocalDirector struct{}

func (preferLocalDirector) Decide(strategy Strategy, target grain.Identity, servers Servers, dctx *DecisionContext) (address.Address, error) {
	if len(servers) == 0 {
		return address.Address{}, gerrors.NewNoCompatibleServerError(target.Kind())
	}
	if local := dctx.local(); servers.Contains(local) {
		return local, nil
	}
	return randomDirector{}.Decide(strategy, target, servers, dctx)
}

type hashBasedDirector struct{}

func (hashBasedDirector) Decide(_ Strategy, target grain.Identity, servers Servers, dctx *DecisionContext) (address.Address, error) {
	if len(servers) == 0 {
		return address.Address{}, gerrors.NewNoCompatibleServerError(target.Kind())
	}
	code := dctx.hasher().HashCode(target.Bytes())
	return servers[code%uint64(len(servers))], nil
}

type loadBasedDirector struct{}

// Decide samples min(d, len(servers)) distinct servers and returns the one
// with the lowest predicted load. Ties go to the lowest address.
func (loadBasedDirector) Decide(strategy Strategy, target grain.Identity, servers Servers, dctx *DecisionContext) (address.Address, error) {
	if len(servers) == 0 {
		return address.Address{}, gerrors.NewNoCompatibleServerError(target.Kind())
	}

	size := strategy.SampleSize()
	if size <= 0 {
		size = DefaultSampleSize
	}

	sample := servers
	if size < len(servers) {
		// partial Fisher-Yates over a copy
		pool := slices.Clone(servers)
		for i := range size {
			j := i + dctx.intN(len(pool)-i)
			pool[i], pool[j] = pool[j], pool[i]
		}
		sample = pool[:size]
	}

	loads := dctx.loads()
	best := sample[0]
	bestLoad := loads.PredictedLoad(best)
	for _, candidate := range sample[1:] {
		load := loads.PredictedLoad(candidate)
		if load < bestLoad || (load == bestLoad && candidate.Less(best)) {
			best, bestLoad = candidate, load
		}
	}
	return best, nil
}
