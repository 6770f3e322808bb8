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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/internal/ring"
)

func newRing(members ...address.Address) *ring.Ring {
	r := ring.New()
	r.Set(members)
	return r
}

// keyOwnedBy returns a key owned by owner in r
func keyOwnedBy(t *testing.T, r *ring.Ring, owner address.Address) []byte {
	t.Helper()
	for i := range 1000 {
		key := grain.NewIdentity("user", strconv.Itoa(i)).Bytes()
		if got, _ := r.Owner(key); got == owner {
			return key
		}
	}
	t.Fatalf("no key owned by %s", owner)
	return nil
}

func TestTransition(t *testing.T) {
	grown := []address.Address{addrA, addrB, addrC}

	t.Run("With previous owners pending until they hand off", func(t *testing.T) {
		tr := newTransition()
		previous := newRing(addrA, addrB)
		tr.begin(addrC, previous, grown)
		require.True(t, tr.active())

		key := keyOwnedBy(t, previous, addrA)
		assert.Equal(t, []address.Address{addrA}, tr.previousOwners(addrC, key))

		tr.acknowledge(addrA, viewOf(grown))
		assert.Empty(t, tr.previousOwners(addrC, key))
		assert.True(t, tr.active())

		tr.acknowledge(addrB, viewOf(grown))
		assert.False(t, tr.active())
	})
	t.Run("With a handoff received before the ring change", func(t *testing.T) {
		tr := newTransition()
		tr.acknowledge(addrA, viewOf(grown))
		tr.begin(addrB, newRing(addrA, addrB), grown)
		assert.False(t, tr.active())
	})
	t.Run("With a handoff computed on another ring", func(t *testing.T) {
		tr := newTransition()
		tr.begin(addrB, newRing(addrA, addrB), grown)
		tr.acknowledge(addrA, viewOf([]address.Address{addrA, addrB}))
		assert.True(t, tr.active())
	})
	t.Run("With a departed previous owner", func(t *testing.T) {
		tr := newTransition()
		previous := newRing(addrA, addrB)
		tr.begin(addrC, previous, grown)
		tr.forget(addrA)

		assert.Empty(t, tr.previousOwners(addrC, keyOwnedBy(t, previous, addrA)))
		tr.forget(addrB)
		assert.False(t, tr.active())
	})
	t.Run("With the first ring", func(t *testing.T) {
		tr := newTransition()
		tr.begin(addrA, ring.New(), grown)
		assert.False(t, tr.active())
	})
}
