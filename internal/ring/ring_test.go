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

package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/hash"
)

func TestRing(t *testing.T) {
	a := address.New("127.0.0.1", 3000, 1)
	b := address.New("127.0.0.1", 3001, 1)
	c := address.New("127.0.0.1", 3002, 1)

	t.Run("With empty ring", func(t *testing.T) {
		r := New()
		_, ok := r.Owner([]byte("user/1"))
		assert.False(t, ok)
		assert.Zero(t, r.Size())
	})
	t.Run("With members deduplicated and sorted", func(t *testing.T) {
		r := New()
		r.Set([]address.Address{c, a, b, a})
		assert.Equal(t, []address.Address{a, b, c}, r.Members())
		assert.True(t, r.Contains(b))
		assert.False(t, r.Contains(address.New("127.0.0.1", 3000, 2)))
	})
	t.Run("With owner stable across input order", func(t *testing.T) {
		r1 := New()
		r1.Set([]address.Address{a, b, c})
		r2 := New()
		r2.Set([]address.Address{c, b, a})
		for i := range 200 {
			key := []byte(fmt.Sprintf("user/%d", i))
			o1, ok := r1.Owner(key)
			require.True(t, ok)
			o2, _ := r2.Owner(key)
			require.Equal(t, o1, o2)
		}
	})
	t.Run("With every member owning keys", func(t *testing.T) {
		r := New()
		r.Set([]address.Address{a, b, c})
		owners := make(map[address.Address]int)
		for i := range 3000 {
			owner, _ := r.Owner([]byte(fmt.Sprintf("user/%d", i)))
			owners[owner]++
		}
		require.Len(t, owners, 3)
		for _, count := range owners {
			assert.Greater(t, count, 300)
		}
	})
	t.Run("With minimal movement on leave", func(t *testing.T) {
		r := New()
		r.Set([]address.Address{a, b, c})
		before := make(map[string]address.Address)
		for i := range 1000 {
			key := fmt.Sprintf("user/%d", i)
			before[key], _ = r.Owner([]byte(key))
		}

		r.Set([]address.Address{a, b})
		for key, owner := range before {
			after, _ := r.Owner([]byte(key))
			if owner != c {
				assert.Equal(t, owner, after)
			} else {
				assert.NotEqual(t, c, after)
			}
		}
	})
	t.Run("With custom hasher and wrap around", func(t *testing.T) {
		// every point hashes to 10, keys above it wrap to the first point
		r := New(WithVirtualNodes(1), WithHasher(hash.HasherFunc(func(key []byte) uint64 {
			if string(key) == "high" {
				return 100
			}
			return 10
		})))
		r.Set([]address.Address{b, a})
		owner, ok := r.Owner([]byte("high"))
		require.True(t, ok)
		assert.Equal(t, a, owner)
	})
}
