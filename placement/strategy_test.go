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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/grainplacement/errors"
)

func TestStrategy(t *testing.T) {
	t.Run("With built-in constructors", func(t *testing.T) {
		assert.Equal(t, Random, NewRandom().Type())
		assert.Equal(t, PreferLocal, NewPreferLocal().Type())
		assert.Equal(t, HashBased, NewHashBased().Type())
		assert.Equal(t, "random", NewRandom().String())
		assert.Equal(t, "prefer-local", NewPreferLocal().Name())
		assert.Equal(t, "hash-based", NewHashBased().String())
		assert.Equal(t, "unknown", StrategyType(99).String())
	})
	t.Run("With load based", func(t *testing.T) {
		s := NewLoadBased(0)
		assert.Equal(t, LoadBased, s.Type())
		assert.Equal(t, DefaultSampleSize, s.SampleSize())
		assert.Equal(t, 3, NewLoadBased(3).SampleSize())
		assert.Equal(t, "load-based(3)", NewLoadBased(3).String())
		assert.False(t, s.IsMultiActivation())
		require.NoError(t, s.Validate())
	})
	t.Run("With stateless worker", func(t *testing.T) {
		s := NewStatelessWorker(-1)
		assert.True(t, s.IsMultiActivation())
		assert.Zero(t, s.MaxLocal())
		assert.Equal(t, 4, s.WithMaxLocal(4).MaxLocal())
		assert.Equal(t, 2, NewStatelessWorker(2).WithMaxLocal(4).MaxLocal())
		assert.Equal(t, "stateless-worker(2)", NewStatelessWorker(2).String())
		// WithMaxLocal only applies to stateless workers
		assert.Zero(t, NewRandom().WithMaxLocal(4).MaxLocal())
		require.NoError(t, s.Validate())
	})
	t.Run("With custom", func(t *testing.T) {
		s := NewCustom("zone-aware")
		assert.Equal(t, "zone-aware", s.Name())
		assert.Equal(t, "custom(zone-aware)", s.String())
		require.NoError(t, s.Validate())
		require.ErrorIs(t, NewCustom(" ").Validate(), gerrors.ErrInvalidStrategy)
	})
	t.Run("With invalid parameters", func(t *testing.T) {
		require.ErrorIs(t, Strategy{kind: LoadBased}.Validate(), gerrors.ErrInvalidStrategy)
		require.ErrorIs(t, Strategy{kind: StrategyType(42)}.Validate(), gerrors.ErrInvalidStrategy)
	})
	t.Run("With equality", func(t *testing.T) {
		assert.True(t, NewLoadBased(2).Equals(NewLoadBased(0)))
		assert.False(t, NewLoadBased(2).Equals(NewLoadBased(3)))
		assert.False(t, NewCustom("a").Equals(NewCustom("b")))
	})
}
