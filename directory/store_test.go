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
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
)

var (
	addrA = address.New("127.0.0.1", 3000, 1)
	addrB = address.New("127.0.0.1", 3001, 1)
	addrC = address.New("127.0.0.1", 3002, 1)
)

func newRecord(identity grain.Identity, server address.Address) Record {
	return Record{
		Identity:     identity,
		Server:       server,
		RegisteredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// testStore runs the behaviours every Store implementation must share
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("With register if absent", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		identity := grain.NewIdentity("user", "alice")

		stored, inserted, err := store.PutIfAbsent(ctx, newRecord(identity, addrA))
		require.NoError(t, err)
		require.True(t, inserted)
		assert.Equal(t, addrA, stored.Server)
		assert.NotZero(t, stored.Version)
		assert.True(t, identity.Equals(stored.Identity))

		existing, inserted, err := store.PutIfAbsent(ctx, newRecord(identity, addrB))
		require.NoError(t, err)
		require.False(t, inserted)
		assert.Equal(t, addrA, existing.Server)
		assert.Equal(t, stored.Version, existing.Version)

		got, found, err := store.Get(ctx, identity)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, addrA, got.Server)

		_, found, err = store.Get(ctx, grain.NewIdentity("user", "bob"))
		require.NoError(t, err)
		assert.False(t, found)
	})
	t.Run("With versions growing across registrations", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		identity := grain.NewIdentity("user", "carol")

		first, _, err := store.PutIfAbsent(ctx, newRecord(identity, addrA))
		require.NoError(t, err)
		deleted, err := store.DeleteIf(ctx, identity, addrA)
		require.NoError(t, err)
		require.True(t, deleted)

		second, inserted, err := store.PutIfAbsent(ctx, newRecord(identity, addrB))
		require.NoError(t, err)
		require.True(t, inserted)
		assert.Greater(t, second.Version, first.Version)
	})
	t.Run("With compare and delete", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		identity := grain.NewIdentity("user", "dave")

		_, _, err := store.PutIfAbsent(ctx, newRecord(identity, addrA))
		require.NoError(t, err)

		deleted, err := store.DeleteIf(ctx, identity, addrB)
		require.NoError(t, err)
		assert.False(t, deleted)

		// another generation on the same endpoint is another silo
		deleted, err = store.DeleteIf(ctx, identity, address.New("127.0.0.1", 3000, 2))
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = store.DeleteIf(ctx, identity, addrA)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.DeleteIf(ctx, identity, addrA)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
	t.Run("With concurrent registrations", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		identity := grain.NewIdentity("user", "eve")

		const candidates = 16
		accepted := atomic.NewInt32(0)
		winners := make([]address.Address, candidates)
		var wg sync.WaitGroup
		for i := range candidates {
			wg.Add(1)
			go func() {
				defer wg.Done()
				stored, inserted, err := store.PutIfAbsent(ctx, newRecord(identity, address.New("10.0.0.1", 4000+i, 1)))
				assert.NoError(t, err)
				if inserted {
					accepted.Inc()
				}
				winners[i] = stored.Server
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, accepted.Load())
		for _, winner := range winners {
			assert.Equal(t, winners[0], winner)
		}
	})
	t.Run("With concurrent compare and delete", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		identity := grain.NewIdentity("user", "frank")
		_, _, err := store.PutIfAbsent(ctx, newRecord(identity, addrA))
		require.NoError(t, err)

		deletions := atomic.NewInt32(0)
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				deleted, err := store.DeleteIf(ctx, identity, addrA)
				assert.NoError(t, err)
				if deleted {
					deletions.Inc()
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, deletions.Load())
	})
	t.Run("With owner cleanup and range", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		for i := range 5 {
			_, _, err := store.PutIfAbsent(ctx, newRecord(grain.NewIdentity("order", fmt.Sprintf("a-%d", i)), addrA))
			require.NoError(t, err)
		}
		for i := range 3 {
			_, _, err := store.PutIfAbsent(ctx, newRecord(grain.NewIdentity("order", fmt.Sprintf("b-%d", i)), addrB))
			require.NoError(t, err)
		}

		count := 0
		require.NoError(t, store.Range(ctx, func(Record) bool {
			count++
			return true
		}))
		assert.Equal(t, 8, count)

		// range stops early
		count = 0
		require.NoError(t, store.Range(ctx, func(Record) bool {
			count++
			return false
		}))
		assert.Equal(t, 1, count)

		deleted, err := store.DeleteOwnedBy(ctx, addrA)
		require.NoError(t, err)
		assert.Equal(t, 5, deleted)

		deleted, err = store.DeleteOwnedBy(ctx, addrC)
		require.NoError(t, err)
		assert.Zero(t, deleted)

		require.NoError(t, store.Range(ctx, func(record Record) bool {
			assert.Equal(t, addrB, record.Server)
			return true
		}))
	})
	t.Run("With a cancelled context", func(t *testing.T) {
		store := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := store.PutIfAbsent(ctx, newRecord(grain.NewIdentity("user", "gina"), addrA))
		require.ErrorIs(t, err, context.Canceled)
	})
	t.Run("With a closed store", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
		_, _, err := store.Get(context.Background(), grain.NewIdentity("user", "henry"))
		require.ErrorIs(t, err, gerrors.ErrStoreClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		store := NewMemoryStore()
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
	assert.False(t, NewMemoryStore().Distributed())
}

func TestBoltStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		path := filepath.Join(t.TempDir(), "directory.db")
		store, err := NewBoltStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())
		t.Cleanup(func() { _ = store.Close() })
		return store
	})

	t.Run("With records surviving a reopen", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "directory.db")
		store, err := NewBoltStore(path)
		require.NoError(t, err)
		assert.False(t, store.Distributed())

		identity := grain.NewIdentity("user", "ivan")
		stored, _, err := store.PutIfAbsent(ctx, newRecord(identity, addrA))
		require.NoError(t, err)
		require.NoError(t, store.Close())

		store, err = NewBoltStore(path)
		require.NoError(t, err)
		defer store.Close()
		got, found, err := store.Get(ctx, identity)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, stored.Server, got.Server)
		assert.Equal(t, stored.Version, got.Version)
		assert.True(t, stored.RegisteredAt.Equal(got.RegisteredAt))
	})
}
