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
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/hash"
)

const memoryShards = 64

type memoryShard struct {
	mu      sync.RWMutex
	records map[grain.Identity]Record
}

// MemoryStore keeps the partition records in memory.
// Records are spread over lock-striped shards keyed by the identity hash, so
// registrations of different identities rarely contend.
type MemoryStore struct {
	shards  [memoryShards]*memoryShard
	hasher  hash.Hasher
	version *atomic.Uint64
	closed  *atomic.Bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		hasher:  hash.DefaultHasher(),
		version: atomic.NewUint64(0),
		closed:  atomic.NewBool(false),
	}
	for i := range store.shards {
		store.shards[i] = &memoryShard{records: make(map[grain.Identity]Record)}
	}
	return store
}

func (s *MemoryStore) shard(identity grain.Identity) *memoryShard {
	return s.shards[s.hasher.HashCode(identity.Bytes())%memoryShards]
}

func (s *MemoryStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return contextErr(ctx)
}

// PutIfAbsent stores record unless the identity is already registered
func (s *MemoryStore) PutIfAbsent(ctx context.Context, record Record) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	shard := s.shard(record.Identity)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.records[record.Identity]; ok {
		return existing, false, nil
	}

	record.Version = s.version.Inc()
	shard.records[record.Identity] = record
	return record, true, nil
}

// Get returns the record of an identity
func (s *MemoryStore) Get(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	shard := s.shard(identity)
	shard.mu.RLock()
	record, ok := shard.records[identity]
	shard.mu.RUnlock()
	return record, ok, nil
}

// DeleteIf removes the record of identity when owned by owner
func (s *MemoryStore) DeleteIf(ctx context.Context, identity grain.Identity, owner address.Address) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	shard := s.shard(identity)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.records[identity]; ok && existing.Server == owner {
		delete(shard.records, identity)
		return true, nil
	}
	return false, nil
}

// DeleteOwnedBy removes every record owned by owner
func (s *MemoryStore) DeleteOwnedBy(ctx context.Context, owner address.Address) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	deleted := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for identity, record := range shard.records {
			if record.Server == owner {
				delete(shard.records, identity)
				deleted++
			}
		}
		shard.mu.Unlock()
	}
	return deleted, nil
}

// Range calls fn for every record. Each shard is copied before fn is called.
func (s *MemoryStore) Range(ctx context.Context, fn func(Record) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	for _, shard := range s.shards {
		shard.mu.RLock()
		records := make([]Record, 0, len(shard.records))
		for _, record := range shard.records {
			records = append(records, record)
		}
		shard.mu.RUnlock()

		for _, record := range records {
			if !fn(record) {
				return nil
			}
		}
	}
	return nil
}

// Distributed returns false
func (s *MemoryStore) Distributed() bool {
	return false
}

// Close drops every record
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	for _, shard := range s.shards {
		shard.mu.Lock()
		clear(shard.records)
		shard.mu.Unlock()
	}
	return nil
}
