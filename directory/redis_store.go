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
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
)

// putIfAbsentScript registers an identity when no record exists.
// KEYS: record, sequence, owner index. ARGV: server, registered at, identity.
var putIfAbsentScript = redis.NewScript(`
local existing = redis.call('HMGET', KEYS[1], 'server', 'version', 'at')
if existing[1] then
  return {0, existing[1], existing[2], existing[3]}
end
local version = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'server', ARGV[1], 'version', version, 'at', ARGV[2])
redis.call('SADD', KEYS[3], ARGV[3])
return {1, ARGV[1], tostring(version), ARGV[2]}
`)

// deleteIfScript removes a record owned by the expected server.
// KEYS: record, owner index. ARGV: owner, identity.
var deleteIfScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'server') == ARGV[1] then
  redis.call('DEL', KEYS[1])
  redis.call('SREM', KEYS[2], ARGV[2])
  return 1
end
return 0
`)

// RedisStore keeps the directory in Redis and is shared by every silo.
// Registration and compare-and-delete run as Lua scripts, so each is atomic.
// All keys share a hash tag and live on the same cluster slot.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	closed *atomic.Bool
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore on top of client and checks the connection
func NewRedisStore(ctx context.Context, client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, fmt.Errorf("the [Prefix] is required")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{
		client: client,
		prefix: "{" + prefix + "}",
		closed: atomic.NewBool(false),
	}, nil
}

func (s *RedisStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return contextErr(ctx)
}

func (s *RedisStore) recordKey(identity grain.Identity) string {
	return s.prefix + ":grain:" + identity.String()
}

func (s *RedisStore) sequenceKey() string {
	return s.prefix + ":seq"
}

func (s *RedisStore) ownerKey(owner address.Address) string {
	return s.prefix + ":owner:" + owner.String()
}

// PutIfAbsent stores record unless the identity is already registered
func (s *RedisStore) PutIfAbsent(ctx context.Context, record Record) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	values, err := putIfAbsentScript.Run(ctx, s.client,
		[]string{s.recordKey(record.Identity), s.sequenceKey(), s.ownerKey(record.Server)},
		record.Server.String(), record.RegisteredAt.UnixNano(), record.Identity.String(),
	).Slice()
	if err != nil {
		return Record{}, false, err
	}

	if len(values) != 4 {
		return Record{}, false, fmt.Errorf("unexpected redis reply %v", values)
	}

	inserted, _ := values[0].(int64)
	stored, err := parseRedisRecord(record.Identity, values[1], values[2], values[3])
	if err != nil {
		return Record{}, false, err
	}
	return stored, inserted == 1, nil
}

// Get returns the record of an identity
func (s *RedisStore) Get(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}
	return s.get(ctx, identity)
}

func (s *RedisStore) get(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	values, err := s.client.HMGet(ctx, s.recordKey(identity), "server", "version", "at").Result()
	if err != nil {
		return Record{}, false, err
	}
	if len(values) != 3 || values[0] == nil {
		return Record{}, false, nil
	}

	record, err := parseRedisRecord(identity, values[0], values[1], values[2])
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// DeleteIf removes the record of identity when owned by owner
func (s *RedisStore) DeleteIf(ctx context.Context, identity grain.Identity, owner address.Address) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	deleted, err := deleteIfScript.Run(ctx, s.client,
		[]string{s.recordKey(identity), s.ownerKey(owner)},
		owner.String(), identity.String(),
	).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// DeleteOwnedBy removes every record owned by owner using the owner index
func (s *RedisStore) DeleteOwnedBy(ctx context.Context, owner address.Address) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	members, err := s.client.SMembers(ctx, s.ownerKey(owner)).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, member := range members {
		identity, err := grain.Parse(member)
		if err != nil {
			s.client.SRem(ctx, s.ownerKey(owner), member)
			continue
		}
		ok, err := s.DeleteIf(ctx, identity, owner)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		} else {
			// the identity moved to another owner
			s.client.SRem(ctx, s.ownerKey(owner), member)
		}
	}
	return deleted, nil
}

// Range scans the record keys and calls fn for every record
func (s *RedisStore) Range(ctx context.Context, fn func(Record) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	keyPrefix := s.prefix + ":grain:"
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		identity, err := grain.Parse(strings.TrimPrefix(iter.Val(), keyPrefix))
		if err != nil {
			continue
		}
		record, found, err := s.get(ctx, identity)
		if err != nil {
			return err
		}
		if found && !fn(record) {
			return nil
		}
	}
	return iter.Err()
}

// Distributed returns true: every silo shares the same Redis keyspace
func (s *RedisStore) Distributed() bool {
	return true
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func parseRedisRecord(identity grain.Identity, server, version, registeredAt any) (Record, error) {
	serverText, _ := server.(string)
	addr, err := address.Parse(serverText)
	if err != nil {
		return Record{}, err
	}

	versionText, _ := version.(string)
	v, err := strconv.ParseUint(versionText, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid record version (%v): %w", version, err)
	}

	atText, _ := registeredAt.(string)
	nanos, err := strconv.ParseInt(atText, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid record time (%v): %w", registeredAt, err)
	}

	return Record{
		Identity:     identity,
		Server:       addr,
		Version:      v,
		RegisteredAt: time.Unix(0, nanos).UTC(),
	}, nil
}
