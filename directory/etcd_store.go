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
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/internal/validation"
)

// EtcdConfig configures the etcd store
type EtcdConfig struct {
	// Endpoints lists the etcd endpoints
	Endpoints []string
	// Prefix namespaces every key of the directory
	Prefix string
	// DialTimeout bounds the connection
	DialTimeout time.Duration
	// Username and Password authenticate the client when set
	Username string
	Password string
}

// Validate checks the configuration
func (x EtcdConfig) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(len(x.Endpoints) > 0, "Endpoints is required").
		AddValidator(validation.NewEmptyStringValidator("Prefix", x.Prefix)).
		Validate()
}

// EtcdStore keeps the directory in etcd. The store is shared by every silo:
// registrations are etcd transactions comparing the key create revision,
// and the create revision doubles as the record version.
type EtcdStore struct {
	client *clientv3.Client
	kv     clientv3.KV
	closed *atomic.Bool
}

var _ Store = (*EtcdStore)(nil)

// NewEtcdStore connects to etcd
func NewEtcdStore(ctx context.Context, config *EtcdConfig) (*EtcdStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		Username:    config.Username,
		Password:    config.Password,
	})
	if err != nil {
		return nil, err
	}

	statusCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if _, err := client.Status(statusCtx, config.Endpoints[0]); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdStore{
		client: client,
		kv:     namespace.NewKV(client.KV, config.Prefix),
		closed: atomic.NewBool(false),
	}, nil
}

func (s *EtcdStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return contextErr(ctx)
}

func etcdKey(identity grain.Identity) string {
	return "/" + identity.String()
}

func recordFromKV(kv []byte, createRevision int64) (Record, error) {
	record, err := decodeRecord(kv)
	if err != nil {
		return Record{}, err
	}
	record.Version = uint64(createRevision)
	return record, nil
}

// PutIfAbsent stores record unless the identity is already registered
func (s *EtcdStore) PutIfAbsent(ctx context.Context, record Record) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	record.Version = 0
	data, err := encodeRecord(record)
	if err != nil {
		return Record{}, false, err
	}

	key := etcdKey(record.Identity)
	resp, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return Record{}, false, err
	}

	if resp.Succeeded {
		record.Version = uint64(resp.Header.Revision)
		return record, true, nil
	}

	kvs := resp.Responses[0].GetResponseRange().GetKvs()
	if len(kvs) == 0 {
		// deleted between the compare and the get
		return s.PutIfAbsent(ctx, record)
	}

	existing, err := recordFromKV(kvs[0].Value, kvs[0].CreateRevision)
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

// Get returns the record of an identity
func (s *EtcdStore) Get(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	resp, err := s.kv.Get(ctx, etcdKey(identity))
	if err != nil {
		return Record{}, false, err
	}
	if len(resp.Kvs) == 0 {
		return Record{}, false, nil
	}

	record, err := recordFromKV(resp.Kvs[0].Value, resp.Kvs[0].CreateRevision)
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// DeleteIf removes the record of identity when owned by owner.
// The delete is guarded by the key mod revision read beforehand.
func (s *EtcdStore) DeleteIf(ctx context.Context, identity grain.Identity, owner address.Address) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	key := etcdKey(identity)
	resp, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if len(resp.Kvs) == 0 {
		return false, nil
	}
	return s.deleteIfOwned(ctx, key, resp.Kvs[0].Value, resp.Kvs[0].ModRevision, owner)
}

func (s *EtcdStore) deleteIfOwned(ctx context.Context, key string, value []byte, modRevision int64, owner address.Address) (bool, error) {
	existing, err := decodeRecord(value)
	if err != nil {
		return false, err
	}
	if existing.Server != owner {
		return false, nil
	}

	txn, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", modRevision)).
		Then(clientv3.OpDelete(key)).
		Commit()
	if err != nil {
		return false, err
	}
	return txn.Succeeded, nil
}

// DeleteOwnedBy removes every record owned by owner
func (s *EtcdStore) DeleteOwnedBy(ctx context.Context, owner address.Address) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	resp, err := s.kv.Get(ctx, "/", clientv3.WithPrefix())
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, kv := range resp.Kvs {
		ok, err := s.deleteIfOwned(ctx, string(kv.Key), kv.Value, kv.ModRevision, owner)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// Range calls fn for every record
func (s *EtcdStore) Range(ctx context.Context, fn func(Record) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	resp, err := s.kv.Get(ctx, "/", clientv3.WithPrefix())
	if err != nil {
		return err
	}

	for _, kv := range resp.Kvs {
		record, err := recordFromKV(kv.Value, kv.CreateRevision)
		if err != nil {
			return err
		}
		if !fn(record) {
			return nil
		}
	}
	return nil
}

// Distributed returns true: every silo shares the same etcd keyspace
func (s *EtcdStore) Distributed() bool {
	return true
}

// Close closes the etcd client
func (s *EtcdStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}
