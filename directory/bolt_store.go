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
	"os"
	"time"

	"go.uber.org/atomic"
	bbolt "go.etcd.io/bbolt"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
)

const (
	boltFileMode   os.FileMode = 0o600
	boltBucketName             = "grain_directory"
)

var boltTimeout = 5 * time.Second

// BoltStore persists the partition records in a bbolt database, so a silo
// restarting on the same file keeps the records it owned.
//
// bbolt serializes write transactions, which makes PutIfAbsent and DeleteIf
// atomic. Record versions come from the bucket sequence.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
	closed *atomic.Bool
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the bbolt database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, boltFileMode, &bbolt.Options{Timeout: boltTimeout, NoGrowSync: true})
	if err != nil {
		return nil, fmt.Errorf("directory: opening boltdb: %w", err)
	}

	bucket := []byte(boltBucketName)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("directory: initializing boltdb bucket: %w", err)
	}

	return &BoltStore{db: db, bucket: bucket, closed: atomic.NewBool(false)}, nil
}

func (s *BoltStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return contextErr(ctx)
}

// PutIfAbsent stores record unless the identity is already registered
func (s *BoltStore) PutIfAbsent(ctx context.Context, record Record) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	var (
		stored   Record
		inserted bool
	)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		key := record.Identity.Bytes()
		if raw := bucket.Get(key); raw != nil {
			existing, err := decodeRecord(raw)
			if err != nil {
				return err
			}
			stored = existing
			return nil
		}

		version, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		record.Version = version
		data, err := encodeRecord(record)
		if err != nil {
			return err
		}

		if err := bucket.Put(key, data); err != nil {
			return err
		}
		stored, inserted = record, true
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	return stored, inserted, nil
}

// Get returns the record of an identity
func (s *BoltStore) Get(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	var (
		record Record
		found  bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get(identity.Bytes())
		if raw == nil {
			return nil
		}
		var err error
		record, err = decodeRecord(raw)
		found = err == nil
		return err
	})
	return record, found, err
}

// DeleteIf removes the record of identity when owned by owner
func (s *BoltStore) DeleteIf(ctx context.Context, identity grain.Identity, owner address.Address) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		key := identity.Bytes()
		raw := bucket.Get(key)
		if raw == nil {
			return nil
		}
		existing, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if existing.Server != owner {
			return nil
		}
		deleted = true
		return bucket.Delete(key)
	})
	return deleted, err
}

// DeleteOwnedBy removes every record owned by owner
func (s *BoltStore) DeleteOwnedBy(ctx context.Context, owner address.Address) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		var keys [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			record, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if record.Server == owner {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, key := range keys {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	return deleted, err
}

// Range calls fn for every record within a read transaction
func (s *BoltStore) Range(ctx context.Context, fn func(Record) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(s.bucket).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			record, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if !fn(record) {
				return nil
			}
		}
		return nil
	})
}

// Distributed returns false: the file belongs to a single silo
func (s *BoltStore) Distributed() bool {
	return false
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Close closes the database
func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
