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
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/grain"
)

// Record binds an identity to the silo hosting its single activation
type Record struct {
	Identity grain.Identity
	Server   address.Address
	// Version is assigned by the store and grows with every accepted registration
	Version      uint64
	RegisteredAt time.Time
}

// Registration is the outcome of a Register call.
// When Accepted is false, Record holds the existing registration.
type Registration struct {
	Record   Record
	Accepted bool
}

// Store persists the records of a directory partition. PutIfAbsent and
// DeleteIf must be atomic per identity.
type Store interface {
	// PutIfAbsent stores record unless the identity is already registered.
	// It returns the stored record and whether it was inserted.
	PutIfAbsent(ctx context.Context, record Record) (Record, bool, error)
	// Get returns the record of an identity
	Get(ctx context.Context, identity grain.Identity) (Record, bool, error)
	// DeleteIf removes the record of identity only when it is owned by owner
	DeleteIf(ctx context.Context, identity grain.Identity, owner address.Address) (bool, error)
	// DeleteOwnedBy removes every record owned by owner and returns how many were removed
	DeleteOwnedBy(ctx context.Context, owner address.Address) (int, error)
	// Range calls fn for every record until fn returns false
	Range(ctx context.Context, fn func(Record) bool) error
	// Distributed reports whether the store is shared by every silo
	Distributed() bool
	// Close releases the store resources
	Close() error
}

func encodeRecord(record Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (Record, error) {
	var record Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&record); err != nil {
		return Record{}, err
	}
	return record, nil
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
