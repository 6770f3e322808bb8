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

// Package membership exposes the live view of the cluster to the placement
// subsystem. Failure detection itself is delegated to the provider.
package membership

import (
	"bytes"
	"encoding/gob"
	"slices"
	"time"

	"github.com/tochemey/grainplacement/address"
)

// Member describes a live silo as seen by the placement subsystem
type Member struct {
	// Address is the silo incarnation address
	Address address.Address
	// Kinds lists the actor kinds hosted by the silo. Empty means every kind.
	Kinds []string
	// Draining is set when the silo is shutting down and must not receive new activations
	Draining bool
	// Full is set when the silo reached its activation capacity
	Full bool
}

// Hosts reports whether the member accepts activations of the given kind
func (m Member) Hosts(kind string) bool {
	return len(m.Kinds) == 0 || slices.Contains(m.Kinds, kind)
}

// Accepting reports whether the member accepts new activations at all
func (m Member) Accepting() bool {
	return !m.Draining && !m.Full
}

// EventType defines the membership event type
type EventType int

const (
	MemberJoined EventType = iota
	MemberLeft
	MemberUpdated
)

// String returns the string representation of the event type
func (x EventType) String() string {
	switch x {
	case MemberJoined:
		return "MemberJoined"
	case MemberLeft:
		return "MemberLeft"
	case MemberUpdated:
		return "MemberUpdated"
	default:
		return "Unknown"
	}
}

// Event is a membership change notification
type Event struct {
	Type   EventType
	Member Member
	Time   time.Time
}

// Provider is the narrow view of the membership service
type Provider interface {
	// Members returns the current live members, the local silo included
	Members() []Member
	// Subscribe registers a callback invoked for every membership change.
	// Callbacks are invoked sequentially. The returned function cancels the subscription.
	Subscribe(callback func(Event)) (cancel func())
}

// Addresses extracts the addresses of the given members
func Addresses(members []Member) []address.Address {
	addrs := make([]address.Address, 0, len(members))
	for _, member := range members {
		addrs = append(addrs, member.Address)
	}
	return addrs
}

func sortMembers(members []Member) {
	slices.SortFunc(members, func(a, b Member) int {
		return a.Address.Compare(b.Address)
	})
}

// encode serializes a member into memberlist node metadata
func encode(member Member) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(member); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode parses memberlist node metadata
func decode(meta []byte) (Member, error) {
	var member Member
	if err := gob.NewDecoder(bytes.NewReader(meta)).Decode(&member); err != nil {
		return Member{}, err
	}
	return member, nil
}
