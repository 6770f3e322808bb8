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

package membership

import (
	"slices"
	"sync"
	"time"

	"github.com/tochemey/grainplacement/address"
)

type subscribers struct {
	mu        sync.Mutex
	deliverMu sync.Mutex
	next      int
	callbacks map[int]func(Event)
}

func newSubscribers() *subscribers {
	return &subscribers{callbacks: make(map[int]func(Event))}
}

func (s *subscribers) add(callback func(Event)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.callbacks[id] = callback
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.callbacks, id)
			s.mu.Unlock()
		})
	}
}

// notify delivers events one at a time, in order
func (s *subscribers) notify(event Event) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	ids := make([]int, 0, len(s.callbacks))
	for id := range s.callbacks {
		ids = append(ids, id)
	}
	callbacks := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		callbacks = append(callbacks, s.callbacks[id])
	}
	s.mu.Unlock()

	for _, callback := range callbacks {
		callback(event)
	}
}

// Static is a programmatic membership provider. Tests and single process
// deployments drive it through Join, Leave and Update.
type Static struct {
	mu      sync.RWMutex
	members map[address.Address]Member
	subs    *subscribers
}

var _ Provider = (*Static)(nil)

// NewStatic creates a Static provider seeded with the given members
func NewStatic(members ...Member) *Static {
	s := &Static{
		members: make(map[address.Address]Member, len(members)),
		subs:    newSubscribers(),
	}
	for _, member := range members {
		s.members[member.Address] = member
	}
	return s
}

// Members returns the members sorted by address
func (s *Static) Members() []Member {
	s.mu.RLock()
	members := make([]Member, 0, len(s.members))
	for _, member := range s.members {
		members = append(members, member)
	}
	s.mu.RUnlock()
	sortMembers(members)
	return members
}

// Subscribe registers a membership callback
func (s *Static) Subscribe(callback func(Event)) func() {
	return s.subs.add(callback)
}

// Join adds a member, or updates it when already present
func (s *Static) Join(member Member) {
	s.mu.Lock()
	_, exists := s.members[member.Address]
	s.members[member.Address] = member
	s.mu.Unlock()

	eventType := MemberJoined
	if exists {
		eventType = MemberUpdated
	}
	s.subs.notify(Event{Type: eventType, Member: member, Time: time.Now().UTC()})
}

// Leave removes a member
func (s *Static) Leave(addr address.Address) {
	s.mu.Lock()
	member, exists := s.members[addr]
	delete(s.members, addr)
	s.mu.Unlock()

	if exists {
		s.subs.notify(Event{Type: MemberLeft, Member: member, Time: time.Now().UTC()})
	}
}

// SetDraining flags a member as draining
func (s *Static) SetDraining(addr address.Address, draining bool) {
	s.update(addr, func(m *Member) { m.Draining = draining })
}

// SetFull flags a member as full
func (s *Static) SetFull(addr address.Address, full bool) {
	s.update(addr, func(m *Member) { m.Full = full })
}

func (s *Static) update(addr address.Address, fn func(*Member)) {
	s.mu.Lock()
	member, exists := s.members[addr]
	if exists {
		fn(&member)
		s.members[addr] = member
	}
	s.mu.Unlock()

	if exists {
		s.subs.notify(Event{Type: MemberUpdated, Member: member, Time: time.Now().UTC()})
	}
}
