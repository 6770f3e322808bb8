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
	"slices"
	"strings"
	"sync"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/internal/ring"
)

// transition tracks the previous partition owners that have not handed their
// records over to this silo since the last ring change. While a previous
// owner is pending, a miss on the local partition is answered by that owner.
type transition struct {
	mu      sync.Mutex
	view    string
	history []*ring.Ring
	pending map[address.Address]struct{}
	// acks holds the ring view each silo handed off under
	acks map[address.Address]string
}

func newTransition() *transition {
	return &transition{
		pending: make(map[address.Address]struct{}),
		acks:    make(map[address.Address]string),
	}
}

// begin records a ring change from previous to current
func (t *transition) begin(self address.Address, previous *ring.Ring, current []address.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.view = viewOf(current)
	if previous.Size() == 0 {
		return
	}

	t.history = append(t.history, previous)
	t.pending = make(map[address.Address]struct{})
	for _, member := range previous.Members() {
		if member == self || !slices.Contains(current, member) || t.acks[member] == t.view {
			continue
		}
		t.pending[member] = struct{}{}
	}
	t.settle()
}

// acknowledge records a handoff sent by from under the ring view
func (t *transition) acknowledge(from address.Address, view string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.acks[from] = view
	if view == t.view {
		delete(t.pending, from)
		t.settle()
	}
}

// forget drops a departed silo
func (t *transition) forget(member address.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.acks, member)
	delete(t.pending, member)
	t.settle()
}

// previousOwners returns the pending silos that owned key in an earlier
// ring view, most recent view first.
func (t *transition) previousOwners(self address.Address, key []byte) []address.Address {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return nil
	}

	var owners []address.Address
	for i := len(t.history) - 1; i >= 0; i-- {
		owner, ok := t.history[i].Owner(key)
		if !ok || owner == self || slices.Contains(owners, owner) {
			continue
		}
		if _, pending := t.pending[owner]; pending {
			owners = append(owners, owner)
		}
	}
	return owners
}

// active reports whether a previous owner has not handed off yet
func (t *transition) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

func (t *transition) settle() {
	if len(t.pending) == 0 {
		t.history = nil
	}
}

// viewOf identifies a ring by its sorted members
func viewOf(members []address.Address) string {
	names := make([]string, len(members))
	for i, member := range members {
		names[i] = member.String()
	}
	return strings.Join(names, ",")
}
