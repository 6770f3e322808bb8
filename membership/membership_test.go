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
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/log"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestMember(t *testing.T) {
	member := Member{Address: address.New("127.0.0.1", 3000, 1), Kinds: []string{"user"}}
	assert.True(t, member.Hosts("user"))
	assert.False(t, member.Hosts("order"))
	assert.True(t, member.Accepting())

	member.Kinds = nil
	assert.True(t, member.Hosts("order"))

	member.Draining = true
	assert.False(t, member.Accepting())

	meta, err := encode(member)
	require.NoError(t, err)
	decoded, err := decode(meta)
	require.NoError(t, err)
	assert.Equal(t, member.Address, decoded.Address)
	assert.True(t, decoded.Draining)

	_, err = decode([]byte("garbage"))
	require.Error(t, err)

	assert.Equal(t, "MemberJoined", MemberJoined.String())
	assert.Equal(t, "MemberLeft", MemberLeft.String())
	assert.Equal(t, "MemberUpdated", MemberUpdated.String())
	assert.Equal(t, "Unknown", EventType(42).String())
}

func TestStatic(t *testing.T) {
	a := Member{Address: address.New("127.0.0.1", 3001, 1)}
	b := Member{Address: address.New("127.0.0.1", 3000, 1)}

	provider := NewStatic(a)
	recorder := new(eventRecorder)
	cancel := provider.Subscribe(recorder.record)

	provider.Join(b)
	members := provider.Members()
	require.Len(t, members, 2)
	// sorted by address
	assert.Equal(t, b.Address, members[0].Address)
	assert.Equal(t, []address.Address{b.Address, a.Address}, Addresses(members))

	provider.SetDraining(a.Address, true)
	provider.SetFull(b.Address, true)
	provider.Leave(a.Address)
	// unknown addresses are ignored
	provider.Leave(a.Address)
	provider.SetDraining(a.Address, false)

	events := recorder.snapshot()
	require.Len(t, events, 4)
	assert.Equal(t, MemberJoined, events[0].Type)
	assert.Equal(t, MemberUpdated, events[1].Type)
	assert.True(t, events[1].Member.Draining)
	assert.Equal(t, MemberUpdated, events[2].Type)
	assert.True(t, events[2].Member.Full)
	assert.Equal(t, MemberLeft, events[3].Type)

	cancel()
	cancel()
	provider.Join(a)
	assert.Len(t, recorder.snapshot(), 4)

	// a second join of the same address is an update
	other := new(eventRecorder)
	provider.Subscribe(other.record)
	provider.Join(a)
	require.Len(t, other.snapshot(), 1)
	assert.Equal(t, MemberUpdated, other.snapshot()[0].Type)
}

func TestMemberlist(t *testing.T) {
	ctx := context.Background()
	ports := dynaport.Get(2)

	self1 := Member{Address: address.New("127.0.0.1", 4001, 1), Kinds: []string{"user"}}
	self2 := Member{Address: address.New("127.0.0.1", 4002, 1)}

	node1, err := NewMemberlist("127.0.0.1", ports[0], self1, WithLogger(log.DiscardLogger), WithName("node1"))
	require.NoError(t, err)
	require.NoError(t, node1.Start(ctx))

	recorder := new(eventRecorder)
	node1.Subscribe(recorder.record)

	node2, err := NewMemberlist("127.0.0.1", ports[1], self2,
		WithLogger(log.DiscardLogger),
		WithName("node2"),
		WithSeeds(node1.GossipAddress()),
		WithMaxJoinAttempts(3),
		WithJoinRetryInterval(100*time.Millisecond),
		WithJoinTimeout(5*time.Second),
		WithShutdownTimeout(time.Second))
	require.NoError(t, err)
	require.NoError(t, node2.Start(ctx))

	require.Eventually(t, func() bool {
		return len(node1.Members()) == 2 && len(node2.Members()) == 2
	}, 5*time.Second, 50*time.Millisecond)

	members := node2.Members()
	assert.Equal(t, self1.Address, members[0].Address)
	assert.Equal(t, []string{"user"}, members[0].Kinds)

	require.Eventually(t, func() bool {
		for _, event := range recorder.snapshot() {
			if event.Type == MemberJoined && event.Member.Address == self2.Address {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, node2.SetDraining(true))
	require.Eventually(t, func() bool {
		for _, member := range node1.Members() {
			if member.Address == self2.Address {
				return member.Draining
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, node2.Stop(ctx))
	require.Eventually(t, func() bool {
		for _, event := range recorder.snapshot() {
			if event.Type == MemberLeft && event.Member.Address == self2.Address {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, node1.Stop(ctx))
	require.NoError(t, node1.Stop(ctx))
}

func TestMemberlistInvalidSelf(t *testing.T) {
	_, err := NewMemberlist("127.0.0.1", 0, Member{})
	require.Error(t, err)
}

func TestMemberlistJoinFailure(t *testing.T) {
	ports := dynaport.Get(2)
	self := Member{Address: address.New("127.0.0.1", 4003, 1)}
	node, err := NewMemberlist("127.0.0.1", ports[0], self,
		WithLogger(log.DiscardLogger),
		WithSeeds(fmt.Sprintf("127.0.0.1:%d", ports[1])),
		WithMaxJoinAttempts(2),
		WithJoinRetryInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.Error(t, node.Start(context.Background()))
	assert.Len(t, node.Members(), 1)
}

func TestLogWriter(t *testing.T) {
	writer := newLogWriter(log.DiscardLogger)
	for _, line := range []string{
		"2024/01/01 [DEBUG] memberlist: probe",
		"2024/01/01 [INFO] memberlist: joined",
		"2024/01/01 [WARN] memberlist: slow",
		"2024/01/01 [ERR] memberlist: failed",
		"plain text",
	} {
		n, err := writer.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
}
