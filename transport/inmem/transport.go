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

// Package inmem provides an in-process transport. A Network connects any
// number of silos living in the same process and can simulate partitions
// and crashed silos.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/transport"
)

type link struct {
	a address.Address
	b address.Address
}

func newLink(a, b address.Address) link {
	if b.Less(a) {
		a, b = b, a
	}
	return link{a: a, b: b}
}

// Network is an in-process network of transports
type Network struct {
	mu         sync.RWMutex
	nodes      map[address.Address]*Transport
	partitions map[link]struct{}
	isolated   map[address.Address]struct{}
	serialize  bool
	requests   *atomic.Int64
}

// NetworkOption configures a Network
type NetworkOption func(*Network)

// WithSerialization makes the network gob-encode every payload and reply,
// surfacing unregistered message types the way a real transport would.
func WithSerialization() NetworkOption {
	return func(n *Network) {
		n.serialize = true
	}
}

// NewNetwork creates an empty Network
func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{
		nodes:      make(map[address.Address]*Transport),
		partitions: make(map[link]struct{}),
		isolated:   make(map[address.Address]struct{}),
		requests:   atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Transport returns the transport of the given silo, creating it on first use
func (n *Network) Transport(addr address.Address) *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	if node, ok := n.nodes[addr]; ok {
		return node
	}
	node := &Transport{
		network:  n,
		addr:     addr,
		handlers: make(map[string]transport.Handler),
		started:  atomic.NewBool(false),
	}
	n.nodes[addr] = node
	return node
}

// Partition cuts the link between a and b in both directions
func (n *Network) Partition(a, b address.Address) {
	n.mu.Lock()
	n.partitions[newLink(a, b)] = struct{}{}
	n.mu.Unlock()
}

// Heal restores the link between a and b
func (n *Network) Heal(a, b address.Address) {
	n.mu.Lock()
	delete(n.partitions, newLink(a, b))
	n.mu.Unlock()
}

// Isolate cuts every link of addr
func (n *Network) Isolate(addr address.Address) {
	n.mu.Lock()
	n.isolated[addr] = struct{}{}
	n.mu.Unlock()
}

// HealAll removes every partition and isolation
func (n *Network) HealAll() {
	n.mu.Lock()
	n.partitions = make(map[link]struct{})
	n.isolated = make(map[address.Address]struct{})
	n.mu.Unlock()
}

// Requests returns the number of requests routed so far
func (n *Network) Requests() int64 {
	return n.requests.Load()
}

func (n *Network) route(from, to address.Address) (*Transport, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if _, ok := n.isolated[from]; ok {
		return nil, fmt.Errorf("%s is isolated", from)
	}
	if _, ok := n.isolated[to]; ok {
		return nil, fmt.Errorf("%s is isolated", to)
	}
	if _, ok := n.partitions[newLink(from, to)]; ok {
		return nil, fmt.Errorf("%s and %s are partitioned", from, to)
	}

	node, ok := n.nodes[to]
	if !ok || !node.started.Load() {
		return nil, fmt.Errorf("no silo listening on %s", to)
	}
	return node, nil
}

// Transport is the in-process transport of a single silo
type Transport struct {
	network  *Network
	addr     address.Address
	mu       sync.RWMutex
	handlers map[string]transport.Handler
	started  *atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// Address returns the silo address
func (t *Transport) Address() address.Address {
	return t.addr
}

// Handle registers a route handler
func (t *Transport) Handle(route string, handler transport.Handler) {
	t.mu.Lock()
	t.handlers[route] = handler
	t.mu.Unlock()
}

// Start starts accepting requests
func (t *Transport) Start(context.Context) error {
	t.started.Store(true)
	return nil
}

// Stop stops accepting requests. Peers see the silo as unreachable.
func (t *Transport) Stop(context.Context) error {
	t.started.Store(false)
	return nil
}

// Request delivers the request to the target silo handler
func (t *Transport) Request(ctx context.Context, to address.Address, route string, request any) (any, error) {
	if !t.started.Load() {
		return nil, gerrors.ErrTransportNotStarted
	}

	t.network.requests.Inc()
	target, err := t.network.route(t.addr, to)
	if err != nil {
		return nil, gerrors.NewUnreachableTargetError(to.String(), err)
	}

	target.mu.RLock()
	handler, ok := target.handlers[route]
	target.mu.RUnlock()
	if !ok {
		code, message := transport.EncodeError(gerrors.NewErrUnknownRoute(route))
		return nil, transport.DecodeError(code, message)
	}

	payload, err := t.network.copy(request)
	if err != nil {
		return nil, err
	}

	type result struct {
		response any
		err      error
	}

	resultCh := make(chan result, 1)
	go func() {
		response, err := handler(ctx, t.addr, payload)
		resultCh <- result{response: response, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, gerrors.NewUnreachableTargetError(to.String(), ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			code, message := transport.EncodeError(res.err)
			return nil, transport.DecodeError(code, message)
		}
		return t.network.copy(res.response)
	}
}

// copy round-trips v through the wire codec when serialization is enabled
func (n *Network) copy(v any) (any, error) {
	if !n.serialize || v == nil {
		return v, nil
	}
	bytea, err := transport.Marshal(&transport.Reply{Payload: v})
	if err != nil {
		return nil, err
	}
	out := new(transport.Reply)
	if err := transport.Unmarshal(bytea, out); err != nil {
		return nil, err
	}
	return out.Payload, nil
}
