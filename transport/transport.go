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

// Package transport defines the request/reply channel silos use to reach
// each other: directory partition calls, activation instructions and load
// gossip all travel through it.
package transport

import (
	"context"

	"github.com/tochemey/grainplacement/address"
)

// Handler processes a request received from another silo
type Handler func(ctx context.Context, from address.Address, request any) (any, error)

// Transport is a request/reply channel between silos.
//
// Request returns *errors.UnreachableTargetError when the target cannot be
// reached or does not answer in time. Errors returned by the remote handler
// come back as errors matching the same sentinel with errors.Is.
type Transport interface {
	// Address returns the local silo address
	Address() address.Address
	// Handle registers the handler of a route. It must be called before Start.
	Handle(route string, handler Handler)
	// Request sends a request to the given silo and waits for its reply
	Request(ctx context.Context, to address.Address, route string, request any) (any, error)
	// Start starts serving the registered routes
	Start(ctx context.Context) error
	// Stop stops serving
	Stop(ctx context.Context) error
}
