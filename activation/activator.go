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

// Package activation hosts the grain activations of a silo.
//
// The Host executes the activation instructions the placement coordinators
// send over the transport. Single-activation grains are created at most once
// per silo no matter how many instructions arrive. Stateless workers get one
// new instance per instruction until the per-silo cap is reached.
package activation

import (
	"context"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/grain"
)

// Activator is the actor runtime: it creates and destroys activations
type Activator interface {
	// Activate creates an activation of identity on the local silo
	Activate(ctx context.Context, identity grain.Identity) error
	// Deactivate destroys an activation of identity on the local silo
	Deactivate(ctx context.Context, identity grain.Identity) error
}

// Counter tracks the number of local activations
type Counter interface {
	Increment()
	Decrement()
}

// Registrar removes directory records
type Registrar interface {
	Unregister(ctx context.Context, identity grain.Identity, expectedOwner address.Address) (bool, error)
}

// ActivatorFuncs adapts a pair of functions to Activator. Nil functions succeed.
type ActivatorFuncs struct {
	OnActivate   func(ctx context.Context, identity grain.Identity) error
	OnDeactivate func(ctx context.Context, identity grain.Identity) error
}

var _ Activator = ActivatorFuncs{}

// Activate calls OnActivate
func (f ActivatorFuncs) Activate(ctx context.Context, identity grain.Identity) error {
	if f.OnActivate == nil {
		return nil
	}
	return f.OnActivate(ctx, identity)
}

// Deactivate calls OnDeactivate
func (f ActivatorFuncs) Deactivate(ctx context.Context, identity grain.Identity) error {
	if f.OnDeactivate == nil {
		return nil
	}
	return f.OnDeactivate(ctx, identity)
}
