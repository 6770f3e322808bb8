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

package activation

import (
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/transport"
)

// Activation routes
const (
	RouteActivate   = "activation.activate"
	RouteDeactivate = "activation.deactivate"
)

// ActivateRequest instructs a silo to create an activation.
// MaxLocal caps the stateless worker instances when MultiActivation is set;
// zero means the host default.
type ActivateRequest struct {
	Identity        grain.Identity
	MultiActivation bool
	MaxLocal        int
}

// ActivateResponse reports whether a new activation was created
type ActivateResponse struct {
	Created bool
}

// DeactivateRequest instructs a silo to destroy an activation
type DeactivateRequest struct {
	Identity grain.Identity
}

// DeactivateResponse reports whether an activation was destroyed
type DeactivateResponse struct {
	Deactivated bool
}

func init() {
	transport.Register(ActivateRequest{})
	transport.Register(ActivateResponse{})
	transport.Register(DeactivateRequest{})
	transport.Register(DeactivateResponse{})
}
