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
	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/transport"
)

// Transport routes served by the partition owners
const (
	RouteRegister   = "directory.register"
	RouteLookup     = "directory.lookup"
	RouteUnregister = "directory.unregister"
	RouteHandoff    = "directory.handoff"
)

// RegisterRequest asks the partition owner to register a record
type RegisterRequest struct {
	Record Record
}

// RegisterResponse carries the registration outcome
type RegisterResponse struct {
	Registration Registration
}

// LookupRequest asks the partition owner for a record.
// A Local lookup reads the receiver's store only.
type LookupRequest struct {
	Identity grain.Identity
	Local    bool
}

// LookupResponse carries the lookup outcome
type LookupResponse struct {
	Record Record
	Found  bool
}

// UnregisterRequest asks the partition owner to remove a record owned by Owner
type UnregisterRequest struct {
	Identity grain.Identity
	Owner    address.Address
	Local    bool
}

// UnregisterResponse carries the unregistration outcome
type UnregisterResponse struct {
	Deleted bool
}

// HandoffRequest moves records to their new partition owner.
// View identifies the ring the sender computed the partitions with.
type HandoffRequest struct {
	Records []Record
	View    string
}

// HandoffResponse reports how many handed off records the receiver stored
type HandoffResponse struct {
	Accepted int
}

func init() {
	transport.Register(RegisterRequest{})
	transport.Register(RegisterResponse{})
	transport.Register(LookupRequest{})
	transport.Register(LookupResponse{})
	transport.Register(UnregisterRequest{})
	transport.Register(UnregisterResponse{})
	transport.Register(HandoffRequest{})
	transport.Register(HandoffResponse{})
}
