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

// Package address defines the identity of a cluster member (a silo).
//
// A server address is made of the network endpoint the silo listens on and a
// generation number that changes every time the silo restarts. Two addresses
// with the same endpoint but different generations are different servers: a
// restarted silo never inherits the activations of its previous incarnation.
//
// The canonical textual representation is:
//
//	<host>:<port>@<generation>
//
// Address is an immutable value type. It can be compared with == and used as a
// map key, and it is totally ordered by Compare, which the hash-based placement
// director relies on.
package address

import (
	"cmp"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/internal/validation"
)

const generationSeparator = "@"

// Address identifies a silo incarnation.
type Address struct {
	host       string
	port       int
	generation int64
}

var _ validation.Validator = Address{}

// New creates an Address. New does not validate its inputs; call Validate.
func New(host string, port int, generation int64) Address {
	return Address{
		host:       host,
		port:       port,
		generation: generation,
	}
}

// Parse parses the canonical form host:port@generation
func Parse(s string) (Address, error) {
	idx := strings.LastIndex(s, generationSeparator)
	if idx < 0 {
		return Address{}, gerrors.NewErrInvalidAddress(fmt.Errorf("missing generation in (%s)", s))
	}

	host, port, err := net.SplitHostPort(s[:idx])
	if err != nil {
		return Address{}, gerrors.NewErrInvalidAddress(err)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return Address{}, gerrors.NewErrInvalidAddress(err)
	}

	generation, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return Address{}, gerrors.NewErrInvalidAddress(err)
	}

	addr := New(host, portNum, generation)
	if err := addr.Validate(); err != nil {
		return Address{}, err
	}
	return addr, nil
}

// Host returns the host component
func (a Address) Host() string {
	return a.host
}

// Port returns the port component
func (a Address) Port() int {
	return a.port
}

// Generation returns the incarnation number of the silo
func (a Address) Generation() int64 {
	return a.generation
}

// HostPort returns host:port without the generation
func (a Address) HostPort() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

// String returns the canonical representation
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return a.HostPort() + generationSeparator + strconv.FormatInt(a.generation, 10)
}

// IsZero reports whether the address is the zero value
func (a Address) IsZero() bool {
	return a == Address{}
}

// Equals reports whether both addresses denote the same silo incarnation
func (a Address) Equals(other Address) bool {
	return a == other
}

// SameEndpoint reports whether both addresses share host and port,
// regardless of their generation.
func (a Address) SameEndpoint(other Address) bool {
	return a.host == other.host && a.port == other.port
}

// Compare orders addresses by host, then port, then generation.
// It returns -1, 0 or +1.
func (a Address) Compare(other Address) int {
	if c := cmp.Compare(a.host, other.host); c != 0 {
		return c
	}
	if c := cmp.Compare(a.port, other.port); c != 0 {
		return c
	}
	return cmp.Compare(a.generation, other.generation)
}

// Less reports whether a sorts before other
func (a Address) Less(other Address) bool {
	return a.Compare(other) < 0
}

// Validate checks the address
func (a Address) Validate() error {
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("host", a.host)).
		AddValidator(validation.NewTCPAddressValidator(a.HostPort())).
		AddAssertion(a.generation >= 0, "generation must not be negative").
		Validate(); err != nil {
		return gerrors.NewErrInvalidAddress(err)
	}
	return nil
}

// MarshalBinary encodes the address in its canonical form
func (a Address) MarshalBinary() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalBinary decodes an address encoded by MarshalBinary
func (a *Address) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sort sorts the addresses in ascending order in place
func Sort(addrs []Address) {
	slices.SortFunc(addrs, Address.Compare)
}
