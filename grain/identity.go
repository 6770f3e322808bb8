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

// Package grain defines the identity of a virtual actor.
//
// An identity is the pair (kind, id). The kind selects the placement strategy
// and the servers compatible with the actor; the id distinguishes instances of
// the same kind. Identities are immutable and render as "kind/id".
package grain

import (
	"fmt"
	"regexp"
	"strings"

	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/internal/validation"
)

const (
	separator   = "/"
	maxIDLength = 255
)

var kindPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Identity is the cluster-wide key of a virtual actor.
type Identity struct {
	kind string
	id   string
}

var _ validation.Validator = Identity{}

// NewIdentity creates an Identity. Call Validate before trusting external input.
func NewIdentity(kind, id string) Identity {
	return Identity{kind: kind, id: id}
}

// Parse parses the "kind/id" form. The id may itself contain slashes.
func Parse(s string) (Identity, error) {
	kind, id, ok := strings.Cut(s, separator)
	if !ok {
		return Identity{}, gerrors.NewErrInvalidIdentity(fmt.Errorf("missing separator in (%s)", s))
	}
	identity := NewIdentity(kind, id)
	if err := identity.Validate(); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Kind returns the actor kind
func (x Identity) Kind() string {
	return x.kind
}

// ID returns the actor id within its kind
func (x Identity) ID() string {
	return x.id
}

// String returns "kind/id"
func (x Identity) String() string {
	if x.IsZero() {
		return ""
	}
	return x.kind + separator + x.id
}

// Bytes returns the canonical form as bytes, used as hashing input
func (x Identity) Bytes() []byte {
	return []byte(x.String())
}

// IsZero reports whether the identity is the zero value
func (x Identity) IsZero() bool {
	return x == Identity{}
}

// Equals reports whether both identities are the same
func (x Identity) Equals(other Identity) bool {
	return x == other
}

// Validate checks the identity
func (x Identity) Validate() error {
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("kind", x.kind)).
		AddValidator(validation.NewEmptyStringValidator("id", x.id)).
		AddValidator(validation.NewPatternValidator(kindPattern, x.kind, fmt.Errorf("kind=(%s) contains invalid characters", x.kind))).
		AddAssertion(len(x.id) <= maxIDLength, "id is too long").
		Validate(); err != nil {
		return gerrors.NewErrInvalidIdentity(err)
	}
	return nil
}

// MarshalBinary encodes the identity in its canonical form
func (x Identity) MarshalBinary() ([]byte, error) {
	return x.Bytes(), nil
}

// UnmarshalBinary decodes an identity encoded by MarshalBinary
func (x *Identity) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		*x = Identity{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*x = parsed
	return nil
}
