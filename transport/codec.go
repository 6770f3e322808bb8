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

package transport

import (
	"bytes"
	"encoding/gob"
	"errors"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
)

// ErrorCode identifies a well-known error across the wire
type ErrorCode int

const (
	CodeNone ErrorCode = iota
	CodeUnknown
	CodeNoCompatibleServer
	CodeUnknownStrategy
	CodeRegistrationConflict
	CodeUnreachableTarget
	CodePlacementExhausted
	CodeInvalidIdentity
	CodeInvalidAddress
	CodeActivationFailed
	CodeStoreClosed
	CodeUnknownRoute
	CodeSiloNotStarted
)

var codes = []struct {
	code     ErrorCode
	sentinel error
}{
	{CodeNoCompatibleServer, gerrors.ErrNoCompatibleServer},
	{CodeUnknownStrategy, gerrors.ErrUnknownStrategy},
	{CodeRegistrationConflict, gerrors.ErrRegistrationConflict},
	{CodeUnreachableTarget, gerrors.ErrUnreachableTarget},
	{CodePlacementExhausted, gerrors.ErrPlacementExhausted},
	{CodeInvalidIdentity, gerrors.ErrInvalidIdentity},
	{CodeInvalidAddress, gerrors.ErrInvalidAddress},
	{CodeActivationFailed, gerrors.ErrActivationFailed},
	{CodeStoreClosed, gerrors.ErrStoreClosed},
	{CodeUnknownRoute, gerrors.ErrUnknownRoute},
	{CodeSiloNotStarted, gerrors.ErrSiloNotStarted},
}

// RemoteError is an error returned by the handler of a remote silo
type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel matching the error code
func (e *RemoteError) Unwrap() error {
	for _, entry := range codes {
		if entry.code == e.Code {
			return entry.sentinel
		}
	}
	return nil
}

// EncodeError maps err to its wire representation
func EncodeError(err error) (ErrorCode, string) {
	if err == nil {
		return CodeNone, ""
	}
	for _, entry := range codes {
		if errors.Is(err, entry.sentinel) {
			return entry.code, err.Error()
		}
	}
	return CodeUnknown, err.Error()
}

// DecodeError rebuilds an error from its wire representation
func DecodeError(code ErrorCode, message string) error {
	if code == CodeNone {
		return nil
	}
	return &RemoteError{Code: code, Message: message}
}

// Register records a message type exchanged through transports that
// serialize their payloads. Message types must be registered as values.
func Register(value any) {
	gob.Register(value)
}

// Envelope carries a request on the wire
type Envelope struct {
	From    address.Address
	Route   string
	Payload any
}

// Reply carries a response on the wire
type Reply struct {
	Payload any
	Code    ErrorCode
	Message string
}

// Marshal gob-encodes v
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal gob-decodes data into v
func Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
