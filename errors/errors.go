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

// Package errors defines the errors returned by the placement subsystem.
//
// Callers match them with the standard errors.Is and errors.As functions.
// Conflicts and unreachable targets are normally absorbed by the coordinator;
// only NoCompatibleServerError, UnknownStrategyError and PlacementExhaustedError
// are expected to reach the caller of a placement request.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCompatibleServer is returned when no live server can host a given actor kind.
	ErrNoCompatibleServer = errors.New("no compatible server")

	// ErrUnknownStrategy is returned when a custom strategy has no registered director.
	ErrUnknownStrategy = errors.New("unknown placement strategy")

	// ErrRegistrationConflict is returned when an identity is already registered to another server.
	ErrRegistrationConflict = errors.New("registration conflict")

	// ErrUnreachableTarget is returned when a server cannot be contacted.
	ErrUnreachableTarget = errors.New("unreachable target")

	// ErrPlacementExhausted is returned when all placement attempts failed.
	ErrPlacementExhausted = errors.New("placement attempts exhausted")

	// ErrInvalidIdentity is returned when an actor identity is malformed.
	ErrInvalidIdentity = errors.New("invalid actor identity")

	// ErrInvalidAddress is returned when a server address is malformed.
	ErrInvalidAddress = errors.New("invalid server address")

	// ErrInvalidStrategy is returned when a placement strategy carries invalid parameters.
	ErrInvalidStrategy = errors.New("invalid placement strategy")

	// ErrStrategyAlreadyAttached is returned when a different strategy is attached twice to the same actor kind.
	ErrStrategyAlreadyAttached = errors.New("placement strategy already attached")

	// ErrInvalidDecision is returned when a director picks a server outside of the compatible set.
	ErrInvalidDecision = errors.New("director returned a server outside of the compatible set")

	// ErrActivationFailed is returned when a server fails to create an activation.
	ErrActivationFailed = errors.New("activation failed")

	// ErrSiloNotStarted is returned when an operation requires a running silo.
	ErrSiloNotStarted = errors.New("silo is not started")

	// ErrStoreClosed is returned when a directory store is used after Close.
	ErrStoreClosed = errors.New("directory store is closed")

	// ErrUnknownRoute is returned when a transport receives a request for an unregistered route.
	ErrUnknownRoute = errors.New("unknown transport route")

	// ErrTransportNotStarted is returned when a transport is used before Start.
	ErrTransportNotStarted = errors.New("transport is not started")
)

// NoCompatibleServerError reports the actor kind that could not be placed.
type NoCompatibleServerError struct {
	Kind string
}

var _ error = (*NoCompatibleServerError)(nil)

// NewNoCompatibleServerError creates an instance of NoCompatibleServerError
func NewNoCompatibleServerError(kind string) *NoCompatibleServerError {
	return &NoCompatibleServerError{Kind: kind}
}

func (e *NoCompatibleServerError) Error() string {
	return fmt.Sprintf("kind=(%s): %s", e.Kind, ErrNoCompatibleServer.Error())
}

// Is makes errors.Is(err, ErrNoCompatibleServer) succeed.
func (e *NoCompatibleServerError) Is(target error) bool {
	return target == ErrNoCompatibleServer
}

// UnknownStrategyError carries the name of the unresolved custom strategy.
type UnknownStrategyError struct {
	Name string
}

var _ error = (*UnknownStrategyError)(nil)

// NewUnknownStrategyError creates an instance of UnknownStrategyError
func NewUnknownStrategyError(name string) *UnknownStrategyError {
	return &UnknownStrategyError{Name: name}
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("strategy=(%s): %s", e.Name, ErrUnknownStrategy.Error())
}

// Is makes errors.Is(err, ErrUnknownStrategy) succeed.
func (e *UnknownStrategyError) Is(target error) bool {
	return target == ErrUnknownStrategy
}

// UnreachableTargetError wraps the transport failure raised while contacting Target.
// Target is the string form of the server address.
type UnreachableTargetError struct {
	Target string
	Err    error
}

var _ error = (*UnreachableTargetError)(nil)

// NewUnreachableTargetError creates an instance of UnreachableTargetError
func NewUnreachableTargetError(target string, err error) *UnreachableTargetError {
	return &UnreachableTargetError{Target: target, Err: err}
}

func (e *UnreachableTargetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("target=(%s): %s", e.Target, ErrUnreachableTarget.Error())
	}
	return fmt.Sprintf("target=(%s): %s: %v", e.Target, ErrUnreachableTarget.Error(), e.Err)
}

// Is makes errors.Is(err, ErrUnreachableTarget) succeed.
func (e *UnreachableTargetError) Is(target error) bool {
	return target == ErrUnreachableTarget
}

func (e *UnreachableTargetError) Unwrap() error {
	return e.Err
}

// PlacementExhaustedError is returned once the coordinator ran out of attempts.
// Last holds the error of the final attempt.
type PlacementExhaustedError struct {
	Identity string
	Attempts int
	Last     error
}

var _ error = (*PlacementExhaustedError)(nil)

// NewPlacementExhaustedError creates an instance of PlacementExhaustedError
func NewPlacementExhaustedError(identity string, attempts int, last error) *PlacementExhaustedError {
	return &PlacementExhaustedError{Identity: identity, Attempts: attempts, Last: last}
}

func (e *PlacementExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("identity=(%s) after %d attempts: %s", e.Identity, e.Attempts, ErrPlacementExhausted.Error())
	}
	return fmt.Sprintf("identity=(%s) after %d attempts: %s: %v", e.Identity, e.Attempts, ErrPlacementExhausted.Error(), e.Last)
}

// Is makes errors.Is(err, ErrPlacementExhausted) succeed.
func (e *PlacementExhaustedError) Is(target error) bool {
	return target == ErrPlacementExhausted
}

func (e *PlacementExhaustedError) Unwrap() error {
	return e.Last
}

// NewErrInvalidIdentity wraps a validation failure with ErrInvalidIdentity
func NewErrInvalidIdentity(err error) error {
	return errors.Join(ErrInvalidIdentity, err)
}

// NewErrInvalidAddress wraps a validation failure with ErrInvalidAddress
func NewErrInvalidAddress(err error) error {
	return errors.Join(ErrInvalidAddress, err)
}

// NewErrInvalidStrategy formats an ErrInvalidStrategy with the given reason
func NewErrInvalidStrategy(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidStrategy, reason)
}

// NewErrStrategyAlreadyAttached formats an ErrStrategyAlreadyAttached for the given kind
func NewErrStrategyAlreadyAttached(kind string) error {
	return fmt.Errorf("kind=(%s) %w", kind, ErrStrategyAlreadyAttached)
}

// NewErrActivationFailed wraps the activator error with ErrActivationFailed
func NewErrActivationFailed(err error) error {
	return errors.Join(ErrActivationFailed, err)
}

// NewErrUnknownRoute formats an ErrUnknownRoute for the given route
func NewErrUnknownRoute(route string) error {
	return fmt.Errorf("route=(%s) %w", route, ErrUnknownRoute)
}
