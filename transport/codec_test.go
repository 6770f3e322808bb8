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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
)

type ping struct {
	Value string
}

func init() {
	Register(ping{})
}

func TestErrorCodes(t *testing.T) {
	t.Run("With nil error", func(t *testing.T) {
		code, message := EncodeError(nil)
		assert.Equal(t, CodeNone, code)
		assert.Empty(t, message)
		assert.NoError(t, DecodeError(code, message))
	})
	t.Run("With well-known errors", func(t *testing.T) {
		for _, err := range []error{
			gerrors.NewNoCompatibleServerError("user"),
			gerrors.NewUnknownStrategyError("custom"),
			fmt.Errorf("register: %w", gerrors.ErrRegistrationConflict),
			gerrors.NewUnreachableTargetError("127.0.0.1:3000@1", errors.New("boom")),
			gerrors.NewPlacementExhaustedError("user/1", 3, nil),
			gerrors.NewErrInvalidIdentity(errors.New("bad")),
			gerrors.NewErrInvalidAddress(errors.New("bad")),
			gerrors.NewErrActivationFailed(errors.New("bad")),
			gerrors.ErrStoreClosed,
			gerrors.NewErrUnknownRoute("route"),
			gerrors.ErrSiloNotStarted,
		} {
			code, message := EncodeError(err)
			decoded := DecodeError(code, message)
			require.Error(t, decoded)
			assert.Equal(t, err.Error(), decoded.Error())
			for _, entry := range codes {
				if errors.Is(err, entry.sentinel) {
					assert.ErrorIs(t, decoded, entry.sentinel)
				}
			}
		}
	})
	t.Run("With unknown error", func(t *testing.T) {
		code, message := EncodeError(errors.New("boom"))
		assert.Equal(t, CodeUnknown, code)
		decoded := DecodeError(code, message)
		assert.EqualError(t, decoded, "boom")
		assert.Nil(t, errors.Unwrap(decoded))
	})
}

func TestCodec(t *testing.T) {
	from := address.New("127.0.0.1", 3000, 7)
	data, err := Marshal(&Envelope{From: from, Route: "ping", Payload: ping{Value: "hello"}})
	require.NoError(t, err)

	envelope := new(Envelope)
	require.NoError(t, Unmarshal(data, envelope))
	assert.Equal(t, from, envelope.From)
	assert.Equal(t, "ping", envelope.Route)
	assert.Equal(t, ping{Value: "hello"}, envelope.Payload)

	type unregistered struct{ X int }
	_, err = Marshal(&Envelope{Payload: unregistered{X: 1}})
	require.Error(t, err)
}
