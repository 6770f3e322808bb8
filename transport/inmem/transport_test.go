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

package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/transport"
)

type echo struct {
	Text string
}

func init() {
	transport.Register(echo{})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func echoHandler(_ context.Context, from address.Address, request any) (any, error) {
	msg := request.(echo)
	return echo{Text: from.String() + ":" + msg.Text}, nil
}

func TestTransport(t *testing.T) {
	ctx := context.Background()
	a := address.New("127.0.0.1", 3000, 1)
	b := address.New("127.0.0.1", 3001, 1)

	for _, serialize := range []bool{false, true} {
		var opts []NetworkOption
		if serialize {
			opts = append(opts, WithSerialization())
		}
		network := NewNetwork(opts...)
		ta := network.Transport(a)
		tb := network.Transport(b)
		require.Same(t, ta, network.Transport(a))
		assert.Equal(t, a, ta.Address())

		tb.Handle("echo", echoHandler)
		tb.Handle("fail", func(context.Context, address.Address, any) (any, error) {
			return nil, gerrors.NewErrActivationFailed(errors.New("boom"))
		})

		_, err := ta.Request(ctx, b, "echo", echo{Text: "hi"})
		require.ErrorIs(t, err, gerrors.ErrTransportNotStarted)

		require.NoError(t, ta.Start(ctx))
		_, err = ta.Request(ctx, b, "echo", echo{Text: "hi"})
		require.ErrorIs(t, err, gerrors.ErrUnreachableTarget)

		require.NoError(t, tb.Start(ctx))
		resp, err := ta.Request(ctx, b, "echo", echo{Text: "hi"})
		require.NoError(t, err)
		assert.Equal(t, echo{Text: a.String() + ":hi"}, resp)

		_, err = ta.Request(ctx, b, "fail", echo{})
		require.ErrorIs(t, err, gerrors.ErrActivationFailed)
		require.NotErrorIs(t, err, gerrors.ErrUnreachableTarget)

		_, err = ta.Request(ctx, b, "missing", echo{})
		require.ErrorIs(t, err, gerrors.ErrUnknownRoute)

		network.Partition(b, a)
		_, err = ta.Request(ctx, b, "echo", echo{})
		var unreachable *gerrors.UnreachableTargetError
		require.ErrorAs(t, err, &unreachable)
		assert.Equal(t, b.String(), unreachable.Target)
		network.Heal(a, b)
		_, err = ta.Request(ctx, b, "echo", echo{Text: "back"})
		require.NoError(t, err)

		network.Isolate(b)
		_, err = ta.Request(ctx, b, "echo", echo{})
		require.ErrorIs(t, err, gerrors.ErrUnreachableTarget)
		network.HealAll()

		require.NoError(t, tb.Stop(ctx))
		_, err = ta.Request(ctx, b, "echo", echo{})
		require.ErrorIs(t, err, gerrors.ErrUnreachableTarget)
		assert.EqualValues(t, 8, network.Requests())
		require.NoError(t, ta.Stop(ctx))
	}
}

func TestTransportTimeout(t *testing.T) {
	ctx := context.Background()
	a := address.New("127.0.0.1", 3000, 1)
	b := address.New("127.0.0.1", 3001, 1)

	network := NewNetwork()
	ta := network.Transport(a)
	tb := network.Transport(b)
	release := make(chan struct{})
	tb.Handle("slow", func(context.Context, address.Address, any) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, ta.Start(ctx))
	require.NoError(t, tb.Start(ctx))

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := ta.Request(ctx2, b, "slow", nil)
	require.ErrorIs(t, err, gerrors.ErrUnreachableTarget)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	// let the handler goroutine exit
	time.Sleep(10 * time.Millisecond)
}

func TestSerializationRejectsUnregisteredTypes(t *testing.T) {
	ctx := context.Background()
	a := address.New("127.0.0.1", 3000, 1)
	b := address.New("127.0.0.1", 3001, 1)

	type unregistered struct{ X int }

	network := NewNetwork(WithSerialization())
	ta := network.Transport(a)
	tb := network.Transport(b)
	tb.Handle("echo", echoHandler)
	require.NoError(t, ta.Start(ctx))
	require.NoError(t, tb.Start(ctx))

	_, err := ta.Request(ctx, b, "echo", unregistered{X: 1})
	require.Error(t, err)
}
