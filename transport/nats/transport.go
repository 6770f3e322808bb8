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

// Package nats implements the silo transport on top of NATS request/reply.
// Every silo subscribes to its own subject and payloads are gob encoded.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/transport"
)

// Transport is a NATS based transport
type Transport struct {
	mu       sync.RWMutex
	config   *Config
	addr     address.Address
	hmu      sync.RWMutex
	handlers map[string]transport.Handler
	conn     *nats.Conn
	sub      *nats.Subscription
	inflight sync.WaitGroup
	started  *atomic.Bool
	logger   log.Logger

	compressor transport.Compressor
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport creates a NATS transport for the silo at addr
func NewTransport(config *Config, addr address.Address, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Transport{
		config:   config,
		addr:     addr,
		handlers: make(map[string]transport.Handler),
		started:  atomic.NewBool(false),
		logger:   logger,
	}
}

// Address returns the silo address
func (t *Transport) Address() address.Address {
	return t.addr
}

// Handle registers a route handler
func (t *Transport) Handle(route string, handler transport.Handler) {
	t.hmu.Lock()
	t.handlers[route] = handler
	t.hmu.Unlock()
}

// Start connects to NATS and subscribes to the silo subject
func (t *Transport) Start(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started.Load() {
		return nil
	}

	if err := t.config.Validate(); err != nil {
		return err
	}

	compressor, err := transport.NewCompressor(t.config.Compression)
	if err != nil {
		return err
	}
	t.compressor = compressor

	if t.config.ReconnectWait <= 0 {
		t.config.ReconnectWait = 2 * time.Second
	}

	maxRetries := t.config.ConnectRetries
	if maxRetries == 0 {
		maxRetries = 5
	}

	opts := nats.GetDefaultOptions()
	opts.Url = t.config.NatsServer
	opts.Name = t.addr.String()
	opts.ReconnectWait = t.config.ReconnectWait
	opts.MaxReconnect = -1

	var connection *nats.Conn
	// connect using an exponential backoff starting at 100ms
	retrier := retry.NewRetrier(maxRetries, 100*time.Millisecond, opts.ReconnectWait)
	if err := retrier.Run(func() error {
		var err error
		connection, err = opts.Connect()
		return err
	}); err != nil {
		return fmt.Errorf("failed to connect to NATS server (%s): %w", t.config.NatsServer, err)
	}

	sub, err := connection.Subscribe(t.subject(t.addr), t.onMessage)
	if err != nil {
		connection.Close()
		return err
	}

	if err := connection.Flush(); err != nil {
		connection.Close()
		return err
	}

	t.conn = connection
	t.sub = sub
	t.started.Store(true)
	t.logger.Infof("%s NATS transport successfully started", t.addr)
	return nil
}

// Stop unsubscribes and closes the NATS connection
func (t *Transport) Stop(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started.Load() {
		return nil
	}
	t.started.Store(false)

	err := t.sub.Unsubscribe()
	t.inflight.Wait()
	t.conn.Close()
	if err != nil {
		t.logger.Errorf("%s failed to unsubscribe: %v", t.addr, err)
		return err
	}
	t.logger.Infof("%s NATS transport successfully stopped", t.addr)
	return nil
}

// Request sends a request to the target silo
func (t *Transport) Request(ctx context.Context, to address.Address, route string, request any) (any, error) {
	if !t.started.Load() {
		return nil, gerrors.ErrTransportNotStarted
	}

	data, err := t.encode(&transport.Envelope{From: t.addr, Route: route, Payload: request})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	msg, err := t.conn.RequestWithContext(ctx, t.subject(to), data)
	if err != nil {
		return nil, gerrors.NewUnreachableTargetError(to.String(), err)
	}

	reply := new(transport.Reply)
	if err := t.decode(msg.Data, reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}

	if reply.Code != transport.CodeNone {
		return nil, transport.DecodeError(reply.Code, reply.Message)
	}
	return reply.Payload, nil
}

func (t *Transport) onMessage(msg *nats.Msg) {
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		t.respond(msg)
	}()
}

func (t *Transport) respond(msg *nats.Msg) {
	envelope := new(transport.Envelope)
	reply := new(transport.Reply)

	if err := t.decode(msg.Data, envelope); err != nil {
		reply.Code, reply.Message = transport.EncodeError(fmt.Errorf("failed to decode request: %w", err))
	} else {
		t.hmu.RLock()
		handler, ok := t.handlers[envelope.Route]
		t.hmu.RUnlock()

		if !ok {
			reply.Code, reply.Message = transport.EncodeError(gerrors.NewErrUnknownRoute(envelope.Route))
		} else {
			response, err := handler(context.Background(), envelope.From, envelope.Payload)
			if err != nil {
				reply.Code, reply.Message = transport.EncodeError(err)
			} else {
				reply.Payload = response
			}
		}
	}

	data, err := t.encode(reply)
	if err != nil {
		t.logger.Errorf("%s failed to encode reply: %v", t.addr, err)
		data, _ = t.encode(&transport.Reply{Code: transport.CodeUnknown, Message: err.Error()})
	}

	if err := msg.Respond(data); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		t.logger.Warnf("%s failed to respond: %v", t.addr, err)
	}
}

func (t *Transport) encode(v any) ([]byte, error) {
	data, err := transport.Marshal(v)
	if err != nil {
		return nil, err
	}
	return t.compressor.Compress(data)
}

func (t *Transport) decode(data []byte, v any) error {
	raw, err := t.compressor.Decompress(data)
	if err != nil {
		return err
	}
	return transport.Unmarshal(raw, v)
}

// subject returns the subject a silo listens on.
// NATS tokens cannot contain dots, so the address is escaped.
func (t *Transport) subject(addr address.Address) string {
	token := strings.NewReplacer(".", "_", ":", "_", "@", "_", "[", "_", "]", "_").Replace(addr.String())
	return t.config.SubjectPrefix + "." + token
}
