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

// Package clock abstracts time so that scheduled tasks such as the load
// gossip can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock tells the time and creates tickers
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// NewTicker returns a started ticker firing every interval
	NewTicker(interval time.Duration) Ticker
}

// Ticker delivers ticks at intervals
type Ticker interface {
	// C returns the channel on which ticks are delivered
	C() <-chan time.Time
	// Stop stops the ticker. No tick is delivered after Stop returns.
	Stop()
}

type realClock struct{}

// New returns the wall clock
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTicker(interval time.Duration) Ticker {
	if interval <= 0 {
		panic("intervals must be greater than zero")
	}
	ticker := &realTicker{
		ticks:  make(chan time.Time),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go ticker.loop(interval)
	return ticker
}

// realTicker drops ticks when the receiver is slow instead of queueing them.
type realTicker struct {
	ticks    chan time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func (t *realTicker) C() <-chan time.Time {
	return t.ticks
}

func (t *realTicker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		<-t.doneCh
	})
}

func (t *realTicker) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		close(t.doneCh)
	}()

	for {
		select {
		case tc := <-ticker.C:
			select {
			case t.ticks <- tc:
			case <-t.stopCh:
				return
			default:
			}
		case <-t.stopCh:
			return
		}
	}
}
