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

package membership

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/hashicorp/memberlist"
	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	"github.com/tochemey/grainplacement/internal/errorschain"
	"github.com/tochemey/grainplacement/log"
)

// Memberlist is a Provider backed by hashicorp/memberlist gossip.
// The local Member is carried in the memberlist node metadata, so every
// silo learns the kinds and the draining state of its peers.
type Memberlist struct {
	mu sync.Mutex

	name     string
	bindHost string
	bindPort int
	seeds    []string

	self     Member
	addr     address.Address
	delegate *delegate
	config   *memberlist.Config
	list     *memberlist.Memberlist
	events   chan memberlist.NodeEvent
	subs     *subscribers
	started  *atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	maxJoinAttempts   int
	joinRetryInterval time.Duration
	joinTimeout       time.Duration
	shutdownTimeout   time.Duration
	logger            log.Logger
}

var _ Provider = (*Memberlist)(nil)

// NewMemberlist creates a memberlist provider gossiping on bindHost:bindPort
// and advertising self to the cluster.
func NewMemberlist(bindHost string, bindPort int, self Member, opts ...Option) (*Memberlist, error) {
	if err := self.Address.Validate(); err != nil {
		return nil, err
	}

	provider := &Memberlist{
		name:              uuid.NewString(),
		bindHost:          bindHost,
		bindPort:          bindPort,
		self:              self,
		addr:              self.Address,
		subs:              newSubscribers(),
		started:           atomic.NewBool(false),
		maxJoinAttempts:   5,
		joinRetryInterval: time.Second,
		joinTimeout:       time.Minute,
		shutdownTimeout:   3 * time.Second,
		logger:            log.DefaultLogger,
	}

	for _, opt := range opts {
		opt.Apply(provider)
	}

	meta, err := encode(self)
	if err != nil {
		return nil, fmt.Errorf("failed to encode member metadata: %w", err)
	}

	if len(meta) > memberlist.MetaMaxSize {
		return nil, fmt.Errorf("member metadata exceeds %d bytes", memberlist.MetaMaxSize)
	}

	provider.delegate = newDelegate(meta)
	provider.events = make(chan memberlist.NodeEvent, 256)

	config := memberlist.DefaultLANConfig()
	config.Name = provider.name
	config.BindAddr = bindHost
	config.BindPort = bindPort
	config.AdvertisePort = bindPort
	config.LogOutput = newLogWriter(provider.logger)
	config.Delegate = provider.delegate
	config.Events = &memberlist.ChannelEventDelegate{Ch: provider.events}
	provider.config = config

	return provider, nil
}

// Start creates the memberlist and joins the seeds
func (m *Memberlist) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started.Load() {
		return nil
	}

	list, err := memberlist.Create(m.config)
	if err != nil {
		m.logger.Errorf("%v", fmt.Errorf("failed to create memberlist: %w", err))
		return err
	}
	m.list = list

	if len(m.seeds) > 0 {
		joinCtx, cancel := context.WithTimeout(ctx, m.joinTimeout)
		retrier := retry.NewRetrier(m.maxJoinAttempts, m.joinRetryInterval, m.joinRetryInterval)
		err := retrier.RunContext(joinCtx, func(context.Context) error {
			_, err := list.Join(m.seeds)
			return err
		})
		cancel()
		if err != nil {
			m.logger.Errorf("%v", fmt.Errorf("failed to join cluster: %w", err))
			_ = list.Shutdown()
			return err
		}
		m.logger.Infof("%s successfully joined cluster: [%s]", m.addr, strings.Join(m.seeds, ","))
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.started.Store(true)
	go m.eventsListener()

	m.logger.Infof("%s membership successfully started on %s", m.addr, m.GossipAddress())
	return nil
}

// Stop leaves the cluster
func (m *Memberlist) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started.Load() {
		return nil
	}
	m.started.Store(false)

	err := errorschain.
		New(errorschain.ReturnFirst()).
		AddError(m.list.Leave(m.shutdownTimeout)).
		AddError(m.list.Shutdown()).
		Error()

	close(m.stopCh)
	<-m.doneCh

	if err != nil {
		m.logger.Errorf("%v", fmt.Errorf("%s failed to stop membership: %w", m.addr, err))
		return err
	}
	m.logger.Infof("%s membership successfully stopped", m.addr)
	return nil
}

// GossipAddress returns the host:port memberlist listens on
func (m *Memberlist) GossipAddress() string {
	if m.list == nil {
		return fmt.Sprintf("%s:%d", m.bindHost, m.bindPort)
	}
	node := m.list.LocalNode()
	return node.Address()
}

// Members returns the live members decoded from the node metadata
func (m *Memberlist) Members() []Member {
	if !m.started.Load() {
		return []Member{m.Self()}
	}

	nodes := m.list.Members()
	members := make([]Member, 0, len(nodes))
	for _, node := range nodes {
		member, err := decode(node.Meta)
		if err != nil {
			m.logger.Warnf("skipping node=(%s) with invalid metadata: %v", node.Name, err)
			continue
		}
		members = append(members, member)
	}
	sortMembers(members)
	return members
}

// Subscribe registers a membership callback
func (m *Memberlist) Subscribe(callback func(Event)) func() {
	return m.subs.add(callback)
}

// Self returns the local member
func (m *Memberlist) Self() Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.self
}

// SetDraining advertises the draining state of the local member
func (m *Memberlist) SetDraining(draining bool) error {
	return m.updateSelf(func(member *Member) { member.Draining = draining })
}

// SetFull advertises the capacity state of the local member
func (m *Memberlist) SetFull(full bool) error {
	return m.updateSelf(func(member *Member) { member.Full = full })
}

func (m *Memberlist) updateSelf(fn func(*Member)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	self := m.self
	fn(&self)
	meta, err := encode(self)
	if err != nil {
		return err
	}

	m.self = self
	m.delegate.setMeta(meta)
	if m.started.Load() {
		return m.list.UpdateNode(m.shutdownTimeout)
	}
	return nil
}

// eventsListener converts memberlist node events into membership events
func (m *Memberlist) eventsListener() {
	defer close(m.doneCh)
	for {
		select {
		case event := <-m.events:
			if event.Node == nil {
				continue
			}

			var eventType EventType
			switch event.Event {
			case memberlist.NodeJoin:
				eventType = MemberJoined
			case memberlist.NodeLeave:
				eventType = MemberLeft
			case memberlist.NodeUpdate:
				eventType = MemberUpdated
			default:
				continue
			}

			member, err := decode(event.Node.Meta)
			if err != nil {
				m.logger.Errorf("failed to decode node metadata from cluster event: %v", err)
				continue
			}

			m.logger.Debugf("%s received (%s):[member=(%s)] cluster event", m.addr, eventType, member.Address)
			m.subs.notify(Event{
				Type:   eventType,
				Member: member,
				Time:   time.Now().UTC(),
			})
		case <-m.stopCh:
			return
		}
	}
}
