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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tochemey/olric"
	"github.com/tochemey/olric/config"
	"github.com/tochemey/olric/pkg/storage"
	"go.uber.org/atomic"

	"github.com/tochemey/grainplacement/address"
	gerrors "github.com/tochemey/grainplacement/errors"
	"github.com/tochemey/grainplacement/grain"
	"github.com/tochemey/grainplacement/internal/validation"
	"github.com/tochemey/grainplacement/log"
	"github.com/tochemey/grainplacement/membership"
)

const (
	olricSequenceKey = "sequence"
	olricTableSize   = 20 << 20
)

// OlricConfig configures an embedded olric node backing the directory
type OlricConfig struct {
	// Name prefixes the distributed maps used by the store
	Name string
	// Host is the bind address of the node
	Host string
	// PeersPort is the olric client port
	PeersPort int
	// DiscoveryPort is the gossip port of the olric memberlist
	DiscoveryPort int
	// Peers lists gossip addresses (host:port) of existing olric nodes
	Peers []string
	// PartitionCount defaults to 271
	PartitionCount uint64
	// ReplicaCount defaults to 1
	ReplicaCount int
	// BootstrapTimeout defaults to 10s
	BootstrapTimeout time.Duration
	// LockTimeout bounds how long a compare-and-delete waits for the identity lock. Defaults to 5s
	LockTimeout time.Duration
	Logger      log.Logger
}

// Validate checks the configuration
func (x OlricConfig) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Name", x.Name)).
		AddValidator(validation.NewEmptyStringValidator("Host", x.Host)).
		AddAssertion(x.PeersPort > 0, "PeersPort is invalid").
		AddAssertion(x.DiscoveryPort > 0, "DiscoveryPort is invalid").
		AddAssertion(x.PeersPort != x.DiscoveryPort, "PeersPort and DiscoveryPort must differ").
		Validate()
}

func (x *OlricConfig) sanitize() {
	if x.PartitionCount == 0 {
		x.PartitionCount = 271
	}
	if x.ReplicaCount <= 0 {
		x.ReplicaCount = 1
	}
	if x.BootstrapTimeout <= 0 {
		x.BootstrapTimeout = 10 * time.Second
	}
	if x.LockTimeout <= 0 {
		x.LockTimeout = 5 * time.Second
	}
	if x.Logger == nil {
		x.Logger = log.DefaultLogger
	}
}

// OlricStore keeps the directory in the distributed maps of an embedded
// olric node. Every silo runs a node of the same olric cluster, so the store
// is shared. Registration relies on the NX put. Compare-and-delete holds an
// olric lock on the identity.
type OlricStore struct {
	server      *olric.Olric
	records     olric.DMap
	sequences   olric.DMap
	locks       olric.DMap
	lockTimeout time.Duration
	logger      log.Logger
	closed      *atomic.Bool
}

var _ Store = (*OlricStore)(nil)

// NewOlricStore starts an embedded olric node and joins the given peers
func NewOlricStore(ctx context.Context, cfg *OlricConfig) (*OlricStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.sanitize()

	conf, err := buildOlricConfig(cfg)
	if err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	conf.Started = func() { cancel() }

	server, err := olric.New(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create olric node: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-startCtx.Done():
		if ctx.Err() != nil {
			return nil, errors.Join(ctx.Err(), server.Shutdown(context.WithoutCancel(ctx)))
		}
	case err := <-errCh:
		if err == nil {
			err = errors.New("olric node stopped before it started")
		}
		return nil, errors.Join(err, server.Shutdown(context.WithoutCancel(ctx)))
	}

	client := server.NewEmbeddedClient()
	store := &OlricStore{
		server:      server,
		lockTimeout: cfg.LockTimeout,
		logger:      cfg.Logger,
		closed:      atomic.NewBool(false),
	}

	if store.records, err = client.NewDMap(cfg.Name + ".records"); err == nil {
		if store.sequences, err = client.NewDMap(cfg.Name + ".sequences"); err == nil {
			store.locks, err = client.NewDMap(cfg.Name + ".locks")
		}
	}
	if err != nil {
		return nil, errors.Join(err, server.Shutdown(context.WithoutCancel(ctx)))
	}

	cfg.Logger.Infof("olric directory node started on %s:%d", cfg.Host, cfg.PeersPort)
	return store, nil
}

func buildOlricConfig(cfg *OlricConfig) (*config.Config, error) {
	logLevel := "INFO"
	switch cfg.Logger.LogLevel() {
	case log.DebugLevel:
		logLevel = "DEBUG"
	case log.WarningLevel:
		logLevel = "WARN"
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		logLevel = "ERROR"
	}

	options := storage.NewConfig(nil)
	options.Add("tableSize", uint64(olricTableSize))

	conf := &config.Config{
		BindAddr:          cfg.Host,
		BindPort:          cfg.PeersPort,
		ReadRepair:        true,
		ReplicaCount:      cfg.ReplicaCount,
		WriteQuorum:       1,
		ReadQuorum:        1,
		MemberCountQuorum: 1,
		Peers:             cfg.Peers,
		DMaps: &config.DMaps{
			Engine: &config.Engine{
				Config: options.ToMap(),
			},
		},
		KeepAlivePeriod:          config.DefaultKeepAlivePeriod,
		PartitionCount:           cfg.PartitionCount,
		BootstrapTimeout:         cfg.BootstrapTimeout,
		ReplicationMode:          config.SyncReplicationMode,
		RoutingTablePushInterval: time.Minute,
		JoinRetryInterval:        config.DefaultJoinRetryInterval,
		MaxJoinAttempts:          config.DefaultMaxJoinAttempts,
		LogLevel:                 logLevel,
		LogOutput:                membership.NewLogWriter(cfg.Logger),
		TriggerBalancerInterval:  config.DefaultTriggerBalancerInterval,
	}

	if cfg.Logger.LogLevel() == log.DebugLevel {
		conf.LogVerbosity = config.DefaultLogVerbosity
	}

	mconfig, err := config.NewMemberlistConfig("lan")
	if err != nil {
		return nil, fmt.Errorf("failed to configure olric memberlist: %w", err)
	}
	mconfig.BindAddr = cfg.Host
	mconfig.BindPort = cfg.DiscoveryPort
	mconfig.AdvertiseAddr = cfg.Host
	mconfig.AdvertisePort = cfg.DiscoveryPort
	mconfig.Label = "directory-" + cfg.Name
	conf.MemberlistConfig = mconfig

	return conf, nil
}

func (s *OlricStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return contextErr(ctx)
}

// PutIfAbsent stores record unless the identity is already registered.
// The version comes from a cluster-wide counter.
func (s *OlricStore) PutIfAbsent(ctx context.Context, record Record) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}

	key := record.Identity.String()
	for {
		if existing, found, err := s.get(ctx, key); err != nil || found {
			return existing, false, err
		}

		version, err := s.sequences.Incr(ctx, olricSequenceKey, 1)
		if err != nil {
			return Record{}, false, err
		}
		record.Version = uint64(version)

		encoded, err := encodeRecord(record)
		if err != nil {
			return Record{}, false, err
		}

		err = s.records.Put(ctx, key, encoded, olric.NX())
		switch {
		case err == nil:
			return record, true, nil
		case errors.Is(err, olric.ErrKeyFound):
			// lost the race, read the winner; it may already be gone again
			continue
		default:
			return Record{}, false, err
		}
	}
}

// Get returns the record of an identity
func (s *OlricStore) Get(ctx context.Context, identity grain.Identity) (Record, bool, error) {
	if err := s.check(ctx); err != nil {
		return Record{}, false, err
	}
	return s.get(ctx, identity.String())
}

func (s *OlricStore) get(ctx context.Context, key string) (Record, bool, error) {
	resp, err := s.records.Get(ctx, key)
	if err != nil {
		if errors.Is(err, olric.ErrKeyNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}

	bytea, err := resp.Byte()
	if err != nil {
		return Record{}, false, err
	}

	record, err := decodeRecord(bytea)
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// DeleteIf removes the record of identity when owned by owner
func (s *OlricStore) DeleteIf(ctx context.Context, identity grain.Identity, owner address.Address) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	key := identity.String()
	lock, err := s.locks.LockWithTimeout(ctx, key, s.lockTimeout, s.lockTimeout)
	if err != nil {
		return false, fmt.Errorf("failed to lock identity=(%s): %w", key, err)
	}

	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warnf("failed to unlock identity=(%s): %v", key, err)
		}
	}()

	record, found, err := s.get(ctx, key)
	if err != nil || !found || !record.Server.Equals(owner) {
		return false, err
	}

	deleted, err := s.records.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// DeleteOwnedBy scans the records and removes those owned by owner
func (s *OlricStore) DeleteOwnedBy(ctx context.Context, owner address.Address) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	var owned []grain.Identity
	if err := s.scan(ctx, func(record Record) bool {
		if record.Server.Equals(owner) {
			owned = append(owned, record.Identity)
		}
		return true
	}); err != nil {
		return 0, err
	}

	deleted := 0
	for _, identity := range owned {
		ok, err := s.DeleteIf(ctx, identity, owner)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// Range calls fn for every record
func (s *OlricStore) Range(ctx context.Context, fn func(Record) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.scan(ctx, fn)
}

func (s *OlricStore) scan(ctx context.Context, fn func(Record) bool) error {
	scanner, err := s.records.Scan(ctx)
	if err != nil {
		return err
	}
	defer scanner.Close()

	for scanner.Next() {
		record, found, err := s.get(ctx, scanner.Key())
		if err != nil {
			return err
		}
		if found && !fn(record) {
			return nil
		}
	}
	return nil
}

// Distributed returns true: every silo runs a node of the same olric cluster
func (s *OlricStore) Distributed() bool {
	return true
}

// Close shuts the embedded olric node down
func (s *OlricStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

