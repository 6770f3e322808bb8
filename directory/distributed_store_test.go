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
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/atomic"
)

var storeCounter = atomic.NewInt64(0)

func uniquePrefix(name string) string {
	return fmt.Sprintf("%s-%d-%d", name, time.Now().UnixNano(), storeCounter.Inc())
}

func startEtcdCluster(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainer.Run(
		ctx,
		"gcr.io/etcd-development/etcd:v3.5.14",
		testcontainer.WithNodes("etcd-1", "etcd-2", "etcd-3"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoints, err := container.ClientEndpoints(ctx)
	require.NoError(t, err)
	return endpoints
}

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestEtcdStore(t *testing.T) {
	if testing.Short() {
		t.Skip("etcd store tests require docker")
	}

	endpoints := startEtcdCluster(t)
	testStore(t, func(t *testing.T) Store {
		store, err := NewEtcdStore(context.Background(), &EtcdConfig{
			Endpoints:   endpoints,
			Prefix:      uniquePrefix("directory"),
			DialTimeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.True(t, store.Distributed())
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestEtcdConfig(t *testing.T) {
	require.Error(t, EtcdConfig{Prefix: "directory"}.Validate())
	require.Error(t, EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}.Validate())
	require.NoError(t, EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}, Prefix: "directory"}.Validate())

	_, err := NewEtcdStore(context.Background(), &EtcdConfig{})
	require.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("redis store tests require docker")
	}

	endpoint := startRedis(t)
	testStore(t, func(t *testing.T) Store {
		client := redis.NewClient(&redis.Options{Addr: endpoint})
		store, err := NewRedisStore(context.Background(), client, uniquePrefix("directory"))
		require.NoError(t, err)
		assert.True(t, store.Distributed())
		t.Cleanup(func() { _ = store.Close() })
		return store
	})

	t.Run("With an empty prefix", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: endpoint})
		defer client.Close()
		_, err := NewRedisStore(context.Background(), client, " ")
		require.Error(t, err)
	})
}
