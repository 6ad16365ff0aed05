package redis_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardgate/internal/gateway/domain"
	"cardgate/internal/gateway/infrastructure/redis"
)

var testClient *goredis.Client

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}

	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}

	resource.Expire(120)

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		testClient = goredis.NewClient(&goredis.Options{Addr: resource.GetHostPort("6379/tcp")})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return testClient.Ping(ctx).Err()
	}); err != nil {
		log.Fatalf("Could not connect to redis: %s", err)
	}

	code := m.Run()

	_ = testClient.Close()

	if err := pool.Purge(resource); err != nil {
		log.Fatalf("Could not purge resource: %s", err)
	}

	os.Exit(code)
}

func TestInFlightGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate acquire is rejected until release", func(t *testing.T) {
		guard := redis.NewInFlightGuard(testClient, time.Minute)
		key := fmt.Sprintf("acct-1:%d", time.Now().UnixNano())

		token, err := guard.Acquire(ctx, key)
		require.NoError(t, err)
		_, err = guard.Acquire(ctx, key)
		assert.ErrorIs(t, err, domain.ErrRequestInFlight)

		require.NoError(t, guard.Release(ctx, key, token))
		_, err = guard.Acquire(ctx, key)
		assert.NoError(t, err)
	})

	t.Run("separate guards share the key space", func(t *testing.T) {
		first := redis.NewInFlightGuard(testClient, time.Minute)
		second := redis.NewInFlightGuard(testClient, time.Minute)
		key := fmt.Sprintf("acct-2:%d", time.Now().UnixNano())

		_, err := first.Acquire(ctx, key)
		require.NoError(t, err)
		_, err = second.Acquire(ctx, key)
		assert.ErrorIs(t, err, domain.ErrRequestInFlight)
	})

	t.Run("keys expire", func(t *testing.T) {
		guard := redis.NewInFlightGuard(testClient, 200*time.Millisecond)
		key := fmt.Sprintf("acct-3:%d", time.Now().UnixNano())

		_, err := guard.Acquire(ctx, key)
		require.NoError(t, err)
		assert.Eventually(t, func() bool {
			_, err := guard.Acquire(ctx, key)
			return err == nil
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("late release does not free a newer holder", func(t *testing.T) {
		short := redis.NewInFlightGuard(testClient, 200*time.Millisecond)
		long := redis.NewInFlightGuard(testClient, time.Minute)
		key := fmt.Sprintf("acct-4:%d", time.Now().UnixNano())

		first, err := short.Acquire(ctx, key)
		require.NoError(t, err)

		// The first request outlives its TTL and a duplicate takes the key.
		var second string
		require.Eventually(t, func() bool {
			second, err = long.Acquire(ctx, key)
			return err == nil
		}, 5*time.Second, 50*time.Millisecond)

		require.NoError(t, short.Release(ctx, key, first))
		_, err = long.Acquire(ctx, key)
		assert.ErrorIs(t, err, domain.ErrRequestInFlight)

		require.NoError(t, long.Release(ctx, key, second))
		_, err = long.Acquire(ctx, key)
		assert.NoError(t, err)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, redis.NewInFlightGuard(testClient, time.Minute).Ping(ctx))
	})
}
