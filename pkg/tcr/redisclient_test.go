package tcr

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	value interface{}
	err   error
}

func newMiniredisConfig(t *testing.T, server *miniredis.Miniredis) *PoolConfig {
	t.Helper()

	port, err := strconv.Atoi(server.Port())
	require.NoError(t, err)

	return &PoolConfig{
		Host:                server.Host(),
		Port:                port,
		ReconnectInterval:   50,
		ConnectionTimeout:   1,
		HealthCheckInterval: 50,
	}
}

func startPool(t *testing.T, config *PoolConfig, count int) (*ConnectionPool, *EventLoop) {
	t.Helper()

	loop := NewEventLoop()
	loop.Start()

	pool, err := NewConnectionPool(loop, config, count)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.onLoop(ctx, pool.Init))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
		loop.Stop()
	})

	return pool, loop
}

func waitForStats(t *testing.T, pool *ConnectionPool, condition func(PoolStats) bool) {
	t.Helper()

	assert.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		stats, err := pool.Stats(ctx)
		return err == nil && condition(stats)
	}, 5*time.Second, 10*time.Millisecond)
}

func send(t *testing.T, conn Conn, args ...interface{}) reply {
	t.Helper()

	replies := make(chan reply, 1)
	conn.Send(func(value interface{}, err error) { replies <- reply{value, err} }, args...)

	select {
	case r := <-replies:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply for %v", args)
		return reply{}
	}
}

func TestRedisClientDialValidatesEndpoint(t *testing.T) {
	client, err := NewRedisClient(&PoolConfig{})
	require.NoError(t, err)

	_, err = client.Dial(Endpoint{})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = client.Dial(Endpoint{Host: "localhost"})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	conn, err := client.Dial(Endpoint{Host: "/tmp/redis.sock"})
	require.NoError(t, err)
	conn.Disconnect()
	conn.Disconnect()
	<-conn.(*RedisConn).Done()
}

func TestRedisPoolSetAndGet(t *testing.T) {
	server := miniredis.RunT(t)

	pool, _ := startPool(t, newMiniredisConfig(t, server), 2)
	waitForStats(t, pool, func(stats PoolStats) bool { return stats.Occupied == 2 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pool.Get(ctx)
	require.NoError(t, err)

	r := send(t, conn, "SET", "key1", "test1")
	require.NoError(t, r.err)
	assert.Equal(t, "OK", r.value)

	other, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, conn, other)

	r = send(t, other, "GET", "key1")
	require.NoError(t, r.err)
	assert.Equal(t, "test1", r.value)

	server.CheckGet(t, "key1", "test1")

	// A command error leaves the connection in place.
	r = send(t, other, "INCR", "key1")
	assert.Error(t, r.err)

	stats, err := pool.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Occupied)
	assert.Equal(t, uint64(0), stats.Disconnects)
}

func TestRedisPoolAuthAndSelect(t *testing.T) {
	server := miniredis.RunT(t)
	server.RequireAuth("secret")

	config := newMiniredisConfig(t, server)
	config.Auth = "secret"
	config.Database = 2

	pool, _ := startPool(t, config, 1)
	waitForStats(t, pool, func(stats PoolStats) bool { return stats.Occupied == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pool.Get(ctx)
	require.NoError(t, err)

	r := send(t, conn, "SET", "key2", "test2")
	require.NoError(t, r.err)

	value, err := server.DB(2).Get("key2")
	require.NoError(t, err)
	assert.Equal(t, "test2", value)
	assert.False(t, server.Exists("key2"), "database 0 is untouched")
}

func TestRedisPoolGivesUpOnBadAuth(t *testing.T) {
	server := miniredis.RunT(t)
	server.RequireAuth("secret")

	config := newMiniredisConfig(t, server)
	config.Auth = "wrong"
	config.MaxConnectionRetries = 2

	pool, _ := startPool(t, config, 1)
	waitForStats(t, pool, func(stats PoolStats) bool { return stats.GiveUps == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := pool.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Occupied)
	assert.Equal(t, 0, stats.Connecting)
	assert.Equal(t, uint64(2), stats.ConnectFailures)
}

func TestRedisPoolDetectsServerLoss(t *testing.T) {
	server := miniredis.RunT(t)

	config := newMiniredisConfig(t, server)
	config.MaxConnectionRetries = 1

	pool, _ := startPool(t, config, 1)
	waitForStats(t, pool, func(stats PoolStats) bool { return stats.Occupied == 1 })

	server.Close()

	waitForStats(t, pool, func(stats PoolStats) bool {
		return stats.Disconnects == 1 && stats.Occupied == 0 && stats.Connecting == 0
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Get(ctx)
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestRedisConnCommandsAfterClose(t *testing.T) {
	server := miniredis.RunT(t)
	config := newMiniredisConfig(t, server)

	loop := NewEventLoop()
	loop.Start()
	defer loop.Stop()

	client, err := NewRedisClient(config)
	require.NoError(t, err)

	handle, err := client.Dial(config.Endpoint())
	require.NoError(t, err)

	connected := make(chan error, 1)
	disconnected := make(chan error, 1)
	handle.SetConnectCallback(func(err error) { connected <- err })
	handle.SetDisconnectCallback(func(err error) { disconnected <- err })
	handle.Attach(loop)

	require.NoError(t, <-connected)

	handle.Disconnect()
	assert.NoError(t, <-disconnected, "a requested close reports no error")
	<-handle.(*RedisConn).Done()

	r := send(t, handle, "PING")
	assert.ErrorIs(t, r.err, ErrConnectionClosed)
}
