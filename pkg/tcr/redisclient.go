package tcr

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const commandBufferSize = 1024

// RedisClient dials asynchronous Redis connections with go-redis.
type RedisClient struct {
	DialTimeout         time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	HealthCheckInterval time.Duration
	TLSConfig           *tls.Config
}

// NewRedisClient creates a RedisClient with the timeouts and TLS settings from config.
func NewRedisClient(config *PoolConfig) (*RedisClient, error) {
	tlsConfig, err := config.TLSConfig.build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &RedisClient{
		DialTimeout:         config.connectionTimeout(),
		ReadTimeout:         time.Duration(config.ReadTimeout) * time.Millisecond,
		WriteTimeout:        time.Duration(config.WriteTimeout) * time.Millisecond,
		HealthCheckInterval: config.healthCheckInterval(),
		TLSConfig:           tlsConfig,
	}, nil
}

// Dial creates a RedisConn for endpoint. The connection is only opened once attached to a Loop.
func (rc *RedisClient) Dial(endpoint Endpoint) (Conn, error) {
	if endpoint.Host == "" || (!endpoint.IsUnix() && endpoint.Port <= 0) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEndpoint, endpoint)
	}

	healthCheckInterval := rc.HealthCheckInterval
	if healthCheckInterval <= 0 {
		healthCheckInterval = defaultHealthCheckInterval * time.Millisecond
	}

	// One physical connection per handle, reconnects belong to the pool.
	client := redis.NewClient(&redis.Options{
		Network:          endpoint.Network(),
		Addr:             endpoint.Address(),
		DialTimeout:      rc.DialTimeout,
		ReadTimeout:      rc.ReadTimeout,
		WriteTimeout:     rc.WriteTimeout,
		TLSConfig:        rc.TLSConfig,
		PoolSize:         1,
		MaxRetries:       -1,
		DisableIndentity: true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &RedisConn{
		client:              client,
		ctx:                 ctx,
		cancel:              cancel,
		commands:            make(chan *redisCommand, commandBufferSize),
		healthCheckInterval: healthCheckInterval,
		connLock:            &sync.Mutex{},
		done:                make(chan struct{}),
	}, nil
}

type redisCommand struct {
	args  []interface{}
	reply ReplyFunc
}

// RedisConn is a Conn over a single sticky go-redis connection. One goroutine
// owns the connection; results travel back to the Loop as posted tasks.
type RedisConn struct {
	client              *redis.Client
	conn                *redis.Conn
	loop                Loop
	ctx                 context.Context
	cancel              context.CancelFunc
	commands            chan *redisCommand
	pending             []*redisCommand
	onConnect           func(error)
	onDisconnect        func(error)
	healthCheckInterval time.Duration
	connLock            *sync.Mutex
	err                 error
	attached            bool
	closed              bool
	done                chan struct{}
}

// SetConnectCallback registers fn for the handshake outcome.
func (rc *RedisConn) SetConnectCallback(fn func(err error)) {
	rc.connLock.Lock()
	defer rc.connLock.Unlock()
	rc.onConnect = fn
}

// SetDisconnectCallback registers fn for the end of an established connection.
func (rc *RedisConn) SetDisconnectCallback(fn func(err error)) {
	rc.connLock.Lock()
	defer rc.connLock.Unlock()
	rc.onDisconnect = fn
}

// Send queues a command. Before Attach the command becomes part of the handshake.
func (rc *RedisConn) Send(reply ReplyFunc, args ...interface{}) {
	cmd := &redisCommand{args: args, reply: reply}

	rc.connLock.Lock()
	defer rc.connLock.Unlock()

	if rc.closed {
		rc.respond(cmd, nil, ErrConnectionClosed)
		return
	}

	if !rc.attached {
		rc.pending = append(rc.pending, cmd)
		return
	}

	select {
	case rc.commands <- cmd:
	default:
		rc.respond(cmd, nil, ErrCommandQueueFull)
	}
}

// Attach opens the connection and runs the handshake. Callbacks are delivered on loop.
func (rc *RedisConn) Attach(loop Loop) {
	rc.connLock.Lock()
	if rc.attached || rc.closed {
		rc.connLock.Unlock()
		return
	}
	rc.attached = true
	rc.loop = loop
	pending := rc.pending
	rc.pending = nil
	rc.connLock.Unlock()

	go rc.run(pending)
}

// Disconnect closes the connection. An established connection reports a nil
// error through the disconnect callback.
func (rc *RedisConn) Disconnect() {
	rc.connLock.Lock()
	attached, closed := rc.attached, rc.closed
	rc.closed = rc.closed || !attached
	rc.connLock.Unlock()

	rc.cancel()
	if !attached && !closed {
		_ = rc.client.Close()
		close(rc.done)
	}
}

// Done is closed once the connection goroutine has released every resource.
func (rc *RedisConn) Done() <-chan struct{} {
	return rc.done
}

// Err returns the error that ended the connection, if any.
func (rc *RedisConn) Err() error {
	rc.connLock.Lock()
	defer rc.connLock.Unlock()
	return rc.err
}

func (rc *RedisConn) run(handshake []*redisCommand) {
	defer close(rc.done)
	defer func() { _ = rc.client.Close() }()

	rc.conn = rc.client.Conn()
	defer func() { _ = rc.conn.Close() }()

	if err := rc.handshake(handshake); err != nil {
		rc.finish(err)
		rc.post(rc.connectCallback(), err)
		return
	}

	rc.post(rc.connectCallback(), nil)

	ticker := time.NewTicker(rc.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rc.ctx.Done():
			rc.disconnect(nil)
			return
		case cmd := <-rc.commands:
			if err := rc.execute(cmd); err != nil {
				rc.disconnect(err)
				return
			}
		case <-ticker.C:
			if err := rc.conn.Ping(rc.ctx).Err(); err != nil {
				rc.disconnect(rc.connectionError(err))
				return
			}
		}
	}
}

// handshake runs the commands queued before Attach, then confirms with a PING.
// The connection is only reported ready once every one was acknowledged.
func (rc *RedisConn) handshake(commands []*redisCommand) error {
	for _, cmd := range commands {
		reply, err := rc.do(cmd)
		rc.respond(cmd, reply, err)
		if err != nil {
			return fmt.Errorf("handshake %v: %w", cmd.args[0], err)
		}
	}

	return rc.conn.Ping(rc.ctx).Err()
}

// execute runs a single command and returns an error only when the
// connection itself is broken.
func (rc *RedisConn) execute(cmd *redisCommand) error {
	reply, err := rc.do(cmd)
	rc.respond(cmd, reply, err)

	if err == nil || rc.ctx.Err() != nil {
		return nil
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return nil
	}

	return err
}

func (rc *RedisConn) do(cmd *redisCommand) (interface{}, error) {
	redisCmd := redis.NewCmd(rc.ctx, cmd.args...)
	_ = rc.conn.Process(rc.ctx, redisCmd)
	return redisCmd.Result()
}

func (rc *RedisConn) connectionError(err error) error {
	if rc.ctx.Err() != nil {
		return nil
	}

	return err
}

func (rc *RedisConn) disconnect(err error) {
	rc.finish(err)
	rc.post(rc.disconnectCallback(), err)
}

// finish marks the handle closed and fails whatever is still queued.
func (rc *RedisConn) finish(err error) {
	rc.connLock.Lock()
	rc.closed = true
	if err != nil {
		rc.err = err
	}
	rc.connLock.Unlock()

	rc.cancel()

	for {
		select {
		case cmd := <-rc.commands:
			rc.respond(cmd, nil, ErrConnectionClosed)
		default:
			return
		}
	}
}

func (rc *RedisConn) connectCallback() func(error) {
	rc.connLock.Lock()
	defer rc.connLock.Unlock()
	return rc.onConnect
}

func (rc *RedisConn) disconnectCallback() func(error) {
	rc.connLock.Lock()
	defer rc.connLock.Unlock()
	return rc.onDisconnect
}

func (rc *RedisConn) post(fn func(error), err error) {
	if fn == nil || rc.loop == nil {
		return
	}

	_ = rc.loop.Post(func() { fn(err) })
}

func (rc *RedisConn) respond(cmd *redisCommand, reply interface{}, err error) {
	if cmd.reply == nil || rc.loop == nil {
		return
	}

	_ = rc.loop.Post(func() { cmd.reply(reply, err) })
}
