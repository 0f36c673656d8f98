package tcr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ConnectionPool houses a fixed number of asynchronous Redis connections.
//
// All state belongs to the Loop: Init, GetContext, Destroy and Snapshot must
// run inside a Loop callback (or before the loop starts). Get, Shutdown and
// Stats are safe from any goroutine and hop onto the Loop themselves.
type ConnectionPool struct {
	Config              PoolConfig
	id                  string
	count               int
	endpoint            Endpoint
	loop                Loop
	client              Client
	registry            *Registry
	slots               []Conn
	connecting          int
	cursor              int
	shutdown            bool
	requests            map[*connRequest]struct{}
	stats               poolCounters
	logger              *slog.Logger
	errorHandler        func(error)
	notificationHandler func(*Notification)
}

// PoolStats is a point in time view of a ConnectionPool.
type PoolStats struct {
	PoolID          string `json:"PoolID"`
	Slots           int    `json:"Slots"`
	Occupied        int    `json:"Occupied"`
	Connecting      int    `json:"Connecting"`
	Requests        int    `json:"Requests"`
	Cursor          int    `json:"Cursor"`
	Shutdown        bool   `json:"Shutdown"`
	Attempts        uint64 `json:"Attempts"`
	ConnectFailures uint64 `json:"ConnectFailures"`
	Disconnects     uint64 `json:"Disconnects"`
	GiveUps         uint64 `json:"GiveUps"`
	SurplusDrops    uint64 `json:"SurplusDrops"`
	Hits            uint64 `json:"Hits"`
	Misses          uint64 `json:"Misses"`
}

type poolCounters struct {
	attempts        uint64
	connectFailures uint64
	disconnects     uint64
	giveUps         uint64
	surplusDrops    uint64
	hits            uint64
	misses          uint64
}

// NewConnectionPool creates a pool of count Redis connections. No connection is attempted until Init.
func NewConnectionPool(loop Loop, config *PoolConfig, count int) (*ConnectionPool, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: pool config can't be nil", ErrInvalidConfig)
	}

	client, err := NewRedisClient(config)
	if err != nil {
		return nil, err
	}

	return NewConnectionPoolWithHandlers(loop, client, config, count, nil, nil)
}

// NewConnectionPoolWithClient creates a pool that dials through client.
func NewConnectionPoolWithClient(loop Loop, client Client, config *PoolConfig, count int) (*ConnectionPool, error) {
	return NewConnectionPoolWithHandlers(loop, client, config, count, nil, nil)
}

// NewConnectionPoolWithHandlers creates a pool with an error and/or notification handler.
// Both handlers run on the Loop and must not block.
func NewConnectionPoolWithHandlers(
	loop Loop,
	client Client,
	config *PoolConfig,
	count int,
	errorHandler func(error),
	notificationHandler func(*Notification)) (*ConnectionPool, error) {

	if loop == nil || client == nil {
		return nil, fmt.Errorf("%w: loop and client are required", ErrInvalidConfig)
	}

	if config == nil {
		return nil, fmt.Errorf("%w: pool config can't be nil", ErrInvalidConfig)
	}

	if count <= 0 {
		return nil, fmt.Errorf("%w: connectionpool count must be positive, got %d", ErrInvalidConfig, count)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	cp := &ConnectionPool{
		Config:              *config,
		id:                  id,
		count:               count,
		endpoint:            config.Endpoint(),
		loop:                loop,
		client:              client,
		registry:            DefaultRegistry,
		slots:               make([]Conn, count),
		requests:            make(map[*connRequest]struct{}),
		logger:              slog.Default().With("pool", id),
		errorHandler:        errorHandler,
		notificationHandler: notificationHandler,
	}

	cp.registry.Register(cp)

	return cp, nil
}

// SetLogger replaces the pool's logger. Call before Init.
func (cp *ConnectionPool) SetLogger(logger *slog.Logger) {
	if logger != nil {
		cp.logger = logger.With("pool", cp.id)
	}
}

// ID uniquely identifies the pool in its Registry.
func (cp *ConnectionPool) ID() string {
	return cp.id
}

// Count is the number of slots.
func (cp *ConnectionPool) Count() int {
	return cp.count
}

// Init starts one connection request per slot, less any already in flight.
// Calling it again, or after GetContext seeded requests, never exceeds Count attempts.
func (cp *ConnectionPool) Init() {
	if cp.shutdown {
		return
	}

	for i := 0; i < cp.count && cp.connecting < cp.count; i++ {
		cp.connect(cp.newRequest())
	}
}

// GetContext returns the next live connection in round robin order, or nil
// when every slot is empty. Each empty slot passed during the scan seeds a
// new connection request while fewer than Count attempts are in flight.
func (cp *ConnectionPool) GetContext() Conn {
	if cp.shutdown {
		return nil
	}

	found, cursor, passed := nextSlot(cp.slots, cp.cursor)
	cp.cursor = cursor

	for ; passed > 0 && cp.connecting < cp.count; passed-- {
		cp.connect(cp.newRequest())
	}

	if found < 0 {
		cp.stats.misses++
		return nil
	}

	cp.stats.hits++
	return cp.slots[found]
}

// Destroy disconnects every live or pending connection, cancels every
// reconnect and removes the pool from its Registry. The pool is unusable afterwards.
func (cp *ConnectionPool) Destroy() {
	if cp.shutdown {
		return
	}

	cp.shutdown = true
	cp.registry.Unregister(cp.id)

	for req := range cp.requests {
		req.retired = true

		if req.timer != nil {
			req.timer.Stop()
			req.timer = nil
		}

		if req.conn != nil {
			req.conn.Disconnect()
			req.conn = nil
		}
	}

	for i := range cp.slots {
		cp.slots[i] = nil
	}

	cp.requests = make(map[*connRequest]struct{})
	cp.connecting = 0

	cp.logger.Info("connection pool destroyed")
	cp.notify(EventShutdown, -1, 0, nil)
}

// Snapshot reports the pool state. Must run on the Loop.
func (cp *ConnectionPool) Snapshot() PoolStats {
	occupied := 0
	for _, conn := range cp.slots {
		if conn != nil {
			occupied++
		}
	}

	return PoolStats{
		PoolID:          cp.id,
		Slots:           cp.count,
		Occupied:        occupied,
		Connecting:      cp.connecting,
		Requests:        len(cp.requests),
		Cursor:          cp.cursor,
		Shutdown:        cp.shutdown,
		Attempts:        cp.stats.attempts,
		ConnectFailures: cp.stats.connectFailures,
		Disconnects:     cp.stats.disconnects,
		GiveUps:         cp.stats.giveUps,
		SurplusDrops:    cp.stats.surplusDrops,
		Hits:            cp.stats.hits,
		Misses:          cp.stats.misses,
	}
}

// Get returns the next live connection from any goroutine.
// ErrNoConnection means every slot was empty at call time.
func (cp *ConnectionPool) Get(ctx context.Context) (Conn, error) {
	var conn Conn
	var err error

	if runErr := cp.onLoop(ctx, func() {
		if cp.shutdown {
			err = ErrConnectionPoolClosed
			return
		}

		if conn = cp.GetContext(); conn == nil {
			err = ErrNoConnection
		}
	}); runErr != nil {
		return nil, runErr
	}

	return conn, err
}

// Stats returns a Snapshot from any goroutine.
func (cp *ConnectionPool) Stats(ctx context.Context) (PoolStats, error) {
	var stats PoolStats
	err := cp.onLoop(ctx, func() { stats = cp.Snapshot() })
	return stats, err
}

// Shutdown runs Destroy on the Loop and waits for it. Once the Loop has
// stopped nothing else can touch the pool, so Destroy runs on the caller.
func (cp *ConnectionPool) Shutdown(ctx context.Context) error {
	err := cp.onLoop(ctx, cp.Destroy)
	if errors.Is(err, ErrLoopClosed) {
		cp.Destroy()
		return nil
	}

	return err
}

func (cp *ConnectionPool) onLoop(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := cp.loop.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cp *ConnectionPool) handleError(err error) {
	if cp.errorHandler != nil {
		cp.errorHandler(err)
	}
}

func (cp *ConnectionPool) notify(event NotificationEvent, slot int, retryTimes int, err error) {
	if cp.notificationHandler != nil {
		cp.notificationHandler(newNotification(cp.id, event, slot, retryTimes, err))
	}
}
