package tcr

import (
	"fmt"
	"math/rand"
	"time"
)

// connRequest tracks one attempt-until-success-or-give-up cycle for filling a
// slot. The same request is reused across retries so retryTimes survives and
// the pool's connecting counter moves exactly once in each direction per cycle.
type connRequest struct {
	poolID     string
	registry   *Registry
	retryTimes int
	inflight   bool // counted in ConnectionPool.connecting
	retired    bool
	slot       int
	conn       Conn
	timer      Timer
}

func (cp *ConnectionPool) newRequest() *connRequest {
	req := &connRequest{
		poolID:   cp.id,
		registry: cp.registry,
		slot:     -1,
	}

	cp.requests[req] = struct{}{}
	return req
}

// pool resolves the owning pool, nil once it was destroyed.
func (req *connRequest) pool() *ConnectionPool {
	cp, ok := req.registry.Lookup(req.poolID)
	if !ok || cp.shutdown {
		return nil
	}

	return cp
}

// connect makes one attempt for req.
func (cp *ConnectionPool) connect(req *connRequest) {
	if cp.shutdown || req.retired {
		return
	}

	if !req.inflight {
		req.inflight = true
		cp.connecting++
	}

	req.retryTimes++

	maxRetries := int(cp.Config.MaxConnectionRetries)
	if maxRetries > 0 && req.retryTimes > maxRetries {
		cp.giveUp(req)
		return
	}

	cp.stats.attempts++

	conn, err := cp.client.Dial(cp.endpoint)
	if err != nil {
		cp.connectFailed(req, err)
		return
	}

	req.conn = conn
	conn.SetConnectCallback(func(err error) { req.onConnect(conn, err) })
	conn.SetDisconnectCallback(func(err error) { req.onDisconnect(conn, err) })

	if cp.Config.Auth != "" {
		conn.Send(nil, "AUTH", cp.Config.Auth)
	}

	if cp.Config.Database > 0 {
		conn.Send(nil, "SELECT", cp.Config.Database)
	}

	conn.Attach(cp.loop)
}

func (req *connRequest) onConnect(conn Conn, err error) {
	cp := req.pool()
	if cp == nil || req.retired || req.conn != conn {
		return
	}

	if err == nil {
		err = conn.Err()
	}

	if err != nil {
		req.conn = nil
		cp.connectFailed(req, err)
		return
	}

	req.retryTimes = 0
	req.inflight = false
	cp.connecting--

	slot := firstEmpty(cp.slots)
	if slot < 0 {
		// Every slot filled while this attempt was in flight.
		cp.retire(req)
		cp.stats.surplusDrops++
		cp.logger.Warn("dropping surplus connection, every slot is taken", "endpoint", cp.endpoint.String())
		cp.notify(EventSurplus, -1, 0, nil)
		conn.Disconnect()
		return
	}

	cp.slots[slot] = conn
	req.slot = slot

	cp.logger.Debug("connection established", "slot", slot, "endpoint", cp.endpoint.String())
	cp.notify(EventConnected, slot, 0, nil)
}

func (req *connRequest) onDisconnect(conn Conn, err error) {
	cp := req.pool()
	if cp == nil || req.retired || req.conn != conn {
		return
	}

	req.conn = nil
	slot := slotOf(cp.slots, conn)
	if slot >= 0 {
		cp.slots[slot] = nil
	}
	req.slot = -1

	cp.stats.disconnects++
	if err != nil {
		cp.logger.Error("connection lost", "slot", slot, "endpoint", cp.endpoint.String(), "error", err)
		cp.handleError(fmt.Errorf("connection lost: %w", err))
	}
	cp.notify(EventDisconnected, slot, req.retryTimes, err)

	// Attempts already in flight cover this gap.
	if cp.connecting >= cp.count {
		cp.retire(req)
		return
	}

	req.inflight = true
	cp.connecting++
	cp.scheduleReconnect(req)
}

func (cp *ConnectionPool) connectFailed(req *connRequest, err error) {
	cp.stats.connectFailures++

	cp.logger.Error("connection failed", "endpoint", cp.endpoint.String(), "retry", req.retryTimes, "error", err)
	cp.handleError(fmt.Errorf("connection failed: %w", err))
	cp.notify(EventConnectFailed, -1, req.retryTimes, err)

	cp.scheduleReconnect(req)
}

func (cp *ConnectionPool) giveUp(req *connRequest) {
	req.inflight = false
	cp.connecting--
	cp.retire(req)
	cp.stats.giveUps++

	err := fmt.Errorf("can't connect to %s, already reached the max connection retry times %d", cp.endpoint, cp.Config.MaxConnectionRetries)
	cp.logger.Error("giving up on connection request", "endpoint", cp.endpoint.String(), "max_retries", cp.Config.MaxConnectionRetries)
	cp.handleError(err)
	cp.notify(EventGaveUp, -1, req.retryTimes-1, err)
}

func (cp *ConnectionPool) retire(req *connRequest) {
	req.retired = true
	delete(cp.requests, req)
}

func (cp *ConnectionPool) scheduleReconnect(req *connRequest) {
	if cp.shutdown || req.retired {
		return
	}

	req.timer = cp.loop.AfterFunc(cp.backoff(req.retryTimes), req.reconnect)
}

func (req *connRequest) reconnect() {
	req.timer = nil

	cp := req.pool()
	if cp == nil {
		return
	}

	cp.connect(req)
}

// backoff is ReconnectInterval, or an exponential delay capped at
// MaxReconnectInterval with up to 20% jitter when that is configured.
func (cp *ConnectionPool) backoff(retryTimes int) time.Duration {
	interval := cp.Config.reconnectInterval()
	ceiling := cp.Config.maxReconnectInterval()
	if ceiling <= interval {
		return interval
	}

	delay := interval
	for i := 1; i < retryTimes && delay < ceiling; i++ {
		delay *= 2
	}

	if delay > ceiling {
		delay = ceiling
	}

	if jitter := int64(delay) / 5; jitter > 0 {
		delay -= time.Duration(rand.Int63n(jitter))
	}

	if delay < interval {
		delay = interval
	}

	return delay
}
