package tcr

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

// manualLoop is a Loop driven by the test: Drain runs posted tasks and
// Advance moves a fake clock, firing timers in order.
type manualLoop struct {
	now    time.Duration
	tasks  []func()
	timers []*manualTimer
	closed bool
}

type manualTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (mt *manualTimer) Stop() bool {
	if mt.stopped || mt.fired {
		return false
	}

	mt.stopped = true
	return true
}

func (ml *manualLoop) Post(fn func()) error {
	if ml.closed {
		return ErrLoopClosed
	}

	ml.tasks = append(ml.tasks, fn)
	return nil
}

func (ml *manualLoop) AfterFunc(d time.Duration, fn func()) Timer {
	mt := &manualTimer{at: ml.now + d, fn: fn}
	ml.timers = append(ml.timers, mt)
	return mt
}

func (ml *manualLoop) Drain() {
	for len(ml.tasks) > 0 {
		task := ml.tasks[0]
		ml.tasks = ml.tasks[1:]
		task()
	}
}

func (ml *manualLoop) Advance(d time.Duration) {
	target := ml.now + d
	for {
		ml.Drain()

		due := ml.due(target)
		if len(due) == 0 {
			break
		}

		mt := due[0]
		ml.now = mt.at
		mt.fired = true
		mt.fn()
	}

	ml.now = target
}

func (ml *manualLoop) due(target time.Duration) []*manualTimer {
	var due []*manualTimer
	for _, mt := range ml.timers {
		if !mt.stopped && !mt.fired && mt.at <= target {
			due = append(due, mt)
		}
	}

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	return due
}

func (ml *manualLoop) ActiveTimers() int {
	active := 0
	for _, mt := range ml.timers {
		if !mt.stopped && !mt.fired {
			active++
		}
	}

	return active
}

// fakeClient hands out fakeConns and lets the test decide their fate.
type fakeClient struct {
	lock    sync.Mutex
	conns   []*fakeConn
	dialErr error
}

func (fc *fakeClient) Dial(endpoint Endpoint) (Conn, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()

	if fc.dialErr != nil {
		return nil, fc.dialErr
	}

	conn := &fakeConn{endpoint: endpoint}
	fc.conns = append(fc.conns, conn)
	return conn, nil
}

func (fc *fakeClient) Dials() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return len(fc.conns)
}

func (fc *fakeClient) Conn(i int) *fakeConn {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.conns[i]
}

func (fc *fakeClient) SetDialErr(err error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.dialErr = err
}

type fakeConn struct {
	lock         sync.Mutex
	endpoint     Endpoint
	loop         Loop
	onConnect    func(error)
	onDisconnect func(error)
	sent         [][]interface{}
	connected    bool
	disconnected bool
	err          error
}

func (fc *fakeConn) SetConnectCallback(fn func(err error)) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.onConnect = fn
}

func (fc *fakeConn) SetDisconnectCallback(fn func(err error)) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.onDisconnect = fn
}

func (fc *fakeConn) Send(reply ReplyFunc, args ...interface{}) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.sent = append(fc.sent, args)

	if reply != nil && fc.loop != nil {
		_ = fc.loop.Post(func() { reply("OK", nil) })
	}
}

func (fc *fakeConn) Attach(loop Loop) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.loop = loop
}

// Disconnect reports a clean close for an established connection.
func (fc *fakeConn) Disconnect() {
	fc.lock.Lock()
	defer fc.lock.Unlock()

	if fc.disconnected {
		return
	}

	fc.disconnected = true
	if fc.connected {
		fc.connected = false
		fc.post(fc.onDisconnect, nil)
	}
}

func (fc *fakeConn) Err() error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.err
}

func (fc *fakeConn) Succeed() {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.connected = true
	fc.post(fc.onConnect, nil)
}

func (fc *fakeConn) Fail(err error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.err = err
	fc.post(fc.onConnect, err)
}

func (fc *fakeConn) Drop(err error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.err = err
	fc.connected = false
	fc.post(fc.onDisconnect, err)
}

func (fc *fakeConn) Disconnected() bool {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.disconnected
}

func (fc *fakeConn) Sent() [][]interface{} {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return append([][]interface{}(nil), fc.sent...)
}

func (fc *fakeConn) post(fn func(error), err error) {
	if fn == nil || fc.loop == nil {
		return
	}

	_ = fc.loop.Post(func() { fn(err) })
}
