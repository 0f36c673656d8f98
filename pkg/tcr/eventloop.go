package tcr

import (
	"fmt"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

// Loop runs callbacks one at a time on a single goroutine. Every piece of
// ConnectionPool state is only touched from inside a Loop callback.
type Loop interface {
	// Post queues fn to run on the loop.
	Post(fn func()) error

	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a one shot Loop callback that has not run yet.
type Timer interface {
	// Stop prevents the callback from running. It reports false when the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

// EventLoop is the default Loop, backed by a Workiva queue of tasks.
type EventLoop struct {
	tasks        *queue.Queue
	timers       map[*loopTimer]struct{}
	timerLock    *sync.Mutex
	running      sync.WaitGroup
	startOnce    sync.Once
	stopOnce     sync.Once
	errorHandler func(error)
}

// NewEventLoop creates an EventLoop. Call Start (or Run) to begin processing.
func NewEventLoop() *EventLoop {
	return NewEventLoopWithErrorHandler(nil)
}

// NewEventLoopWithErrorHandler creates an EventLoop that reports recovered task panics.
func NewEventLoopWithErrorHandler(errorHandler func(error)) *EventLoop {
	return &EventLoop{
		tasks:        queue.New(64),
		timers:       make(map[*loopTimer]struct{}),
		timerLock:    &sync.Mutex{},
		errorHandler: errorHandler,
	}
}

// Start runs the loop on its own goroutine.
func (el *EventLoop) Start() {
	el.startOnce.Do(func() {
		el.running.Add(1)
		go func() {
			defer el.running.Done()
			el.dispatch()
		}()
	})
}

// Run processes tasks on the calling goroutine until Stop is called.
func (el *EventLoop) Run() {
	started := false
	el.startOnce.Do(func() {
		started = true
		el.running.Add(1)
	})
	if !started {
		return
	}

	defer el.running.Done()
	el.dispatch()
}

func (el *EventLoop) dispatch() {
	for {
		// Pauses here until work arrives or the queue is disposed.
		items, err := el.tasks.Get(64)
		if err != nil {
			return
		}

		for _, item := range items {
			if task, ok := item.(func()); ok {
				el.execute(task)
			}
		}
	}
}

func (el *EventLoop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil && el.errorHandler != nil {
			el.errorHandler(fmt.Errorf("event loop task panicked: %v", r))
		}
	}()

	task()
}

// Post queues fn to run on the loop. Safe to call from any goroutine.
func (el *EventLoop) Post(fn func()) error {
	if err := el.tasks.Put(fn); err != nil {
		return ErrLoopClosed
	}

	return nil
}

// AfterFunc schedules fn on the loop once d has elapsed.
func (el *EventLoop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{loop: el}

	el.timerLock.Lock()
	el.timers[lt] = struct{}{}
	el.timerLock.Unlock()

	lt.lock.Lock()
	lt.timer = time.AfterFunc(d, func() {
		if err := el.Post(lt.fire(fn)); err != nil {
			el.forget(lt)
		}
	})
	lt.lock.Unlock()

	return lt
}

func (el *EventLoop) forget(lt *loopTimer) {
	el.timerLock.Lock()
	delete(el.timers, lt)
	el.timerLock.Unlock()
}

// Pending reports how many tasks are queued but not yet run.
func (el *EventLoop) Pending() int64 {
	return el.tasks.Len()
}

// Stop stops every pending timer, discards queued tasks and waits for the
// loop goroutine to exit. Stop must not be called from a loop task.
func (el *EventLoop) Stop() {
	el.stopOnce.Do(func() {
		el.timerLock.Lock()
		timers := el.timers
		el.timers = make(map[*loopTimer]struct{})
		el.timerLock.Unlock()

		for lt := range timers {
			lt.Stop()
		}

		el.tasks.Dispose()
		el.running.Wait()
	})
}

type loopTimer struct {
	loop    *EventLoop
	timer   *time.Timer
	lock    sync.Mutex
	stopped bool
	fired   bool
}

// fire wraps fn so a Stop that lands after the timer elapsed, but before the
// task reached the front of the queue, still cancels it.
func (lt *loopTimer) fire(fn func()) func() {
	return func() {
		lt.lock.Lock()
		if lt.stopped {
			lt.lock.Unlock()
			return
		}
		lt.fired = true
		lt.lock.Unlock()

		lt.loop.forget(lt)
		fn()
	}
}

func (lt *loopTimer) Stop() bool {
	lt.lock.Lock()
	if lt.stopped || lt.fired {
		lt.lock.Unlock()
		return false
	}

	lt.stopped = true
	if lt.timer != nil {
		lt.timer.Stop()
	}
	lt.lock.Unlock()

	lt.loop.forget(lt)
	return true
}
