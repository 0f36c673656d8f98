package tcr

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// PublishFunc delivers one serialized notification.
type PublishFunc func(body []byte) error

// Notifier ships pool Notifications to RabbitMQ off the Loop. Notify never
// blocks, a full buffer drops the notification.
type Notifier struct {
	Config        NotifierConfig
	notifications chan *Notification
	publish       PublishFunc
	channelHost   *ChannelHost
	hostLock      *sync.Mutex
	logger        *slog.Logger
	stop          chan struct{}
	stopOnce      sync.Once
	stopLock      *sync.RWMutex
	stopped       bool
	group         *sync.WaitGroup
	published     uint64
	dropped       uint64
	failed        uint64
}

// NewNotifier creates a Notifier that publishes through a lazily dialed ChannelHost.
func NewNotifier(config *NotifierConfig, logger *slog.Logger) (*Notifier, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: notifier config can't be nil", ErrInvalidConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	not := newNotifier(config, logger)
	not.publish = not.publishToRabbit

	return not, nil
}

// NewNotifierWithPublisher creates a Notifier that hands every payload to publish.
func NewNotifierWithPublisher(config *NotifierConfig, publish PublishFunc, logger *slog.Logger) (*Notifier, error) {
	if publish == nil {
		return nil, fmt.Errorf("%w: publish func can't be nil", ErrInvalidConfig)
	}

	if config != nil {
		if err := config.validatePayload(); err != nil {
			return nil, err
		}
	}

	not := newNotifier(config, logger)
	not.publish = publish
	return not, nil
}

func newNotifier(config *NotifierConfig, logger *slog.Logger) *Notifier {
	if config == nil {
		config = &NotifierConfig{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	buffer := config.NotificationBuffer
	if buffer == 0 {
		buffer = defaultNotificationBuffer
	}

	return &Notifier{
		Config:        *config,
		notifications: make(chan *Notification, buffer),
		hostLock:      &sync.Mutex{},
		logger:        logger.With("component", "notifier"),
		stop:          make(chan struct{}),
		stopLock:      &sync.RWMutex{},
		group:         &sync.WaitGroup{},
	}
}

// StartPublishing starts the goroutine that drains queued notifications.
func (not *Notifier) StartPublishing() {
	not.group.Add(1)
	go func() {
		defer not.group.Done()
		not.publishLoop()
	}()
}

// Notify queues a notification. Usable directly as a pool notification handler.
func (not *Notifier) Notify(notification *Notification) {
	if notification == nil {
		return
	}

	// Shutdown can't close the buffer out from under a send in progress.
	not.stopLock.RLock()
	defer not.stopLock.RUnlock()

	if not.stopped {
		atomic.AddUint64(&not.dropped, 1)
		return
	}

	select {
	case not.notifications <- notification:
	default:
		atomic.AddUint64(&not.dropped, 1)
	}
}

// Published is the number of notifications delivered.
func (not *Notifier) Published() uint64 {
	return atomic.LoadUint64(&not.published)
}

// Dropped is the number of notifications discarded because the buffer was full or the Notifier stopped.
func (not *Notifier) Dropped() uint64 {
	return atomic.LoadUint64(&not.dropped)
}

// Failed is the number of notifications that could not be serialized or published.
func (not *Notifier) Failed() uint64 {
	return atomic.LoadUint64(&not.failed)
}

// Shutdown publishes what is already queued, then closes the RabbitMQ connection.
// Whatever is left because publishing never started counts as dropped.
func (not *Notifier) Shutdown() {
	not.stopLock.Lock()
	not.stopped = true
	not.stopLock.Unlock()

	not.stopOnce.Do(func() { close(not.stop) })
	not.group.Wait()

FlushLoop:
	for {
		select {
		case <-not.notifications:
			atomic.AddUint64(&not.dropped, 1)
		default:
			break FlushLoop
		}
	}

	not.hostLock.Lock()
	defer not.hostLock.Unlock()

	if not.channelHost != nil {
		not.channelHost.Close()
		not.channelHost = nil
	}
}

func (not *Notifier) publishLoop() {
	for {
		select {
		case <-not.stop:
			not.flush()
			return
		case notification := <-not.notifications:
			not.deliver(notification)
		}
	}
}

func (not *Notifier) flush() {
	for {
		select {
		case notification := <-not.notifications:
			not.deliver(notification)
		default:
			return
		}
	}
}

func (not *Notifier) deliver(notification *Notification) {
	body, err := CreatePayload(notification, not.Config.CompressionConfig, not.Config.EncryptionConfig)
	if err != nil {
		atomic.AddUint64(&not.failed, 1)
		not.logger.Error("can't serialize notification", "notification_id", notification.NotificationID.String(), "error", err)
		return
	}

	if err = not.publish(body); err != nil {
		atomic.AddUint64(&not.failed, 1)
		not.logger.Warn("notification publish failed", "notification_id", notification.NotificationID.String(), "event", string(notification.Event), "error", err)
		return
	}

	atomic.AddUint64(&not.published, 1)
}

func (not *Notifier) publishToRabbit(body []byte) error {
	not.hostLock.Lock()
	defer not.hostLock.Unlock()

	if not.channelHost != nil && not.channelHost.Closed() {
		not.channelHost.Close()
		not.channelHost = nil
	}

	if not.channelHost == nil {
		channelHost, err := NewChannelHost(
			not.Config.URI,
			"turbocookedredis-notifier",
			time.Duration(not.Config.Heartbeat)*time.Second,
			not.connectionTimeout(),
			not.Config.TLSConfig)
		if err != nil {
			return err
		}

		if err = channelHost.DeclareExchange(not.Config.Exchange, not.Config.ExchangeTopology); err != nil {
			channelHost.Close()
			return err
		}

		not.channelHost = channelHost
	}

	err := not.channelHost.Publish(not.Config.Exchange, not.Config.RoutingKey, body)
	if err != nil {
		not.channelHost.Close()
		not.channelHost = nil
	}

	return err
}

func (not *Notifier) connectionTimeout() time.Duration {
	if not.Config.ConnectionTimeout == 0 {
		return defaultConnectionTimeout * time.Second
	}

	return time.Duration(not.Config.ConnectionTimeout) * time.Second
}
