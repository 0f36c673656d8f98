package tcr

import (
	"errors"
	"time"

	"github.com/streadway/amqp"
)

// ChannelHost pairs an amqp.Connection with the single channel notifications are published on.
type ChannelHost struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
	Errors     chan *amqp.Error
}

// NewChannelHost dials uri and opens a publishing channel.
func NewChannelHost(
	uri string,
	connectionName string,
	heartbeatInterval time.Duration,
	connectionTimeout time.Duration,
	tlsConfig *TLSConfig) (*ChannelHost, error) {

	amqpConfig := amqp.Config{
		Heartbeat: heartbeatInterval,
		Dial:      amqp.DefaultDial(connectionTimeout),
		Properties: amqp.Table{
			"connection_name": connectionName,
		},
	}

	actualTLSConfig, err := tlsConfig.build()
	if err != nil {
		return nil, err
	}

	if actualTLSConfig != nil {
		amqpConfig.TLSClientConfig = actualTLSConfig
		uri = "amqps://" + tlsConfig.CertServerName
	}

	amqpConn, err := amqp.DialConfig(uri, amqpConfig)
	if err != nil {
		return nil, err
	}

	if amqpConn.IsClosed() {
		return nil, errors.New("can't open a channel - connection is already closed")
	}

	amqpChan, err := amqpConn.Channel()
	if err != nil {
		amqpConn.Close()
		return nil, err
	}

	channelHost := &ChannelHost{
		Connection: amqpConn,
		Channel:    amqpChan,
		Errors:     make(chan *amqp.Error, 1),
	}

	channelHost.Channel.NotifyClose(channelHost.Errors)

	return channelHost, nil
}

// Publish sends body to exchange with routingKey.
func (ch *ChannelHost) Publish(exchange, routingKey string, body []byte) error {
	return ch.Channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// Closed reports whether the channel has been closed by the server or the connection dropped.
func (ch *ChannelHost) Closed() bool {
	select {
	case <-ch.Errors:
		return true
	default:
		return ch.Connection.IsClosed()
	}
}

// Close allows for manual close of the channel and its connection.
func (ch *ChannelHost) Close() {
	ch.Channel.Close()
	ch.Connection.Close()
}
