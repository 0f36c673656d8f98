package tcr

import (
	"github.com/streadway/amqp"
)

// Exchange describes the exchange notifications are published to, declared
// when the notifier connects.
type Exchange struct {
	Type           string     `json:"Type" yaml:"Type"` // "direct", "fanout", "topic", "headers"
	PassiveDeclare bool       `json:"PassiveDeclare" yaml:"PassiveDeclare"`
	Durable        bool       `json:"Durable" yaml:"Durable"`
	AutoDelete     bool       `json:"AutoDelete" yaml:"AutoDelete"`
	InternalOnly   bool       `json:"InternalOnly" yaml:"InternalOnly"`
	NoWait         bool       `json:"NoWait" yaml:"NoWait"`
	Args           amqp.Table `json:"Args,omitempty" yaml:"Args,omitempty"`
}

// DeclareExchange creates (or passively checks) the named exchange on the host's channel.
func (ch *ChannelHost) DeclareExchange(name string, exchange *Exchange) error {
	if exchange == nil || name == "" {
		return nil
	}

	exchangeType := exchange.Type
	if exchangeType == "" {
		exchangeType = amqp.ExchangeTopic
	}

	if exchange.PassiveDeclare {
		return ch.Channel.ExchangeDeclarePassive(
			name,
			exchangeType,
			exchange.Durable,
			exchange.AutoDelete,
			exchange.InternalOnly,
			exchange.NoWait,
			exchange.Args)
	}

	return ch.Channel.ExchangeDeclare(
		name,
		exchangeType,
		exchange.Durable,
		exchange.AutoDelete,
		exchange.InternalOnly,
		exchange.NoWait,
		exchange.Args)
}
