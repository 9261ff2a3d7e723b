package bus

import (
	"context"
	"fmt"

	"github.com/aceframe/acebus/ace"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the slice of *amqp.Channel the manager relies on.
//
// *amqp.Channel implements it directly, tests substitute fakes.
type Channel interface {
	IsClosed() bool
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connection is the slice of *amqp.Connection the manager relies on.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer establishes a broker connection.
type Dialer func(rail ace.Rail) (Connection, error)

// amqpConnection adapts *amqp.Connection to the Connection interface.
type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Dial broker using the rabbitmq.* props.
func dialFromProps(rail ace.Rail) (Connection, error) {
	username := ace.GetPropStr(PropRabbitMqUsername)
	password := ace.GetPropStr(PropRabbitMqPassword)
	vhost := ace.GetPropStr(PropRabbitMqVhost)
	host := ace.GetPropStr(PropRabbitMqHost)
	port := ace.GetPropInt(PropRabbitMqPort)
	dialUrl := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", username, password, host, port, vhost)

	rail.Infof("Establish connection to RabbitMQ: '%s@%s:%d/%s'", username, host, port, vhost)
	conn, err := amqp.DialConfig(dialUrl, amqp.Config{})
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}
