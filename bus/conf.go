package bus

import "github.com/aceframe/acebus/ace"

// RabbitMQ configuration props.
const (
	// RabbitMQ server host, default localhost
	PropRabbitMqHost = "rabbitmq.host"

	// RabbitMQ server port, default 5672
	PropRabbitMqPort = "rabbitmq.port"

	// username used to connect to server, default guest
	PropRabbitMqUsername = "rabbitmq.username"

	// password used to connect to server, default guest
	PropRabbitMqPassword = "rabbitmq.password"

	// virtual host
	PropRabbitMqVhost = "rabbitmq.vhost"

	// seconds between retry attempts when a queue/exchange lookup hits a
	// transient channel failure, default 5
	PropRabbitMqRetryIntervalSeconds = "rabbitmq.retry-interval-seconds"
)

func init() {
	ace.SetDefProp(PropRabbitMqHost, "localhost")
	ace.SetDefProp(PropRabbitMqPort, 5672)
	ace.SetDefProp(PropRabbitMqUsername, "guest")
	ace.SetDefProp(PropRabbitMqPassword, "guest")
	ace.SetDefProp(PropRabbitMqRetryIntervalSeconds, 5)
}
