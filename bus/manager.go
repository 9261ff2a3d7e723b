package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aceframe/acebus/ace"
	amqp "github.com/rabbitmq/amqp091-go"
)

// State of the bus connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

var ErrNotConnected = ace.NewErrf("bus is not connected")

// ConsumerFunc handles a single inbound delivery.
type ConsumerFunc func(rail ace.Rail, d amqp.Delivery)

// Hook runs on the bus loop during lifecycle transitions.
//
// Hooks must issue bus work through the provided Loop, not through the
// Manager's public methods, those marshal onto the very loop the hook is
// occupying.
type Hook func(rail ace.Rail, loop Loop) error

// Loop exposes bus operations to code already running on the bus loop.
type Loop struct {
	m *Manager
}

func (l Loop) Subscribe(rail ace.Rail, queue string, consumer ConsumerFunc) error {
	return l.m.subscribeOnLoop(rail, queue, consumer)
}

func (l Loop) ResolveExchange(rail ace.Rail, exchange string) error {
	return l.m.resolveExchangeOnLoop(rail, exchange)
}

func (l Loop) Publish(rail ace.Rail, exchange string, body []byte, deliveryMode uint8) error {
	return l.m.publishOnLoop(rail, exchange, body, deliveryMode)
}

type task struct {
	rail ace.Rail
	run  func(rail ace.Rail) error
	done chan error
}

// Manager owns the dedicated bus loop goroutine, the broker connection, and
// the current channel.
//
// All bus I/O is marshalled onto the loop through an unbuffered task channel,
// the submitting goroutine blocks until the task has run to completion there.
// Nothing other than the loop ever touches the connection or channel.
type Manager struct {
	mu    sync.Mutex
	state State

	dial    Dialer
	backoff time.Duration
	sleep   func(d time.Duration)

	onPostConnect   Hook
	onPreDisconnect Hook

	tasks    chan task
	stop     chan struct{}
	stopOnce *sync.Once

	// loop-owned, only the bus loop goroutine touches these
	conn Connection
	ch   Channel
}

type Option func(m *Manager)

// Replace the prop-based dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// Override the fixed backoff between retry attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) { m.backoff = d }
}

// Run h on the bus loop right after the connection is established, before the
// loop starts servicing other work. Subscription setup belongs here.
func WithPostConnectHook(h Hook) Option {
	return func(m *Manager) { m.onPostConnect = h }
}

// Run h on the bus loop right before channel and connection are closed.
func WithPreDisconnectHook(h Hook) Option {
	return func(m *Manager) { m.onPreDisconnect = h }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		dial:    dialFromProps,
		backoff: time.Duration(ace.GetPropInt(PropRabbitMqRetryIntervalSeconds)) * time.Second,
		sleep:   time.Sleep,
	}
	for _, op := range opts {
		op(m)
	}
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect spawns the bus loop goroutine, which dials the broker, opens the
// initial channel, runs the post-connect hook, then parks servicing tasks
// until Disconnect. Non-blocking for the caller. Returns an error when the
// manager is not disconnected.
//
// A failure during the initial connect is not retried, the loop logs it and
// goes back to disconnected, a supervising layer decides whether to restart.
func (m *Manager) Connect(rail ace.Rail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDisconnected {
		return ace.NewErrf("bus is %v, refusing to connect", m.state)
	}
	m.state = StateConnecting
	m.tasks = make(chan task)
	m.stop = make(chan struct{})
	m.stopOnce = new(sync.Once)

	rail.Debug("Connecting to busses")
	go m.runLoop(rail)
	return nil
}

func (m *Manager) runLoop(rail ace.Rail) {
	conn, err := m.dial(rail)
	if err != nil {
		rail.Errorf("Failed to connect to broker: %v", err)
		m.requestStop()
		m.setState(StateDisconnected)
		return
	}

	ch, err := conn.Channel()
	if err != nil {
		rail.Errorf("Failed to open initial channel: %v", err)
		_ = conn.Close()
		m.requestStop()
		m.setState(StateDisconnected)
		return
	}

	m.conn = conn
	m.ch = ch
	rail.Info("Busses connection established")

	if m.onPostConnect != nil {
		if err := m.onPostConnect(rail, Loop{m: m}); err != nil {
			rail.Errorf("Post-connect hook failed: %v", err)
		}
	}
	m.setState(StateConnected)

	for {
		select {
		case t := <-m.tasks:
			t.done <- t.run(t.rail)
		case <-m.stop:
			m.setState(StateDisconnected)
			rail.Info("Bus loop stopped")
			return
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Ask the loop to stop without waiting for it.
func (m *Manager) requestStop() {
	m.mu.Lock()
	once, stop := m.stopOnce, m.stop
	m.mu.Unlock()
	if once != nil {
		once.Do(func() { close(stop) })
	}
}

// Marshal run onto the bus loop and block until it has run to completion.
//
// The task channel is unbuffered, once the send succeeds the loop has picked
// the task up and is guaranteed to report back on done.
func (m *Manager) submit(rail ace.Rail, run func(rail ace.Rail) error) error {
	m.mu.Lock()
	tasks, stop, s := m.tasks, m.stop, m.state
	m.mu.Unlock()

	if tasks == nil || s == StateDisconnected {
		return ErrNotConnected
	}

	t := task{rail: rail, run: run, done: make(chan error, 1)}
	select {
	case tasks <- t:
		return <-t.done
	case <-stop:
		return ErrNotConnected
	}
}

// Disconnect runs the pre-disconnect hook, then closes channel and connection
// in that order, all on the bus loop, blocking the caller until that teardown
// completes. The final loop-stop request is posted without waiting.
//
// Must be called from outside the bus loop.
func (m *Manager) Disconnect(rail ace.Rail) error {
	m.mu.Lock()
	if m.state != StateConnected {
		s := m.state
		m.mu.Unlock()
		return ace.NewErrf("bus is %v, nothing to disconnect", s)
	}
	m.state = StateDisconnecting
	m.mu.Unlock()

	rail.Debug("Disconnecting from busses")
	err := m.submit(rail, func(rail ace.Rail) error {
		if m.onPreDisconnect != nil {
			if herr := m.onPreDisconnect(rail, Loop{m: m}); herr != nil {
				rail.Warnf("Pre-disconnect hook failed: %v", herr)
			}
		}
		if m.ch != nil {
			if cerr := m.ch.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
				rail.Warnf("Failed to close channel: %v", cerr)
			}
			m.ch = nil
		}
		if m.conn != nil {
			if cerr := m.conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
				return ace.WrapErrf(cerr, "failed to close bus connection")
			}
			m.conn = nil
		}
		rail.Info("Busses connection closed")
		return nil
	})

	m.requestStop()
	return err
}

// Subscribe attaches consumer to the named queue, transparently recreating the
// channel and retrying when the channel reports closed. Blocks the caller
// until the consumer is attached.
func (m *Manager) Subscribe(rail ace.Rail, queue string, consumer ConsumerFunc) error {
	if consumer == nil {
		return ace.NewErrf("consumer is nil, unable to subscribe to queue '%v'", queue)
	}
	return m.submit(rail, func(rail ace.Rail) error {
		return m.subscribeOnLoop(rail, queue, consumer)
	})
}

// ResolveExchange blocks until the named exchange is reachable on the current
// channel, same retry shape as Subscribe.
func (m *Manager) ResolveExchange(rail ace.Rail, exchange string) error {
	return m.submit(rail, func(rail ace.Rail) error {
		return m.resolveExchangeOnLoop(rail, exchange)
	})
}

// Publish body to the named exchange with an empty routing key, fan-out is
// delegated to the exchange's own binding type. The exchange is resolved
// first, with the usual retry protocol.
func (m *Manager) Publish(rail ace.Rail, exchange string, body []byte, deliveryMode uint8) error {
	return m.submit(rail, func(rail ace.Rail) error {
		return m.publishOnLoop(rail, exchange, body, deliveryMode)
	})
}

// runs on the bus loop
func (m *Manager) subscribeOnLoop(rail ace.Rail, queue string, consumer ConsumerFunc) error {
	r := m.retrier()
	ch, err := r.run(rail, fmt.Sprintf("subscribe to queue: %v", queue), m.ch, func(ch Channel) error {
		if _, derr := ch.QueueDeclarePassive(queue, true, false, false, false, nil); derr != nil {
			return derr
		}
		deliveries, cerr := ch.Consume(queue, "", false, false, false, false, nil)
		if cerr != nil {
			return cerr
		}
		go m.runConsumer(rail, queue, deliveries, consumer)
		return nil
	})
	m.ch = ch
	if err != nil {
		return err
	}
	rail.Infof("Subscribed to queue: %v", queue)
	return nil
}

// runs on the bus loop
func (m *Manager) resolveExchangeOnLoop(rail ace.Rail, exchange string) error {
	r := m.retrier()
	ch, err := r.run(rail, fmt.Sprintf("get exchange: %v", exchange), m.ch, func(ch Channel) error {
		return ch.ExchangeDeclarePassive(exchange, "fanout", true, false, false, false, nil)
	})
	m.ch = ch
	return err
}

// runs on the bus loop
func (m *Manager) publishOnLoop(rail ace.Rail, exchange string, body []byte, deliveryMode uint8) error {
	if deliveryMode == 0 {
		deliveryMode = amqp.Persistent
	}
	if err := m.resolveExchangeOnLoop(rail, exchange); err != nil {
		return err
	}
	r := m.retrier()
	ch, err := r.run(rail, fmt.Sprintf("publish to exchange: %v", exchange), m.ch, func(ch Channel) error {
		return ch.PublishWithContext(rail.Context(), exchange, "", false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: deliveryMode,
			Body:         body,
		})
	})
	m.ch = ch
	if err != nil {
		return err
	}
	publishedTotal.WithLabelValues(exchange).Inc()
	rail.Debugf("Published message to exchange: %v", exchange)
	return nil
}

func (m *Manager) retrier() channelRetrier {
	return channelRetrier{conn: m.conn, backoff: m.backoff, sleep: m.sleep}
}

// runConsumer dispatches deliveries to consumer until the deliveries channel
// is closed by the broker or by disconnect.
func (m *Manager) runConsumer(rail ace.Rail, queue string, deliveries <-chan amqp.Delivery, consumer ConsumerFunc) {
	rail.Debugf("Consumer for '%v' started", queue)
	defer rail.Debugf("Consumer for '%v' stopped", queue)
	for d := range deliveries {
		consumedTotal.WithLabelValues(queue).Inc()
		consumer(rail, d)
	}
}
