package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aceframe/acebus/ace"
	"github.com/aceframe/acebus/bus"
	"github.com/aceframe/acebus/envelope"
	"github.com/aceframe/acebus/topology"
	amqp "github.com/rabbitmq/amqp091-go"
)

type stubChannel struct {
	mu         sync.Mutex
	closed     bool
	deliveries chan amqp.Delivery
	published  []amqp.Publishing
	pubExch    []string
}

func newStubChannel() *stubChannel {
	return &stubChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (c *stubChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *stubChannel) QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return amqp.Queue{Name: name}, nil
}

func (c *stubChannel) ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return nil
}

func (c *stubChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *stubChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, msg)
	c.pubExch = append(c.pubExch, exchange)
	return nil
}

func (c *stubChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type stubConn struct {
	mu sync.Mutex
	ch *stubChannel
}

func (c *stubConn) Channel() (bus.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		c.ch = newStubChannel()
	}
	return c.ch, nil
}

func (c *stubConn) IsClosed() bool { return false }
func (c *stubConn) Close() error   { return nil }

type stubAck struct {
	mu    sync.Mutex
	acked int
}

func (a *stubAck) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *stubAck) Nack(tag uint64, multiple, requeue bool) error { return nil }
func (a *stubAck) Reject(tag uint64, requeue bool) error         { return nil }

type stubEndpoint struct {
	started   bool
	stopped   bool
	callbacks Callbacks
}

func (e *stubEndpoint) Start(rail ace.Rail, callbacks Callbacks) error {
	e.started = true
	e.callbacks = callbacks
	return nil
}

func (e *stubEndpoint) Stop(rail ace.Rail) error {
	e.stopped = true
	return nil
}

// layerService subscribes to its inbound queue on post-connect.
type layerService struct {
	r        *Resource
	settings Settings
	inbound  string
}

func (s *layerService) Settings() Settings {
	return s.settings
}

func (s *layerService) Status() map[string]any {
	return envelope.BuildStatus(true, map[string]any{"queue": s.inbound})
}

func (s *layerService) OnPostConnect(rail ace.Rail, loop bus.Loop) error {
	return s.r.SubscribeQueueOnLoop(rail, loop, s.inbound)
}

func newLayerService() *layerService {
	return &layerService{
		settings: Settings{
			Name:   "layer_2",
			Label:  "Global Strategy",
			Layers: []string{"layer_1", "layer_2", "layer_3"},
		},
		inbound: "southbound.layer_2",
	}
}

func awaitBusState(t *testing.T, r *Resource, s bus.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Bus().State() == s {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for bus state %v, current: %v", s, r.Bus().State())
}

func TestLabeledName(t *testing.T) {
	svc := newLayerService()
	r := New(svc)
	if r.LabeledName() != "layer_2 (Global Strategy)" {
		t.Fatalf("unexpected labeled name: %v", r.LabeledName())
	}
}

func TestStatusCallback(t *testing.T) {
	svc := newLayerService()
	r := New(svc)

	callbacks := r.Callbacks()
	statusFn, ok := callbacks["status"]
	if !ok {
		t.Fatal("status callback must be registered")
	}
	status := statusFn()
	if status["up"] != true {
		t.Fatalf("status must carry up=true, got: %v", status)
	}
}

func TestLifecycle(t *testing.T) {
	conn := &stubConn{}
	ep := &stubEndpoint{}
	svc := newLayerService()

	r := New(svc,
		WithEndpoint(ep),
		WithBusOptions(
			bus.WithDialer(func(rail ace.Rail) (bus.Connection, error) { return conn, nil }),
			bus.WithRetryInterval(time.Millisecond),
		),
	)
	svc.r = r

	rail := ace.EmptyRail()
	if err := r.Start(rail); err != nil {
		t.Fatal(err)
	}
	if !ep.started {
		t.Fatal("api endpoint must be started")
	}
	awaitBusState(t, r, bus.StateConnected)

	// inbound: delivery lands in the local queue bridge, acked
	ack := &stubAck{}
	conn.ch.deliveries <- amqp.Delivery{Acknowledger: ack, Body: []byte(`{"type":"data","resource":"layer_1"}`)}

	var msgs [][]byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(msgs) == 0 {
		msgs = r.DrainMessages(svc.inbound)
		time.Sleep(time.Millisecond)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 buffered message, got %d", len(msgs))
	}
	if string(msgs[0]) != `{"type":"data","resource":"layer_1"}` {
		t.Fatalf("unexpected message: %s", msgs[0])
	}
	ack.mu.Lock()
	if ack.acked != 1 {
		t.Fatalf("expected 1 ack, got %d", ack.acked)
	}
	ack.mu.Unlock()

	subscribed := r.SubscribedQueues()
	if len(subscribed) != 1 || subscribed[0] != svc.inbound {
		t.Fatalf("unexpected subscribed queues: %v", subscribed)
	}

	// outbound: envelope stamped with this resource's name
	if err := r.PublishMessage(rail, topology.Southbound, "layer_3", map[string]any{"telemetry": "cpu"}, ""); err != nil {
		t.Fatal(err)
	}

	conn.ch.mu.Lock()
	if len(conn.ch.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(conn.ch.published))
	}
	if conn.ch.pubExch[0] != "exchange.southbound.layer_3" {
		t.Fatalf("unexpected exchange: %v", conn.ch.pubExch[0])
	}
	body := conn.ch.published[0].Body
	conn.ch.mu.Unlock()

	env, err := envelope.Decode(body)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type() != envelope.TypeData || env.Resource() != "layer_2" || env["telemetry"] != "cpu" {
		t.Fatalf("unexpected envelope: %v", env)
	}

	if err := r.Stop(rail); err != nil {
		t.Fatal(err)
	}
	if !ep.stopped {
		t.Fatal("api endpoint must be stopped")
	}
	if !conn.ch.IsClosed() {
		t.Fatal("channel must be closed on stop")
	}
	awaitBusState(t, r, bus.StateDisconnected)
}

func TestPublishMessageInvalidTopology(t *testing.T) {
	svc := newLayerService()
	r := New(svc)

	rail := ace.EmptyRail()
	if err := r.PublishMessage(rail, topology.Direction("sideways"), "layer_2", nil, ""); err == nil {
		t.Fatal("unrecognized direction must be rejected")
	}
	if err := r.PublishMessage(rail, topology.Southbound, "", nil, ""); err == nil {
		t.Fatal("empty layer must be rejected")
	}
}

func TestAllQueueNames(t *testing.T) {
	svc := newLayerService()
	r := New(svc)

	names := r.AllQueueNames()
	expected := []string{"southbound.layer_2", "southbound.layer_3", "northbound.layer_1", "northbound.layer_2"}
	if len(names) != len(expected) {
		t.Fatalf("unexpected queue names: %v", names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("unexpected queue names: %v", names)
		}
	}
}

func TestSettingsFromConfig(t *testing.T) {
	ace.SetProp(PropResourceName, "layer_6_prosecutor")
	ace.SetProp(PropResourceLabel, "Task Prosecution")
	ace.SetProp(PropResourceLayers, []string{"layer_5_controller", "layer_6_prosecutor"})

	s := SettingsFromConfig()
	if s.Name != "layer_6_prosecutor" || s.Label != "Task Prosecution" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if len(s.Layers) != 2 || s.Layers[0] != "layer_5_controller" {
		t.Fatalf("unexpected layers: %v", s.Layers)
	}
}
