// Package resource composes the bus connection manager, the local queue
// bridge, the envelope codec, and the api endpoint collaborator into the
// runtime unit of a layered-agent deployment.
package resource

import (
	"sort"
	"sync"

	"github.com/aceframe/acebus/ace"
	"github.com/aceframe/acebus/bus"
	"github.com/aceframe/acebus/envelope"
	"github.com/aceframe/acebus/localq"
	"github.com/aceframe/acebus/topology"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Resource configuration props.
const (
	// resource name, used as the 'resource' field on every published message
	PropResourceName = "resource.name"

	// human readable label, shows up in logs next to the name
	PropResourceLabel = "resource.label"

	// ordered layer names, outermost to innermost
	PropResourceLayers = "resource.layers"
)

// Settings identify a resource and the bus topology it participates in.
//
// Layers is order-significant, it defines which directional queues exist.
type Settings struct {
	Name   string
	Label  string
	Layers []string
}

// Build Settings from the resource.* props.
func SettingsFromConfig() Settings {
	return Settings{
		Name:   ace.GetPropStr(PropResourceName),
		Label:  ace.GetPropStr(PropResourceLabel),
		Layers: ace.GetPropStrSlice(PropResourceLayers),
	}
}

// Service is what a concrete resource type must provide.
type Service interface {
	Settings() Settings

	// Application-level health payload, must carry at least 'up', see
	// envelope.BuildStatus.
	Status() map[string]any
}

// Optional capability: subscription setup on the bus loop right after connect.
type PostConnectHook interface {
	OnPostConnect(rail ace.Rail, loop bus.Loop) error
}

// Optional capability: teardown on the bus loop right before disconnect.
type PreDisconnectHook interface {
	OnPreDisconnect(rail ace.Rail, loop bus.Loop) error
}

// Callbacks is the api-callback contract, operation name to zero-argument
// status-producing callback.
type Callbacks map[string]func() map[string]any

// Endpoint is the external api collaborator, it only ever sees Callbacks.
type Endpoint interface {
	Start(rail ace.Rail, callbacks Callbacks) error
	Stop(rail ace.Rail) error
}

// Resource is the composition root, one per process.
type Resource struct {
	svc      Service
	manager  *bus.Manager
	queues   *localq.Bridge[[]byte]
	endpoint Endpoint

	mu        sync.Mutex
	consumers map[string]bus.ConsumerFunc
}

type Option func(r *Resource, busOpts *[]bus.Option)

// Replace the api endpoint collaborator.
func WithEndpoint(e Endpoint) Option {
	return func(r *Resource, busOpts *[]bus.Option) { r.endpoint = e }
}

// Extra options for the underlying bus manager, tests inject dialers here.
func WithBusOptions(opts ...bus.Option) Option {
	return func(r *Resource, busOpts *[]bus.Option) { *busOpts = append(*busOpts, opts...) }
}

func New(svc Service, opts ...Option) *Resource {
	r := &Resource{
		svc:       svc,
		queues:    localq.NewBridge[[]byte](),
		consumers: map[string]bus.ConsumerFunc{},
	}

	var busOpts []bus.Option
	if h, ok := svc.(PostConnectHook); ok {
		busOpts = append(busOpts, bus.WithPostConnectHook(h.OnPostConnect))
	}
	if h, ok := svc.(PreDisconnectHook); ok {
		busOpts = append(busOpts, bus.WithPreDisconnectHook(h.OnPreDisconnect))
	}
	for _, op := range opts {
		op(r, &busOpts)
	}

	r.manager = bus.NewManager(busOpts...)
	return r
}

// "<name> (<label>)", for logs.
func (r *Resource) LabeledName() string {
	s := r.svc.Settings()
	return s.Name + " (" + s.Label + ")"
}

func (r *Resource) Settings() Settings {
	return r.svc.Settings()
}

func (r *Resource) Bus() *bus.Manager {
	return r.manager
}

// The api-callback contract registered with the endpoint.
func (r *Resource) Callbacks() Callbacks {
	return Callbacks{"status": r.svc.Status}
}

// Start the api endpoint, then connect the busses. Bus work happens on the
// dedicated loop, Start does not wait for the connection to come up.
func (r *Resource) Start(rail ace.Rail) error {
	rail.Infof("Starting resource %v", r.LabeledName())
	if r.endpoint != nil {
		if err := r.endpoint.Start(rail, r.Callbacks()); err != nil {
			return ace.WrapErrf(err, "failed to start api endpoint")
		}
	}
	if err := r.manager.Connect(rail); err != nil {
		return ace.WrapErrf(err, "failed to connect busses")
	}
	rail.Infof("Resource %v started", r.LabeledName())
	return nil
}

// Disconnect the busses, then stop the api endpoint.
func (r *Resource) Stop(rail ace.Rail) error {
	rail.Infof("Shutting down resource %v", r.LabeledName())
	if err := r.manager.Disconnect(rail); err != nil {
		rail.Warnf("Failed to disconnect busses: %v", err)
	}
	if r.endpoint != nil {
		if err := r.endpoint.Stop(rail); err != nil {
			return ace.WrapErrf(err, "failed to stop api endpoint")
		}
	}
	rail.Infof("Resource %v shut down", r.LabeledName())
	return nil
}

// QueueConsumer builds the default consumer for queue: ack the delivery and
// push the raw body onto the local queue bridge for synchronous readers.
func (r *Resource) QueueConsumer(queue string) bus.ConsumerFunc {
	return func(rail ace.Rail, d amqp.Delivery) {
		r.queues.Push(queue, d.Body)
		if err := d.Ack(false); err != nil {
			rail.Warnf("Failed to ack delivery from '%v': %v", queue, err)
		}
	}
}

// SubscribeQueue attaches the default consumer to queue. Safe to call from
// any goroutine except the bus loop, hooks use SubscribeQueueOnLoop instead.
func (r *Resource) SubscribeQueue(rail ace.Rail, queue string) error {
	consumer := r.QueueConsumer(queue)
	if err := r.manager.Subscribe(rail, queue, consumer); err != nil {
		return err
	}
	r.registerConsumer(queue, consumer)
	return nil
}

// SubscribeQueueOnLoop is SubscribeQueue for hooks already on the bus loop.
func (r *Resource) SubscribeQueueOnLoop(rail ace.Rail, loop bus.Loop, queue string) error {
	consumer := r.QueueConsumer(queue)
	if err := loop.Subscribe(rail, queue, consumer); err != nil {
		return err
	}
	r.registerConsumer(queue, consumer)
	return nil
}

func (r *Resource) registerConsumer(queue string, consumer bus.ConsumerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers[queue] = consumer
}

// Names of the queues this resource currently consumes, sorted.
func (r *Resource) SubscribedQueues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.consumers))
	for q := range r.consumers {
		names = append(names, q)
	}
	sort.Strings(names)
	return names
}

// Atomically remove and return everything buffered for queue, oldest first.
func (r *Resource) DrainMessages(queue string) [][]byte {
	return r.queues.DrainAll(queue)
}

// PublishMessage wraps payload in an envelope stamped with this resource's
// name and publishes it toward the given layer in the given direction.
//
// Returns an error when the topology has no exchange for that pair, the
// boundary exclusions make such requests a caller bug, not a broker problem.
func (r *Resource) PublishMessage(rail ace.Rail, d topology.Direction, layer string, payload map[string]any, msgType string) error {
	exchange, ok := topology.ExchangeName(d, layer)
	if !ok {
		return ace.NewErrf("no exchange for direction '%v' layer '%v'", d, layer)
	}
	body, err := envelope.Encode(payload, msgType, r.svc.Settings().Name)
	if err != nil {
		return err
	}
	return r.manager.Publish(rail, exchange, body, amqp.Persistent)
}

// AllQueueNames enumerates every existing queue for this resource's layers,
// the full inbound set for orchestration/monitoring resources.
func (r *Resource) AllQueueNames() []string {
	return topology.AllQueueNames(r.svc.Settings().Layers)
}
