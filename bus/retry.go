package bus

import (
	"errors"
	"time"

	"github.com/aceframe/acebus/ace"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channelRetrier acts on the current channel, recreating a channel from the
// live connection whenever the channel reports closed, until the action
// succeeds or fails with a non-transient error.
//
// The loop is unbounded on transient failures, queues and exchanges are
// provisioned by a separate topology step, so a not-found is assumed to be a
// provisioning race worth waiting out. A fixed backoff bounds retry frequency,
// not total wait time.
type channelRetrier struct {
	conn    Connection
	backoff time.Duration
	sleep   func(d time.Duration)
}

// Run the retry state machine: Attempting -> Success | Attempting(after backoff).
//
// Returns the channel the action finally succeeded on (possibly recreated) so
// the caller can keep it as the manager's current channel. A channel-recreation
// failure is connection-level and not retried here.
func (r channelRetrier) run(rail ace.Rail, op string, ch Channel, act func(ch Channel) error) (Channel, error) {
	for {
		rail.Debugf("Trying to %v", op)

		if ch == nil || ch.IsClosed() {
			rail.Info("Previous channel was closed, creating new channel")
			nch, err := r.conn.Channel()
			if err != nil {
				return ch, ace.WrapErrf(err, "failed to recreate channel for %v", op)
			}
			ch = nch
			channelRecreatedTotal.Inc()
		}

		err := act(ch)
		if err == nil {
			return ch, nil
		}
		if !isTransientChannelErr(err) {
			return ch, err
		}

		rail.Warnf("Error occurred: %v. Trying to %v again in %v.", err, op, r.backoff)
		r.sleep(r.backoff)
	}
}

// A failure is transient when the channel reports closed, or the broker
// replied not-found (which closes the channel in AMQP 0-9-1 and, with
// provisioning running separately, resolves itself). Anything else, auth
// failures, connection loss, propagates to the caller.
func isTransientChannelErr(err error) bool {
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	var ae *amqp.Error
	if errors.As(err, &ae) {
		return ae.Code == amqp.NotFound || ae.Code == amqp.ChannelError
	}
	return false
}
