// Package eventbus adapts the in-process event bus to the outbox Dispatcher
// interface so relayed messages re-enter the application as typed events.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/iota-uz/plm-sdk/pkg/eventbus"
	"github.com/iota-uz/plm-sdk/pkg/outbox"
)

// Decoder turns a raw outbox payload into the typed event the bus should
// publish. Unknown topics must return (nil, nil) so stale rows left by an
// older deployment are acked instead of retried forever.
type Decoder func(topic string, payload json.RawMessage) (any, error)

type Dispatcher struct {
	bus    eventbus.EventBusWithError
	decode Decoder
}

func New(bus eventbus.EventBusWithError, decode Decoder) *Dispatcher {
	return &Dispatcher{bus: bus, decode: decode}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	event, err := d.decode(msg.Meta.Topic, msg.Payload)
	if err != nil {
		return errors.Wrapf(err, "failed to decode outbox payload for topic %s", msg.Meta.Topic)
	}
	if event == nil {
		return nil
	}
	if err := d.bus.PublishE(event); err != nil && !errors.Is(err, eventbus.ErrNoSubscribers) {
		return err
	}
	return nil
}

var _ outbox.Dispatcher = (*Dispatcher)(nil)
