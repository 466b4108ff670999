package outbox

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/plm-sdk/pkg/composables"
)

// Publisher enqueues messages into an outbox table. Enqueue must be called
// inside the transaction carrying the domain write so that the event commits
// or rolls back together with the state change.
type Publisher struct {
	table pgx.Identifier
}

func NewPublisher(table pgx.Identifier) (*Publisher, error) {
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	return &Publisher{table: table}, nil
}

func (p *Publisher) Enqueue(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "outbox enqueue requires a transaction")
	}

	q := fmt.Sprintf(
		"INSERT INTO %s (topic, event_id, payload) VALUES ($1, $2, $3) ON CONFLICT (topic, event_id) DO NOTHING",
		p.table.Sanitize(),
	)
	for _, msg := range msgs {
		if msg.Topic == "" {
			return invalidConfig("message topic is required")
		}
		if msg.EventID == uuid.Nil {
			return invalidConfig("message event id is required")
		}
		if _, err := tx.Exec(ctx, q, msg.Topic, msg.EventID, msg.Payload); err != nil {
			return errors.Wrapf(err, "failed to enqueue outbox message for topic %s", msg.Topic)
		}
	}
	return nil
}
