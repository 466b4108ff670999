package outbox

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type claimedMessage struct {
	Sequence int64
	Topic    string
	EventID  uuid.UUID
	Payload  []byte
	Attempts int
}

// Relay polls an outbox table for pending messages and hands them to a
// Dispatcher. Only one relay per table is active at a time; instances compete
// for a Postgres advisory lock derived from the table name, and followers
// keep retrying so a crashed leader is replaced within one poll interval.
type Relay struct {
	pool       *pgxpool.Pool
	dispatcher Dispatcher
	opts       RelayOptions
}

func NewRelay(pool *pgxpool.Pool, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	return &Relay{pool: pool, dispatcher: dispatcher, opts: opts}, nil
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.runAsLeader(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.opts.Logger.WithError(err).Warn("outbox relay lost leadership")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runAsLeader takes the advisory lock on a dedicated connection and polls
// until the context is cancelled or the connection dies. Returning releases
// the lock with the connection.
func (r *Relay) runAsLeader(ctx context.Context) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to acquire relay connection")
	}
	defer conn.Release()

	var acquired bool
	lockKey := advisoryLockKey(r.opts.Table)
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockKey).Scan(&acquired); err != nil {
		return errors.Wrap(err, "failed to contend for relay leadership")
	}
	if !acquired {
		return nil
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", lockKey)
	}()
	r.opts.Logger.WithField("table", TableLabel(r.opts.Table)).Info("outbox relay became leader")

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		if err := r.pollOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Relay) pollOnce(ctx context.Context) error {
	for {
		n, err := r.processBatch(ctx)
		if err != nil {
			return err
		}
		if n < r.opts.BatchSize {
			break
		}
	}
	return r.observeQueueDepth(ctx)
}

// processBatch claims up to BatchSize due messages and dispatches them one by
// one. Claiming and acking happen in the same transaction so a crash leaves
// unacked rows pending for the next leader.
func (r *Relay) processBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin outbox batch")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	msgs, err := r.claim(ctx, tx)
	if err != nil {
		return 0, err
	}
	for _, msg := range msgs {
		if err := r.dispatchOne(ctx, tx, msg); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "failed to commit outbox batch")
	}
	return len(msgs), nil
}

func (r *Relay) claim(ctx context.Context, tx pgx.Tx) ([]claimedMessage, error) {
	q := fmt.Sprintf(`
		SELECT sequence, topic, event_id, payload, attempts
		FROM %s
		WHERE status = 'pending' AND next_attempt_at <= now()
		ORDER BY sequence
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		r.opts.Table.Sanitize(),
	)
	rows, err := tx.Query(ctx, q, r.opts.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim outbox messages")
	}
	defer rows.Close()

	var msgs []claimedMessage
	for rows.Next() {
		var m claimedMessage
		if err := rows.Scan(&m.Sequence, &m.Topic, &m.EventID, &m.Payload, &m.Attempts); err != nil {
			return nil, errors.Wrap(err, "failed to scan outbox message")
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *Relay) dispatchOne(ctx context.Context, tx pgx.Tx, msg claimedMessage) error {
	dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
	dispatchErr := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
		Meta: Meta{
			Table:    r.opts.Table,
			Topic:    msg.Topic,
			EventID:  msg.EventID,
			Sequence: msg.Sequence,
			Attempts: msg.Attempts + 1,
		},
		Payload: msg.Payload,
	})
	cancel()

	table := TableLabel(r.opts.Table)
	if dispatchErr == nil {
		metricsOnce().dispatched.WithLabelValues(table, msg.Topic).Inc()
		return r.ack(ctx, tx, msg.Sequence)
	}

	attempts := msg.Attempts + 1
	if attempts >= r.opts.MaxAttempts {
		metricsOnce().dead.WithLabelValues(table, msg.Topic).Inc()
		r.opts.Logger.WithError(dispatchErr).
			WithField("topic", msg.Topic).
			WithField("event_id", msg.EventID).
			Error("outbox message exhausted retries")
		return r.dead(ctx, tx, msg.Sequence, attempts, dispatchErr)
	}
	metricsOnce().failed.WithLabelValues(table, msg.Topic).Inc()
	return r.nack(ctx, tx, msg.Sequence, attempts, dispatchErr)
}

func (r *Relay) ack(ctx context.Context, tx pgx.Tx, sequence int64) error {
	q := fmt.Sprintf(
		"UPDATE %s SET status = 'dispatched', dispatched_at = now(), last_error = NULL WHERE sequence = $1",
		r.opts.Table.Sanitize(),
	)
	_, err := tx.Exec(ctx, q, sequence)
	return errors.Wrap(err, "failed to ack outbox message")
}

func (r *Relay) nack(ctx context.Context, tx pgx.Tx, sequence int64, attempts int, cause error) error {
	q := fmt.Sprintf(
		"UPDATE %s SET attempts = $2, next_attempt_at = now() + make_interval(secs => $3), last_error = $4 WHERE sequence = $1",
		r.opts.Table.Sanitize(),
	)
	delay := nextBackoff(attempts, r.opts.MaxBackoff)
	_, err := tx.Exec(ctx, q, sequence, attempts, delay.Seconds(), truncateError(cause.Error(), r.opts.LastErrorMax))
	return errors.Wrap(err, "failed to nack outbox message")
}

func (r *Relay) dead(ctx context.Context, tx pgx.Tx, sequence int64, attempts int, cause error) error {
	q := fmt.Sprintf(
		"UPDATE %s SET status = 'dead', attempts = $2, last_error = $3 WHERE sequence = $1",
		r.opts.Table.Sanitize(),
	)
	_, err := tx.Exec(ctx, q, sequence, attempts, truncateError(cause.Error(), r.opts.LastErrorMax))
	return errors.Wrap(err, "failed to mark outbox message dead")
}

func (r *Relay) observeQueueDepth(ctx context.Context) error {
	q := fmt.Sprintf("SELECT count(*) FROM %s WHERE status = 'pending'", r.opts.Table.Sanitize())
	var depth int64
	if err := r.pool.QueryRow(ctx, q).Scan(&depth); err != nil {
		return errors.Wrap(err, "failed to measure outbox queue depth")
	}
	metricsOnce().queueDepth.WithLabelValues(TableLabel(r.opts.Table)).Set(float64(depth))
	return nil
}

func advisoryLockKey(table pgx.Identifier) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("outbox:" + TableLabel(table)))
	return int64(h.Sum64())
}
