package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cleaner deletes dispatched rows older than the retention window so the
// outbox table does not grow without bound.
type Cleaner struct {
	pool *pgxpool.Pool
	opts CleanerOptions
}

func NewCleaner(pool *pgxpool.Pool, opts CleanerOptions) (*Cleaner, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	return &Cleaner{pool: pool, opts: opts}, nil
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		if err := c.sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.opts.Logger.WithError(err).Warn("outbox cleaner sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) error {
	q := fmt.Sprintf(`
		DELETE FROM %s
		WHERE sequence IN (
			SELECT sequence FROM %s
			WHERE status = 'dispatched' AND dispatched_at < now() - make_interval(secs => $1)
			ORDER BY sequence
			LIMIT $2
		)`,
		c.opts.Table.Sanitize(), c.opts.Table.Sanitize(),
	)
	for {
		tag, err := c.pool.Exec(ctx, q, c.opts.Retention.Seconds(), c.opts.BatchSize)
		if err != nil {
			return errors.Wrap(err, "failed to delete dispatched outbox rows")
		}
		deleted := tag.RowsAffected()
		if deleted > 0 {
			metricsOnce().cleaned.WithLabelValues(TableLabel(c.opts.Table)).Add(float64(deleted))
		}
		if deleted < int64(c.opts.BatchSize) {
			return nil
		}
	}
}
