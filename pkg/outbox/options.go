package outbox

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

const (
	defaultPollInterval    = 500 * time.Millisecond
	defaultBatchSize       = 100
	defaultMaxAttempts     = 10
	defaultMaxBackoff      = 5 * time.Minute
	defaultDispatchTimeout = 30 * time.Second
	defaultLastErrorMax    = 2048
	defaultRetention       = 7 * 24 * time.Hour
)

// RelayOptions configures a Relay. The zero value of every optional field is
// replaced with a default in setDefaults.
type RelayOptions struct {
	Table           pgx.Identifier
	PollInterval    time.Duration
	BatchSize       int
	MaxAttempts     int
	MaxBackoff      time.Duration
	DispatchTimeout time.Duration
	LastErrorMax    int
	Logger          *logrus.Entry
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.DispatchTimeout <= 0 {
		o.DispatchTimeout = defaultDispatchTimeout
	}
	if o.LastErrorMax <= 0 {
		o.LastErrorMax = defaultLastErrorMax
	}
	if o.Logger == nil {
		o.Logger = logrusNop()
	}
}

func (o *RelayOptions) validate() error {
	if len(o.Table) == 0 {
		return invalidConfig("relay table is required")
	}
	return nil
}

// CleanerOptions configures a Cleaner.
type CleanerOptions struct {
	Table     pgx.Identifier
	Retention time.Duration
	Interval  time.Duration
	BatchSize int
	Logger    *logrus.Entry
}

func (o *CleanerOptions) setDefaults() {
	if o.Retention <= 0 {
		o.Retention = defaultRetention
	}
	if o.Interval <= 0 {
		o.Interval = time.Hour
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.Logger == nil {
		o.Logger = logrusNop()
	}
}

func (o *CleanerOptions) validate() error {
	if len(o.Table) == 0 {
		return invalidConfig("cleaner table is required")
	}
	return nil
}
