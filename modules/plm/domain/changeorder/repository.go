package changeorder

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("change order not found")
	// ErrStaleVersion is returned when a supersede asserts a latest-version
	// id that is no longer latest, i.e. a concurrent writer won the race.
	ErrStaleVersion = errors.New("change order version is no longer latest")
)

type SortBy string

const (
	SortByCreatedAt SortBy = "created_at"
	SortByUpdatedAt SortBy = "updated_at"
	SortByPriority  SortBy = "priority"
)

// FindParams filters the latest versions across chains.
type FindParams struct {
	Limit       int
	Offset      int
	Statuses    []Status
	RequesterID *uuid.UUID
	ProductID   *uuid.UUID
	Search      string
	SortBy      SortBy
	Ascending   bool
}

// Repository is the chain store. Implementations must make InsertVersion
// atomic: the superseded row loses its latest flag and the next row gains it
// in one step, or the call fails with ErrStaleVersion leaving both untouched.
type Repository interface {
	Create(ctx context.Context, order *ChangeOrder) error
	Update(ctx context.Context, order *ChangeOrder) error
	InsertVersion(ctx context.Context, supersededID uuid.UUID, next *ChangeOrder) error
	GetLatest(ctx context.Context, chainRootID uuid.UUID) (*ChangeOrder, error)
	GetVersions(ctx context.Context, chainRootID uuid.UUID) ([]*ChangeOrder, error)
	List(ctx context.Context, params *FindParams) ([]*ChangeOrder, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	DeleteChain(ctx context.Context, chainRootID uuid.UUID) error

	AddComment(ctx context.Context, comment *Comment) error
	GetComments(ctx context.Context, chainRootID uuid.UUID) ([]*Comment, error)
	AddAuditEntry(ctx context.Context, entry *AuditEntry) error
	GetAuditLog(ctx context.Context, chainRootID uuid.UUID) ([]*AuditEntry, error)
}
