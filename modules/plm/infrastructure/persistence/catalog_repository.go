package persistence

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/catalog"
	"github.com/iota-uz/plm-sdk/pkg/composables"
)

// PgCatalogRepository answers product and BOM existence checks against the
// catalog tables, which this module reads but does not own.
type PgCatalogRepository struct{}

func NewPgCatalogRepository() *PgCatalogRepository {
	return &PgCatalogRepository{}
}

func (g *PgCatalogRepository) exists(ctx context.Context, query string, id uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, query, id.String()).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check catalog reference")
	}
	return exists, nil
}

func (g *PgCatalogRepository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return g.exists(ctx, "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", id)
}

func (g *PgCatalogRepository) BOMExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return g.exists(ctx, "SELECT EXISTS (SELECT 1 FROM boms WHERE id = $1)", id)
}

var _ catalog.ReferenceChecker = (*PgCatalogRepository)(nil)

// MemoryCatalogRepository is the in-process ReferenceChecker used by tests
// and embedded deployments.
type MemoryCatalogRepository struct {
	mu       sync.RWMutex
	products map[uuid.UUID]struct{}
	boms     map[uuid.UUID]struct{}
}

func NewMemoryCatalogRepository() *MemoryCatalogRepository {
	return &MemoryCatalogRepository{
		products: make(map[uuid.UUID]struct{}),
		boms:     make(map[uuid.UUID]struct{}),
	}
}

func (r *MemoryCatalogRepository) AddProduct(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id] = struct{}{}
}

func (r *MemoryCatalogRepository) AddBOM(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boms[id] = struct{}{}
}

func (r *MemoryCatalogRepository) ProductExists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.products[id]
	return ok, nil
}

func (r *MemoryCatalogRepository) BOMExists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.boms[id]
	return ok, nil
}

var _ catalog.ReferenceChecker = (*MemoryCatalogRepository)(nil)
