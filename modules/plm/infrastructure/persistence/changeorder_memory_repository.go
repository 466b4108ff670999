package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
)

// MemoryChangeOrderRepository is an in-process chain store with the same
// contract as the Postgres repository. It backs tests and embedded use;
// atomicity comes from a single mutex instead of transactions.
type MemoryChangeOrderRepository struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]*changeorder.ChangeOrder
	comments map[uuid.UUID][]*changeorder.Comment
	audit    map[uuid.UUID][]*changeorder.AuditEntry
}

func NewMemoryChangeOrderRepository() *MemoryChangeOrderRepository {
	return &MemoryChangeOrderRepository{
		orders:   make(map[uuid.UUID]*changeorder.ChangeOrder),
		comments: make(map[uuid.UUID][]*changeorder.Comment),
		audit:    make(map[uuid.UUID][]*changeorder.AuditEntry),
	}
}

func copyOrder(o *changeorder.ChangeOrder) *changeorder.ChangeOrder {
	cp := *o
	return &cp
}

func (r *MemoryChangeOrderRepository) Create(_ context.Context, order *changeorder.ChangeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *MemoryChangeOrderRepository) Update(_ context.Context, order *changeorder.ChangeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return changeorder.ErrNotFound
	}
	r.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *MemoryChangeOrderRepository) InsertVersion(_ context.Context, supersededID uuid.UUID, next *changeorder.ChangeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	superseded, ok := r.orders[supersededID]
	if !ok {
		return changeorder.ErrNotFound
	}
	if !superseded.IsLatest {
		return changeorder.ErrStaleVersion
	}
	superseded.IsLatest = false
	r.orders[next.ID] = copyOrder(next)
	return nil
}

func (r *MemoryChangeOrderRepository) GetLatest(_ context.Context, chainRootID uuid.UUID) (*changeorder.ChangeOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.ChainRootID == chainRootID && o.IsLatest {
			return copyOrder(o), nil
		}
	}
	return nil, changeorder.ErrNotFound
}

func (r *MemoryChangeOrderRepository) GetVersions(_ context.Context, chainRootID uuid.UUID) ([]*changeorder.ChangeOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*changeorder.ChangeOrder
	for _, o := range r.orders {
		if o.ChainRootID == chainRootID {
			out = append(out, copyOrder(o))
		}
	}
	if len(out) == 0 {
		return nil, changeorder.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *MemoryChangeOrderRepository) matches(o *changeorder.ChangeOrder, params *changeorder.FindParams) bool {
	if !o.IsLatest {
		return false
	}
	if len(params.Statuses) > 0 {
		found := false
		for _, s := range params.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if params.RequesterID != nil && o.RequestedBy.ID != *params.RequesterID {
		return false
	}
	if params.ProductID != nil && o.ProductID != *params.ProductID {
		return false
	}
	if params.Search != "" && !strings.Contains(strings.ToLower(o.Title), strings.ToLower(params.Search)) {
		return false
	}
	return true
}

func (r *MemoryChangeOrderRepository) List(_ context.Context, params *changeorder.FindParams) ([]*changeorder.ChangeOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*changeorder.ChangeOrder
	for _, o := range r.orders {
		if r.matches(o, params) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch params.SortBy {
		case changeorder.SortByUpdatedAt:
			less = out[i].UpdatedAt.Before(out[j].UpdatedAt)
		case changeorder.SortByPriority:
			less = out[i].Priority < out[j].Priority
		default:
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if params.Ascending {
			return less
		}
		return !less
	})
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return nil, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(out) {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *MemoryChangeOrderRepository) Count(_ context.Context, params *changeorder.FindParams) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, o := range r.orders {
		if r.matches(o, params) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryChangeOrderRepository) DeleteChain(_ context.Context, chainRootID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for id, o := range r.orders {
		if o.ChainRootID != chainRootID {
			continue
		}
		found = true
		delete(r.orders, id)
		delete(r.comments, id)
		delete(r.audit, id)
	}
	if !found {
		return changeorder.ErrNotFound
	}
	return nil
}

func (r *MemoryChangeOrderRepository) AddComment(_ context.Context, comment *changeorder.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *comment
	r.comments[comment.ChangeOrderID] = append(r.comments[comment.ChangeOrderID], &cp)
	return nil
}

func (r *MemoryChangeOrderRepository) GetComments(_ context.Context, chainRootID uuid.UUID) ([]*changeorder.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*changeorder.Comment
	for versionID, comments := range r.comments {
		o, ok := r.orders[versionID]
		if !ok || o.ChainRootID != chainRootID {
			continue
		}
		for _, c := range comments {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryChangeOrderRepository) AddAuditEntry(_ context.Context, entry *changeorder.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.audit[entry.ChangeOrderID] = append(r.audit[entry.ChangeOrderID], &cp)
	return nil
}

func (r *MemoryChangeOrderRepository) GetAuditLog(_ context.Context, chainRootID uuid.UUID) ([]*changeorder.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*changeorder.AuditEntry
	for _, entries := range r.audit {
		for _, e := range entries {
			if e.ChainRootID == chainRootID {
				cp := *e
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ changeorder.Repository = (*MemoryChangeOrderRepository)(nil)
