package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
	"github.com/iota-uz/plm-sdk/modules/plm/infrastructure/persistence/models"
	"github.com/iota-uz/plm-sdk/pkg/composables"
	"github.com/iota-uz/plm-sdk/pkg/repo"
)

var changeOrderFields = []string{
	"id",
	"chain_root_id",
	"parent_id",
	"version",
	"is_latest",
	"product_id",
	"bom_id",
	"title",
	"description",
	"reason",
	"change_type",
	"priority",
	"proposed_changes",
	"impact_analysis",
	"compliance_checks",
	"status",
	"requested_by_id",
	"requested_by_name",
	"approved_by_id",
	"approved_by_name",
	"approval_date",
	"executed_by_id",
	"executed_by_name",
	"executed_at",
	"risk_score",
	"predicted_delay",
	"key_risks",
	"created_at",
	"updated_at",
}

const selectChangeOrdersQuery = `
	SELECT id, chain_root_id, parent_id, version, is_latest, product_id, bom_id,
		title, description, reason, change_type, priority,
		proposed_changes, impact_analysis, compliance_checks,
		status, requested_by_id, requested_by_name,
		approved_by_id, approved_by_name, approval_date,
		executed_by_id, executed_by_name, executed_at,
		risk_score, predicted_delay, key_risks,
		created_at, updated_at
	FROM change_orders`

// PgChangeOrderRepository persists chains in Postgres. All methods resolve
// the query handle from the context, so they run inside whatever transaction
// the caller opened.
type PgChangeOrderRepository struct{}

func NewPgChangeOrderRepository() *PgChangeOrderRepository {
	return &PgChangeOrderRepository{}
}

func (g *PgChangeOrderRepository) values(row *models.ChangeOrder) []interface{} {
	return []interface{}{
		row.ID,
		row.ChainRootID,
		row.ParentID,
		row.Version,
		row.IsLatest,
		row.ProductID,
		row.BomID,
		row.Title,
		row.Description,
		row.Reason,
		row.ChangeType,
		row.Priority,
		row.ProposedChanges,
		row.ImpactAnalysis,
		row.ComplianceChecks,
		row.Status,
		row.RequestedByID,
		row.RequestedByName,
		row.ApprovedByID,
		row.ApprovedByName,
		row.ApprovalDate,
		row.ExecutedByID,
		row.ExecutedByName,
		row.ExecutedAt,
		row.RiskScore,
		row.PredictedDelay,
		row.KeyRisks,
		row.CreatedAt,
		row.UpdatedAt,
	}
}

func (g *PgChangeOrderRepository) Create(ctx context.Context, order *changeorder.ChangeOrder) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row, err := toDBChangeOrder(order)
	if err != nil {
		return err
	}
	q := repo.Insert("change_orders", changeOrderFields)
	if _, err := tx.Exec(ctx, q, g.values(row)...); err != nil {
		return errors.Wrap(err, "failed to insert change order")
	}
	return nil
}

func (g *PgChangeOrderRepository) Update(ctx context.Context, order *changeorder.ChangeOrder) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row, err := toDBChangeOrder(order)
	if err != nil {
		return err
	}
	fields := changeOrderFields[1:]
	q := repo.Update("change_orders", fields, fmt.Sprintf("id = $%d", len(fields)+1))
	args := append(g.values(row)[1:], row.ID)
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update change order")
	}
	if tag.RowsAffected() == 0 {
		return changeorder.ErrNotFound
	}
	return nil
}

// InsertVersion retires the superseded row and inserts its successor. The
// flag flip asserts is_latest so a concurrent supersede of the same row
// surfaces as ErrStaleVersion instead of a silent lost update.
func (g *PgChangeOrderRepository) InsertVersion(ctx context.Context, supersededID uuid.UUID, next *changeorder.ChangeOrder) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		"UPDATE change_orders SET is_latest = false WHERE id = $1 AND is_latest = true",
		supersededID.String(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to retire superseded version")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM change_orders WHERE id = $1)",
			supersededID.String(),
		).Scan(&exists); err != nil {
			return errors.Wrap(err, "failed to check superseded version")
		}
		if !exists {
			return changeorder.ErrNotFound
		}
		return changeorder.ErrStaleVersion
	}
	return g.Create(ctx, next)
}

func (g *PgChangeOrderRepository) scanRow(row pgx.Row) (*changeorder.ChangeOrder, error) {
	var m models.ChangeOrder
	err := row.Scan(
		&m.ID,
		&m.ChainRootID,
		&m.ParentID,
		&m.Version,
		&m.IsLatest,
		&m.ProductID,
		&m.BomID,
		&m.Title,
		&m.Description,
		&m.Reason,
		&m.ChangeType,
		&m.Priority,
		&m.ProposedChanges,
		&m.ImpactAnalysis,
		&m.ComplianceChecks,
		&m.Status,
		&m.RequestedByID,
		&m.RequestedByName,
		&m.ApprovedByID,
		&m.ApprovedByName,
		&m.ApprovalDate,
		&m.ExecutedByID,
		&m.ExecutedByName,
		&m.ExecutedAt,
		&m.RiskScore,
		&m.PredictedDelay,
		&m.KeyRisks,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, changeorder.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to scan change order")
	}
	return toDomainChangeOrder(&m)
}

func (g *PgChangeOrderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*changeorder.ChangeOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query change orders")
	}
	defer rows.Close()

	var out []*changeorder.ChangeOrder
	for rows.Next() {
		entity, err := g.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func (g *PgChangeOrderRepository) GetLatest(ctx context.Context, chainRootID uuid.UUID) (*changeorder.ChangeOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := repo.Join(selectChangeOrdersQuery, "WHERE chain_root_id = $1 AND is_latest = true")
	return g.scanRow(tx.QueryRow(ctx, q, chainRootID.String()))
}

func (g *PgChangeOrderRepository) GetVersions(ctx context.Context, chainRootID uuid.UUID) ([]*changeorder.ChangeOrder, error) {
	q := repo.Join(selectChangeOrdersQuery, "WHERE chain_root_id = $1 ORDER BY version ASC")
	out, err := g.queryOrders(ctx, q, chainRootID.String())
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, changeorder.ErrNotFound
	}
	return out, nil
}

func (g *PgChangeOrderRepository) filterConditions(params *changeorder.FindParams) ([]string, []interface{}) {
	conditions := []string{"is_latest = true"}
	var args []interface{}
	idx := 1
	if len(params.Statuses) > 0 {
		statuses := make([]string, len(params.Statuses))
		for i, s := range params.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", idx))
		args = append(args, statuses)
		idx++
	}
	if params.RequesterID != nil {
		conditions = append(conditions, fmt.Sprintf("requested_by_id = $%d", idx))
		args = append(args, params.RequesterID.String())
		idx++
	}
	if params.ProductID != nil {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", idx))
		args = append(args, params.ProductID.String())
		idx++
	}
	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", idx))
		args = append(args, "%"+params.Search+"%")
	}
	return conditions, args
}

func orderClause(params *changeorder.FindParams) string {
	column := "created_at"
	switch params.SortBy {
	case changeorder.SortByUpdatedAt:
		column = "updated_at"
	case changeorder.SortByPriority:
		column = "priority"
	}
	direction := "DESC"
	if params.Ascending {
		direction = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s", column, direction)
}

func (g *PgChangeOrderRepository) List(ctx context.Context, params *changeorder.FindParams) ([]*changeorder.ChangeOrder, error) {
	conditions, args := g.filterConditions(params)
	q := repo.Join(
		selectChangeOrdersQuery,
		repo.JoinWhere(conditions...),
		orderClause(params),
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	return g.queryOrders(ctx, q, args...)
}

func (g *PgChangeOrderRepository) Count(ctx context.Context, params *changeorder.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	conditions, args := g.filterConditions(params)
	q := repo.Join("SELECT COUNT(*) FROM change_orders", repo.JoinWhere(conditions...))
	var count int64
	if err := tx.QueryRow(ctx, q, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count change orders")
	}
	return count, nil
}

// DeleteChain removes every version of a chain together with its comments
// and audit rows.
func (g *PgChangeOrderRepository) DeleteChain(ctx context.Context, chainRootID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	root := chainRootID.String()
	dependents := []string{
		"DELETE FROM change_order_comments WHERE change_order_id IN (SELECT id FROM change_orders WHERE chain_root_id = $1)",
		"DELETE FROM change_order_audit_logs WHERE chain_root_id = $1",
	}
	for _, q := range dependents {
		if _, err := tx.Exec(ctx, q, root); err != nil {
			return errors.Wrap(err, "failed to delete chain dependents")
		}
	}
	tag, err := tx.Exec(ctx, "DELETE FROM change_orders WHERE chain_root_id = $1", root)
	if err != nil {
		return errors.Wrap(err, "failed to delete chain")
	}
	if tag.RowsAffected() == 0 {
		return changeorder.ErrNotFound
	}
	return nil
}

func (g *PgChangeOrderRepository) AddComment(ctx context.Context, comment *changeorder.Comment) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row := toDBComment(comment)
	q := repo.Insert("change_order_comments", []string{
		"id", "change_order_id", "author_id", "author_name", "content", "created_at",
	})
	_, err = tx.Exec(ctx, q, row.ID, row.ChangeOrderID, row.AuthorID, row.AuthorName, row.Content, row.CreatedAt)
	return errors.Wrap(err, "failed to insert comment")
}

func (g *PgChangeOrderRepository) GetComments(ctx context.Context, chainRootID uuid.UUID) ([]*changeorder.Comment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.TrimSpace(`
		SELECT c.id, c.change_order_id, c.author_id, c.author_name, c.content, c.created_at
		FROM change_order_comments c
		JOIN change_orders co ON co.id = c.change_order_id
		WHERE co.chain_root_id = $1
		ORDER BY c.created_at ASC`)
	rows, err := tx.Query(ctx, q, chainRootID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query comments")
	}
	defer rows.Close()

	var out []*changeorder.Comment
	for rows.Next() {
		var m models.ChangeOrderComment
		if err := rows.Scan(&m.ID, &m.ChangeOrderID, &m.AuthorID, &m.AuthorName, &m.Content, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan comment")
		}
		c, err := toDomainComment(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (g *PgChangeOrderRepository) AddAuditEntry(ctx context.Context, entry *changeorder.AuditEntry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	q := repo.Insert("change_order_audit_logs", []string{
		"id", "change_order_id", "chain_root_id", "action", "actor_id", "old_value", "new_value", "created_at",
	})
	_, err = tx.Exec(ctx, q,
		entry.ID.String(),
		entry.ChangeOrderID.String(),
		entry.ChainRootID.String(),
		string(entry.Action),
		entry.ActorID.String(),
		entry.OldValue,
		entry.NewValue,
		entry.CreatedAt,
	)
	return errors.Wrap(err, "failed to insert audit entry")
}

func (g *PgChangeOrderRepository) GetAuditLog(ctx context.Context, chainRootID uuid.UUID) ([]*changeorder.AuditEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.TrimSpace(`
		SELECT id, change_order_id, chain_root_id, action, actor_id, old_value, new_value, created_at
		FROM change_order_audit_logs
		WHERE chain_root_id = $1
		ORDER BY created_at ASC`)
	rows, err := tx.Query(ctx, q, chainRootID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit log")
	}
	defer rows.Close()

	var out []*changeorder.AuditEntry
	for rows.Next() {
		var m models.ChangeOrderAuditLog
		if err := rows.Scan(&m.ID, &m.ChangeOrderID, &m.ChainRootID, &m.Action, &m.ActorID, &m.OldValue, &m.NewValue, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		e, err := toDomainAuditEntry(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ changeorder.Repository = (*PgChangeOrderRepository)(nil)
