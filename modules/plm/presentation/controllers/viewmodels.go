package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
)

type actorView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type changeOrderView struct {
	ID               uuid.UUID                    `json:"id"`
	ChainRootID      uuid.UUID                    `json:"chain_root_id"`
	ParentID         *uuid.UUID                   `json:"parent_id,omitempty"`
	Version          int                          `json:"version"`
	IsLatest         bool                         `json:"is_latest"`
	ProductID        uuid.UUID                    `json:"product_id"`
	BOMID            *uuid.UUID                   `json:"bom_id,omitempty"`
	Title            string                       `json:"title"`
	Description      string                       `json:"description,omitempty"`
	Reason           string                       `json:"reason"`
	ChangeType       changeorder.ChangeType       `json:"change_type"`
	Priority         changeorder.Priority         `json:"priority"`
	ProposedChanges  []changeorder.FieldChange    `json:"proposed_changes,omitempty"`
	ImpactAnalysis   changeorder.ImpactAnalysis   `json:"impact_analysis"`
	ComplianceChecks []changeorder.ComplianceCheck `json:"compliance_checks,omitempty"`
	Status           changeorder.Status           `json:"status"`
	RequestedBy      actorView                    `json:"requested_by"`
	ApprovedBy       *actorView                   `json:"approved_by,omitempty"`
	ApprovalDate     *time.Time                   `json:"approval_date,omitempty"`
	ExecutedBy       *actorView                   `json:"executed_by,omitempty"`
	ExecutedAt       *time.Time                   `json:"executed_at,omitempty"`
	RiskScore        *float64                     `json:"risk_score,omitempty"`
	PredictedDelay   *int                         `json:"predicted_delay,omitempty"`
	KeyRisks         []string                     `json:"key_risks,omitempty"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

func toView(co *changeorder.ChangeOrder) changeOrderView {
	v := changeOrderView{
		ID:               co.ID,
		ChainRootID:      co.ChainRootID,
		ParentID:         co.ParentID,
		Version:          co.Version,
		IsLatest:         co.IsLatest,
		ProductID:        co.ProductID,
		BOMID:            co.BOMID,
		Title:            co.Title,
		Description:      co.Description,
		Reason:           co.Reason,
		ChangeType:       co.ChangeType,
		Priority:         co.Priority,
		ProposedChanges:  co.ProposedChanges,
		ImpactAnalysis:   co.ImpactAnalysis,
		ComplianceChecks: co.ComplianceChecks,
		Status:           co.Status,
		RequestedBy:      actorView{ID: co.RequestedBy.ID, Name: co.RequestedBy.Name},
		ApprovalDate:     co.ApprovalDate,
		ExecutedAt:       co.ExecutedAt,
		RiskScore:        co.RiskScore,
		PredictedDelay:   co.PredictedDelay,
		KeyRisks:         co.KeyRisks,
		CreatedAt:        co.CreatedAt,
		UpdatedAt:        co.UpdatedAt,
	}
	if co.ApprovedBy != nil {
		v.ApprovedBy = &actorView{ID: co.ApprovedBy.ID, Name: co.ApprovedBy.Name}
	}
	if co.ExecutedBy != nil {
		v.ExecutedBy = &actorView{ID: co.ExecutedBy.ID, Name: co.ExecutedBy.Name}
	}
	return v
}

func toViews(orders []*changeorder.ChangeOrder) []changeOrderView {
	out := make([]changeOrderView, len(orders))
	for i, co := range orders {
		out[i] = toView(co)
	}
	return out
}

type commentView struct {
	ID            uuid.UUID `json:"id"`
	ChangeOrderID uuid.UUID `json:"change_order_id"`
	AuthorID      uuid.UUID `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

func toCommentView(c *changeorder.Comment) commentView {
	return commentView{
		ID:            c.ID,
		ChangeOrderID: c.ChangeOrderID,
		AuthorID:      c.AuthorID,
		AuthorName:    c.AuthorName,
		Content:       c.Content,
		CreatedAt:     c.CreatedAt,
	}
}

func toCommentViews(comments []*changeorder.Comment) []commentView {
	out := make([]commentView, len(comments))
	for i, c := range comments {
		out[i] = toCommentView(c)
	}
	return out
}

type auditEntryView struct {
	ID            uuid.UUID               `json:"id"`
	ChangeOrderID uuid.UUID               `json:"change_order_id"`
	ChainRootID   uuid.UUID               `json:"chain_root_id"`
	Action        changeorder.AuditAction `json:"action"`
	ActorID       uuid.UUID               `json:"actor_id"`
	OldValue      string                  `json:"old_value,omitempty"`
	NewValue      string                  `json:"new_value,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

func toAuditViews(entries []*changeorder.AuditEntry) []auditEntryView {
	out := make([]auditEntryView, len(entries))
	for i, e := range entries {
		out[i] = auditEntryView{
			ID:            e.ID,
			ChangeOrderID: e.ChangeOrderID,
			ChainRootID:   e.ChainRootID,
			Action:        e.Action,
			ActorID:       e.ActorID,
			OldValue:      e.OldValue,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt,
		}
	}
	return out
}
