package persistence

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
	"github.com/iota-uz/plm-sdk/modules/plm/infrastructure/persistence/models"
)

func toDBChangeOrder(entity *changeorder.ChangeOrder) (*models.ChangeOrder, error) {
	proposed, err := json.Marshal(entity.ProposedChanges)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize proposed changes")
	}
	impact, err := json.Marshal(entity.ImpactAnalysis)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize impact analysis")
	}
	compliance, err := json.Marshal(entity.ComplianceChecks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize compliance checks")
	}
	keyRisks, err := json.Marshal(entity.KeyRisks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize key risks")
	}

	row := &models.ChangeOrder{
		ID:               entity.ID.String(),
		ChainRootID:      entity.ChainRootID.String(),
		Version:          entity.Version,
		IsLatest:         entity.IsLatest,
		ProductID:        entity.ProductID.String(),
		Title:            entity.Title,
		Description:      entity.Description,
		Reason:           entity.Reason,
		ChangeType:       string(entity.ChangeType),
		Priority:         string(entity.Priority),
		ProposedChanges:  proposed,
		ImpactAnalysis:   impact,
		ComplianceChecks: compliance,
		Status:           string(entity.Status),
		RequestedByID:    entity.RequestedBy.ID.String(),
		RequestedByName:  entity.RequestedBy.Name,
		ApprovalDate:     entity.ApprovalDate,
		ExecutedAt:       entity.ExecutedAt,
		RiskScore:        entity.RiskScore,
		PredictedDelay:   entity.PredictedDelay,
		KeyRisks:         keyRisks,
		CreatedAt:        entity.CreatedAt,
		UpdatedAt:        entity.UpdatedAt,
	}
	if entity.ParentID != nil {
		s := entity.ParentID.String()
		row.ParentID = &s
	}
	if entity.BOMID != nil {
		s := entity.BOMID.String()
		row.BomID = &s
	}
	if entity.ApprovedBy != nil {
		id := entity.ApprovedBy.ID.String()
		name := entity.ApprovedBy.Name
		row.ApprovedByID = &id
		row.ApprovedByName = &name
	}
	if entity.ExecutedBy != nil {
		id := entity.ExecutedBy.ID.String()
		name := entity.ExecutedBy.Name
		row.ExecutedByID = &id
		row.ExecutedByName = &name
	}
	return row, nil
}

func toDomainChangeOrder(row *models.ChangeOrder) (*changeorder.ChangeOrder, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse change order id")
	}
	chainRootID, err := uuid.Parse(row.ChainRootID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse chain root id")
	}
	productID, err := uuid.Parse(row.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse product id")
	}
	requesterID, err := uuid.Parse(row.RequestedByID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse requester id")
	}

	entity := &changeorder.ChangeOrder{
		ID:          id,
		ChainRootID: chainRootID,
		Version:     row.Version,
		IsLatest:    row.IsLatest,
		ProductID:   productID,
		Title:       row.Title,
		Description: row.Description,
		Reason:      row.Reason,
		ChangeType:  changeorder.ChangeType(row.ChangeType),
		Priority:    changeorder.Priority(row.Priority),
		Status:      changeorder.Status(row.Status),
		RequestedBy: changeorder.Actor{
			ID:   requesterID,
			Name: row.RequestedByName,
		},
		ApprovalDate:   row.ApprovalDate,
		ExecutedAt:     row.ExecutedAt,
		RiskScore:      row.RiskScore,
		PredictedDelay: row.PredictedDelay,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.ParentID != nil {
		parentID, err := uuid.Parse(*row.ParentID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse parent id")
		}
		entity.ParentID = &parentID
	}
	if row.BomID != nil {
		bomID, err := uuid.Parse(*row.BomID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse bom id")
		}
		entity.BOMID = &bomID
	}
	if row.ApprovedByID != nil {
		approverID, err := uuid.Parse(*row.ApprovedByID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse approver id")
		}
		approver := changeorder.Actor{ID: approverID}
		if row.ApprovedByName != nil {
			approver.Name = *row.ApprovedByName
		}
		entity.ApprovedBy = &approver
	}
	if row.ExecutedByID != nil {
		executorID, err := uuid.Parse(*row.ExecutedByID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse executor id")
		}
		executor := changeorder.Actor{ID: executorID}
		if row.ExecutedByName != nil {
			executor.Name = *row.ExecutedByName
		}
		entity.ExecutedBy = &executor
	}
	if len(row.ProposedChanges) > 0 {
		if err := json.Unmarshal(row.ProposedChanges, &entity.ProposedChanges); err != nil {
			return nil, errors.Wrap(err, "failed to parse proposed changes")
		}
	}
	if len(row.ImpactAnalysis) > 0 {
		if err := json.Unmarshal(row.ImpactAnalysis, &entity.ImpactAnalysis); err != nil {
			return nil, errors.Wrap(err, "failed to parse impact analysis")
		}
	}
	if len(row.ComplianceChecks) > 0 {
		if err := json.Unmarshal(row.ComplianceChecks, &entity.ComplianceChecks); err != nil {
			return nil, errors.Wrap(err, "failed to parse compliance checks")
		}
	}
	if len(row.KeyRisks) > 0 {
		if err := json.Unmarshal(row.KeyRisks, &entity.KeyRisks); err != nil {
			return nil, errors.Wrap(err, "failed to parse key risks")
		}
	}
	return entity, nil
}

func toDBComment(c *changeorder.Comment) *models.ChangeOrderComment {
	return &models.ChangeOrderComment{
		ID:            c.ID.String(),
		ChangeOrderID: c.ChangeOrderID.String(),
		AuthorID:      c.AuthorID.String(),
		AuthorName:    c.AuthorName,
		Content:       c.Content,
		CreatedAt:     c.CreatedAt,
	}
}

func toDomainComment(row *models.ChangeOrderComment) (*changeorder.Comment, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse comment id")
	}
	orderID, err := uuid.Parse(row.ChangeOrderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse comment change order id")
	}
	authorID, err := uuid.Parse(row.AuthorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse comment author id")
	}
	return &changeorder.Comment{
		ID:            id,
		ChangeOrderID: orderID,
		AuthorID:      authorID,
		AuthorName:    row.AuthorName,
		Content:       row.Content,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func toDomainAuditEntry(row *models.ChangeOrderAuditLog) (*changeorder.AuditEntry, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse audit entry id")
	}
	orderID, err := uuid.Parse(row.ChangeOrderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse audit change order id")
	}
	chainRootID, err := uuid.Parse(row.ChainRootID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse audit chain root id")
	}
	actorID, err := uuid.Parse(row.ActorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse audit actor id")
	}
	return &changeorder.AuditEntry{
		ID:            id,
		ChangeOrderID: orderID,
		ChainRootID:   chainRootID,
		Action:        changeorder.AuditAction(row.Action),
		ActorID:       actorID,
		OldValue:      row.OldValue,
		NewValue:      row.NewValue,
		CreatedAt:     row.CreatedAt,
	}, nil
}
