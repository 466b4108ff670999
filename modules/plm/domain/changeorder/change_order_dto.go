package changeorder

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iota-uz/plm-sdk/pkg/constants"
	"github.com/iota-uz/plm-sdk/pkg/serrors"
)

// CreateDTO is the validated input for opening a new chain.
type CreateDTO struct {
	Title            string     `validate:"required,min=3,max=255"`
	Description      string     `validate:"max=4000"`
	Reason           string     `validate:"required,max=4000"`
	ChangeType       ChangeType `validate:"required,oneof=design process material supplier document"`
	Priority         Priority   `validate:"required,oneof=low medium high critical"`
	ProductID        uuid.UUID  `validate:"required"`
	BOMID            *uuid.UUID
	ProposedChanges  []FieldChange
	ImpactAnalysis   ImpactAnalysis
	ComplianceChecks []ComplianceCheck
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	err := constants.Validate.Struct(d)
	if err == nil {
		return nil, true
	}
	return serrors.ProcessValidatorErrors(err.(validator.ValidationErrors), noLocale), false
}

// ToEntity builds version 1 of a fresh chain in draft.
func (d *CreateDTO) ToEntity(actor Actor, now time.Time) *ChangeOrder {
	id := uuid.New()
	return &ChangeOrder{
		ID:               id,
		ChainRootID:      id,
		Version:          1,
		IsLatest:         true,
		ProductID:        d.ProductID,
		BOMID:            d.BOMID,
		Title:            d.Title,
		Description:      d.Description,
		Reason:           d.Reason,
		ChangeType:       d.ChangeType,
		Priority:         d.Priority,
		ProposedChanges:  d.ProposedChanges,
		ImpactAnalysis:   d.ImpactAnalysis,
		ComplianceChecks: d.ComplianceChecks,
		Status:           StatusDraft,
		RequestedBy:      actor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// UpdateDTO is the validated input for a content edit. Omitted fields keep
// their current values.
type UpdateDTO struct {
	Title            *string     `validate:"omitempty,min=3,max=255"`
	Description      *string     `validate:"omitempty,max=4000"`
	Reason           *string     `validate:"omitempty,max=4000"`
	ChangeType       *ChangeType `validate:"omitempty,oneof=design process material supplier document"`
	Priority         *Priority   `validate:"omitempty,oneof=low medium high critical"`
	ProposedChanges  []FieldChange
	ImpactAnalysis   *ImpactAnalysis
	ComplianceChecks []ComplianceCheck
	Status           *Status `validate:"omitempty,oneof=draft submitted under_review approved implementing completed rejected"`
}

func (d *UpdateDTO) Ok() (serrors.ValidationErrors, bool) {
	err := constants.Validate.Struct(d)
	if err == nil {
		return nil, true
	}
	return serrors.ProcessValidatorErrors(err.(validator.ValidationErrors), noLocale), false
}

func (d *UpdateDTO) ToPatch() ContentPatch {
	return ContentPatch{
		Title:            d.Title,
		Description:      d.Description,
		Reason:           d.Reason,
		ChangeType:       d.ChangeType,
		Priority:         d.Priority,
		ProposedChanges:  d.ProposedChanges,
		ImpactAnalysis:   d.ImpactAnalysis,
		ComplianceChecks: d.ComplianceChecks,
		Status:           d.Status,
	}
}

func noLocale(string) string { return "" }
