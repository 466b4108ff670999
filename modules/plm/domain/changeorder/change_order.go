// Package changeorder holds the engineering-change-order domain model: the
// versioned record chain, the status state machine and the versioning rules
// the workflow service applies.
package changeorder

import (
	"time"

	"github.com/google/uuid"
)

type ChangeType string

const (
	TypeDesign   ChangeType = "design"
	TypeProcess  ChangeType = "process"
	TypeMaterial ChangeType = "material"
	TypeSupplier ChangeType = "supplier"
	TypeDocument ChangeType = "document"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Actor identifies the user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
}

// FieldChange is one proposed field-level modification.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// ImpactAnalysis captures the expected blast radius of the change.
type ImpactAnalysis struct {
	Scope         string   `json:"scope"`
	AffectedParts []string `json:"affected_parts"`
	EstimatedCost float64  `json:"estimated_cost"`
	Notes         string   `json:"notes"`
}

// ComplianceCheck records a regulatory or standards check against the change.
type ComplianceCheck struct {
	Standard string `json:"standard"`
	Passed   bool   `json:"passed"`
	Notes    string `json:"notes"`
}

// ChangeOrder is one version row of a change-order chain. A chain is the set
// of rows sharing ChainRootID; exactly one of them carries IsLatest.
type ChangeOrder struct {
	ID          uuid.UUID
	ChainRootID uuid.UUID
	ParentID    *uuid.UUID
	Version     int
	IsLatest    bool

	ProductID uuid.UUID
	BOMID     *uuid.UUID

	Title            string
	Description      string
	Reason           string
	ChangeType       ChangeType
	Priority         Priority
	ProposedChanges  []FieldChange
	ImpactAnalysis   ImpactAnalysis
	ComplianceChecks []ComplianceCheck

	Status       Status
	RequestedBy  Actor
	ApprovedBy   *Actor
	ApprovalDate *time.Time
	ExecutedBy   *Actor
	ExecutedAt   *time.Time

	RiskScore      *float64
	PredictedDelay *int
	KeyRisks       []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment is an immutable discussion entry attached to a specific version.
type Comment struct {
	ID            uuid.UUID
	ChangeOrderID uuid.UUID
	AuthorID      uuid.UUID
	AuthorName    string
	Content       string
	CreatedAt     time.Time
}

type AuditAction string

const (
	ActionCreate        AuditAction = "CREATE"
	ActionCreateVersion AuditAction = "CREATE_VERSION"
	ActionUpdateStatus  AuditAction = "UPDATE_STATUS"
	ActionAddComment    AuditAction = "ADD_COMMENT"
	ActionDelete        AuditAction = "DELETE"
)

// AuditEntry is an immutable trace record. ChangeOrderID is the version the
// action touched; ChainRootID lets cross-version events be queried per chain.
type AuditEntry struct {
	ID            uuid.UUID
	ChangeOrderID uuid.UUID
	ChainRootID   uuid.UUID
	Action        AuditAction
	ActorID       uuid.UUID
	OldValue      string
	NewValue      string
	CreatedAt     time.Time
}
