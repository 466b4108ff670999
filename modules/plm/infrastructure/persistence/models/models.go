// Package models holds the database row shapes for the PLM module.
package models

import "time"

type ChangeOrder struct {
	ID          string
	ChainRootID string
	ParentID    *string
	Version     int
	IsLatest    bool

	ProductID string
	BomID     *string

	Title            string
	Description      string
	Reason           string
	ChangeType       string
	Priority         string
	ProposedChanges  []byte
	ImpactAnalysis   []byte
	ComplianceChecks []byte

	Status          string
	RequestedByID   string
	RequestedByName string
	ApprovedByID    *string
	ApprovedByName  *string
	ApprovalDate    *time.Time
	ExecutedByID    *string
	ExecutedByName  *string
	ExecutedAt      *time.Time

	RiskScore      *float64
	PredictedDelay *int
	KeyRisks       []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChangeOrderComment struct {
	ID            string
	ChangeOrderID string
	AuthorID      string
	AuthorName    string
	Content       string
	CreatedAt     time.Time
}

type ChangeOrderAuditLog struct {
	ID            string
	ChangeOrderID string
	ChainRootID   string
	Action        string
	ActorID       string
	OldValue      string
	NewValue      string
	CreatedAt     time.Time
}
