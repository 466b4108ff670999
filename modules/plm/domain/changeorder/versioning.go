package changeorder

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ContentPatch is a partial update to a change order's content fields. Nil
// pointers and nil slices mean "field not supplied"; supplied fields replace
// the current value wholesale.
type ContentPatch struct {
	Title            *string
	Description      *string
	Reason           *string
	ChangeType       *ChangeType
	Priority         *Priority
	ProposedChanges  []FieldChange
	ImpactAnalysis   *ImpactAnalysis
	ComplianceChecks []ComplianceCheck
	Status           *Status
}

// Decision is the version engine's verdict on a mutation request.
type Decision int

const (
	DecisionNoOp Decision = iota
	DecisionMutateInPlace
	DecisionNewVersion
)

// changesContent reports whether the patch supplies any content field that
// differs from the current version.
func (p ContentPatch) changesContent(current *ChangeOrder) bool {
	if p.Title != nil && *p.Title != current.Title {
		return true
	}
	if p.Description != nil && *p.Description != current.Description {
		return true
	}
	if p.Reason != nil && *p.Reason != current.Reason {
		return true
	}
	if p.ChangeType != nil && *p.ChangeType != current.ChangeType {
		return true
	}
	if p.Priority != nil && *p.Priority != current.Priority {
		return true
	}
	if p.ProposedChanges != nil && !slices.Equal(p.ProposedChanges, current.ProposedChanges) {
		return true
	}
	if p.ImpactAnalysis != nil && !impactEqual(*p.ImpactAnalysis, current.ImpactAnalysis) {
		return true
	}
	if p.ComplianceChecks != nil && !slices.Equal(p.ComplianceChecks, current.ComplianceChecks) {
		return true
	}
	return false
}

func impactEqual(a, b ImpactAnalysis) bool {
	return a.Scope == b.Scope &&
		a.EstimatedCost == b.EstimatedCost &&
		a.Notes == b.Notes &&
		slices.Equal(a.AffectedParts, b.AffectedParts)
}

// DecideContentEdit resolves a content-edit intent. A patch that changes
// nothing and carries no status is a no-op; any real content change always
// creates a new version.
func DecideContentEdit(current *ChangeOrder, patch ContentPatch) Decision {
	if patch.changesContent(current) {
		return DecisionNewVersion
	}
	if patch.Status != nil && *patch.Status != current.Status {
		return DecisionMutateInPlace
	}
	return DecisionNoOp
}

// DecideStatusChange resolves a pure status-change intent.
func DecideStatusChange(target Status) Decision {
	if VersioningRequired(target) {
		return DecisionNewVersion
	}
	return DecisionMutateInPlace
}

// clone copies a version row so a successor can diverge from it without
// sharing slices with the original.
func (co *ChangeOrder) clone() *ChangeOrder {
	next := *co
	next.ProposedChanges = slices.Clone(co.ProposedChanges)
	next.ImpactAnalysis.AffectedParts = slices.Clone(co.ImpactAnalysis.AffectedParts)
	next.ComplianceChecks = slices.Clone(co.ComplianceChecks)
	next.KeyRisks = slices.Clone(co.KeyRisks)
	return &next
}

// NextVersion builds the successor row for a content edit: unspecified
// fields are carried forward, version and parent linkage advance, and the
// requester is reassigned to the acting user. Status comes from the patch
// when supplied, draft otherwise.
func NextVersion(current *ChangeOrder, patch ContentPatch, actor Actor, now time.Time) *ChangeOrder {
	next := current.clone()
	next.ID = uuid.New()
	parentID := current.ID
	next.ParentID = &parentID
	next.Version = current.Version + 1
	next.IsLatest = true
	next.RequestedBy = actor
	next.CreatedAt = now
	next.UpdatedAt = now

	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Reason != nil {
		next.Reason = *patch.Reason
	}
	if patch.ChangeType != nil {
		next.ChangeType = *patch.ChangeType
	}
	if patch.Priority != nil {
		next.Priority = *patch.Priority
	}
	if patch.ProposedChanges != nil {
		next.ProposedChanges = slices.Clone(patch.ProposedChanges)
	}
	if patch.ImpactAnalysis != nil {
		next.ImpactAnalysis = *patch.ImpactAnalysis
		next.ImpactAnalysis.AffectedParts = slices.Clone(patch.ImpactAnalysis.AffectedParts)
	}
	if patch.ComplianceChecks != nil {
		next.ComplianceChecks = slices.Clone(patch.ComplianceChecks)
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	} else {
		next.Status = StatusDraft
	}
	return next
}

// NextStatusVersion builds the successor row for a versioning status change:
// content fields are copied verbatim, only workflow fields move.
func NextStatusVersion(current *ChangeOrder, target Status, actor Actor, now time.Time) *ChangeOrder {
	next := current.clone()
	next.ID = uuid.New()
	parentID := current.ID
	next.ParentID = &parentID
	next.Version = current.Version + 1
	next.IsLatest = true
	next.CreatedAt = now
	next.UpdatedAt = now
	applyStatus(next, target, actor, now)
	return next
}

// ApplyStatusInPlace applies a non-versioning status change to the current
// row.
func ApplyStatusInPlace(current *ChangeOrder, target Status, actor Actor, now time.Time) {
	applyStatus(current, target, actor, now)
	current.UpdatedAt = now
}

// applyStatus sets the status and stamps the once-per-chain workflow fields:
// approval on first entry into approved, execution on first entry into
// completed.
func applyStatus(co *ChangeOrder, target Status, actor Actor, now time.Time) {
	co.Status = target
	switch target {
	case StatusApproved:
		if co.ApprovedBy == nil {
			approver := actor
			at := now
			co.ApprovedBy = &approver
			co.ApprovalDate = &at
		}
	case StatusCompleted:
		if co.ExecutedBy == nil {
			executor := actor
			at := now
			co.ExecutedBy = &executor
			co.ExecutedAt = &at
		}
	}
}
