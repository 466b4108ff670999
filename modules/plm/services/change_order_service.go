package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/catalog"
	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
	"github.com/iota-uz/plm-sdk/pkg/composables"
	"github.com/iota-uz/plm-sdk/pkg/eventbus"
	"github.com/iota-uz/plm-sdk/pkg/metrics"
	"github.com/iota-uz/plm-sdk/pkg/outbox"
	"github.com/iota-uz/plm-sdk/pkg/riskai"
	"github.com/iota-uz/plm-sdk/pkg/serrors"
)

var (
	ErrChangeOrderNotFound    = errors.New("change order not found")
	ErrProductNotFound        = errors.New("referenced product not found")
	ErrBOMNotFound            = errors.New("referenced BOM not found")
	ErrNotEditable            = errors.New("change order content can only be edited in draft or rejected status")
	ErrChainNotDeletable      = errors.New("only a chain with a single draft version can be deleted")
	ErrNotRequester           = errors.New("only the original requester can delete a change order")
	ErrRiskServiceUnavailable = errors.New("risk scoring service unavailable")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DTOValidationError carries per-field validation failures.
type DTOValidationError struct {
	Fields serrors.ValidationErrors
}

func (e *DTOValidationError) Error() string {
	return fmt.Sprintf("invalid input: %d field(s) failed validation", len(e.Fields))
}

// ApprovalResult is the outcome of a review decision.
type ApprovalResult struct {
	Order     *changeorder.ChangeOrder
	Approved  bool
	DecidedAt time.Time
}

// EventEnqueuer is the durable event sink the service writes to inside each
// mutation's transaction. *outbox.Publisher satisfies it.
type EventEnqueuer interface {
	Enqueue(ctx context.Context, msgs ...outbox.Message) error
}

// ChangeOrderService is the workflow orchestrator over the change-order
// chain: it composes the status machine and the versioning rules with the
// repository inside one transaction per operation.
type ChangeOrderService struct {
	repo        changeorder.Repository
	catalog     catalog.ReferenceChecker
	publisher   eventbus.EventBus
	enqueuer    EventEnqueuer
	risk        riskai.Analyzer
	riskTimeout time.Duration
	log         *logrus.Entry
}

type Option func(*ChangeOrderService)

// WithRiskAnalyzer wires the optional risk-scoring collaborator. timeout
// bounds each call so a slow provider cannot stall a submission.
func WithRiskAnalyzer(analyzer riskai.Analyzer, timeout time.Duration) Option {
	return func(s *ChangeOrderService) {
		s.risk = analyzer
		if timeout > 0 {
			s.riskTimeout = timeout
		}
	}
}

// WithOutbox wires durable event delivery for external notifiers.
func WithOutbox(enqueuer EventEnqueuer) Option {
	return func(s *ChangeOrderService) {
		s.enqueuer = enqueuer
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *ChangeOrderService) {
		s.log = log
	}
}

func NewChangeOrderService(
	repo changeorder.Repository,
	refs catalog.ReferenceChecker,
	publisher eventbus.EventBus,
	opts ...Option,
) *ChangeOrderService {
	s := &ChangeOrderService{
		repo:        repo,
		catalog:     refs,
		publisher:   publisher,
		riskTimeout: 15 * time.Second,
		log:         logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChangeOrderService) enqueue(ctx context.Context, topic string, co *changeorder.ChangeOrder, actor changeorder.Actor, now time.Time) error {
	if s.enqueuer == nil {
		return nil
	}
	payload, err := json.Marshal(changeorder.EventPayload{
		ChainRootID: co.ChainRootID,
		VersionID:   co.ID,
		Version:     co.Version,
		Status:      co.Status,
		Title:       co.Title,
		ActorID:     actor.ID,
		OccurredAt:  now,
	})
	if err != nil {
		return err
	}
	return s.enqueuer.Enqueue(ctx, outbox.Message{
		Topic:   topic,
		EventID: uuid.New(),
		Payload: payload,
	})
}

// Create opens a new chain: version 1, draft, latest.
func (s *ChangeOrderService) Create(ctx context.Context, dto *changeorder.CreateDTO, actor changeorder.Actor) (*changeorder.ChangeOrder, error) {
	if fields, ok := dto.Ok(); !ok {
		return nil, &DTOValidationError{Fields: fields}
	}
	now := time.Now()
	entity := dto.ToEntity(actor, now)

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		if ok, err := s.catalog.ProductExists(txCtx, dto.ProductID); err != nil {
			return nil, err
		} else if !ok {
			return nil, ErrProductNotFound
		}
		if dto.BOMID != nil {
			if ok, err := s.catalog.BOMExists(txCtx, *dto.BOMID); err != nil {
				return nil, err
			} else if !ok {
				return nil, ErrBOMNotFound
			}
		}
		if err := s.repo.Create(txCtx, entity); err != nil {
			return nil, err
		}
		if err := s.repo.AddAuditEntry(txCtx, s.auditEntry(entity, changeorder.ActionCreate, actor, "", string(changeorder.StatusDraft), now)); err != nil {
			return nil, err
		}
		if err := s.enqueue(txCtx, changeorder.TopicCreated, entity, actor, now); err != nil {
			return nil, err
		}
		return entity, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ChangeOrdersCreated.Inc()
	s.publisher.Publish(changeorder.CreatedEvent{Result: *created})
	return created, nil
}

// EditContent applies a content edit to the current latest version. Content
// may only change while the order sits in draft or rejected; a real change
// always produces a new version. A patch carrying only a status delegates to
// the status-change path.
func (s *ChangeOrderService) EditContent(ctx context.Context, chainRootID uuid.UUID, dto *changeorder.UpdateDTO, actor changeorder.Actor) (*changeorder.ChangeOrder, error) {
	if fields, ok := dto.Ok(); !ok {
		return nil, &DTOValidationError{Fields: fields}
	}
	patch := dto.ToPatch()
	now := time.Now()

	type editOutcome struct {
		previous  *changeorder.ChangeOrder
		result    *changeorder.ChangeOrder
		versioned bool
	}
	outcome, err := composables.InTxResult(ctx, func(txCtx context.Context) (editOutcome, error) {
		current, err := s.loadLatest(txCtx, chainRootID)
		if err != nil {
			return editOutcome{}, err
		}
		if current.Status != changeorder.StatusDraft && current.Status != changeorder.StatusRejected {
			return editOutcome{}, ErrNotEditable
		}
		switch changeorder.DecideContentEdit(current, patch) {
		case changeorder.DecisionNoOp:
			return editOutcome{result: current}, nil
		case changeorder.DecisionMutateInPlace:
			// Status-only patch.
			if err := changeorder.ValidateTransition(current.Status, *patch.Status); err != nil {
				metrics.RejectedTransitions.Inc()
				return editOutcome{}, err
			}
			result, err := s.applyStatusChange(txCtx, current, *patch.Status, actor, "", nil, now)
			if err != nil {
				return editOutcome{}, err
			}
			return editOutcome{result: result}, nil
		}

		next := changeorder.NextVersion(current, patch, actor, now)
		// An explicitly requested status must be reachable; the implicit
		// reset to draft on a plain edit is always allowed.
		if patch.Status != nil && *patch.Status != current.Status {
			if err := changeorder.ValidateTransition(current.Status, *patch.Status); err != nil {
				metrics.RejectedTransitions.Inc()
				return editOutcome{}, err
			}
		}
		if err := s.repo.InsertVersion(txCtx, current.ID, next); err != nil {
			return editOutcome{}, err
		}
		entry := s.auditEntry(next, changeorder.ActionCreateVersion, actor,
			fmt.Sprintf("version %d", current.Version),
			fmt.Sprintf("version %d", next.Version),
			now,
		)
		if err := s.repo.AddAuditEntry(txCtx, entry); err != nil {
			return editOutcome{}, err
		}
		if err := s.enqueue(txCtx, changeorder.TopicVersionCreated, next, actor, now); err != nil {
			return editOutcome{}, err
		}
		return editOutcome{previous: current, result: next, versioned: true}, nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.versioned {
		metrics.VersionsCreated.Inc()
		s.publisher.Publish(changeorder.VersionCreatedEvent{
			Previous: *outcome.previous,
			Result:   *outcome.result,
		})
	}
	return outcome.result, nil
}

// ChangeStatus moves the chain to target. Risk scoring runs before the
// transaction on draft submission only, and its failure never blocks the
// transition. The optional comment is attached to the resulting version.
func (s *ChangeOrderService) ChangeStatus(ctx context.Context, chainRootID uuid.UUID, target changeorder.Status, actor changeorder.Actor, comment string) (*changeorder.ChangeOrder, error) {
	current, err := s.getLatest(ctx, chainRootID)
	if err != nil {
		return nil, err
	}
	if err := changeorder.ValidateTransition(current.Status, target); err != nil {
		metrics.RejectedTransitions.Inc()
		return nil, err
	}

	var score *riskai.RiskResult
	if current.Status == changeorder.StatusDraft && target == changeorder.StatusSubmitted {
		score = s.tryScore(ctx, current)
	}

	from := current.Status
	now := time.Now()
	result, err := composables.InTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		// State may have moved since the pre-transaction read.
		current, err := s.loadLatest(txCtx, chainRootID)
		if err != nil {
			return nil, err
		}
		if err := changeorder.ValidateTransition(current.Status, target); err != nil {
			metrics.RejectedTransitions.Inc()
			return nil, err
		}
		from = current.Status
		return s.applyStatusChange(txCtx, current, target, actor, comment, score, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(target)).Inc()
	s.publisher.Publish(changeorder.StatusChangedEvent{
		From:   from,
		To:     target,
		Actor:  actor,
		Result: *result,
	})
	return result, nil
}

// applyStatusChange performs the in-transaction part of a validated status
// move: version or mutate per the versioning rules, audit, optional comment,
// outbox message.
func (s *ChangeOrderService) applyStatusChange(
	txCtx context.Context,
	current *changeorder.ChangeOrder,
	target changeorder.Status,
	actor changeorder.Actor,
	comment string,
	score *riskai.RiskResult,
	now time.Time,
) (*changeorder.ChangeOrder, error) {
	from := current.Status
	var result *changeorder.ChangeOrder
	switch changeorder.DecideStatusChange(target) {
	case changeorder.DecisionNewVersion:
		next := changeorder.NextStatusVersion(current, target, actor, now)
		applyScore(next, score)
		if err := s.repo.InsertVersion(txCtx, current.ID, next); err != nil {
			return nil, err
		}
		metrics.VersionsCreated.Inc()
		result = next
	default:
		changeorder.ApplyStatusInPlace(current, target, actor, now)
		applyScore(current, score)
		if err := s.repo.Update(txCtx, current); err != nil {
			return nil, err
		}
		result = current
	}

	entry := s.auditEntry(result, changeorder.ActionUpdateStatus, actor, string(from), string(target), now)
	if err := s.repo.AddAuditEntry(txCtx, entry); err != nil {
		return nil, err
	}
	if comment != "" {
		if err := s.repo.AddComment(txCtx, &changeorder.Comment{
			ID:            uuid.New(),
			ChangeOrderID: result.ID,
			AuthorID:      actor.ID,
			AuthorName:    actor.Name,
			Content:       comment,
			CreatedAt:     now,
		}); err != nil {
			return nil, err
		}
	}
	if err := s.enqueue(txCtx, changeorder.TopicStatusChanged, result, actor, now); err != nil {
		return nil, err
	}
	return result, nil
}

// RecordApproval resolves a review into approved or rejected and leaves a
// summary comment on the resulting version.
func (s *ChangeOrderService) RecordApproval(ctx context.Context, chainRootID uuid.UUID, actor changeorder.Actor, approved bool, comment string) (*ApprovalResult, error) {
	target := changeorder.StatusRejected
	summary := "ECO rejected"
	if approved {
		target = changeorder.StatusApproved
		summary = "ECO approved"
	}
	if comment != "" {
		summary = summary + ": " + comment
	}

	order, err := s.ChangeStatus(ctx, chainRootID, target, actor, summary)
	if err != nil {
		return nil, err
	}
	return &ApprovalResult{
		Order:     order,
		Approved:  approved,
		DecidedAt: time.Now(),
	}, nil
}

// AddComment appends a discussion entry to the current latest version.
func (s *ChangeOrderService) AddComment(ctx context.Context, chainRootID uuid.UUID, actor changeorder.Actor, content string) (*changeorder.Comment, error) {
	now := time.Now()
	type commented struct {
		comment *changeorder.Comment
		order   *changeorder.ChangeOrder
	}
	out, err := composables.InTxResult(ctx, func(txCtx context.Context) (commented, error) {
		current, err := s.loadLatest(txCtx, chainRootID)
		if err != nil {
			return commented{}, err
		}
		c := &changeorder.Comment{
			ID:            uuid.New(),
			ChangeOrderID: current.ID,
			AuthorID:      actor.ID,
			AuthorName:    actor.Name,
			Content:       content,
			CreatedAt:     now,
		}
		if err := s.repo.AddComment(txCtx, c); err != nil {
			return commented{}, err
		}
		entry := s.auditEntry(current, changeorder.ActionAddComment, actor, "", content, now)
		if err := s.repo.AddAuditEntry(txCtx, entry); err != nil {
			return commented{}, err
		}
		if err := s.enqueue(txCtx, changeorder.TopicCommented, current, actor, now); err != nil {
			return commented{}, err
		}
		return commented{comment: c, order: current}, nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(changeorder.CommentedEvent{Comment: *out.comment, Order: *out.order})
	return out.comment, nil
}

// Delete removes a whole chain. Permitted only while the chain has exactly
// one version, that version is a draft, and the caller is its original
// requester.
func (s *ChangeOrderService) Delete(ctx context.Context, chainRootID uuid.UUID, actor changeorder.Actor) error {
	now := time.Now()
	deleted, err := composables.InTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		versions, err := s.repo.GetVersions(txCtx, chainRootID)
		if err != nil {
			if errors.Is(err, changeorder.ErrNotFound) {
				return nil, ErrChangeOrderNotFound
			}
			return nil, err
		}
		if len(versions) != 1 || versions[0].Status != changeorder.StatusDraft {
			return nil, ErrChainNotDeletable
		}
		sole := versions[0]
		if sole.RequestedBy.ID != actor.ID {
			return nil, ErrNotRequester
		}
		if err := s.repo.DeleteChain(txCtx, chainRootID); err != nil {
			return nil, err
		}
		if err := s.enqueue(txCtx, changeorder.TopicDeleted, sole, actor, now); err != nil {
			return nil, err
		}
		return sole, nil
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(changeorder.DeletedEvent{Result: *deleted})
	return nil
}

// Get returns the current latest version of a chain.
func (s *ChangeOrderService) Get(ctx context.Context, chainRootID uuid.UUID) (*changeorder.ChangeOrder, error) {
	return s.getLatest(ctx, chainRootID)
}

// GetVersionHistory returns every version of a chain, oldest first.
func (s *ChangeOrderService) GetVersionHistory(ctx context.Context, chainRootID uuid.UUID) ([]*changeorder.ChangeOrder, error) {
	versions, err := composables.InTxResult(ctx, func(txCtx context.Context) ([]*changeorder.ChangeOrder, error) {
		return s.repo.GetVersions(txCtx, chainRootID)
	})
	if err != nil {
		if errors.Is(err, changeorder.ErrNotFound) {
			return nil, ErrChangeOrderNotFound
		}
		return nil, err
	}
	return versions, nil
}

// List returns the latest versions matching params plus the total count.
func (s *ChangeOrderService) List(ctx context.Context, params *changeorder.FindParams) ([]*changeorder.ChangeOrder, int64, error) {
	if params.Limit <= 0 {
		params.Limit = defaultPageSize
	}
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	type listing struct {
		orders []*changeorder.ChangeOrder
		total  int64
	}
	out, err := composables.InTxResult(ctx, func(txCtx context.Context) (listing, error) {
		orders, err := s.repo.List(txCtx, params)
		if err != nil {
			return listing{}, err
		}
		total, err := s.repo.Count(txCtx, params)
		if err != nil {
			return listing{}, err
		}
		return listing{orders: orders, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out.orders, out.total, nil
}

// ListComments returns the chain's discussion, oldest first.
func (s *ChangeOrderService) ListComments(ctx context.Context, chainRootID uuid.UUID) ([]*changeorder.Comment, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*changeorder.Comment, error) {
		if _, err := s.loadLatest(txCtx, chainRootID); err != nil {
			return nil, err
		}
		return s.repo.GetComments(txCtx, chainRootID)
	})
}

// GetAuditLog returns the chain's audit trail, oldest first.
func (s *ChangeOrderService) GetAuditLog(ctx context.Context, chainRootID uuid.UUID) ([]*changeorder.AuditEntry, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*changeorder.AuditEntry, error) {
		if _, err := s.loadLatest(txCtx, chainRootID); err != nil {
			return nil, err
		}
		return s.repo.GetAuditLog(txCtx, chainRootID)
	})
}

// Rescore re-runs risk scoring on demand. Unlike the submission-time call
// this one surfaces collaborator exhaustion to the caller.
func (s *ChangeOrderService) Rescore(ctx context.Context, chainRootID uuid.UUID, actor changeorder.Actor) (*changeorder.ChangeOrder, error) {
	if s.risk == nil {
		return nil, ErrRiskServiceUnavailable
	}
	current, err := s.getLatest(ctx, chainRootID)
	if err != nil {
		return nil, err
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.riskTimeout)
	defer cancel()
	result, err := s.risk.Analyze(scoreCtx, summarize(current))
	if err != nil {
		metrics.RiskScoringFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrRiskServiceUnavailable, err)
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		current, err := s.loadLatest(txCtx, chainRootID)
		if err != nil {
			return nil, err
		}
		applyScore(current, &result)
		current.UpdatedAt = time.Now()
		if err := s.repo.Update(txCtx, current); err != nil {
			return nil, err
		}
		return current, nil
	})
}

func (s *ChangeOrderService) getLatest(ctx context.Context, chainRootID uuid.UUID) (*changeorder.ChangeOrder, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		return s.loadLatest(txCtx, chainRootID)
	})
}

func (s *ChangeOrderService) loadLatest(txCtx context.Context, chainRootID uuid.UUID) (*changeorder.ChangeOrder, error) {
	current, err := s.repo.GetLatest(txCtx, chainRootID)
	if err != nil {
		if errors.Is(err, changeorder.ErrNotFound) {
			return nil, ErrChangeOrderNotFound
		}
		return nil, err
	}
	return current, nil
}

// tryScore asks the risk collaborator for an assessment and absorbs any
// failure: an unscored submission is still a submission.
func (s *ChangeOrderService) tryScore(ctx context.Context, current *changeorder.ChangeOrder) *riskai.RiskResult {
	if s.risk == nil {
		return nil
	}
	scoreCtx, cancel := context.WithTimeout(ctx, s.riskTimeout)
	defer cancel()
	result, err := s.risk.Analyze(scoreCtx, summarize(current))
	if err != nil {
		metrics.RiskScoringFailures.Inc()
		s.log.WithError(err).
			WithField("chain_root_id", current.ChainRootID).
			Warn("risk scoring failed, proceeding unscored")
		return nil
	}
	return &result
}

func (s *ChangeOrderService) auditEntry(co *changeorder.ChangeOrder, action changeorder.AuditAction, actor changeorder.Actor, oldValue, newValue string, now time.Time) *changeorder.AuditEntry {
	return &changeorder.AuditEntry{
		ID:            uuid.New(),
		ChangeOrderID: co.ID,
		ChainRootID:   co.ChainRootID,
		Action:        action,
		ActorID:       actor.ID,
		OldValue:      oldValue,
		NewValue:      newValue,
		CreatedAt:     now,
	}
}

func applyScore(co *changeorder.ChangeOrder, score *riskai.RiskResult) {
	if score == nil {
		return
	}
	riskScore := score.RiskScore
	delay := score.PredictedDelay
	co.RiskScore = &riskScore
	co.PredictedDelay = &delay
	co.KeyRisks = score.KeyRisks
}

func summarize(co *changeorder.ChangeOrder) riskai.ChangeSummary {
	return riskai.ChangeSummary{
		Title:           co.Title,
		Description:     co.Description,
		Reason:          co.Reason,
		ChangeType:      string(co.ChangeType),
		Priority:        string(co.Priority),
		AffectedParts:   co.ImpactAnalysis.AffectedParts,
		ImpactAnalysis:  co.ImpactAnalysis.Notes,
		ComplianceNotes: complianceNotes(co.ComplianceChecks),
	}
}

func complianceNotes(checks []changeorder.ComplianceCheck) string {
	var notes string
	for _, c := range checks {
		if notes != "" {
			notes += "; "
		}
		status := "passed"
		if !c.Passed {
			status = "failed"
		}
		notes += fmt.Sprintf("%s %s", c.Standard, status)
	}
	return notes
}
