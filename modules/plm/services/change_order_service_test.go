package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
	"github.com/iota-uz/plm-sdk/modules/plm/infrastructure/persistence"
	"github.com/iota-uz/plm-sdk/modules/plm/services"
	"github.com/iota-uz/plm-sdk/pkg/eventbus"
	"github.com/iota-uz/plm-sdk/pkg/outbox"
	"github.com/iota-uz/plm-sdk/pkg/riskai"
)

type stubAnalyzer struct {
	result riskai.RiskResult
	err    error
	calls  int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ riskai.ChangeSummary) (riskai.RiskResult, error) {
	s.calls++
	return s.result, s.err
}

type captureEnqueuer struct {
	messages []outbox.Message
}

func (c *captureEnqueuer) Enqueue(_ context.Context, msgs ...outbox.Message) error {
	c.messages = append(c.messages, msgs...)
	return nil
}

func (c *captureEnqueuer) topics() []string {
	out := make([]string, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Topic
	}
	return out
}

type fixture struct {
	svc       *services.ChangeOrderService
	repo      *persistence.MemoryChangeOrderRepository
	catalog   *persistence.MemoryCatalogRepository
	productID uuid.UUID
	requester changeorder.Actor
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newFixture(t *testing.T, opts ...services.Option) *fixture {
	t.Helper()
	repo := persistence.NewMemoryChangeOrderRepository()
	refs := persistence.NewMemoryCatalogRepository()
	productID := uuid.New()
	refs.AddProduct(productID)
	return &fixture{
		svc:       services.NewChangeOrderService(repo, refs, eventbus.NewEventPublisher(quietLogger()), opts...),
		repo:      repo,
		catalog:   refs,
		productID: productID,
		requester: changeorder.Actor{ID: uuid.New(), Name: "R. Ortega"},
	}
}

func (f *fixture) createDTO() *changeorder.CreateDTO {
	return &changeorder.CreateDTO{
		Title:      "Revise bracket tolerance",
		Reason:     "Field returns show fit issues at upper tolerance",
		ChangeType: changeorder.TypeDesign,
		Priority:   changeorder.PriorityHigh,
		ProductID:  f.productID,
	}
}

func (f *fixture) mustCreate(t *testing.T) *changeorder.ChangeOrder {
	t.Helper()
	order, err := f.svc.Create(context.Background(), f.createDTO(), f.requester)
	require.NoError(t, err)
	return order
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)

	assert.Equal(t, 1, order.Version)
	assert.True(t, order.IsLatest)
	assert.Equal(t, changeorder.StatusDraft, order.Status)
	assert.Equal(t, order.ID, order.ChainRootID)
	assert.Nil(t, order.ParentID)
	assert.Equal(t, f.requester, order.RequestedBy)

	audit, err := f.svc.GetAuditLog(context.Background(), order.ChainRootID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, changeorder.ActionCreate, audit[0].Action)
}

func TestCreate_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	dto := f.createDTO()
	dto.ProductID = uuid.New()

	_, err := f.svc.Create(context.Background(), dto, f.requester)
	assert.ErrorIs(t, err, services.ErrProductNotFound)
}

func TestCreate_UnknownBOM(t *testing.T) {
	f := newFixture(t)
	dto := f.createDTO()
	bomID := uuid.New()
	dto.BOMID = &bomID

	_, err := f.svc.Create(context.Background(), dto, f.requester)
	assert.ErrorIs(t, err, services.ErrBOMNotFound)
}

func TestCreate_InvalidDTO(t *testing.T) {
	f := newFixture(t)
	dto := &changeorder.CreateDTO{Title: "x"}

	_, err := f.svc.Create(context.Background(), dto, f.requester)
	var ve *services.DTOValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Fields)
}

func TestChangeStatus_SubmitCreatesVersionAndScores(t *testing.T) {
	analyzer := &stubAnalyzer{result: riskai.RiskResult{RiskScore: 0.62, PredictedDelay: 4, KeyRisks: []string{"line requalification"}}}
	f := newFixture(t, services.WithRiskAnalyzer(analyzer, time.Second))
	order := f.mustCreate(t)

	submitted, err := f.svc.ChangeStatus(context.Background(), order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)

	assert.Equal(t, 2, submitted.Version)
	assert.True(t, submitted.IsLatest)
	assert.Equal(t, changeorder.StatusSubmitted, submitted.Status)
	assert.Equal(t, 1, analyzer.calls)
	require.NotNil(t, submitted.RiskScore)
	assert.InDelta(t, 0.62, *submitted.RiskScore, 1e-9)
	require.NotNil(t, submitted.PredictedDelay)
	assert.Equal(t, 4, *submitted.PredictedDelay)

	history, err := f.svc.GetVersionHistory(context.Background(), order.ChainRootID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsLatest, "version 1 should be retired")
	assert.True(t, history[1].IsLatest)
}

func TestChangeStatus_RiskFailureDoesNotBlock(t *testing.T) {
	analyzer := &stubAnalyzer{err: errors.New("all providers down")}
	f := newFixture(t, services.WithRiskAnalyzer(analyzer, time.Second))
	order := f.mustCreate(t)

	submitted, err := f.svc.ChangeStatus(context.Background(), order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)
	assert.Equal(t, changeorder.StatusSubmitted, submitted.Status)
	assert.Equal(t, 1, analyzer.calls)
	assert.Nil(t, submitted.RiskScore)
}

func TestChangeStatus_RiskOnlyOnSubmission(t *testing.T) {
	analyzer := &stubAnalyzer{result: riskai.RiskResult{RiskScore: 0.5}}
	f := newFixture(t, services.WithRiskAnalyzer(analyzer, time.Second))
	order := f.mustCreate(t)
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusUnderReview, f.requester, "")
	require.NoError(t, err)
	assert.Equal(t, 1, analyzer.calls, "scoring runs on draft submission only")
}

func TestChangeStatus_InvalidTransitionLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusCompleted, f.requester, "")
	var ite *changeorder.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, []changeorder.Status{changeorder.StatusUnderReview, changeorder.StatusRejected}, ite.Allowed)

	history, err := f.svc.GetVersionHistory(ctx, order.ChainRootID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "rejected transition must not add a version")
	latest, err := f.svc.Get(ctx, order.ChainRootID)
	require.NoError(t, err)
	assert.Equal(t, changeorder.StatusSubmitted, latest.Status)
}

func TestChangeStatus_ReviewMutatesInPlaceApprovalVersions(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	approver := changeorder.Actor{ID: uuid.New(), Name: "Q. Faber"}

	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)

	reviewed, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusUnderReview, approver, "")
	require.NoError(t, err)
	assert.Equal(t, 2, reviewed.Version, "under_review mutates in place")

	approved, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusApproved, approver, "")
	require.NoError(t, err)
	assert.Equal(t, 3, approved.Version, "approved creates a version")
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approver, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovalDate)
}

func TestChangeStatus_ApprovalStampSetOnce(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	first := changeorder.Actor{ID: uuid.New(), Name: "first approver"}
	second := changeorder.Actor{ID: uuid.New(), Name: "second approver"}

	for _, step := range []struct {
		target changeorder.Status
		actor  changeorder.Actor
	}{
		{changeorder.StatusSubmitted, f.requester},
		{changeorder.StatusUnderReview, first},
		{changeorder.StatusApproved, first},
		{changeorder.StatusImplementing, first},
		{changeorder.StatusApproved, second}, // rolled back from implementing
	} {
		_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, step.target, step.actor, "")
		require.NoError(t, err, "transition to %s", step.target)
	}

	latest, err := f.svc.Get(ctx, order.ChainRootID)
	require.NoError(t, err)
	require.NotNil(t, latest.ApprovedBy)
	assert.Equal(t, first, *latest.ApprovedBy, "first approval stamp survives re-approval")
}

func TestChangeStatus_CompletionStampsExecution(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	executor := changeorder.Actor{ID: uuid.New(), Name: "L. Szabo"}

	for _, target := range []changeorder.Status{
		changeorder.StatusSubmitted,
		changeorder.StatusUnderReview,
		changeorder.StatusApproved,
		changeorder.StatusImplementing,
	} {
		_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, target, f.requester, "")
		require.NoError(t, err)
	}

	done, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusCompleted, executor, "")
	require.NoError(t, err)
	assert.Equal(t, changeorder.StatusCompleted, done.Status)
	require.NotNil(t, done.ExecutedBy)
	assert.Equal(t, executor, *done.ExecutedBy)
	require.NotNil(t, done.ExecutedAt)

	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	assert.Error(t, err, "completed is terminal")
}

func TestChangeStatus_CommentAttachedToResultingVersion(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()

	submitted, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "ready for review")
	require.NoError(t, err)

	comments, err := f.svc.ListComments(ctx, order.ChainRootID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "ready for review", comments[0].Content)
	assert.Equal(t, submitted.ID, comments[0].ChangeOrderID, "comment sits on the new version")
}

func TestRecordApproval_Rejection(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	reviewer := changeorder.Actor{ID: uuid.New(), Name: "Q. Faber"}

	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusUnderReview, reviewer, "")
	require.NoError(t, err)

	result, err := f.svc.RecordApproval(ctx, order.ChainRootID, reviewer, false, "insufficient analysis")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, changeorder.StatusRejected, result.Order.Status)
	assert.Equal(t, 2, result.Order.Version, "rejection mutates in place")

	comments, err := f.svc.ListComments(ctx, order.ChainRootID)
	require.NoError(t, err)
	require.NotEmpty(t, comments)
	assert.Equal(t, "ECO rejected: insufficient analysis", comments[len(comments)-1].Content)
}

func TestRecordApproval_Approval(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	reviewer := changeorder.Actor{ID: uuid.New(), Name: "Q. Faber"}

	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusUnderReview, reviewer, "")
	require.NoError(t, err)

	result, err := f.svc.RecordApproval(ctx, order.ChainRootID, reviewer, true, "analysis complete")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, changeorder.StatusApproved, result.Order.Status)
	require.NotNil(t, result.Order.ApprovedBy)

	comments, err := f.svc.ListComments(ctx, order.ChainRootID)
	require.NoError(t, err)
	assert.Equal(t, "ECO approved: analysis complete", comments[len(comments)-1].Content)
}

func TestEditContent_CreatesVersionAndReassignsRequester(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	editor := changeorder.Actor{ID: uuid.New(), Name: "M. Deng"}
	title := "Revise bracket tolerance and surface finish"

	edited, err := f.svc.EditContent(context.Background(), order.ChainRootID, &changeorder.UpdateDTO{Title: &title}, editor)
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Version)
	assert.Equal(t, title, edited.Title)
	assert.Equal(t, order.Reason, edited.Reason, "unspecified fields carry forward")
	assert.Equal(t, editor, edited.RequestedBy)
	assert.Equal(t, changeorder.StatusDraft, edited.Status)
}

func TestEditContent_NotEditableMidFlight(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)

	title := "too late"
	_, err = f.svc.EditContent(ctx, order.ChainRootID, &changeorder.UpdateDTO{Title: &title}, f.requester)
	assert.ErrorIs(t, err, services.ErrNotEditable)
}

func TestEditContent_RejectedIsEditable(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()
	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusRejected, f.requester, "")
	require.NoError(t, err)

	reason := "Reworked analysis with supplier data"
	edited, err := f.svc.EditContent(ctx, order.ChainRootID, &changeorder.UpdateDTO{Reason: &reason}, f.requester)
	require.NoError(t, err)
	assert.Equal(t, changeorder.StatusDraft, edited.Status, "edit resets the chain to draft")
	assert.Equal(t, 3, edited.Version)
}

func TestEditContent_NoOp(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()

	same := order.Title
	result, err := f.svc.EditContent(ctx, order.ChainRootID, &changeorder.UpdateDTO{Title: &same}, f.requester)
	require.NoError(t, err)
	assert.Equal(t, order.ID, result.ID)
	assert.Equal(t, 1, result.Version)

	audit, err := f.svc.GetAuditLog(ctx, order.ChainRootID)
	require.NoError(t, err)
	assert.Len(t, audit, 1, "a no-op edit leaves no audit trace")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("MultiVersionChainRefused", func(t *testing.T) {
		f := newFixture(t)
		order := f.mustCreate(t)
		_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
		require.NoError(t, err)

		err = f.svc.Delete(ctx, order.ChainRootID, f.requester)
		assert.ErrorIs(t, err, services.ErrChainNotDeletable)
	})

	t.Run("NonRequesterRefused", func(t *testing.T) {
		f := newFixture(t)
		order := f.mustCreate(t)
		err := f.svc.Delete(ctx, order.ChainRootID, changeorder.Actor{ID: uuid.New(), Name: "someone else"})
		assert.ErrorIs(t, err, services.ErrNotRequester)
	})

	t.Run("SoleDraftByRequesterSucceeds", func(t *testing.T) {
		f := newFixture(t)
		order := f.mustCreate(t)
		require.NoError(t, f.svc.Delete(ctx, order.ChainRootID, f.requester))

		_, err := f.svc.Get(ctx, order.ChainRootID)
		assert.ErrorIs(t, err, services.ErrChangeOrderNotFound)
	})

	t.Run("MissingChain", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.Delete(ctx, uuid.New(), f.requester)
		assert.ErrorIs(t, err, services.ErrChangeOrderNotFound)
	})
}

func TestGetVersionHistory_ChainsCorrectly(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusUnderReview, f.requester, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusApproved, f.requester, "")
	require.NoError(t, err)

	history, err := f.svc.GetVersionHistory(ctx, order.ChainRootID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, v := range history {
		assert.Equal(t, i+1, v.Version)
		assert.Equal(t, order.ChainRootID, v.ChainRootID)
		if i == 0 {
			assert.Nil(t, v.ParentID)
		} else {
			require.NotNil(t, v.ParentID)
			assert.Equal(t, history[i-1].ID, *v.ParentID)
		}
		assert.Equal(t, i == len(history)-1, v.IsLatest)
	}
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	order := f.mustCreate(t)
	ctx := context.Background()

	comment, err := f.svc.AddComment(ctx, order.ChainRootID, f.requester, "needs stress test data")
	require.NoError(t, err)
	assert.Equal(t, order.ID, comment.ChangeOrderID)

	comments, err := f.svc.ListComments(ctx, order.ChainRootID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "needs stress test data", comments[0].Content)

	_, err = f.svc.AddComment(ctx, uuid.New(), f.requester, "nobody home")
	assert.ErrorIs(t, err, services.ErrChangeOrderNotFound)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := changeorder.Actor{ID: uuid.New(), Name: "M. Deng"}

	first := f.mustCreate(t)
	_, err := f.svc.ChangeStatus(ctx, first.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)

	dto := f.createDTO()
	dto.Title = "Switch adhesive supplier"
	_, err = f.svc.Create(ctx, dto, other)
	require.NoError(t, err)

	orders, total, err := f.svc.List(ctx, &changeorder.FindParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, orders, 2)

	orders, total, err = f.svc.List(ctx, &changeorder.FindParams{
		Statuses: []changeorder.Status{changeorder.StatusSubmitted},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, first.ChainRootID, orders[0].ChainRootID)

	orders, _, err = f.svc.List(ctx, &changeorder.FindParams{Search: "adhesive"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Switch adhesive supplier", orders[0].Title)

	orders, total, err = f.svc.List(ctx, &changeorder.FindParams{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "count ignores paging")
	assert.Len(t, orders, 1)
}

func TestRescore(t *testing.T) {
	ctx := context.Background()

	t.Run("NoAnalyzerConfigured", func(t *testing.T) {
		f := newFixture(t)
		order := f.mustCreate(t)
		_, err := f.svc.Rescore(ctx, order.ChainRootID, f.requester)
		assert.ErrorIs(t, err, services.ErrRiskServiceUnavailable)
	})

	t.Run("ExhaustedProvidersSurface", func(t *testing.T) {
		analyzer := &stubAnalyzer{err: errors.New("all providers down")}
		f := newFixture(t, services.WithRiskAnalyzer(analyzer, time.Second))
		order := f.mustCreate(t)
		_, err := f.svc.Rescore(ctx, order.ChainRootID, f.requester)
		assert.ErrorIs(t, err, services.ErrRiskServiceUnavailable)
	})

	t.Run("SuccessUpdatesScore", func(t *testing.T) {
		analyzer := &stubAnalyzer{result: riskai.RiskResult{RiskScore: 0.81, PredictedDelay: 9, KeyRisks: []string{"tooling lead time"}}}
		f := newFixture(t, services.WithRiskAnalyzer(analyzer, time.Second))
		order := f.mustCreate(t)

		scored, err := f.svc.Rescore(ctx, order.ChainRootID, f.requester)
		require.NoError(t, err)
		require.NotNil(t, scored.RiskScore)
		assert.InDelta(t, 0.81, *scored.RiskScore, 1e-9)
		assert.Equal(t, []string{"tooling lead time"}, scored.KeyRisks)
		assert.Equal(t, 1, scored.Version, "rescore never versions")
	})
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	bus := eventbus.NewEventPublisher(quietLogger())
	var created []changeorder.CreatedEvent
	var changed []changeorder.StatusChangedEvent
	bus.Subscribe(func(e changeorder.CreatedEvent) { created = append(created, e) })
	bus.Subscribe(func(e changeorder.StatusChangedEvent) { changed = append(changed, e) })
	f.svc = services.NewChangeOrderService(f.repo, f.catalog, bus)

	ctx := context.Background()
	order := f.mustCreate(t)
	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, order.ID, created[0].Result.ID)
	require.Len(t, changed, 1)
	assert.Equal(t, changeorder.StatusDraft, changed[0].From)
	assert.Equal(t, changeorder.StatusSubmitted, changed[0].To)
}

func TestOutboxEnqueuedPerMutation(t *testing.T) {
	enq := &captureEnqueuer{}
	f := newFixture(t, services.WithOutbox(enq))
	ctx := context.Background()

	order := f.mustCreate(t)
	_, err := f.svc.ChangeStatus(ctx, order.ChainRootID, changeorder.StatusSubmitted, f.requester, "")
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, order.ChainRootID, f.requester, "fyi")
	require.NoError(t, err)

	assert.Equal(t, []string{
		changeorder.TopicCreated,
		changeorder.TopicStatusChanged,
		changeorder.TopicCommented,
	}, enq.topics())
	for _, msg := range enq.messages {
		assert.NotEqual(t, uuid.Nil, msg.EventID)
		assert.NotEmpty(t, msg.Payload)
	}
}
