package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
	"github.com/iota-uz/plm-sdk/modules/plm/infrastructure/persistence"
	"github.com/iota-uz/plm-sdk/modules/plm/presentation/controllers"
	"github.com/iota-uz/plm-sdk/modules/plm/services"
	"github.com/iota-uz/plm-sdk/pkg/eventbus"
)

type env struct {
	router    *mux.Router
	productID uuid.UUID
	actor     changeorder.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	repo := persistence.NewMemoryChangeOrderRepository()
	refs := persistence.NewMemoryCatalogRepository()
	productID := uuid.New()
	refs.AddProduct(productID)

	svc := services.NewChangeOrderService(repo, refs, eventbus.NewEventPublisher(log))
	router := mux.NewRouter()
	controllers.NewChangeOrdersController(svc, logrus.NewEntry(log)).Register(router)

	return &env{
		router:    router,
		productID: productID,
		actor:     changeorder.Actor{ID: uuid.New(), Name: "R. Ortega"},
	}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Actor-Id", e.actor.ID.String())
	req.Header.Set("X-Actor-Name", e.actor.Name)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) createOrder(t *testing.T) uuid.UUID {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/change-orders", map[string]any{
		"title":       "Revise bracket tolerance",
		"reason":      "Field returns show fit issues",
		"change_type": "design",
		"priority":    "high",
		"product_id":  e.productID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ChainRootID uuid.UUID `json:"chain_root_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ChainRootID
}

func TestController_CreateAndGet(t *testing.T) {
	e := newEnv(t)
	chainID := e.createOrder(t)

	rec := e.do(t, http.MethodGet, "/change-orders/"+chainID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Version  int    `json:"version"`
		Status   string `json:"status"`
		IsLatest bool   `json:"is_latest"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Version)
	assert.Equal(t, "draft", resp.Status)
	assert.True(t, resp.IsLatest)
}

func TestController_MissingActorHeader(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/change-orders", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestController_ValidationErrors(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/change-orders", map[string]any{"title": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "Reason")
}

func TestController_UnknownProductIs404(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/change-orders", map[string]any{
		"title":       "Revise bracket tolerance",
		"reason":      "Fit issues",
		"change_type": "design",
		"priority":    "high",
		"product_id":  uuid.New(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestController_StatusFlow(t *testing.T) {
	e := newEnv(t)
	chainID := e.createOrder(t)
	statusPath := fmt.Sprintf("/change-orders/%s/status", chainID)

	rec := e.do(t, http.MethodPost, statusPath, map[string]any{"status": "submitted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Illegal move carries the allowed targets.
	rec = e.do(t, http.MethodPost, statusPath, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Allowed []string `json:"allowed_transitions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"under_review", "rejected"}, resp.Allowed)

	rec = e.do(t, http.MethodPost, statusPath, map[string]any{"status": "nonsense"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestController_ApprovalAndComments(t *testing.T) {
	e := newEnv(t)
	chainID := e.createOrder(t)
	statusPath := fmt.Sprintf("/change-orders/%s/status", chainID)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, statusPath, map[string]any{"status": "submitted"}).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, statusPath, map[string]any{"status": "under_review"}).Code)

	rec := e.do(t, http.MethodPost, fmt.Sprintf("/change-orders/%s/approval", chainID), map[string]any{
		"approved": false,
		"comment":  "insufficient analysis",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/change-orders/%s/comments", chainID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
	require.NotEmpty(t, comments)
	assert.Equal(t, "ECO rejected: insufficient analysis", comments[len(comments)-1].Content)
}

func TestController_HistoryAndDelete(t *testing.T) {
	e := newEnv(t)
	chainID := e.createOrder(t)

	rec := e.do(t, http.MethodGet, fmt.Sprintf("/change-orders/%s/history", chainID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)

	rec = e.do(t, http.MethodDelete, "/change-orders/"+chainID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/change-orders/"+chainID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestController_DeleteForbiddenForNonRequester(t *testing.T) {
	e := newEnv(t)
	chainID := e.createOrder(t)

	e.actor = changeorder.Actor{ID: uuid.New(), Name: "somebody else"}
	rec := e.do(t, http.MethodDelete, "/change-orders/"+chainID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestController_RescoreUnavailable(t *testing.T) {
	e := newEnv(t)
	chainID := e.createOrder(t)

	rec := e.do(t, http.MethodPost, fmt.Sprintf("/change-orders/%s/rescore", chainID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestController_List(t *testing.T) {
	e := newEnv(t)
	e.createOrder(t)
	e.createOrder(t)

	rec := e.do(t, http.MethodGet, "/change-orders?status=draft&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
	assert.EqualValues(t, 2, resp.Total)

	rec = e.do(t, http.MethodGet, "/change-orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
