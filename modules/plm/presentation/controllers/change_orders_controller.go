// Package controllers exposes the change-order workflow over JSON HTTP. The
// layer stays thin: parse, call the service, map errors to statuses.
// Authentication is handled upstream; the acting user arrives in headers.
package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
	"github.com/iota-uz/plm-sdk/modules/plm/services"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorNameHeader = "X-Actor-Name"
)

type ChangeOrdersController struct {
	svc      *services.ChangeOrderService
	log      *logrus.Entry
	basePath string
}

func NewChangeOrdersController(svc *services.ChangeOrderService, log *logrus.Entry) *ChangeOrdersController {
	return &ChangeOrdersController{
		svc:      svc,
		log:      log,
		basePath: "/change-orders",
	}
}

func (c *ChangeOrdersController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.edit).Methods(http.MethodPut)
	router.HandleFunc("/{id}", c.delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/status", c.changeStatus).Methods(http.MethodPost)
	router.HandleFunc("/{id}/approval", c.recordApproval).Methods(http.MethodPost)
	router.HandleFunc("/{id}/comments", c.addComment).Methods(http.MethodPost)
	router.HandleFunc("/{id}/comments", c.listComments).Methods(http.MethodGet)
	router.HandleFunc("/{id}/history", c.history).Methods(http.MethodGet)
	router.HandleFunc("/{id}/audit", c.auditLog).Methods(http.MethodGet)
	router.HandleFunc("/{id}/rescore", c.rescore).Methods(http.MethodPost)
}

func (c *ChangeOrdersController) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			c.log.WithError(err).Error("failed to encode response")
		}
	}
}

type errorBody struct {
	Error   string            `json:"error"`
	Allowed []string          `json:"allowed_transitions,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (c *ChangeOrdersController) writeError(w http.ResponseWriter, err error) {
	var ite *changeorder.InvalidTransitionError
	var dve *services.DTOValidationError
	switch {
	case errors.Is(err, services.ErrChangeOrderNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrBOMNotFound):
		c.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &dve):
		c.writeJSON(w, http.StatusBadRequest, errorBody{Error: dve.Error(), Fields: dve.Fields.Messages()})
	case errors.Is(err, services.ErrNotEditable),
		errors.Is(err, services.ErrChainNotDeletable):
		c.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &ite):
		allowed := make([]string, len(ite.Allowed))
		for i, s := range ite.Allowed {
			allowed[i] = string(s)
		}
		c.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ite.Error(), Allowed: allowed})
	case errors.Is(err, services.ErrNotRequester):
		c.writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, changeorder.ErrStaleVersion):
		c.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, services.ErrRiskServiceUnavailable):
		c.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		c.log.WithError(err).Error("change order request failed")
		c.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (c *ChangeOrdersController) actor(w http.ResponseWriter, r *http.Request) (changeorder.Actor, bool) {
	id, err := uuid.Parse(r.Header.Get(actorIDHeader))
	if err != nil {
		c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing or invalid " + actorIDHeader + " header"})
		return changeorder.Actor{}, false
	}
	return changeorder.Actor{ID: id, Name: r.Header.Get(actorNameHeader)}, true
}

func (c *ChangeOrdersController) chainID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid change order id"})
		return uuid.Nil, false
	}
	return id, true
}

func (c *ChangeOrdersController) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

type createRequest struct {
	Title            string                        `json:"title"`
	Description      string                        `json:"description"`
	Reason           string                        `json:"reason"`
	ChangeType       changeorder.ChangeType        `json:"change_type"`
	Priority         changeorder.Priority          `json:"priority"`
	ProductID        uuid.UUID                     `json:"product_id"`
	BOMID            *uuid.UUID                    `json:"bom_id"`
	ProposedChanges  []changeorder.FieldChange     `json:"proposed_changes"`
	ImpactAnalysis   changeorder.ImpactAnalysis    `json:"impact_analysis"`
	ComplianceChecks []changeorder.ComplianceCheck `json:"compliance_checks"`
}

func (c *ChangeOrdersController) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !c.decode(w, r, &req) {
		return
	}
	order, err := c.svc.Create(r.Context(), &changeorder.CreateDTO{
		Title:            req.Title,
		Description:      req.Description,
		Reason:           req.Reason,
		ChangeType:       req.ChangeType,
		Priority:         req.Priority,
		ProductID:        req.ProductID,
		BOMID:            req.BOMID,
		ProposedChanges:  req.ProposedChanges,
		ImpactAnalysis:   req.ImpactAnalysis,
		ComplianceChecks: req.ComplianceChecks,
	}, actor)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, toView(order))
}

type editRequest struct {
	Title            *string                       `json:"title"`
	Description      *string                       `json:"description"`
	Reason           *string                       `json:"reason"`
	ChangeType       *changeorder.ChangeType       `json:"change_type"`
	Priority         *changeorder.Priority         `json:"priority"`
	ProposedChanges  []changeorder.FieldChange     `json:"proposed_changes"`
	ImpactAnalysis   *changeorder.ImpactAnalysis   `json:"impact_analysis"`
	ComplianceChecks []changeorder.ComplianceCheck `json:"compliance_checks"`
	Status           *changeorder.Status           `json:"status"`
}

func (c *ChangeOrdersController) edit(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	var req editRequest
	if !c.decode(w, r, &req) {
		return
	}
	order, err := c.svc.EditContent(r.Context(), chainID, &changeorder.UpdateDTO{
		Title:            req.Title,
		Description:      req.Description,
		Reason:           req.Reason,
		ChangeType:       req.ChangeType,
		Priority:         req.Priority,
		ProposedChanges:  req.ProposedChanges,
		ImpactAnalysis:   req.ImpactAnalysis,
		ComplianceChecks: req.ComplianceChecks,
		Status:           req.Status,
	}, actor)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toView(order))
}

func (c *ChangeOrdersController) get(w http.ResponseWriter, r *http.Request) {
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	order, err := c.svc.Get(r.Context(), chainID)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toView(order))
}

func (c *ChangeOrdersController) list(w http.ResponseWriter, r *http.Request) {
	params := &changeorder.FindParams{
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		params.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		params.Offset, _ = strconv.Atoi(v)
	}
	for _, s := range r.URL.Query()["status"] {
		status := changeorder.Status(s)
		if !status.IsValid() {
			c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status filter: " + s})
			return
		}
		params.Statuses = append(params.Statuses, status)
	}
	if v := r.URL.Query().Get("requester_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid requester_id"})
			return
		}
		params.RequesterID = &id
	}
	if v := r.URL.Query().Get("product_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid product_id"})
			return
		}
		params.ProductID = &id
	}

	orders, total, err := c.svc.List(r.Context(), params)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]any{
		"items": toViews(orders),
		"total": total,
	})
}

type statusRequest struct {
	Status  changeorder.Status `json:"status"`
	Comment string             `json:"comment"`
}

func (c *ChangeOrdersController) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !c.decode(w, r, &req) {
		return
	}
	if !req.Status.IsValid() {
		c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status: " + string(req.Status)})
		return
	}
	order, err := c.svc.ChangeStatus(r.Context(), chainID, req.Status, actor, req.Comment)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toView(order))
}

type approvalRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

type approvalResponse struct {
	Order     changeOrderView `json:"order"`
	Approved  bool            `json:"approved"`
	DecidedAt time.Time       `json:"decided_at"`
}

func (c *ChangeOrdersController) recordApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	var req approvalRequest
	if !c.decode(w, r, &req) {
		return
	}
	result, err := c.svc.RecordApproval(r.Context(), chainID, actor, req.Approved, req.Comment)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, approvalResponse{
		Order:     toView(result.Order),
		Approved:  result.Approved,
		DecidedAt: result.DecidedAt,
	})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (c *ChangeOrdersController) addComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !c.decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		c.writeJSON(w, http.StatusBadRequest, errorBody{Error: "comment content is required"})
		return
	}
	comment, err := c.svc.AddComment(r.Context(), chainID, actor, req.Content)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, toCommentView(comment))
}

func (c *ChangeOrdersController) listComments(w http.ResponseWriter, r *http.Request) {
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	comments, err := c.svc.ListComments(r.Context(), chainID)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toCommentViews(comments))
}

func (c *ChangeOrdersController) history(w http.ResponseWriter, r *http.Request) {
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	versions, err := c.svc.GetVersionHistory(r.Context(), chainID)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toViews(versions))
}

func (c *ChangeOrdersController) auditLog(w http.ResponseWriter, r *http.Request) {
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	entries, err := c.svc.GetAuditLog(r.Context(), chainID)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toAuditViews(entries))
}

func (c *ChangeOrdersController) rescore(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	order, err := c.svc.Rescore(r.Context(), chainID, actor)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toView(order))
}

func (c *ChangeOrdersController) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	chainID, ok := c.chainID(w, r)
	if !ok {
		return
	}
	if err := c.svc.Delete(r.Context(), chainID, actor); err != nil {
		c.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
