package billing

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gymdesk/internal/pkg/response"
)

type Handler struct {
	orchestrator *Orchestrator
	hub          *Hub
	upgrader     websocket.Upgrader
}

func NewHandler(orchestrator *Orchestrator, hub *Hub) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		hub:          hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ListPlans returns the active plan catalog.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.orchestrator.repo.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, plans)
}

// GetSubscription returns the organization's current subscription with its
// billing period and renewal window.
func (h *Handler) GetSubscription(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}

	inst, plan, err := h.orchestrator.CurrentSubscription(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	daysLeft := DaysUntilExpiration(now, inst.EndDate)
	response.Success(c, http.StatusOK, SubscriptionStatusResponse{
		Instance:            inst,
		Plan:                plan,
		BillingPeriod:       CurrentBillingCycle(inst, plan),
		Renewal:             RenewalWindowFor(now, inst.EndDate),
		DaysUntilExpiration: daysLeft,
		ExpiringSoon:        IsExpiringSoon(daysLeft),
		PastGracePeriod:     IsExpiredWithGrace(now, inst.EndDate),
	})
}

// PreviewProration computes a plan-change proration without executing it.
func (h *Handler) PreviewProration(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}

	var req ProrationPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.PreviewProration(c.Request.Context(), orgID, req.NewPlanID, req.Currency, req.ChangeDate)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Upgrade executes an upgrade transition.
func (h *Handler) Upgrade(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.Upgrade(c.Request.Context(), orgID, actorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Downgrade executes a downgrade transition.
func (h *Handler) Downgrade(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req DowngradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.Downgrade(c.Request.Context(), orgID, actorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Renew executes a renewal transition.
func (h *Handler) Renew(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.Renew(c.Request.Context(), orgID, actorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Cancel executes a cancellation.
func (h *Handler) Cancel(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.Cancel(c.Request.Context(), orgID, actorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ListOperations returns the transition history, newest first.
func (h *Handler) ListOperations(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}

	var query struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid query parameters")
		return
	}

	ops, err := h.orchestrator.ListOperations(c.Request.Context(), orgID, query.Limit, query.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ops)
}

// StreamEvents upgrades the connection and subscribes it to live transition
// events until the client disconnects.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, http.StatusServiceUnavailable, "STREAM_DISABLED", "event stream is not enabled")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("billing_stream_upgrade_failed error=%v", err)
		return
	}
	h.hub.Register(conn)

	// Reads are discarded; the socket exists only to detect disconnects.
	go func() {
		defer h.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func mustOrgID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("organization_id")
	if !exists {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "organization not resolved from token")
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid organization id in token")
		return 0, false
	}
	return id, true
}

func mustUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "user not resolved from token")
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user id in token")
		return 0, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validation *ValidationError
	var blocked *DowngradeBlockedError

	switch {
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrNoActiveSubscription):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &validation):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_FAILED", "validation failed", validation.Errors)
	case errors.As(err, &blocked):
		response.ErrorWithDetails(c, http.StatusConflict, "DOWNGRADE_BLOCKED", err.Error(), blocked.Violations)
	case errors.Is(err, ErrSamePlan),
		errors.Is(err, ErrPlanInactive),
		errors.Is(err, ErrPriceMissing),
		errors.Is(err, ErrPriceInvalid),
		errors.Is(err, ErrPeriodEnded):
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, ErrTransitionConflict), errors.Is(err, ErrDuplicateRequest):
		response.Error(c, http.StatusConflict, "CONFLICT", err.Error())
	default:
		log.Printf("billing_internal_error error=%v", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
