package organization

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gymdesk/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Get(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	org, err := h.service.Get(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, org)
}

// Usage reports current resource counts against the plan's limits.
func (h *Handler) Usage(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	report, err := h.service.Usage(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

func (h *Handler) CreateGym(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}

	var req CreateGymRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	gym, err := h.service.CreateGym(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gym)
}

func (h *Handler) ListGyms(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	gyms, err := h.service.ListGyms(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gyms)
}

func (h *Handler) DeactivateGym(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	gymID, ok := mustGymID(c)
	if !ok {
		return
	}
	if err := h.service.DeactivateGym(c.Request.Context(), orgID, gymID); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deactivated": true})
}

func (h *Handler) CreateClient(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	gymID, ok := mustGymID(c)
	if !ok {
		return
	}

	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	client, err := h.service.CreateClient(c.Request.Context(), orgID, gymID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, client)
}

func (h *Handler) ListClients(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	gymID, _ := strconv.ParseInt(c.Query("gym_id"), 10, 64)
	clients, err := h.service.ListClients(c.Request.Context(), orgID, gymID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, clients)
}

func (h *Handler) CreateCollaborator(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}

	var req CreateCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	collaborator, err := h.service.CreateCollaborator(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, collaborator)
}

func (h *Handler) ListCollaborators(c *gin.Context) {
	orgID, ok := mustOrgID(c)
	if !ok {
		return
	}
	collaborators, err := h.service.ListCollaborators(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, collaborators)
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

func mustGymID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("gym_id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "invalid gym id")
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	var limit *LimitReachedError

	switch {
	case errors.Is(err, ErrOrganizationNotFound), errors.Is(err, ErrGymNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrNoSubscription):
		response.Error(c, http.StatusPaymentRequired, "NO_SUBSCRIPTION", err.Error())
	case errors.As(err, &limit):
		response.ErrorWithDetails(c, http.StatusForbidden, "LIMIT_REACHED", err.Error(), gin.H{
			"resource": limit.Resource,
			"current":  limit.Current,
			"limit":    limit.Limit,
		})
	default:
		log.Printf("organization_internal_error error=%v", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
