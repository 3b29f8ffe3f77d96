package warning

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for warning operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new warning handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) warning routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/warnings", h.ListWarnings)
	r.GET("/warnings/:id", h.GetWarning)
	r.GET("/warnings/:id/similar", h.FindSimilar)
}

// RegisterProtectedRoutes sets up moderator warning routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/warnings", h.CreateWarning)
	r.POST("/warnings/:id/evidence", h.UpdateEvidence)
	r.POST("/warnings/:id/resolve", h.ResolveWarning)
	r.POST("/warnings/:id/false-alarm", h.MarkFalseAlarm)
	r.POST("/warnings/:id/verify", h.RecordVerification)
	r.DELETE("/warnings/:id", h.DeleteWarning)
}

// CreateWarning handles POST /v1/warnings
func (h *Handler) CreateWarning(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	w, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Failed to create warning",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"warning": w})
}

// GetWarning handles GET /v1/warnings/:id
func (h *Handler) GetWarning(c *gin.Context) {
	w, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warning": w})
}

// ListWarnings handles GET /v1/warnings
//
// Without filters it returns active warnings. ?network= and ?riskLevel=
// select the corresponding indexed queries; all orderings are risk score
// descending.
func (h *Handler) ListWarnings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var (
		warnings []*WarningSign
		err      error
	)
	switch {
	case c.Query("network") != "":
		warnings, err = h.service.ListByNetwork(c.Request.Context(), Network(c.Query("network")), limit)
	case c.Query("riskLevel") != "":
		warnings, err = h.service.ListByRiskLevel(c.Request.Context(), RiskLevel(c.Query("riskLevel")), limit)
	default:
		warnings, err = h.service.ListActive(c.Request.Context(), limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"warnings": warnings,
		"count":    len(warnings),
	})
}

// UpdateEvidence handles POST /v1/warnings/:id/evidence
func (h *Handler) UpdateEvidence(c *gin.Context) {
	var update EvidenceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid evidence fragment",
		})
		return
	}
	if update.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Evidence fragment is empty",
		})
		return
	}

	w, err := h.service.UpdateEvidence(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warning": w})
}

type resolveRequest struct {
	ModeratorID string `json:"moderatorId" binding:"required"`
	Resolution  string `json:"resolution" binding:"required"`
}

// ResolveWarning handles POST /v1/warnings/:id/resolve
func (h *Handler) ResolveWarning(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "moderatorId and resolution are required",
		})
		return
	}

	w, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req.ModeratorID, req.Resolution)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warning": w})
}

type falseAlarmRequest struct {
	ModeratorID string `json:"moderatorId" binding:"required"`
	Explanation string `json:"explanation" binding:"required"`
}

// MarkFalseAlarm handles POST /v1/warnings/:id/false-alarm
func (h *Handler) MarkFalseAlarm(c *gin.Context) {
	var req falseAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "moderatorId and explanation are required",
		})
		return
	}

	w, err := h.service.MarkFalseAlarm(c.Request.Context(), c.Param("id"), req.ModeratorID, req.Explanation)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warning": w})
}

type verifyRequest struct {
	VerifierID string `json:"verifierId" binding:"required"`
}

// RecordVerification handles POST /v1/warnings/:id/verify
func (h *Handler) RecordVerification(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "verifierId is required",
		})
		return
	}

	w, err := h.service.RecordVerification(c.Request.Context(), c.Param("id"), req.VerifierID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warning": w})
}

// FindSimilar handles GET /v1/warnings/:id/similar
func (h *Handler) FindSimilar(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	similar, err := h.service.FindSimilar(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"similar": similar,
		"count":   len(similar),
	})
}

// DeleteWarning handles DELETE /v1/warnings/:id
func (h *Handler) DeleteWarning(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Warning not found",
		})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": "Warning is no longer active",
		})
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		})
	}
}
