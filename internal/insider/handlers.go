package insider

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for insider tips.
type Handler struct {
	service *Service
}

// NewHandler creates a new insider tip handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public tip routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tips", h.ListTips)
	r.GET("/tips/:id", h.GetTip)
	r.POST("/tips", h.SubmitTip)
	r.POST("/tips/:id/report", h.ReportTip)
}

// RegisterProtectedRoutes sets up moderator tip routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/tips/:id/review", h.ReviewTip)
}

// SubmitTip handles POST /v1/tips
func (h *Handler) SubmitTip(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	tip, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tip": tip})
}

// GetTip handles GET /v1/tips/:id
func (h *Handler) GetTip(c *gin.Context) {
	tip, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tip": tip})
}

// ListTips handles GET /v1/tips
func (h *Handler) ListTips(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	tips, err := h.service.List(c.Request.Context(), TipStatus(c.Query("status")), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tips": tips, "count": len(tips)})
}

type reportRequest struct {
	ReporterID string `json:"reporterId"`
}

// ReportTip handles POST /v1/tips/:id/report
func (h *Handler) ReportTip(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	tip, err := h.service.Report(c.Request.Context(), c.Param("id"), req.ReporterID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tip": tip})
}

type reviewRequest struct {
	ModeratorID string `json:"moderatorId"`
	Verdict     string `json:"verdict"` // verified | dismissed
}

// ReviewTip handles POST /v1/tips/:id/review
func (h *Handler) ReviewTip(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	tip, err := h.service.Review(c.Request.Context(), c.Param("id"), req.ModeratorID, TipStatus(req.Verdict))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tip": tip})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Tip not found",
		})
	case errors.Is(err, ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate_submission",
			"message": "This tip was already submitted",
		})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong",
		})
	}
}
