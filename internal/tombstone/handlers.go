package tombstone

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the tombstone registry.
type Handler struct {
	service *Service
}

// NewHandler creates a new tombstone handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) tombstone routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tombstones", h.ListTombstones)
	r.GET("/tombstones/lookup", h.LookupContract)
	r.GET("/tombstones/:id", h.GetTombstone)
	r.GET("/tombstones/:id/similar", h.FindSimilar)
}

// RegisterProtectedRoutes sets up moderator tombstone routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/tombstones", h.CreateTombstone)
	r.POST("/tombstones/:id/verify", h.VerifyTombstone)
	r.POST("/tombstones/:id/dispute", h.DisputeTombstone)
}

// CreateTombstone handles POST /v1/tombstones
func (h *Handler) CreateTombstone(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	t, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tombstone": t})
}

// GetTombstone handles GET /v1/tombstones/:id
func (h *Handler) GetTombstone(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tombstone": t})
}

// ListTombstones handles GET /v1/tombstones
func (h *Handler) ListTombstones(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	tombstones, err := h.service.List(c.Request.Context(), c.Query("network"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tombstones": tombstones, "count": len(tombstones)})
}

// LookupContract handles GET /v1/tombstones/lookup?network=&address=
func (h *Handler) LookupContract(c *gin.Context) {
	network := c.Query("network")
	address := c.Query("address")
	if network == "" || address == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "network and address query parameters are required",
		})
		return
	}

	t, err := h.service.GetByContract(c.Request.Context(), network, address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tombstone": t})
}

type moderatorRequest struct {
	ModeratorID string `json:"moderatorId"`
}

// VerifyTombstone handles POST /v1/tombstones/:id/verify
func (h *Handler) VerifyTombstone(c *gin.Context) {
	var req moderatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	t, err := h.service.Verify(c.Request.Context(), c.Param("id"), req.ModeratorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tombstone": t})
}

// DisputeTombstone handles POST /v1/tombstones/:id/dispute
func (h *Handler) DisputeTombstone(c *gin.Context) {
	var req moderatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	t, err := h.service.Dispute(c.Request.Context(), c.Param("id"), req.ModeratorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tombstone": t})
}

// FindSimilar handles GET /v1/tombstones/:id/similar
func (h *Handler) FindSimilar(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	similar, err := h.service.FindSimilar(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tombstones": similar, "count": len(similar)})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Tombstone not found",
		})
	case errors.Is(err, ErrDuplicateContract):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate_contract",
			"message": "A tombstone already exists for that contract",
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
