package chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for chat operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new chat handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up chat routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rooms", h.ListRooms)
	r.POST("/rooms", h.CreateRoom)
	r.GET("/rooms/:id", h.GetRoom)
	r.GET("/rooms/:id/messages", h.ListMessages)
	r.POST("/rooms/:id/messages", h.PostMessage)
	r.POST("/rooms/:id/messages/:messageId/flag", h.FlagMessage)
}

type createRoomRequest struct {
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

// CreateRoom handles POST /v1/rooms
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), req.Name, req.Topic)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// GetRoom handles GET /v1/rooms/:id
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.service.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// ListRooms handles GET /v1/rooms
func (h *Handler) ListRooms(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rooms, err := h.service.ListRooms(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

// ListMessages handles GET /v1/rooms/:id/messages
func (h *Handler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	messages, err := h.service.ListMessages(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

type postMessageRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// PostMessage handles POST /v1/rooms/:id/messages
func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	msg, err := h.service.Post(c.Request.Context(), c.Param("id"), req.UserID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

type flagMessageRequest struct {
	UserID string `json:"userId"`
}

// FlagMessage handles POST /v1/rooms/:id/messages/:messageId/flag
func (h *Handler) FlagMessage(c *gin.Context) {
	var req flagMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	msg, err := h.service.FlagMessage(c.Request.Context(), c.Param("id"), c.Param("messageId"), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Chat room not found",
		})
	case errors.Is(err, ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Chat message not found",
		})
	case errors.Is(err, ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "room_exists",
			"message": "A room with that name already exists",
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
