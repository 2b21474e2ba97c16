package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RichardoC/chatline/internal/conversation"
	"github.com/RichardoC/chatline/internal/models"
)

// Service is the conversation API the handlers drive.
type Service interface {
	Create(ctx context.Context, title string) (*models.Conversation, error)
	List(ctx context.Context, offset, limit int) (*models.Page[models.Conversation], error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID string, offset, limit int) (*models.Page[models.Message], error)
	Rename(ctx context.Context, id, title string) (*models.Conversation, error)
	SendMessage(ctx context.Context, conversationID, content string) (*conversation.SendResult, error)
}

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger.With(zap.String("component", "api")),
	}
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type pageResponse[T any] struct {
	Success    bool              `json:"success"`
	Data       []T               `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, dataResponse{Success: true, Data: data})
}

func respondPage[T any](c *gin.Context, page *models.Page[T]) {
	data := page.Data
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, pageResponse[T]{Success: true, Data: data, Pagination: page.Pagination})
}

// Register mounts the conversation routes on r.
func (h *Handler) Register(r gin.IRouter) {
	conversations := r.Group("/conversations")
	{
		conversations.POST("", h.CreateConversation)
		conversations.GET("", h.ListConversations)
		conversations.GET("/:id", h.GetConversation)
		conversations.PATCH("/:id", h.RenameConversation)
		conversations.POST("/:id/messages", h.SendMessage)
		conversations.GET("/:id/messages", h.GetMessages)
	}
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := bindJSON(c, &req, true); err != nil {
		_ = c.Error(err)
		return
	}

	title := defaultTitle
	if req.Title != nil {
		title = *req.Title
	}

	conv, err := h.service.Create(c.Request.Context(), title)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusCreated, conv)
}

func (h *Handler) ListConversations(c *gin.Context) {
	q, err := bindPage(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	page, err := h.service.List(c.Request.Context(), q.Offset, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respondPage(c, page)
}

func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.requireConversation(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, conv)
}

func (h *Handler) RenameConversation(c *gin.Context) {
	var req renameConversationRequest
	if err := bindJSON(c, &req, false); err != nil {
		_ = c.Error(err)
		return
	}
	if _, err := h.requireConversation(c); err != nil {
		_ = c.Error(err)
		return
	}

	conv, err := h.service.Rename(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if conv == nil {
		// deleted between the existence check and the update
		_ = c.Error(NotFound("Conversation not found"))
		return
	}

	respond(c, http.StatusOK, conv)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := bindJSON(c, &req, false); err != nil {
		_ = c.Error(err)
		return
	}
	if _, err := h.requireConversation(c); err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.service.SendMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusCreated, result)
}

func (h *Handler) GetMessages(c *gin.Context) {
	q, err := bindPage(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if _, err := h.requireConversation(c); err != nil {
		_ = c.Error(err)
		return
	}

	page, err := h.service.GetMessages(c.Request.Context(), c.Param("id"), q.Offset, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respondPage(c, page)
}

// requireConversation loads the conversation named by the :id parameter,
// or returns a NotFound AppError.
func (h *Handler) requireConversation(c *gin.Context) (*models.Conversation, error) {
	conv, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, NotFound("Conversation not found")
	}
	return conv, nil
}
