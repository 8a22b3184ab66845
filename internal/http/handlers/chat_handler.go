package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/http/handlers/common"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// ChatOperations операции чатов, доступные по HTTP.
type ChatOperations interface {
	StartChat(ctx context.Context, p models.Principal, otherID uuid.UUID, jobID *uuid.UUID) (*models.ChatView, error)
	ListChats(ctx context.Context, p models.Principal) ([]models.ChatView, error)
	GetChat(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ChatView, error)
	ListMessages(ctx context.Context, p models.Principal, chatID uuid.UUID, beforeSeq int64, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, p models.Principal, chatID uuid.UUID, content string, msgType valueobject.MessageType) (*models.Message, error)
	MarkRead(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ReadReceipt, error)
}

// ChatHandler обслуживает маршруты чатов. Отправка по HTTP даёт тот же
// результат, что и событие message:send по сокету.
type ChatHandler struct {
	chats ChatOperations
}

func NewChatHandler(chats ChatOperations) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// ListChats GET /chats
func (h *ChatHandler) ListChats(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	chats, err := h.chats.ListChats(c.Request.Context(), p)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat POST /chats/start
func (h *ChatHandler) StartChat(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		UserID uuid.UUID  `json:"user_id" binding:"required"`
		JobID  *uuid.UUID `json:"job_id"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	chat, err := h.chats.StartChat(c.Request.Context(), p, req.UserID, req.JobID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// GetChat GET /chats/:id
func (h *ChatHandler) GetChat(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	chat, err := h.chats.GetChat(c.Request.Context(), p, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// ListMessages GET /chats/:id/messages?before=&limit=
func (h *ChatHandler) ListMessages(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var before int64
	if raw := c.Query("before"); raw != "" {
		before, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || before < 0 {
			common.Fail(c, apperror.Validation("параметр before должен быть неотрицательным числом"))
			return
		}
	}
	limit, _ := common.GetPagination(c)

	msgs, err := h.chats.ListMessages(c.Request.Context(), p, id, before, limit)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage POST /chats/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	msgType := valueobject.MessageType(req.Type)
	if msgType == "" {
		msgType = valueobject.MessageTypeText
	}

	msg, err := h.chats.SendMessage(c.Request.Context(), p, id, req.Content, msgType)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead PUT /chats/:id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	receipt, err := h.chats.MarkRead(c.Request.Context(), p, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
