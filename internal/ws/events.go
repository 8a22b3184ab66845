package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// ChatActions операции чата, доступные через сокет.
type ChatActions interface {
	RoomSource
	GetChat(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ChatView, error)
	SendMessage(ctx context.Context, p models.Principal, chatID uuid.UUID, content string, msgType valueobject.MessageType) (*models.Message, error)
	MarkRead(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ReadReceipt, error)
}

type chatRef struct {
	ChatID uuid.UUID `json:"chatId"`
}

type sendPayload struct {
	ChatID  uuid.UUID `json:"chatId"`
	Content string    `json:"content"`
	Type    string    `json:"type"`
}

type notifyPayload struct {
	UserID       uuid.UUID       `json:"userId"`
	Notification json.RawMessage `json:"notification"`
}

var (
	errBadEnvelope  = apperror.Validation("некорректное сообщение")
	errUnknownEvent = apperror.New(apperror.ErrCodeInvalidType, "неизвестное событие")
	errNotInRoom    = apperror.New(apperror.ErrCodeForbidden, "вы не подписаны на этот чат")
	errChatsOffline = apperror.New(apperror.ErrCodeInternal, "чаты недоступны")
)

// handleInbound разбирает событие клиента и выполняет его.
// Ошибка отправляется обратно только этому соединению как событие "error".
func (h *Hub) handleInbound(ctx context.Context, c *Client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		h.replyError(c, errBadEnvelope)
		return
	}
	if err := h.dispatch(ctx, c, env); err != nil {
		h.replyError(c, err)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, env envelope) error {
	switch env.Type {
	case models.EventChatJoin:
		var in chatRef
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		actions := h.chatActions()
		if actions == nil {
			return errChatsOffline
		}
		if _, err := actions.GetChat(ctx, c.principal, in.ChatID); err != nil {
			return err
		}
		h.joinClient(c, models.ChatRoom(in.ChatID))
		return nil

	case models.EventChatLeave:
		var in chatRef
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		h.leaveClient(c, models.ChatRoom(in.ChatID))
		return nil

	case models.EventMessageSend:
		var in sendPayload
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		actions := h.chatActions()
		if actions == nil {
			return errChatsOffline
		}
		msgType := valueobject.MessageType(in.Type)
		if msgType == "" {
			msgType = valueobject.MessageTypeText
		}
		_, err := actions.SendMessage(ctx, c.principal, in.ChatID, in.Content, msgType)
		return err

	case models.EventMessageRead:
		var in chatRef
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		actions := h.chatActions()
		if actions == nil {
			return errChatsOffline
		}
		_, err := actions.MarkRead(ctx, c.principal, in.ChatID)
		return err

	case models.EventTypingStart, models.EventTypingStop:
		var in chatRef
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		room := models.ChatRoom(in.ChatID)
		if !h.inRoom(c, room) {
			return errNotInRoom
		}
		sender := c.principal.ID
		h.BroadcastToRoom(room, models.EventTypingUpdate, map[string]interface{}{
			"chatId":   in.ChatID,
			"userId":   sender,
			"userName": c.principal.Name,
			"isTyping": env.Type == models.EventTypingStart,
		}, &sender)
		return nil

	case models.EventNotificationSend:
		var in notifyPayload
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		if in.UserID == uuid.Nil || len(in.Notification) == 0 {
			return errBadEnvelope
		}
		// Пользователь может уведомлять только собеседников, админ - любого.
		if !c.principal.IsAdmin() && !h.sharesRoom(c, in.UserID) {
			return apperror.New(apperror.ErrCodeForbidden, "нельзя отправить уведомление этому пользователю")
		}
		return h.BroadcastToUser(in.UserID, models.EventNotificationReceived, map[string]interface{}{
			"from":         c.principal.ID,
			"notification": in.Notification,
		})
	}
	return errUnknownEvent
}

func (h *Hub) chatActions() ChatActions {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.actions
}

// replyError отправляет ошибку только в это соединение.
func (h *Hub) replyError(c *Client, err error) {
	payload := map[string]interface{}{
		"message": "внутренняя ошибка сервера",
		"code":    string(apperror.ErrCodeInternal),
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		payload["message"] = appErr.Message
		payload["code"] = string(appErr.Code)
		if len(appErr.Details) > 0 {
			payload["details"] = appErr.Details
		}
	} else {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"user_id": c.principal.ID,
		}).Error("ws: ошибка обработки события")
	}

	raw, encErr := encode(models.EventError, payload)
	if encErr != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.principal.ID][c]; ok {
		h.enqueue(c, raw)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errBadEnvelope
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errBadEnvelope
	}
	return nil
}
