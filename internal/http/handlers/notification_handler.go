package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/http/handlers/common"
	"github.com/ignatzorin/skillhire-backend/internal/models"
)

// NotificationOperations история уведомлений пользователя.
type NotificationOperations interface {
	ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	DeleteNotification(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// DeviceOperations регистрация устройств для push.
type DeviceOperations interface {
	Register(ctx context.Context, userID uuid.UUID, token, platform string) (*models.DeviceToken, error)
	Unregister(ctx context.Context, userID uuid.UUID, token string) error
}

// NotificationHandler обслуживает маршруты уведомлений и устройств.
type NotificationHandler struct {
	notifications NotificationOperations
	devices       DeviceOperations
}

// NewNotificationHandler создаёт новый хэндлер.
func NewNotificationHandler(notifications NotificationOperations, devices DeviceOperations) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, devices: devices}
}

// ListNotifications обрабатывает GET /notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	unreadOnly := c.Query("unread_only") == "true"

	notifications, err := h.notifications.ListNotifications(c.Request.Context(), userID, limit, offset, unreadOnly)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkAsRead обрабатывает PUT /notifications/:id/read.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.notifications.MarkAsRead(c.Request.Context(), id, userID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "уведомление отмечено как прочитанное"})
}

// MarkAllAsRead обрабатывает PUT /notifications/read-all.
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.notifications.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "все уведомления отмечены как прочитанные"})
}

// DeleteNotification обрабатывает DELETE /notifications/:id.
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.notifications.DeleteNotification(c.Request.Context(), id, userID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "уведомление удалено"})
}

// CountUnread обрабатывает GET /notifications/unread/count.
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	count, err := h.notifications.CountUnread(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// RegisterDevice обрабатывает POST /devices.
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	device, err := h.devices.Register(c.Request.Context(), userID, req.Token, req.Platform)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, device)
}

// UnregisterDevice обрабатывает DELETE /devices/:token.
func (h *NotificationHandler) UnregisterDevice(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if err := h.devices.Unregister(c.Request.Context(), userID, c.Param("token")); err != nil {
		common.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
