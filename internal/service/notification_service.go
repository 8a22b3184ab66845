package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationService содержит бизнес-логику работы с уведомлениями.
type NotificationService struct {
	repo NotificationRepository
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// CreateNotification сохраняет событие как уведомление пользователя.
func (s *NotificationService) CreateNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) (*models.Notification, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{UserID: userID, Payload: payload}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

// ListNotifications возвращает список уведомлений пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление пользователя прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return translate(s.repo.MarkAsRead(ctx, id, userID))
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// DeleteNotification удаляет уведомление пользователя.
func (s *NotificationService) DeleteNotification(ctx context.Context, id, userID uuid.UUID) error {
	return translate(s.repo.Delete(ctx, id, userID))
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// CreateNotificationForWS создаёт уведомление (для использования в WebSocket hub).
func (s *NotificationService) CreateNotificationForWS(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	_, err := s.CreateNotification(ctx, userID, event, data)
	return err
}

// DeviceRepository хранит токены устройств для push.
type DeviceRepository interface {
	Upsert(ctx context.Context, d *models.DeviceToken) error
	Delete(ctx context.Context, userID uuid.UUID, token string) error
	ListTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// DeviceService регистрирует устройства пользователей для push-уведомлений.
type DeviceService struct {
	repo DeviceRepository
}

func NewDeviceService(repo DeviceRepository) *DeviceService {
	return &DeviceService{repo: repo}
}

// Register сохраняет токен устройства.
func (s *DeviceService) Register(ctx context.Context, userID uuid.UUID, token, platform string) (*models.DeviceToken, error) {
	if token == "" {
		return nil, apperror.Validation("токен устройства обязателен")
	}
	switch platform {
	case "":
		platform = "web"
	case "web", "android", "ios":
	default:
		return nil, apperror.Validation("платформа должна быть web, android или ios")
	}
	d := &models.DeviceToken{UserID: userID, Token: token, Platform: platform}
	if err := s.repo.Upsert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Unregister удаляет токен устройства.
func (s *DeviceService) Unregister(ctx context.Context, userID uuid.UUID, token string) error {
	return s.repo.Delete(ctx, userID, token)
}

// Tokens возвращает токены устройств пользователя.
func (s *DeviceService) Tokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.repo.ListTokens(ctx, userID)
}
