// Package push доставляет уведомления на мобильные устройства пользователей,
// которые сейчас не подключены к WebSocket.
package push

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/logger"
)

// Notification - содержимое push-уведомления.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender отправляет уведомление на набор токенов устройств.
// Возвращает токены, которые провайдер считает недействительными.
type Sender interface {
	Send(ctx context.Context, tokens []string, n Notification) (stale []string, err error)
}

// TokenStore хранит токены устройств пользователей.
type TokenStore interface {
	ListTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, userID uuid.UUID, token string) error
}

// Dispatcher находит устройства пользователя и отправляет на них уведомление.
type Dispatcher struct {
	tokens TokenStore
	sender Sender
}

func NewDispatcher(tokens TokenStore, sender Sender) *Dispatcher {
	if sender == nil {
		sender = NoopSender{}
	}
	return &Dispatcher{tokens: tokens, sender: sender}
}

// Notify отправляет уведомление на все устройства пользователя и удаляет протухшие токены.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, n Notification) error {
	tokens, err := d.tokens.ListTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("push: list tokens %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	stale, err := d.sender.Send(ctx, tokens, n)
	for _, token := range stale {
		if delErr := d.tokens.Delete(ctx, userID, token); delErr != nil {
			logger.Log.WithError(delErr).WithField("user_id", userID).Warn("push: не удалось удалить токен устройства")
		}
	}
	if err != nil {
		return fmt.Errorf("push: send %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"devices": len(tokens),
		"stale":   len(stale),
	}).Debug("push: уведомление отправлено")
	return nil
}

// NoopSender используется, когда провайдер push не настроен.
type NoopSender struct{}

func (NoopSender) Send(context.Context, []string, Notification) ([]string, error) {
	return nil, nil
}
