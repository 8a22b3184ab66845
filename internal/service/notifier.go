package service

import "github.com/google/uuid"

// События, которые сервисы отправляют пользователям.
const (
	EventApplicationNew     = "application:new"
	EventApplicationUpdated = "application:updated"
	EventJobInvited         = "job:invited"
	EventInviteResponded    = "invite:responded"
	EventSubmissionUpdated  = "submission:updated"
	EventJobCompleted       = "job:completed"
)

// WSNotifier интерфейс для отправки WebSocket уведомлений.
// Реализация сохраняет уведомление и доставляет его на все подключения пользователя.
type WSNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}
