package models

import "github.com/google/uuid"

// События WebSocket. Входящие приходят от клиента, исходящие отправляет сервер.
const (
	EventChatJoin         = "chat:join"
	EventChatLeave        = "chat:leave"
	EventMessageSend      = "message:send"
	EventMessageRead      = "message:read"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventNotificationSend = "notification:send"

	EventMessageReceived      = "message:received"
	EventMessageSeen          = "message:seen"
	EventNotificationMessage  = "notification:message"
	EventNotificationReceived = "notification:received"
	EventTypingUpdate         = "typing:update"
	EventUserOnline           = "user:online"
	EventUserOffline          = "user:offline"
	EventError                = "error"
)

// ChatRoom имя комнаты, в которую рассылаются события чата.
func ChatRoom(chatID uuid.UUID) string {
	return "chat:" + chatID.String()
}
