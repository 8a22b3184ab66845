package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
)

// Chat - диалог ровно двух участников. ParticipantA всегда меньше ParticipantB,
// поэтому пара хранится в одном каноническом порядке.
type Chat struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ParticipantA  uuid.UUID  `db:"participant_a" json:"-"`
	ParticipantB  uuid.UUID  `db:"participant_b" json:"-"`
	JobID         *uuid.UUID `db:"job_id" json:"job_id,omitempty"`
	LastMessageID *uuid.UUID `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadA       int        `db:"unread_a" json:"-"`
	UnreadB       int        `db:"unread_b" json:"-"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// OrderedPair возвращает участников в каноническом порядке.
func OrderedPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(x[:], y[:]) > 0 {
		return y, x
	}
	return x, y
}

func (c *Chat) Participants() []uuid.UUID {
	return []uuid.UUID{c.ParticipantA, c.ParticipantB}
}

func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Other возвращает собеседника userID.
func (c *Chat) Other(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// UnreadFor возвращает счётчик непрочитанных для участника.
func (c *Chat) UnreadFor(userID uuid.UUID) int {
	switch userID {
	case c.ParticipantA:
		return c.UnreadA
	case c.ParticipantB:
		return c.UnreadB
	}
	return 0
}

// ChatView - представление чата для конкретного участника.
type ChatView struct {
	Chat
	Participants []uuid.UUID `json:"participants"`
	OtherUser    *ChatPeer   `json:"other_user,omitempty"`
	UnreadCount  int         `json:"unread_count"`
	LastMessage  *Message    `json:"last_message,omitempty"`
}

// ChatPeer краткие данные собеседника.
type ChatPeer struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	IsOnline bool       `db:"is_online" json:"is_online"`
	LastSeen *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}

// NewChatView строит представление чата для viewer.
func NewChatView(chat *Chat, viewer uuid.UUID) ChatView {
	return ChatView{
		Chat:         *chat,
		Participants: chat.Participants(),
		UnreadCount:  chat.UnreadFor(viewer),
	}
}

// Message - сообщение в чате. После создания меняются только флаги прочтения и удаления.
type Message struct {
	ID         uuid.UUID               `db:"id" json:"id"`
	Seq        int64                   `db:"seq" json:"seq"`
	ChatID     uuid.UUID               `db:"chat_id" json:"chat_id"`
	SenderID   uuid.UUID               `db:"sender_id" json:"sender_id"`
	SenderName string                  `db:"sender_name" json:"sender_name,omitempty"`
	Content    string                  `db:"content" json:"content"`
	Type       valueobject.MessageType `db:"type" json:"type"`
	IsRead     bool                    `db:"is_read" json:"is_read"`
	ReadAt     *time.Time              `db:"read_at" json:"read_at,omitempty"`
	IsDeleted  bool                    `db:"is_deleted" json:"is_deleted"`
	CreatedAt  time.Time               `db:"created_at" json:"created_at"`
}

// NewMessage входные данные для отправки сообщения.
type NewMessage struct {
	ChatID   uuid.UUID
	SenderID uuid.UUID
	Content  string
	Type     valueobject.MessageType
}

// ReadReceipt итог отметки сообщений прочитанными.
type ReadReceipt struct {
	ChatID uuid.UUID `json:"chatId"`
	ReadBy uuid.UUID `json:"readBy"`
	Count  int       `json:"count"`
}
