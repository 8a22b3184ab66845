package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
)

// ChatRepository описывает хранилище чатов и сообщений.
type ChatRepository interface {
	EnsureChat(ctx context.Context, x, y uuid.UUID, jobID *uuid.UUID) (*models.Chat, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)
	ListIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	CreateMessage(ctx context.Context, msg models.NewMessage, guard repository.ChatGuard) (*models.Message, *models.Chat, error)
	MarkRead(ctx context.Context, chatID, readerID uuid.UUID, guard repository.ChatGuard) (int, error)
	ListMessages(ctx context.Context, chatID uuid.UUID, beforeSeq int64, limit int) ([]models.Message, error)
	GetMessages(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error)
}

// PeerDirectory отдаёт краткие данные собеседника.
type PeerDirectory interface {
	GetPeer(ctx context.Context, id uuid.UUID) (*models.ChatPeer, error)
}

// ChatRealtime - доставка событий чата подключённым клиентам.
type ChatRealtime interface {
	BroadcastToRoom(room, event string, data interface{}, except *uuid.UUID)
	SendToUser(userID uuid.UUID, event string, data interface{})
	JoinRoom(userID uuid.UUID, room string)
	IsUserOnline(userID uuid.UUID) bool
	PushToUser(userID uuid.UUID, title, body string, data map[string]string)
}

// ChatService - чаты двух участников и сообщения в них.
type ChatService struct {
	repo       ChatRepository
	peers      PeerDirectory
	rt         ChatRealtime
	maxMessage int
}

func NewChatService(repo ChatRepository, peers PeerDirectory, maxMessage int) *ChatService {
	if maxMessage <= 0 {
		maxMessage = 5000
	}
	return &ChatService{repo: repo, peers: peers, maxMessage: maxMessage}
}

// SetHub устанавливает WebSocket hub.
func (s *ChatService) SetHub(rt ChatRealtime) {
	s.rt = rt
}

// StartChat возвращает чат с собеседником, создавая его при первом обращении.
// Тот же чат получают и найм по заказу, и повторные вызовы с любым порядком участников.
func (s *ChatService) StartChat(ctx context.Context, p models.Principal, otherID uuid.UUID, jobID *uuid.UUID) (*models.ChatView, error) {
	if otherID == p.ID {
		return nil, apperror.ErrCannotChatWithSelf
	}
	peer, err := s.peers.GetPeer(ctx, otherID)
	if err != nil {
		return nil, translate(err)
	}
	chat, err := s.ensure(ctx, p.ID, otherID, jobID)
	if err != nil {
		return nil, err
	}
	view := models.NewChatView(chat, p.ID)
	view.OtherUser = peer
	return &view, nil
}

// EnsureJobChat открывает чат клиента с нанятым исполнителем и пишет в него системное сообщение.
func (s *ChatService) EnsureJobChat(ctx context.Context, clientID, freelancerID, jobID uuid.UUID, jobTitle string) (*models.Chat, error) {
	chat, err := s.ensure(ctx, clientID, freelancerID, &jobID)
	if err != nil {
		return nil, err
	}
	_, err = s.send(ctx, models.NewMessage{
		ChatID:   chat.ID,
		SenderID: clientID,
		Content:  fmt.Sprintf("You've been hired for the job: %s", jobTitle),
		Type:     valueobject.MessageTypeSystem,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("chat_id", chat.ID).Warn("chat: не удалось отправить системное сообщение о найме")
	}
	return chat, nil
}

func (s *ChatService) ensure(ctx context.Context, x, y uuid.UUID, jobID *uuid.UUID) (*models.Chat, error) {
	chat, created, err := s.repo.EnsureChat(ctx, x, y, jobID)
	if err != nil {
		return nil, translate(err)
	}
	if created && s.rt != nil {
		room := models.ChatRoom(chat.ID)
		s.rt.JoinRoom(x, room)
		s.rt.JoinRoom(y, room)
	}
	return chat, nil
}

// ListChats возвращает чаты пользователя с собеседником и последним сообщением.
func (s *ChatService) ListChats(ctx context.Context, p models.Principal) ([]models.ChatView, error) {
	chats, err := s.repo.ListByUser(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}

	lastIDs := make([]uuid.UUID, 0, len(chats))
	for _, c := range chats {
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}
	lastMessages, err := s.repo.GetMessages(ctx, lastIDs)
	if err != nil {
		return nil, translate(err)
	}

	views := make([]models.ChatView, 0, len(chats))
	for i := range chats {
		view := models.NewChatView(&chats[i], p.ID)
		if id := chats[i].LastMessageID; id != nil {
			if m, ok := lastMessages[*id]; ok {
				view.LastMessage = &m
			}
		}
		peer, err := s.peers.GetPeer(ctx, chats[i].Other(p.ID))
		if err != nil {
			return nil, translate(err)
		}
		view.OtherUser = peer
		views = append(views, view)
	}
	return views, nil
}

// GetChat возвращает чат его участнику.
func (s *ChatService) GetChat(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ChatView, error) {
	chat, err := s.participantChat(ctx, p, chatID)
	if err != nil {
		return nil, err
	}
	peer, err := s.peers.GetPeer(ctx, chat.Other(p.ID))
	if err != nil {
		return nil, translate(err)
	}
	view := models.NewChatView(chat, p.ID)
	view.OtherUser = peer
	return &view, nil
}

// ChatIDsForUser возвращает чаты пользователя для подписки соединения на комнаты.
func (s *ChatService) ChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.repo.ListIDsByUser(ctx, userID)
	return ids, translate(err)
}

// ListMessages возвращает сообщения чата по возрастанию порядка отправки.
func (s *ChatService) ListMessages(ctx context.Context, p models.Principal, chatID uuid.UUID, beforeSeq int64, limit int) ([]models.Message, error) {
	if _, err := s.participantChat(ctx, p, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, chatID, beforeSeq, limit)
	return msgs, translate(err)
}

func (s *ChatService) participantChat(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := s.repo.GetByID(ctx, chatID)
	if err != nil {
		return nil, translate(err)
	}
	if !chat.HasParticipant(p.ID) {
		return nil, apperror.ErrNotAParticipant
	}
	return chat, nil
}

// SendMessage сохраняет сообщение и рассылает его в комнату чата.
// Собеседник, подключённый к серверу, дополнительно получает личное уведомление,
// отключённому отправляется push.
func (s *ChatService) SendMessage(ctx context.Context, p models.Principal, chatID uuid.UUID, content string, msgType valueobject.MessageType) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.Validation("сообщение не может быть пустым")
	}
	if utf8.RuneCountInString(content) > s.maxMessage {
		return nil, apperror.Validation(fmt.Sprintf("сообщение длиннее %d символов", s.maxMessage))
	}
	if msgType == "" {
		msgType = valueobject.MessageTypeText
	}
	if !msgType.IsUserType() {
		return nil, apperror.Validation("тип сообщения должен быть text, image или file")
	}
	if p.IsSuspended {
		return nil, apperror.ErrAccountSuspended
	}

	return s.send(ctx, models.NewMessage{ChatID: chatID, SenderID: p.ID, Content: content, Type: msgType})
}

func (s *ChatService) send(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	msg, chat, err := s.repo.CreateMessage(ctx, in, func(chat *models.Chat) error {
		if !chat.HasParticipant(in.SenderID) {
			return apperror.ErrNotAParticipant
		}
		if !chat.IsActive {
			return apperror.ErrChatInactive
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	if s.rt == nil {
		return msg, nil
	}
	s.rt.BroadcastToRoom(models.ChatRoom(chat.ID), models.EventMessageReceived, msg, nil)

	recipient := chat.Other(in.SenderID)
	if s.rt.IsUserOnline(recipient) {
		s.rt.SendToUser(recipient, models.EventNotificationMessage, map[string]interface{}{
			"chatId":      chat.ID,
			"messageId":   msg.ID,
			"senderId":    msg.SenderID,
			"senderName":  msg.SenderName,
			"content":     msg.Content,
			"type":        msg.Type,
			"unreadCount": chat.UnreadFor(recipient),
		})
	} else {
		s.rt.PushToUser(recipient, msg.SenderName, previewOf(msg), map[string]string{
			"chatId":    chat.ID.String(),
			"messageId": msg.ID.String(),
		})
	}

	logger.Log.WithFields(logrus.Fields{
		"chat_id":    chat.ID,
		"message_id": msg.ID,
		"seq":        msg.Seq,
	}).Debug("chat: сообщение отправлено")
	return msg, nil
}

// previewOf короткий текст сообщения для push-уведомления.
func previewOf(msg *models.Message) string {
	if msg.Type != valueobject.MessageTypeText && msg.Type != valueobject.MessageTypeSystem {
		return "[" + string(msg.Type) + "]"
	}
	const limit = 100
	if utf8.RuneCountInString(msg.Content) <= limit {
		return msg.Content
	}
	return string([]rune(msg.Content)[:limit]) + "…"
}

// MarkRead отмечает прочитанными сообщения собеседника и сообщает об этом комнате.
func (s *ChatService) MarkRead(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ReadReceipt, error) {
	count, err := s.repo.MarkRead(ctx, chatID, p.ID, func(chat *models.Chat) error {
		if !chat.HasParticipant(p.ID) {
			return apperror.ErrNotAParticipant
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	receipt := &models.ReadReceipt{ChatID: chatID, ReadBy: p.ID, Count: count}
	if s.rt != nil {
		s.rt.BroadcastToRoom(models.ChatRoom(chatID), models.EventMessageSeen, receipt, nil)
	}
	return receipt, nil
}
