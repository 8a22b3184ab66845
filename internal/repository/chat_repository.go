package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/repository/common"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

// ChatGuard проверяет права и состояние чата под блокировкой.
type ChatGuard func(chat *models.Chat) error

// ChatRepository хранит чаты и сообщения.
type ChatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

type ensuredChat struct {
	models.Chat
	Created bool `db:"created"`
}

// EnsureChat возвращает чат пары пользователей, создавая его при необходимости.
// Пара хранится упорядоченной, поэтому (x, y) и (y, x) попадают в одну строку,
// а гонка двух вставок разрешается уникальным ключом.
func (r *ChatRepository) EnsureChat(ctx context.Context, x, y uuid.UUID, jobID *uuid.UUID) (*models.Chat, bool, error) {
	a, b := models.OrderedPair(x, y)

	var row ensuredChat
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO chats (participant_a, participant_b, job_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_a, participant_b) DO UPDATE
		SET job_id = COALESCE(EXCLUDED.job_id, chats.job_id),
		    is_active = TRUE
		RETURNING *, (xmax = 0) AS created
	`, a, b, jobID)
	if err != nil {
		return nil, false, fmt.Errorf("chat repository: ensure %w", err)
	}
	return &row.Chat, row.Created, nil
}

// GetByID возвращает чат.
func (r *ChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	return common.GetByID[models.Chat](ctx, r.db, "chats", id, ErrChatNotFound)
}

// ListByUser возвращает чаты пользователя, последние активные первыми.
func (r *ChatRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	chats := []models.Chat{}
	err := r.db.SelectContext(ctx, &chats, `
		SELECT * FROM chats
		WHERE (participant_a = $1 OR participant_b = $1) AND is_active
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("chat repository: list %w", err)
	}
	return chats, nil
}

// ListIDsByUser возвращает идентификаторы чатов пользователя для подписки на комнаты.
func (r *ChatRepository) ListIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM chats WHERE (participant_a = $1 OR participant_b = $1) AND is_active
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("chat repository: list ids %w", err)
	}
	return ids, nil
}

const messageColumns = `m.id, m.seq, m.chat_id, m.sender_id, u.name AS sender_name, m.content, m.type,
	m.is_read, m.read_at, m.is_deleted, m.created_at`

// CreateMessage добавляет сообщение. Чат блокируется, поэтому порядок seq внутри чата
// совпадает с порядком фиксации, а счётчик непрочитанных собеседника не теряет инкременты.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg models.NewMessage, guard ChatGuard) (*models.Message, *models.Chat, error) {
	var (
		created models.Message
		chat    models.Chat
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Chat](ctx, tx, "chats", msg.ChatID, ErrChatNotFound)
		if err != nil {
			return err
		}
		if err := guard(locked); err != nil {
			return err
		}

		err = tx.GetContext(ctx, &created, `
			WITH m AS (
				INSERT INTO messages (chat_id, sender_id, content, type)
				VALUES ($1, $2, $3, $4)
				RETURNING *
			)
			SELECT `+messageColumns+` FROM m JOIN users u ON u.id = m.sender_id
		`, msg.ChatID, msg.SenderID, msg.Content, msg.Type)
		if err != nil {
			return fmt.Errorf("chat repository: insert message %w", err)
		}

		err = tx.GetContext(ctx, &chat, `
			UPDATE chats
			SET last_message_id = $2, last_message_at = $3, updated_at = NOW(),
			    unread_a = unread_a + CASE WHEN participant_a <> $4 THEN 1 ELSE 0 END,
			    unread_b = unread_b + CASE WHEN participant_b <> $4 THEN 1 ELSE 0 END
			WHERE id = $1
			RETURNING *
		`, msg.ChatID, created.ID, created.CreatedAt, msg.SenderID)
		if err != nil {
			return fmt.Errorf("chat repository: touch chat %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &created, &chat, nil
}

// MarkRead отмечает прочитанными все сообщения собеседника и обнуляет счётчик читателя.
func (r *ChatRepository) MarkRead(ctx context.Context, chatID, readerID uuid.UUID, guard ChatGuard) (int, error) {
	var count int
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		chat, err := common.GetByIDForUpdate[models.Chat](ctx, tx, "chats", chatID, ErrChatNotFound)
		if err != nil {
			return err
		}
		if err := guard(chat); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE messages SET is_read = TRUE, read_at = NOW()
			WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read
		`, chatID, readerID)
		if err != nil {
			return fmt.Errorf("chat repository: mark read %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("chat repository: mark read rows %w", err)
		}
		count = int(n)

		_, err = tx.ExecContext(ctx, `
			UPDATE chats
			SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
			    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END
			WHERE id = $1
		`, chatID, readerID)
		if err != nil {
			return fmt.Errorf("chat repository: reset unread %w", err)
		}
		return nil
	})
	return count, err
}

// listMessagesQuery: курсор $2 приводится к BIGINT, иначе postgres выводит для него integer.
const listMessagesQuery = `
		SELECT ` + messageColumns + `
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1 AND NOT m.is_deleted AND ($2::BIGINT = 0 OR m.seq < $2::BIGINT)
		ORDER BY m.seq DESC
		LIMIT $3
	`

// ListMessages возвращает до limit сообщений перед курсором beforeSeq (0 - с конца)
// в порядке отправки.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID uuid.UUID, beforeSeq int64, limit int) ([]models.Message, error) {
	limit, _ = normalizePage(limit, 0)
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, listMessagesQuery, chatID, beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("chat repository: list messages %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetMessages возвращает сообщения по идентификаторам, например последние сообщения чатов.
func (r *ChatRepository) GetMessages(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error) {
	out := make(map[uuid.UUID]models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT `+messageColumns+`
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.id = ANY($1::uuid[])
	`, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("chat repository: get messages %w", err)
	}
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}
