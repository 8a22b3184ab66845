package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/repository/common"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository читает пользователей и хранит их присутствие в сети.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("user repository: %w", err)
	}
	return user, err
}

// GetPrincipal возвращает данные пользователя, нужные для проверки прав.
func (r *UserRepository) GetPrincipal(ctx context.Context, id uuid.UUID) (models.Principal, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Principal{}, err
	}
	return models.PrincipalOf(user), nil
}

// GetPeer возвращает краткие данные собеседника.
func (r *UserRepository) GetPeer(ctx context.Context, id uuid.UUID) (*models.ChatPeer, error) {
	var peer models.ChatPeer
	err := r.db.GetContext(ctx, &peer, `SELECT id, name, is_online, last_seen FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, wrapNotFound(err, ErrUserNotFound, "user repository: get peer")
	}
	return &peer, nil
}

// SetOnline отмечает пользователя в сети.
func (r *UserRepository) SetOnline(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("user repository: set online %w", err)
	}
	return common.AffectedOne(res, ErrUserNotFound)
}

// SetOffline сохраняет время последнего визита.
func (r *UserRepository) SetOffline(ctx context.Context, id uuid.UUID, lastSeen time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = FALSE, last_seen = $2 WHERE id = $1`, id, lastSeen)
	if err != nil {
		return fmt.Errorf("user repository: set offline %w", err)
	}
	return common.AffectedOne(res, ErrUserNotFound)
}
