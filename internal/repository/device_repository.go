package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/skillhire-backend/internal/models"
)

// DeviceRepository хранит FCM-токены устройств пользователей.
type DeviceRepository struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert регистрирует токен устройства.
func (r *DeviceRepository) Upsert(ctx context.Context, d *models.DeviceToken) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO device_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token) DO UPDATE SET platform = EXCLUDED.platform
		RETURNING created_at
	`, d.UserID, d.Token, d.Platform).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("device repository: upsert %w", err)
	}
	return nil
}

// Delete удаляет токен. Отсутствующий токен не считается ошибкой.
func (r *DeviceRepository) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`, userID, token); err != nil {
		return fmt.Errorf("device repository: delete %w", err)
	}
	return nil
}

// ListTokens возвращает токены всех устройств пользователя.
func (r *DeviceRepository) ListTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	tokens := []string{}
	if err := r.db.SelectContext(ctx, &tokens, `SELECT token FROM device_tokens WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("device repository: list %w", err)
	}
	return tokens, nil
}
