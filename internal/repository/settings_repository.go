package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrSettingNotFound = errors.New("setting not found")

// SettingsRepository читает административные настройки (ключ - значение).
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает значение настройки.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.db.GetContext(ctx, &value, `SELECT value FROM admin_settings WHERE key = $1`, key); err != nil {
		return "", wrapNotFound(err, ErrSettingNotFound, "settings repository: get")
	}
	return value, nil
}
