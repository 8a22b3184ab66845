package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/config"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
)

const (
	settingCommissionRate = "commission_rate"
	cacheKeyCommission    = "settings:" + settingCommissionRate
)

// SettingsRepository - хранилище административных настроек.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
}

// SettingsService отдаёт настройки площадки, подставляя значения по умолчанию из конфигурации.
type SettingsService struct {
	repo     SettingsRepository
	cache    *CacheService
	defaults config.Marketplace
}

func NewSettingsService(repo SettingsRepository, cache *CacheService, defaults config.Marketplace) *SettingsService {
	return &SettingsService{repo: repo, cache: cache, defaults: defaults}
}

// CommissionRate возвращает текущую ставку комиссии. Значение кэшируется
// на settingsCacheTTL; отсутствующая или некорректная настройка заменяется значением по умолчанию.
func (s *SettingsService) CommissionRate(ctx context.Context) (decimal.Decimal, error) {
	value, err := s.cache.GetOrSet(ctx, cacheKeyCommission, s.ttl(), func(ctx context.Context) (interface{}, error) {
		raw, err := s.repo.Get(ctx, settingCommissionRate)
		if errors.Is(err, repository.ErrSettingNotFound) {
			return s.defaults.CommissionRate, nil
		}
		if err != nil {
			return nil, err
		}
		rate, err := config.ParseCommissionRate(raw)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"key":   settingCommissionRate,
				"value": raw,
			}).Warn("settings: некорректная ставка комиссии, используется значение по умолчанию")
			return s.defaults.CommissionRate, nil
		}
		return rate, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return value.(decimal.Decimal), nil
}

// InvalidateCommissionRate сбрасывает кэш ставки после её изменения.
func (s *SettingsService) InvalidateCommissionRate() {
	s.cache.Delete(cacheKeyCommission)
}

// Defaults возвращает правила площадки из конфигурации.
func (s *SettingsService) Defaults() config.Marketplace {
	return s.defaults
}

func (s *SettingsService) ttl() time.Duration {
	if s.defaults.SettingsCacheTTL <= 0 {
		return time.Minute
	}
	return s.defaults.SettingsCacheTTL
}
