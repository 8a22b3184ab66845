package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/skillhire-backend/internal/config"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
)

// MockSettingsRepository мок репозитория настроек
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func TestSettingsService_CommissionRate_FromSettings(t *testing.T) {
	repo := new(MockSettingsRepository)
	repo.On("Get", mock.Anything, settingCommissionRate).Return("0.05", nil).Once()
	svc := NewSettingsService(repo, NewCacheService(), config.DefaultMarketplace())

	for i := 0; i < 3; i++ {
		rate, err := svc.CommissionRate(context.Background())
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("0.05")))
	}
	repo.AssertExpectations(t)
}

func TestSettingsService_CommissionRate_Fallbacks(t *testing.T) {
	defaults := config.DefaultMarketplace()

	missing := new(MockSettingsRepository)
	missing.On("Get", mock.Anything, settingCommissionRate).Return("", repository.ErrSettingNotFound)
	rate, err := NewSettingsService(missing, NewCacheService(), defaults).CommissionRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(defaults.CommissionRate))

	invalid := new(MockSettingsRepository)
	invalid.On("Get", mock.Anything, settingCommissionRate).Return("1.5", nil)
	rate, err = NewSettingsService(invalid, NewCacheService(), defaults).CommissionRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(defaults.CommissionRate))

	tooPrecise := new(MockSettingsRepository)
	tooPrecise.On("Get", mock.Anything, settingCommissionRate).Return("0.00125", nil)
	rate, err = NewSettingsService(tooPrecise, NewCacheService(), defaults).CommissionRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(defaults.CommissionRate))
}

func TestSettingsService_CommissionRate_ErrorNotCached(t *testing.T) {
	repo := new(MockSettingsRepository)
	repo.On("Get", mock.Anything, settingCommissionRate).Return("", errors.New("connection reset")).Once()
	repo.On("Get", mock.Anything, settingCommissionRate).Return("0.02", nil).Once()
	svc := NewSettingsService(repo, NewCacheService(), config.DefaultMarketplace())

	_, err := svc.CommissionRate(context.Background())
	assert.Error(t, err)

	rate, err := svc.CommissionRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.02")))
}

func TestSettingsService_InvalidateCommissionRate(t *testing.T) {
	repo := new(MockSettingsRepository)
	repo.On("Get", mock.Anything, settingCommissionRate).Return("0.03", nil).Once()
	repo.On("Get", mock.Anything, settingCommissionRate).Return("0.04", nil).Once()
	svc := NewSettingsService(repo, NewCacheService(), config.DefaultMarketplace())

	_, err := svc.CommissionRate(context.Background())
	require.NoError(t, err)
	svc.InvalidateCommissionRate()

	rate, err := svc.CommissionRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.04")))
	repo.AssertExpectations(t)
}

func TestCacheService_Expiry(t *testing.T) {
	cache := NewCacheService()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("jobs:1", "a", time.Minute)
	v, ok := cache.Get("jobs:1")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("jobs:1")
	assert.False(t, ok)
}

func TestCacheService_InvalidateByPrefix(t *testing.T) {
	cache := NewCacheService()
	cache.Set("settings:commission", 1, time.Minute)
	cache.Set("settings:quiz", 2, time.Minute)
	cache.Set("jobs:1", 3, time.Minute)

	cache.InvalidateByPrefix("settings:")

	_, ok := cache.Get("settings:commission")
	assert.False(t, ok)
	_, ok = cache.Get("jobs:1")
	assert.True(t, ok)
}

func TestCacheService_GetOrSet_CollapsesConcurrentLoads(t *testing.T) {
	cache := NewCacheService()
	var calls int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrSet(context.Background(), "k", time.Minute, func(context.Context) (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
