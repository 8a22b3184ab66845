package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/ignatzorin/skillhire-backend/internal/logger"
)

const rateLimitPrefix = "ratelimit"

// NewRateLimitStore выбирает хранилище счётчиков: Redis, если он настроен,
// иначе память процесса.
func NewRateLimitStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix}), nil
	}
	return redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
}

// RateLimitMiddleware создаёт middleware для ограничения количества запросов.
// Ключ - пользователь, если он аутентифицирован, иначе IP.
// По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(store limiter.Store, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}
	if store == nil {
		store = memory.NewStore()
	}

	instance := limiter.New(store, limiter.Rate{
		Period: period,
		Limit:  limit,
	})

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if raw, ok := c.Get(ContextUserIDKey); ok {
			if userID, ok := raw.(uuid.UUID); ok {
				key = "user:" + userID.String()
			}
		}

		lctx, err := instance.Get(c.Request.Context(), key)
		if err != nil {
			// При недоступном хранилище запрос пропускается.
			logger.Log.WithError(err).Warn("rate limit: хранилище недоступно")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "слишком много запросов, попробуйте позже",
			})
			return
		}

		c.Next()
	}
}
