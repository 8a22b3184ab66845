package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const (
	checkHealthy   = "healthy"
	checkUnhealthy = "unhealthy"
	checkDegraded  = "degraded"
	checkDisabled  = "disabled"
)

// RealtimeStats - счётчики подключений вебсокет-хаба.
type RealtimeStats interface {
	Stats() (users, connections, rooms int)
}

// HealthHandler отвечает на проверки балансировщика.
type HealthHandler struct {
	db       *sqlx.DB
	redis    *redis.Client
	realtime RealtimeStats
}

// NewHealthHandler создаёт health handler. redis и realtime могут быть nil.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, realtime RealtimeStats) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, realtime: realtime}
}

type RealtimeHealth struct {
	Users       int `json:"users"`
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Realtime  *RealtimeHealth   `json:"realtime,omitempty"`
}

// Health обрабатывает GET /health. Недоступная база даёт 503, недоступный Redis только degraded:
// без него присутствие и лимиты запросов работают в памяти процесса.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    checkHealthy,
		Timestamp: time.Now().UTC(),
		Checks: map[string]string{
			"database":        h.checkDatabase(ctx),
			"redis":           h.checkRedis(ctx),
			"connection_pool": h.checkPool(),
		},
	}
	if h.realtime != nil {
		users, conns, rooms := h.realtime.Stats()
		resp.Realtime = &RealtimeHealth{Users: users, Connections: conns, Rooms: rooms}
	}

	statusCode := http.StatusOK
	if resp.Checks["database"] != checkHealthy {
		resp.Status = checkUnhealthy
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, resp)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) string {
	if h.db == nil || h.db.PingContext(ctx) != nil {
		return checkUnhealthy
	}
	return checkHealthy
}

func (h *HealthHandler) checkRedis(ctx context.Context) string {
	if h.redis == nil {
		return checkDisabled
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return checkDegraded
	}
	return checkHealthy
}

func (h *HealthHandler) checkPool() string {
	if h.db == nil {
		return checkDisabled
	}
	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		return "warning: pool exhausted"
	}
	return checkHealthy
}
