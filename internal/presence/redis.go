package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:user:"

// DefaultTTL ограничивает жизнь счётчика, если экземпляр упал, не сняв свои соединения.
const DefaultTTL = 2 * time.Minute

// disconnectScript уменьшает счётчик и удаляет ключ, когда соединений не осталось.
var disconnectScript = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

// RedisStore хранит счётчики соединений в Redis, общий для всех экземпляров.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

func (s *RedisStore) Connect(ctx context.Context, userID uuid.UUID) (bool, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key(userID))
		pipe.Expire(ctx, key(userID), s.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("presence: connect %w", err)
	}
	return incr.Val() == 1, nil
}

func (s *RedisStore) Disconnect(ctx context.Context, userID uuid.UUID) (bool, error) {
	last, err := disconnectScript.Run(ctx, s.client, []string{key(userID)}).Int()
	if err != nil {
		return false, fmt.Errorf("presence: disconnect %w", err)
	}
	return last == 1, nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.client.Get(ctx, key(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence: get %w", err)
	}
	return n > 0, nil
}

// Touch продлевает счётчик живого соединения. Вызывается по heartbeat.
func (s *RedisStore) Touch(ctx context.Context, userID uuid.UUID) error {
	return s.client.Expire(ctx, key(userID), s.ttl).Err()
}
