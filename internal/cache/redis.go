package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisClient is the subset of redis.Cmdable used by Redis.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisConfig holds connection settings for NewRedisClient.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient dials Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Redis is a Store shared between replicas. Expiry uses native key TTLs.
// Backend errors are logged and reported as a miss.
type Redis struct {
	client redisClient
	prefix string
	log    zerolog.Logger
}

// NewRedis wraps client. Keys are stored as prefix+fingerprint.
func NewRedis(client redisClient, prefix string, log zerolog.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, log: log}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, fp string) (Payload, bool) {
	b, err := r.client.Get(ctx, r.prefix+fp).Bytes()
	if errors.Is(err, redis.Nil) {
		return Payload{}, false
	}
	if err != nil {
		r.log.Warn().Err(err).Str("fingerprint", fp).Msg("cache get failed")
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		r.log.Warn().Err(err).Str("fingerprint", fp).Msg("cache entry undecodable")
		return Payload{}, false
	}
	return p, true
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, fp string, p Payload, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		r.log.Warn().Err(err).Str("fingerprint", fp).Msg("cache encode failed")
		return
	}
	if err := r.client.Set(ctx, r.prefix+fp, b, ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("fingerprint", fp).Msg("cache set failed")
	}
}
