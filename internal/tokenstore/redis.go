package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// sessionTTL limita la vida de una sesión persistida en redis: una consola
// en una workstation compartida no deja credenciales colgadas para siempre.
const sessionTTL = 12 * time.Hour

// redisStore implementa Store usando Redis.
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis crea un store Redis.
func NewRedis(cfg Config) (*redisStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)
	if cfg.RedisPort == 0 {
		addr = cfg.RedisHost + ":6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Verificar conexión
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("tokenstore: redis ping failed: %w", err)
	}

	return &redisStore{
		client: rdb,
		prefix: cfg.RedisPrefix,
	}, nil
}

func (r *redisStore) key() string {
	if r.prefix == "" {
		return "session"
	}
	return r.prefix + ":session"
}

func (r *redisStore) Load(ctx context.Context) (*rbac.Session, error) {
	val, err := r.client.Get(ctx, r.key()).Result()
	if err == redis.Nil {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: redis get: %w", err)
	}
	var s rbac.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("tokenstore: parse stored session: %w", err)
	}
	if !s.Authenticated() {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (r *redisStore) Save(ctx context.Context, s *rbac.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("tokenstore: marshal session: %w", err)
	}
	return r.client.Set(ctx, r.key(), b, sessionTTL).Err()
}

func (r *redisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
