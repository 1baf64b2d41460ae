package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"murmur/internal/config"
	"murmur/internal/core"
)

const redisPrefix = "murmur:"

// Redis stores sessions in redis. Entries expire together with their token.
type Redis struct {
	Logger *slog.Logger
	Config *config.Config

	client *redis.Client
}

func (s *Redis) Init(ctx context.Context) error {
	s.Logger = s.Logger.With("component", "session.Redis")

	opts, err := redis.ParseURL(s.Config.RedisURL)
	if err != nil {
		return err
	}
	s.client = redis.NewClient(opts)

	return s.client.Ping(ctx).Err()
}

func (s *Redis) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Shutdown(context.Context) error {
	return s.client.Close()
}

func (s *Redis) Get(ctx context.Context) (core.Session, error) {
	data, err := s.client.Get(ctx, redisPrefix+key(s.Config.Profile)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Session{}, core.ErrNoSession
		}
		return core.Session{}, err
	}

	return decode(data)
}

func (s *Redis) Put(ctx context.Context, session core.Session) error {
	data, err := encode(session)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if exp, ok, err := TokenExpiry(session.Token); err == nil && ok {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return core.ErrTokenExpired
		}
	}

	return s.client.Set(ctx, redisPrefix+key(s.Config.Profile), data, ttl).Err()
}

func (s *Redis) Delete(ctx context.Context) error {
	return s.client.Del(ctx, redisPrefix+key(s.Config.Profile)).Err()
}
