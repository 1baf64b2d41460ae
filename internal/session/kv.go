package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/nats"
)

// KV stores sessions in the NATS JetStream key-value bucket.
type KV struct {
	Logger *slog.Logger
	Config *config.Config
	NATS   *nats.NATS
}

func (s *KV) Init(context.Context) error {
	s.Logger = s.Logger.With("component", "session.KV")
	return nil
}

func (s *KV) Get(ctx context.Context) (core.Session, error) {
	entry, err := s.NATS.KV.Get(ctx, key(s.Config.Profile))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return core.Session{}, core.ErrNoSession
		}
		return core.Session{}, err
	}

	return decode(entry.Value())
}

func (s *KV) Put(ctx context.Context, session core.Session) error {
	data, err := encode(session)
	if err != nil {
		return err
	}

	_, err = s.NATS.KV.Put(ctx, key(s.Config.Profile), data)
	if err != nil {
		return err
	}

	s.Logger.Debug("session stored", "profile", s.Config.Profile, "username", session.Username)
	return nil
}

func (s *KV) Delete(ctx context.Context) error {
	err := s.NATS.KV.Delete(ctx, key(s.Config.Profile))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
