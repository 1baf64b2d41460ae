package core

import (
	"context"
)

// SessionStore persists the session of one profile. Get returns ErrNoSession when nothing is stored.
type SessionStore interface {
	Get(ctx context.Context) (Session, error)
	Put(ctx context.Context, session Session) error
	Delete(ctx context.Context) error
}

// LoginRedirector sends the user to the login entry point.
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context, reason error)
}

// ReactionPublisher delivers reaction events observed by a live query.
type ReactionPublisher interface {
	Publish(ctx context.Context, event ReactionEvent) error
}
