package reactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"murmur/internal/core"
	"murmur/internal/database"
	"murmur/internal/pagination"
	"murmur/internal/surreal"
)

// Mutator is the local side of a reaction change, usually the pagination controller of the shown feed.
type Mutator interface {
	FindReaction(item core.RecordID, username string, kind core.ReactionKind) (core.Reaction, bool)
	AddReactionLocally(item core.RecordID, kind core.ReactionKind, username string) *pagination.Pending
	RemoveReactionLocally(item core.RecordID, reactionID core.RecordID) *pagination.Pending
}

// Service writes reactions of the session user.
type Service struct {
	Logger     *slog.Logger
	Database   *database.Facade
	Redirector core.LoginRedirector
}

func (s *Service) Init(_ context.Context) error {
	s.Logger = s.Logger.With("component", "reactions.Service")
	return nil
}

// AddReaction relates the session user to item. reactionID becomes the id of the edge so the local copy
// and the stored one are the same reaction.
func (s *Service) AddReaction(ctx context.Context, item core.RecordID, kind core.ReactionKind, reactionID core.RecordID) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	err = conn.Relate(ctx, conn.UserID, reactionID, item, map[string]any{"kind": kind})
	if err != nil {
		return s.handleError(ctx, surreal.Classify(err))
	}

	s.Logger.Debug("Reaction added", "item", item.String(), "kind", kind, "id", reactionID.String())
	return nil
}

func (s *Service) RemoveReaction(ctx context.Context, reactionID core.RecordID) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	if err := conn.Delete(ctx, reactionID); err != nil {
		return s.handleError(ctx, surreal.Classify(err))
	}

	s.Logger.Debug("Reaction removed", "id", reactionID.String())
	return nil
}

// Toggle adds the reaction of the session user when it is missing and removes it otherwise. The local
// change is applied first and reverted when the remote write fails. It reports whether the reaction was added.
func (s *Service) Toggle(ctx context.Context, m Mutator, item core.RecordID, kind core.ReactionKind) (bool, error) {
	session, err := s.Database.CurrentSession(ctx)
	if err != nil {
		return false, s.handleError(ctx, err)
	}

	if existing, ok := m.FindReaction(item, session.Username, kind); ok {
		pending := m.RemoveReactionLocally(item, existing.ID)
		if err := s.RemoveReaction(ctx, existing.ID); err != nil {
			pending.Revert()
			return false, err
		}
		pending.Confirm()
		return false, nil
	}

	pending := m.AddReactionLocally(item, kind, session.Username)
	if err := s.AddReaction(ctx, item, kind, pending.Reaction().ID); err != nil {
		pending.Revert()
		return false, err
	}
	pending.Confirm()
	return true, nil
}

func (s *Service) connection(ctx context.Context) (*database.AuthConn, error) {
	conn, err := s.Database.AuthenticatedConnection(ctx)
	if err != nil {
		return nil, s.handleError(ctx, err)
	}
	return conn, nil
}

func (s *Service) handleError(ctx context.Context, err error) error {
	if !core.IsLoginRequired(err) {
		if !errors.Is(err, core.ErrUnknown) {
			err = fmt.Errorf("%w: %w", core.ErrUnknown, err)
		}
		return err
	}

	if s.Redirector != nil {
		s.Redirector.RedirectToLogin(ctx, err)
	}
	return fmt.Errorf("%w: %w", core.ErrRedirected, err)
}
