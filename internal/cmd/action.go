package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"murmur/internal/cmd/flags"
	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/database"
	"murmur/internal/feed"
	"murmur/internal/pagination"
	"murmur/internal/reactions"
	"murmur/internal/render"
	"murmur/pkg/retry"
)

// action runs one command with the injected services, the container stops once it returns.
type action struct {
	Logger    *slog.Logger
	Config    *config.Config
	Database  *database.Facade
	Feed      *feed.Feed
	Reactions *reactions.Service
	Printer   *render.Printer

	fn func(ctx context.Context, a *action) error
}

func (a *action) Run(ctx context.Context) error {
	return a.fn(ctx, a)
}

// printer marks the reactions of the signed in user, if any.
func (a *action) printer(ctx context.Context) *render.Printer {
	s, err := a.Database.CurrentSession(ctx)
	if err != nil {
		return a.Printer
	}
	return a.Printer.ForUser(s.Username)
}

func (a *action) paginationOptions() pagination.Options {
	return pagination.Options{
		PageSize: a.Config.PageSize,
		Retry: retry.Policy{
			Retries:    a.Config.FetchRetries,
			Backoff:    200 * time.Millisecond,
			MaxBackoff: 2 * time.Second,
		},
		Logger: a.Logger,
	}
}

func (a *action) postsController(cache *pagination.Cache[core.Post], filter feed.Filter) *pagination.Controller[core.Post] {
	key := "timeline"
	if filter.CreatedBy != "" {
		key = "user_posts/" + filter.CreatedBy
	}

	return cache.Controller(key, func(ctx context.Context, cursor core.RecordID, limit int) ([]core.Post, error) {
		return a.Feed.FetchPosts(ctx, cursor, limit, filter)
	}, a.paginationOptions())
}

func (a *action) repliesController(cache *pagination.Cache[core.Reply], filter feed.Filter) *pagination.Controller[core.Reply] {
	return cache.Controller("user_replies/"+filter.CreatedBy, func(ctx context.Context, cursor core.RecordID, limit int) ([]core.Reply, error) {
		return a.Feed.FetchReplies(ctx, cursor, limit, filter)
	}, a.paginationOptions())
}

// loadPages loads the first page and up to pages-1 following ones.
func loadPages[T pagination.Item[T]](ctx context.Context, ctl *pagination.Controller[T], pages int) error {
	if err := ctl.Load(ctx); err != nil {
		return err
	}
	for i := 1; i < pages && ctl.HasNextPage(); i++ {
		if err := ctl.SentinelVisible(ctx); err != nil {
			return err
		}
	}
	return nil
}

// parseItemID accepts a full record id or a bare id of defaultTable.
func parseItemID(s, defaultTable string) (core.RecordID, error) {
	if s == "" {
		return core.RecordID{}, fmt.Errorf("%w: empty id", core.ErrInvalidRecordID)
	}
	if !strings.Contains(s, ":") {
		if defaultTable == "" {
			return core.RecordID{}, fmt.Errorf("%w: %q needs a table prefix, e.g. post:%s", core.ErrInvalidRecordID, s, s)
		}
		return core.NewRecordID(defaultTable, s), nil
	}
	return core.ParseRecordID(s)
}

// loginPrompt tells the user to sign in again. The terminal has no login page to send the user to.
type loginPrompt struct {
	Config *config.Config

	out io.Writer
}

func (l *loginPrompt) Init(context.Context) error {
	if l.out == nil {
		l.out = os.Stderr
	}
	return nil
}

func (l *loginPrompt) RedirectToLogin(_ context.Context, reason error) {
	what := "the session is no longer valid"
	switch {
	case errors.Is(reason, core.ErrUnauthenticated):
		what = "not signed in"
	case errors.Is(reason, core.ErrTokenExpired):
		what = "the session has expired"
	}

	profile := ""
	if l.Config.Profile != "" && l.Config.Profile != flags.Profile.Value {
		profile = " --profile " + l.Config.Profile
	}
	fmt.Fprintf(l.out, "%s, sign in with: murmur%s signin <username>\n", what, profile)
}
