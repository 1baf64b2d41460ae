package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"murmur/internal/core"
	"murmur/internal/database"
	"murmur/internal/metrics"
	"murmur/internal/surreal"
)

const (
	tablePost  = "post"
	tableReply = "reply"
)

// Filter narrows a feed. The zero value is the global timeline.
type Filter struct {
	CreatedBy string
}

// Feed runs the read and write queries of posts, replies and users on the session connection.
type Feed struct {
	Logger     *slog.Logger
	Database   *database.Facade
	Redirector core.LoginRedirector
}

func (f *Feed) Init(_ context.Context) error {
	f.Logger = f.Logger.With("component", "feed.Feed")
	return nil
}

// FetchPosts returns up to limit posts older than cursor, newest first. A zero cursor starts at the newest post.
// When the session is missing or expired the user is sent to login and ErrRedirected is returned with an
// empty page.
func (f *Feed) FetchPosts(ctx context.Context, cursor core.RecordID, limit int, filter Filter) ([]core.Post, error) {
	return fetchPage[core.Post](ctx, f, tablePost, postFields, cursor, limit, filter)
}

// FetchReplies is FetchPosts for replies.
func (f *Feed) FetchReplies(ctx context.Context, cursor core.RecordID, limit int, filter Filter) ([]core.Reply, error) {
	return fetchPage[core.Reply](ctx, f, tableReply, replyFields, cursor, limit, filter)
}

func fetchPage[T any](ctx context.Context, f *Feed, table string, fields []string, cursor core.RecordID, limit int,
	filter Filter) (items []T, err error) {
	defer func() { metrics.PageFetched(table, err) }()

	trace.SpanFromContext(ctx).AddEvent("fetching page",
		trace.WithAttributes(
			attribute.String("table", table),
			attribute.String("cursor", cursor.String()),
			attribute.Int("limit", limit),
		))

	vars := map[string]any{
		"table":     table,
		"isInitial": cursor.IsZero(),
		"lastId":    cursor.ID,
		"limit":     limit,
	}
	if filter.CreatedBy != "" {
		vars["createdBy"] = filter.CreatedBy
	}

	results, err := f.query(ctx, pageQuery(table, fields, filter), vars)
	if err != nil {
		return []T{}, err
	}

	items, err = surreal.Decode[[]T](results, 0)
	if err != nil {
		return []T{}, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	if items == nil {
		items = []T{}
	}

	f.Logger.Debug("Page fetched", "table", table, "cursor", cursor.String(), "count", len(items))
	return items, nil
}

// PostDetail returns the post with its replies, oldest reply first. ErrNotFound when there is no such post.
func (f *Feed) PostDetail(ctx context.Context, id core.RecordID) (core.PostDetail, error) {
	results, err := f.query(ctx, postDetailQuery, map[string]any{"postId": id.ID})
	if err != nil {
		return core.PostDetail{}, err
	}

	detail, ok, err := surreal.DecodeFirst[core.PostDetail](results, 0)
	if err != nil {
		return core.PostDetail{}, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	if !ok {
		return core.PostDetail{}, fmt.Errorf("%w: post %s", core.ErrNotFound, id)
	}
	return detail, nil
}

// UserDetail returns the profile of username. ErrNotFound when there is no such user.
func (f *Feed) UserDetail(ctx context.Context, username string) (core.UserDetail, error) {
	results, err := f.query(ctx, userDetailQuery, map[string]any{"username": username})
	if err != nil {
		return core.UserDetail{}, err
	}

	user, ok, err := surreal.DecodeFirst[core.UserDetail](results, 0)
	if err != nil {
		return core.UserDetail{}, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	if !ok {
		return core.UserDetail{}, fmt.Errorf("%w: user %s", core.ErrNotFound, username)
	}
	return user, nil
}

// Reactions returns the reactions on a post or reply. ErrNotFound when the item does not exist.
func (f *Feed) Reactions(ctx context.Context, item core.RecordID) ([]core.Reaction, error) {
	if item.Table != tablePost && item.Table != tableReply {
		return nil, fmt.Errorf("%w: %s is not a post or reply", core.ErrNotFound, item)
	}

	results, err := f.query(ctx, itemReactionsQuery, map[string]any{"table": item.Table, "id": item.ID})
	if err != nil {
		return nil, err
	}

	row, ok, err := surreal.DecodeFirst[struct {
		Reactions []core.Reaction `json:"reactions"`
	}](results, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, item)
	}
	return row.Reactions, nil
}

// CreatePost publishes a post as the session user.
func (f *Feed) CreatePost(ctx context.Context, content string) (core.Post, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return core.Post{}, err
	}

	results, err := f.query(ctx, createPostQuery, map[string]any{"id": id.String(), "content": content})
	if err != nil {
		return core.Post{}, err
	}

	post, ok, err := surreal.DecodeFirst[core.Post](results, 1)
	if err != nil {
		return core.Post{}, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	if !ok {
		return core.Post{}, fmt.Errorf("%w: created post is missing", core.ErrUnknown)
	}

	f.Logger.Info("Post created", "id", post.ID.String())
	return post, nil
}

// CreateReply publishes a reply to post as the session user.
func (f *Feed) CreateReply(ctx context.Context, post core.RecordID, content string) (core.Reply, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return core.Reply{}, err
	}

	results, err := f.query(ctx, createReplyQuery, map[string]any{
		"id":      id.String(),
		"postId":  post.ID,
		"content": content,
	})
	if err != nil {
		return core.Reply{}, err
	}

	reply, ok, err := surreal.DecodeFirst[core.Reply](results, 2)
	if err != nil {
		return core.Reply{}, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	if !ok {
		return core.Reply{}, fmt.Errorf("%w: created reply is missing", core.ErrUnknown)
	}

	f.Logger.Info("Reply created", "id", reply.ID.String(), "post", post.String())
	return reply, nil
}

func (f *Feed) query(ctx context.Context, sql string, vars map[string]any) ([]surreal.QueryResult, error) {
	conn, err := f.Database.AuthenticatedConnection(ctx)
	if err != nil {
		return nil, f.handleAuthError(ctx, err)
	}

	results, err := conn.Query(ctx, sql, vars)
	if err != nil {
		return nil, f.handleAuthError(ctx, surreal.Classify(err))
	}
	return results, nil
}

func (f *Feed) handleAuthError(ctx context.Context, err error) error {
	if !core.IsLoginRequired(err) {
		if !errors.Is(err, core.ErrUnknown) {
			err = fmt.Errorf("%w: %w", core.ErrUnknown, err)
		}
		return err
	}

	f.Logger.Warn("Session is not usable, redirecting to login", "error", err)
	if f.Redirector != nil {
		f.Redirector.RedirectToLogin(ctx, err)
	}
	return fmt.Errorf("%w: %w", core.ErrRedirected, err)
}
