package feed_test

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/database"
	"murmur/internal/feed"
	"murmur/internal/session"
	"murmur/internal/surreal"
	"murmur/internal/surreal/surrealtest"
)

type redirector struct {
	mu      sync.Mutex
	reasons []error
}

func (r *redirector) RedirectToLogin(_ context.Context, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *redirector) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

// posts answers page queries over the given post ids the way the database would.
func posts(ids ...string) func(string, map[string]any) ([]surreal.QueryResult, error) {
	return func(sql string, vars map[string]any) ([]surreal.QueryResult, error) {
		if strings.HasPrefix(sql, "RETURN $auth.id") {
			return surrealtest.Results("user:alice"), nil
		}

		sorted := slices.Clone(ids)
		slices.Sort(sorted)
		slices.Reverse(sorted)

		rows := lo.Filter(sorted, func(id string, _ int) bool {
			return vars["isInitial"].(bool) || id < vars["lastId"].(string)
		})
		rows = rows[:min(len(rows), vars["limit"].(int))]

		return surrealtest.Results(lo.Map(rows, func(id string, _ int) map[string]any {
			return map[string]any{
				"id":        "post:" + id,
				"content":   "post " + id,
				"createdBy": map[string]any{"id": "user:alice", "username": "alice"},
				"reactions": []any{},
			}
		})), nil
	}
}

type fixture struct {
	feed       *feed.Feed
	sessions   *session.Memory
	redirector *redirector
}

func newFixture(t *testing.T, query func(string, map[string]any) ([]surreal.QueryResult, error)) *fixture {
	t.Helper()

	cfg := &config.Config{Endpoint: "ws://db.test/rpc", Profile: "default"}
	sessions := &session.Memory{Config: cfg}
	require.NoError(t, sessions.Init(t.Context()))
	require.NoError(t, sessions.Put(t.Context(), core.Session{Username: "alice", Token: "opaque"}))

	facade := &database.Facade{
		Logger:   slog.Default(),
		Config:   cfg,
		Sessions: sessions,
		Dial: func(context.Context, string) (surreal.RPC, error) {
			return &surrealtest.Fake{QueryFunc: query}, nil
		},
	}
	require.NoError(t, facade.Init(t.Context()))
	t.Cleanup(func() { _ = facade.Shutdown(context.Background()) })

	r := &redirector{}
	f := &feed.Feed{Logger: slog.Default(), Database: facade, Redirector: r}
	require.NoError(t, f.Init(t.Context()))

	return &fixture{feed: f, sessions: sessions, redirector: r}
}

func keys(items []core.Post) []string {
	return lo.Map(items, func(p core.Post, _ int) string { return p.ID.ID })
}

func TestFeed_FetchPosts(t *testing.T) {
	t.Parallel()

	t.Run("cursor pages", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, posts("1", "2", "3", "4", "5"))

		page, err := fx.feed.FetchPosts(t.Context(), core.RecordID{}, 3, feed.Filter{})
		require.NoError(t, err)
		require.Equal(t, []string{"5", "4", "3"}, keys(page))

		page, err = fx.feed.FetchPosts(t.Context(), page[1].ID, 3, feed.Filter{})
		require.NoError(t, err)
		require.Equal(t, []string{"3", "2", "1"}, keys(page))

		page, err = fx.feed.FetchPosts(t.Context(), page[1].ID, 3, feed.Filter{})
		require.NoError(t, err)
		require.Equal(t, []string{"1"}, keys(page))
	})

	t.Run("query shape", func(t *testing.T) {
		t.Parallel()

		var (
			mu   sync.Mutex
			sqls []string
			vars []map[string]any
		)
		fx := newFixture(t, func(sql string, v map[string]any) ([]surreal.QueryResult, error) {
			mu.Lock()
			defer mu.Unlock()
			sqls = append(sqls, sql)
			vars = append(vars, v)
			return posts()(sql, v)
		})

		_, err := fx.feed.FetchPosts(t.Context(), core.NewRecordID("post", "abc"), 3, feed.Filter{CreatedBy: "bob"})
		require.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		last := sqls[len(sqls)-1]
		require.Contains(t, last, "FROM post")
		require.Contains(t, last, "createdBy.username = $createdBy")
		require.Contains(t, last, "ORDER BY id DESC LIMIT $limit")
		require.Contains(t, last, "count(<-replied) AS numReplies")
		require.Equal(t, map[string]any{
			"table":     "post",
			"isInitial": false,
			"lastId":    "abc",
			"limit":     3,
			"createdBy": "bob",
		}, vars[len(vars)-1])
	})

	t.Run("replies", func(t *testing.T) {
		t.Parallel()

		var last string
		var mu sync.Mutex
		fx := newFixture(t, func(sql string, v map[string]any) ([]surreal.QueryResult, error) {
			mu.Lock()
			last = sql
			mu.Unlock()
			if strings.HasPrefix(sql, "RETURN") {
				return surrealtest.Results("user:alice"), nil
			}
			return surrealtest.Results([]map[string]any{{
				"id":      "reply:r1",
				"replyTo": []string{"post:p1"},
			}}), nil
		})

		replies, err := fx.feed.FetchReplies(t.Context(), core.RecordID{}, 3, feed.Filter{})
		require.NoError(t, err)
		require.Len(t, replies, 1)

		parent, ok := replies[0].Parent()
		require.True(t, ok)
		require.Equal(t, core.NewRecordID("post", "p1"), parent)

		mu.Lock()
		defer mu.Unlock()
		require.Contains(t, last, "FROM reply")
		require.NotContains(t, last, "$createdBy")
	})
}

func TestFeed_LoginRedirect(t *testing.T) {
	t.Parallel()

	t.Run("no session", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, posts("1"))
		require.NoError(t, fx.sessions.Delete(t.Context()))

		page, err := fx.feed.FetchPosts(t.Context(), core.RecordID{}, 3, feed.Filter{})
		require.ErrorIs(t, err, core.ErrRedirected)
		require.ErrorIs(t, err, core.ErrUnauthenticated)
		require.NotNil(t, page)
		require.Empty(t, page)
		require.Equal(t, 1, fx.redirector.count())
	})

	t.Run("token expired mid session", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, func(sql string, v map[string]any) ([]surreal.QueryResult, error) {
			if strings.HasPrefix(sql, "RETURN") {
				return surrealtest.Results("user:alice"), nil
			}
			return nil, &surreal.Error{Code: surreal.StatementErrorCode, Message: "The token has expired"}
		})

		page, err := fx.feed.FetchReplies(t.Context(), core.RecordID{}, 3, feed.Filter{})
		require.ErrorIs(t, err, core.ErrRedirected)
		require.ErrorIs(t, err, core.ErrTokenExpired)
		require.Empty(t, page)
		require.Equal(t, 1, fx.redirector.count())
	})

	t.Run("other errors are not redirected", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, func(sql string, v map[string]any) ([]surreal.QueryResult, error) {
			if strings.HasPrefix(sql, "RETURN") {
				return surrealtest.Results("user:alice"), nil
			}
			return nil, &surreal.Error{Code: surreal.StatementErrorCode, Message: "Parse error"}
		})

		_, err := fx.feed.FetchPosts(t.Context(), core.RecordID{}, 3, feed.Filter{})
		require.ErrorIs(t, err, core.ErrUnknown)
		require.False(t, core.IsLoginRequired(err))
		require.Zero(t, fx.redirector.count())
	})
}

func TestFeed_Details(t *testing.T) {
	t.Parallel()

	empty := func(sql string, _ map[string]any) ([]surreal.QueryResult, error) {
		if strings.HasPrefix(sql, "RETURN") {
			return surrealtest.Results("user:alice"), nil
		}
		return surrealtest.Results([]any{}), nil
	}

	t.Run("post not found", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, empty)

		_, err := fx.feed.PostDetail(t.Context(), core.NewRecordID("post", "missing"))
		require.ErrorIs(t, err, core.ErrNotFound)
		require.Zero(t, fx.redirector.count())
	})

	t.Run("user not found", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, empty)

		_, err := fx.feed.UserDetail(t.Context(), "nobody")
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("post with replies", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, func(sql string, vars map[string]any) ([]surreal.QueryResult, error) {
			if strings.HasPrefix(sql, "RETURN") {
				return surrealtest.Results("user:alice"), nil
			}
			return surrealtest.Results([]map[string]any{{
				"id":         "post:" + vars["postId"].(string),
				"content":    "hello",
				"numReplies": 2,
				"replies": []map[string]any{
					{"id": "reply:a", "content": "first"},
					{"id": "reply:b", "content": "second"},
				},
			}}), nil
		})

		detail, err := fx.feed.PostDetail(t.Context(), core.NewRecordID("post", "p1"))
		require.NoError(t, err)
		require.Equal(t, core.NewRecordID("post", "p1"), detail.ID)
		require.Equal(t, 2, detail.NumReplies)
		require.Len(t, detail.Replies, 2)
		require.Equal(t, "first", detail.Replies[0].Content)
	})
}

func TestFeed_Reactions(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(sql string, vars map[string]any) ([]surreal.QueryResult, error) {
		if strings.HasPrefix(sql, "RETURN") {
			return surrealtest.Results("user:alice"), nil
		}
		if vars["id"] != "r1" {
			return surrealtest.Results([]any{}), nil
		}
		return surrealtest.Results([]map[string]any{{
			"id": vars["table"].(string) + ":r1",
			"reactions": []map[string]any{
				{"id": "reacted:x", "kind": "wow", "reactedBy": map[string]any{"username": "bob"}},
			},
		}}), nil
	})

	got, err := fx.feed.Reactions(t.Context(), core.NewRecordID("reply", "r1"))
	require.NoError(t, err)
	require.Equal(t, []core.Reaction{{
		ID:        core.NewRecordID("reacted", "x"),
		Kind:      core.ReactionWow,
		ReactedBy: core.Reactor{Username: "bob"},
	}}, got)

	_, err = fx.feed.Reactions(t.Context(), core.NewRecordID("reply", "missing"))
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = fx.feed.Reactions(t.Context(), core.NewRecordID("user", "alice"))
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestFeed_Create(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(sql string, vars map[string]any) ([]surreal.QueryResult, error) {
		switch {
		case strings.HasPrefix(sql, "RETURN"):
			return surrealtest.Results("user:alice"), nil
		case strings.Contains(sql, `RELATE`):
			return surrealtest.Results(nil, nil, []map[string]any{{
				"id":      "reply:" + vars["id"].(string),
				"content": vars["content"],
				"replyTo": []string{"post:" + vars["postId"].(string)},
			}}), nil
		default:
			return surrealtest.Results(nil, []map[string]any{{
				"id":      "post:" + vars["id"].(string),
				"content": vars["content"],
			}}), nil
		}
	})

	post, err := fx.feed.CreatePost(t.Context(), "hello")
	require.NoError(t, err)
	require.Equal(t, "post", post.ID.Table)
	require.Equal(t, "hello", post.Content)

	reply, err := fx.feed.CreateReply(t.Context(), post.ID, "hi back")
	require.NoError(t, err)
	require.Equal(t, "reply", reply.ID.Table)
	parent, ok := reply.Parent()
	require.True(t, ok)
	require.Equal(t, post.ID, parent)
}
