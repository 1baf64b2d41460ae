package pagination_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"murmur/internal/core"
	"murmur/internal/pagination"
)

func countKind(post core.Post, kind core.ReactionKind) int {
	return lo.CountBy(post.Reactions, func(r core.Reaction) bool { return r.Kind == kind })
}

func find(items []core.Post, id string) core.Post {
	post, _ := lo.Find(items, func(p core.Post) bool { return p.ID.ID == id })
	return post
}

func loaded(t *testing.T, cache *pagination.Cache[core.Post], key string, src *source) *pagination.Controller[core.Post] {
	t.Helper()

	ctl := newController(cache, key, src)
	require.NoError(t, ctl.Load(t.Context()))
	return ctl
}

func TestPending_AddReaction(t *testing.T) {
	t.Parallel()

	t.Run("heart count grows by one", func(t *testing.T) {
		t.Parallel()

		src := newSource("1", "2")
		src.posts[1].Reactions = []core.Reaction{
			{ID: core.NewRecordID("reacted", "r1"), Kind: core.ReactionHeart, ReactedBy: core.Reactor{Username: "bob"}},
		}
		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", src)

		before := find(ctl.Items(), "2")
		require.Equal(t, 1, countKind(before, core.ReactionHeart))

		p := ctl.AddReactionLocally(core.NewRecordID("post", "2"), core.ReactionHeart, "alice")
		require.Equal(t, "reacted", p.Reaction().ID.Table)
		require.NotEmpty(t, p.Reaction().ID.ID)

		after := find(ctl.Items(), "2")
		require.Equal(t, 2, countKind(after, core.ReactionHeart))
		require.Equal(t, 0, countKind(find(ctl.Items(), "1"), core.ReactionHeart))

		p.Confirm()
		require.Equal(t, 2, countKind(find(ctl.Items(), "2"), core.ReactionHeart))
	})

	t.Run("revert restores the exact state", func(t *testing.T) {
		t.Parallel()

		src := newSource("1", "2")
		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", src)
		before := ctl.Items()

		p := ctl.AddReactionLocally(core.NewRecordID("post", "1"), core.ReactionWow, "alice")
		require.NotEqual(t, before, ctl.Items())

		p.Revert()
		require.Equal(t, before, ctl.Items())

		p.Revert()
		p.Confirm()
		require.Equal(t, before, ctl.Items())
	})

	t.Run("one reaction per kind and user", func(t *testing.T) {
		t.Parallel()

		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", newSource("1"))
		item := core.NewRecordID("post", "1")

		first := ctl.AddReactionLocally(item, core.ReactionLaugh, "alice")
		second := ctl.AddReactionLocally(item, core.ReactionLaugh, "alice")
		require.Equal(t, 1, countKind(find(ctl.Items(), "1"), core.ReactionLaugh))

		ctl.AddReactionLocally(item, core.ReactionSad, "alice")
		require.Len(t, find(ctl.Items(), "1").Reactions, 2)

		second.Revert()
		require.Equal(t, 1, countKind(find(ctl.Items(), "1"), core.ReactionLaugh))

		first.Revert()
		require.Equal(t, 0, countKind(find(ctl.Items(), "1"), core.ReactionLaugh))
	})

	t.Run("stays under its own key", func(t *testing.T) {
		t.Parallel()

		cache := pagination.NewCache[core.Post]()
		timeline := loaded(t, cache, "timeline", newSource("1", "2"))
		profile := loaded(t, cache, "user_posts/alice", newSource("2"))

		updates, stop := timeline.Subscribe()
		defer stop()

		item := core.NewRecordID("post", "2")
		p := profile.AddReactionLocally(item, core.ReactionHeart, "alice")

		require.Equal(t, 1, countKind(find(profile.Items(), "2"), core.ReactionHeart))
		require.Equal(t, 0, countKind(find(timeline.Items(), "2"), core.ReactionHeart))
		require.Empty(t, updates)

		_, ok := profile.FindReaction(item, "alice", core.ReactionHeart)
		require.True(t, ok)
		_, ok = timeline.FindReaction(item, "alice", core.ReactionHeart)
		require.False(t, ok)

		timeline.Reset()
		require.NoError(t, timeline.Load(t.Context()))
		require.Equal(t, 0, countKind(find(timeline.Items(), "2"), core.ReactionHeart))

		p.Revert()
		require.Equal(t, 0, countKind(find(profile.Items(), "2"), core.ReactionHeart))
	})

	t.Run("removal stays under its own key", func(t *testing.T) {
		t.Parallel()

		reaction := core.Reaction{
			ID:        core.NewRecordID("reacted", "r1"),
			Kind:      core.ReactionGood,
			ReactedBy: core.Reactor{Username: "alice"},
		}
		timelineSrc := newSource("2")
		timelineSrc.posts[0].Reactions = []core.Reaction{reaction}
		profileSrc := newSource("2")
		profileSrc.posts[0].Reactions = []core.Reaction{reaction}

		cache := pagination.NewCache[core.Post]()
		timeline := loaded(t, cache, "timeline", timelineSrc)
		profile := loaded(t, cache, "user_posts/alice", profileSrc)

		profile.RemoveReactionLocally(core.NewRecordID("post", "2"), reaction.ID).Confirm()

		require.Empty(t, find(profile.Items(), "2").Reactions)
		require.Equal(t, []core.Reaction{reaction}, find(timeline.Items(), "2").Reactions)
	})

	t.Run("pending mutation survives a refetch", func(t *testing.T) {
		t.Parallel()

		src := newSource("1", "2")
		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", src)

		p := ctl.AddReactionLocally(core.NewRecordID("post", "1"), core.ReactionHeart, "alice")

		ctl.Reset()
		require.NoError(t, ctl.Load(t.Context()))
		require.Equal(t, 1, countKind(find(ctl.Items(), "1"), core.ReactionHeart))

		p.Revert()
		require.Equal(t, 0, countKind(find(ctl.Items(), "1"), core.ReactionHeart))
	})

	t.Run("server copy of the reaction is not duplicated", func(t *testing.T) {
		t.Parallel()

		src := newSource("1")
		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", src)

		p := ctl.AddReactionLocally(core.NewRecordID("post", "1"), core.ReactionHeart, "alice")

		src.mu.Lock()
		src.posts[0].Reactions = []core.Reaction{p.Reaction()}
		src.mu.Unlock()

		ctl.Reset()
		require.NoError(t, ctl.Load(t.Context()))
		require.Len(t, find(ctl.Items(), "1").Reactions, 1)
	})
}

func TestPending_RemoveReaction(t *testing.T) {
	t.Parallel()

	reactions := []core.Reaction{
		{ID: core.NewRecordID("reacted", "a"), Kind: core.ReactionGood, ReactedBy: core.Reactor{Username: "bob"}},
		{ID: core.NewRecordID("reacted", "b"), Kind: core.ReactionHeart, ReactedBy: core.Reactor{Username: "alice"}},
		{ID: core.NewRecordID("reacted", "c"), Kind: core.ReactionSad, ReactedBy: core.Reactor{Username: "carol"}},
	}

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		src := newSource("1")
		src.posts[0].Reactions = reactions
		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", src)
		before := ctl.Items()

		p := ctl.RemoveReactionLocally(core.NewRecordID("post", "1"), core.NewRecordID("reacted", "b"))
		require.Equal(t, core.ReactionHeart, p.Reaction().Kind)
		require.Equal(t, []core.Reaction{reactions[0], reactions[2]}, find(ctl.Items(), "1").Reactions)

		p.Revert()
		require.Equal(t, before, ctl.Items())
	})

	t.Run("add then remove returns to the start", func(t *testing.T) {
		t.Parallel()

		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", newSource("1"))
		before := ctl.Items()
		item := core.NewRecordID("post", "1")

		added := ctl.AddReactionLocally(item, core.ReactionHeart, "alice")
		added.Confirm()

		removed := ctl.RemoveReactionLocally(item, added.Reaction().ID)
		removed.Confirm()

		require.Equal(t, before, ctl.Items())
	})

	t.Run("unknown reaction is a no-op", func(t *testing.T) {
		t.Parallel()

		ctl := loaded(t, pagination.NewCache[core.Post](), "timeline", newSource("1"))
		before := ctl.Items()

		p := ctl.RemoveReactionLocally(core.NewRecordID("post", "1"), core.NewRecordID("reacted", "missing"))
		require.Equal(t, before, ctl.Items())

		p.Revert()
		require.Equal(t, before, ctl.Items())
	})
}
