package core_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"murmur/internal/core"
)

func TestParseRecordID(t *testing.T) {
	t.Parallel()

	cases := map[string]core.RecordID{
		"post:abc":                    core.NewRecordID("post", "abc"),
		"post:⟨0190b8c2-7d1e-7000⟩":   core.NewRecordID("post", "0190b8c2-7d1e-7000"),
		"reacted:`r-1`":               core.NewRecordID("reacted", "r-1"),
		"reply:u'0190b8c2-7d1e-7000'": core.NewRecordID("reply", "0190b8c2-7d1e-7000"),
		`reply:u"0190"`:               core.NewRecordID("reply", "0190"),
	}

	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			got, err := core.ParseRecordID(in)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}

	for _, in := range []string{"", "post", "post:", ":abc", "post:⟨⟩"} {
		t.Run("invalid "+in, func(t *testing.T) {
			t.Parallel()

			_, err := core.ParseRecordID(in)
			require.ErrorIs(t, err, core.ErrInvalidRecordID)
		})
	}
}

func TestRecordID_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "user:alice", core.NewRecordID("user", "alice").String())
	require.Equal(t, "post:⟨0190-abc⟩", core.NewRecordID("post", "0190-abc").String())
	require.Equal(t, "post:⟨1⟩", core.NewRecordID("post", "1").String())
	require.Empty(t, core.RecordID{}.String())
}

func TestRecordID_JSON(t *testing.T) {
	t.Parallel()

	var post core.Post
	err := json.Unmarshal([]byte(`{
		"id": "post:⟨0190-abc⟩",
		"content": "hello",
		"createdBy": {"id": "user:alice", "username": "alice"},
		"reactions": [{"id": "reacted:r1", "kind": "heart", "reactedBy": {"username": "bob"}}],
		"numReplies": 2
	}`), &post)
	require.NoError(t, err)

	require.Equal(t, core.NewRecordID("post", "0190-abc"), post.Key())
	require.Equal(t, core.NewRecordID("user", "alice"), post.CreatedBy.ID)
	require.Equal(t, core.ReactionHeart, post.Reactions[0].Kind)
	require.Equal(t, 2, post.NumReplies)

	data, err := json.Marshal(post.ID)
	require.NoError(t, err)
	require.JSONEq(t, `"post:⟨0190-abc⟩"`, string(data))

	var reply core.Reply
	require.NoError(t, json.Unmarshal([]byte(`{"id": "reply:r1", "replyTo": [], "createdBy": {"id": null}}`), &reply))
	_, ok := reply.Parent()
	require.False(t, ok)
}

func TestParseReactionKind(t *testing.T) {
	t.Parallel()

	kind, err := core.ParseReactionKind("laugh")
	require.NoError(t, err)
	require.Equal(t, core.ReactionLaugh, kind)

	_, err = core.ParseReactionKind("angry")
	require.ErrorIs(t, err, core.ErrInvalidReactionKind)
}

func TestIsLoginRequired(t *testing.T) {
	t.Parallel()

	require.True(t, core.IsLoginRequired(core.ErrUnauthenticated))
	require.True(t, core.IsLoginRequired(core.ErrTokenExpired))
	require.True(t, core.IsLoginRequired(core.ErrRedirected))
	require.False(t, core.IsLoginRequired(core.ErrUnknown))
	require.False(t, core.IsLoginRequired(core.ErrNotFound))
}
