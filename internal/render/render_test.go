package render_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"murmur/internal/core"
	"murmur/internal/render"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestAge(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		-time.Second:                    "0 seconds",
		0:                               "0 seconds",
		59 * time.Second:                "59 seconds",
		time.Minute:                     "1 minutes",
		59*time.Minute + 59*time.Second: "59 minutes",
		time.Hour:                       "1 hours",
		23 * time.Hour:                  "23 hours",
		24 * time.Hour:                  "1 days",
		10 * 24 * time.Hour:             "10 days",
	}

	for d, want := range cases {
		t.Run(d.String(), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, want, render.Age(d))
		})
	}
}

func TestReactionLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "no reactions", render.ReactionLine(nil, "alice"))

	line := render.ReactionLine([]core.Reaction{
		{Kind: core.ReactionWow, ReactedBy: core.Reactor{Username: "bob"}},
		{Kind: core.ReactionGood, ReactedBy: core.Reactor{Username: "alice"}},
		{Kind: core.ReactionWow, ReactedBy: core.Reactor{Username: "carol"}},
	}, "alice")
	require.Equal(t, "good 1*  wow 2", line)
}

func TestHeader(t *testing.T) {
	t.Parallel()

	author := core.User{Username: "alice", DisplayName: "Alice"}
	require.Equal(t, "Alice @alice · 5 minutes ago", render.Header(author, now.Add(-5*time.Minute), now))

	author.DisplayName = ""
	require.Equal(t, "alice @alice · 3 hours ago", render.Header(author, now.Add(-3*time.Hour), now))
}

func post() core.Post {
	return core.Post{
		ID:        core.NewRecordID("post", "p1"),
		CreatedBy: core.User{Username: "alice", DisplayName: "Alice"},
		CreatedAt: now.Add(-30 * time.Second),
		Content:   "hello\nworld",
		Reactions: []core.Reaction{
			{ID: core.NewRecordID("reacted", "r1"), Kind: core.ReactionHeart, ReactedBy: core.Reactor{Username: "bob"}},
		},
		NumReplies: 1,
	}
}

func TestPrinter_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := render.NewPrinter(&buf, render.FormatText, clock)
	require.NoError(t, err)

	require.NoError(t, p.ForUser("bob").Posts([]core.Post{post()}, 3))
	require.Equal(t, "[3] Alice @alice · 30 seconds ago\n"+
		"    hello\n"+
		"    world\n"+
		"    heart 1* · 1 reply\n"+
		"    post:p1\n\n", buf.String())

	buf.Reset()
	require.NoError(t, p.PostDetail(core.PostDetail{
		Post: post(),
		Replies: []core.Reply{{
			ID:        core.NewRecordID("reply", "x"),
			CreatedBy: core.User{Username: "bob", DisplayName: "Bob"},
			CreatedAt: now.Add(-2 * 24 * time.Hour),
			ReplyTo:   []core.RecordID{core.NewRecordID("post", "p1")},
			Content:   "hi",
		}},
	}))
	require.Contains(t, buf.String(), "Alice @alice · 30 seconds ago\n")
	require.Contains(t, buf.String(), "    [1] Bob @bob · 2 days ago\n        hi\n        no reactions\n")
	require.NotContains(t, buf.String(), "replying to")

	buf.Reset()
	p.Message("signed out %s", "alice")
	require.Equal(t, "signed out alice\n", buf.String())
}

func TestPrinter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := render.NewPrinter(&buf, render.FormatJSON, clock)
	require.NoError(t, err)

	require.NoError(t, p.Posts([]core.Post{post()}, 1))

	var decoded []core.Post
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, post().ID, decoded[0].ID)
	require.Equal(t, post().Reactions, decoded[0].Reactions)

	buf.Reset()
	p.Message("ignored")
	require.Empty(t, buf.String())
}

func TestPrinter_PP(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := render.NewPrinter(&buf, render.FormatPP, clock)
	require.NoError(t, err)

	require.NoError(t, p.Session(core.Session{Username: "alice"}))
	require.Contains(t, buf.String(), "alice")
}

func TestPrinter_Profile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := render.NewPrinter(&buf, render.FormatText, clock)
	require.NoError(t, err)

	require.NoError(t, p.Profile(render.Profile{
		User: core.UserDetail{
			Username:    "alice",
			DisplayName: "Alice",
			CreatedAt:   now.Add(-3 * 24 * time.Hour),
			Biography:   "hi there",
		},
		Posts: []core.Post{post()},
	}))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "Alice (@alice)\njoined 3 days ago\nhi there\n\nposts (1)\n\n[1] Alice"))
	require.True(t, strings.HasSuffix(out, "replies (0)\n\n"))
}

func TestPrinter_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := render.NewPrinter(&bytes.Buffer{}, "yaml", clock)
	require.ErrorIs(t, err, render.ErrUnknownFormat)
}

func TestEventPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := render.NewPrinter(&buf, render.FormatText, clock)
	require.NoError(t, err)

	printer := &render.EventPrinter{Printer: p}
	require.NoError(t, printer.Publish(t.Context(), core.ReactionEvent{
		Action:   "create",
		Kind:     core.ReactionSad,
		In:       core.NewRecordID("user", "bob"),
		Out:      core.NewRecordID("post", "p1"),
		Received: now,
	}))
	require.Equal(t, "12:00:00 create sad   user:bob -> post:p1\n", buf.String())
}
