package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"murmur/internal/core"
	"murmur/internal/pagination"
	"murmur/internal/render"
)

var composeCmd = &cli.Command{
	Name:      "compose",
	Usage:     "Publish a post",
	ArgsUsage: "<text>",
	Action: func(ctx context.Context, c *cli.Command) error {
		content := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
		if content == "" {
			return errors.New("the post is empty")
		}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			post, err := a.Feed.CreatePost(ctx, content)
			if err != nil {
				return err
			}
			return a.printer(ctx).Posts([]core.Post{post}, 0)
		})
	},
}

var replyCmd = &cli.Command{
	Name:      "reply",
	Usage:     "Reply to a post",
	ArgsUsage: "<post-id> <text>",
	Action: func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() < 2 {
			return errors.New("expected a post id and the reply text")
		}
		post, err := parseItemID(c.Args().First(), "post")
		if err != nil {
			return err
		}
		content := strings.TrimSpace(strings.Join(c.Args().Tail(), " "))
		if content == "" {
			return errors.New("the reply is empty")
		}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			reply, err := a.Feed.CreateReply(ctx, post, content)
			if err != nil {
				return err
			}
			return a.printer(ctx).Replies([]core.Reply{reply}, 0)
		})
	},
}

var reactCmd = &cli.Command{
	Name:      "react",
	Usage:     fmt.Sprintf("Toggle a reaction on a post or reply, kind is one of %v", core.ReactionKinds),
	ArgsUsage: "<item-id> <kind>",
	Action: func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 2 {
			return errors.New("expected an item id and a reaction kind")
		}
		item, err := parseItemID(c.Args().Get(0), "")
		if err != nil {
			return err
		}
		kind, err := core.ParseReactionKind(c.Args().Get(1))
		if err != nil {
			return err
		}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			return a.toggle(ctx, item, kind)
		})
	},
}

// toggle flips the reaction on a single item. The item is cached on its own so the optimistic change has a
// page to land on, only its id and reactions matter.
func (a *action) toggle(ctx context.Context, item core.RecordID, kind core.ReactionKind) error {
	list, err := a.Feed.Reactions(ctx, item)
	if err != nil {
		return err
	}

	ctl := pagination.NewCache[core.Post]().Controller("item/"+item.String(), func(context.Context, core.RecordID, int) ([]core.Post, error) {
		return []core.Post{{ID: item, Reactions: list}}, nil
	}, pagination.Options{PageSize: 1, Logger: a.Logger})
	if err := ctl.Load(ctx); err != nil {
		return err
	}

	added, err := a.Reactions.Toggle(ctx, ctl, item, kind)
	if err != nil {
		return err
	}

	verb := "removed"
	if added {
		verb = "added"
	}

	s, _ := a.Database.CurrentSession(ctx)
	a.Printer.Message("%s %s on %s: %s", verb, kind, item, render.ReactionLine(ctl.Items()[0].Reactions, s.Username))
	return nil
}
