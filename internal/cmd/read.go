package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"murmur/internal/cmd/flags"
	"murmur/internal/core"
	"murmur/internal/feed"
	"murmur/internal/pagination"
	"murmur/internal/render"
)

var timelineCmd = &cli.Command{
	Name:  "timeline",
	Usage: "Show the latest posts, newest first",
	Flags: []cli.Flag{flags.Pages, flags.User},
	Action: func(ctx context.Context, c *cli.Command) error {
		pages := int(c.Int(flags.Pages.Name))
		if pages < 1 {
			return fmt.Errorf("invalid pages: %d", pages)
		}
		filter := feed.Filter{CreatedBy: c.String(flags.User.Name)}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			ctl := a.postsController(pagination.NewCache[core.Post](), filter)
			if err := loadPages(ctx, ctl, pages); err != nil {
				return err
			}

			if err := a.printer(ctx).Posts(ctl.Items(), 1); err != nil {
				return err
			}
			if ctl.HasNextPage() {
				a.Printer.Message("more posts with --pages %d", pages+1)
			}
			return nil
		})
	},
}

var userCmd = &cli.Command{
	Name:      "user",
	Usage:     "Show the profile of a user with their latest posts and replies",
	ArgsUsage: "<username>",
	Action: func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one username, got %d arguments", c.Args().Len())
		}
		username := c.Args().First()

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			user, err := a.Feed.UserDetail(ctx, username)
			if err != nil {
				return err
			}

			filter := feed.Filter{CreatedBy: username}
			posts := a.postsController(pagination.NewCache[core.Post](), filter)
			replies := a.repliesController(pagination.NewCache[core.Reply](), filter)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return posts.Load(gctx) })
			g.Go(func() error { return replies.Load(gctx) })
			if err := g.Wait(); err != nil {
				return err
			}

			return a.printer(ctx).Profile(render.Profile{
				User:    user,
				Posts:   posts.Items(),
				Replies: replies.Items(),
			})
		})
	},
}

var postCmd = &cli.Command{
	Name:      "post",
	Usage:     "Show a post with all of its replies",
	ArgsUsage: "<post-id>",
	Action: func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one post id, got %d arguments", c.Args().Len())
		}
		id, err := parseItemID(c.Args().First(), "post")
		if err != nil {
			return err
		}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			detail, err := a.Feed.PostDetail(ctx, id)
			if err != nil {
				return err
			}
			return a.printer(ctx).PostDetail(detail)
		})
	},
}
