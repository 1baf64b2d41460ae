package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"murmur/internal/cmd/flags"
	"murmur/internal/core"
	"murmur/internal/feed"
	"murmur/internal/pagination"
	"murmur/internal/render"
)

const browseHelp = `commands:
  n                 load the next page
  r <n> <kind>      toggle a reaction on post n
  o <n>             open post n with its replies
  u <username>      switch to the posts of a user, u alone goes back to the timeline
  g                 reload from the newest post
  q                 quit`

var browseCmd = &cli.Command{
	Name:  "browse",
	Usage: "Page through posts interactively and react to them",
	Flags: []cli.Flag{flags.User},
	Action: func(ctx context.Context, c *cli.Command) error {
		filter := feed.Filter{CreatedBy: c.String(flags.User.Name)}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			b := &browser{action: a, cache: pagination.NewCache[core.Post](), in: os.Stdin}
			return b.run(ctx, filter)
		})
	},
}

// browser keeps one cache for the whole session, switching feeds keeps the pages already loaded.
type browser struct {
	*action

	cache *pagination.Cache[core.Post]
	ctl   *pagination.Controller[core.Post]
	in    io.Reader
}

func (b *browser) run(ctx context.Context, filter feed.Filter) error {
	lines := readLines(ctx, b.in)

	if err := b.open(ctx, filter); err != nil {
		return err
	}
	b.Printer.Message("%s", browseHelp)

	for {
		if b.Printer.Format() == render.FormatText {
			fmt.Print("> ")
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		quit, err := b.handle(ctx, strings.Fields(line))
		if quit {
			return nil
		}
		switch {
		case errors.Is(err, core.ErrRedirected):
			return err
		case err != nil:
			b.Printer.Message("error: %s", err)
		}
	}
}

func (b *browser) handle(ctx context.Context, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	switch args[0] {
	case "q", "quit":
		return true, nil
	case "n", "next":
		if !b.ctl.HasNextPage() {
			b.Printer.Message("no more posts")
			return false, nil
		}
		shown := len(b.ctl.Items())
		if err := b.ctl.SentinelVisible(ctx); err != nil {
			return false, err
		}
		return false, b.printer(ctx).Posts(b.ctl.Items()[shown:], shown+1)
	case "r", "react":
		if len(args) != 3 {
			return false, errors.New("usage: r <n> <kind>")
		}
		post, err := b.item(args[1])
		if err != nil {
			return false, err
		}
		kind, err := core.ParseReactionKind(args[2])
		if err != nil {
			return false, err
		}
		if _, err := b.Reactions.Toggle(ctx, b.ctl, post.ID, kind); err != nil {
			return false, err
		}
		index, _ := strconv.Atoi(args[1])
		updated, err := b.item(args[1])
		if err != nil {
			return false, err
		}
		return false, b.printer(ctx).Posts([]core.Post{updated}, index)
	case "o", "open":
		if len(args) != 2 {
			return false, errors.New("usage: o <n>")
		}
		post, err := b.item(args[1])
		if err != nil {
			return false, err
		}
		detail, err := b.Feed.PostDetail(ctx, post.ID)
		if err != nil {
			return false, err
		}
		return false, b.printer(ctx).PostDetail(detail)
	case "u", "user":
		filter := feed.Filter{}
		if len(args) > 1 {
			filter.CreatedBy = args[1]
		}
		return false, b.open(ctx, filter)
	case "g", "reload":
		b.ctl.Reset()
		return false, b.show(ctx)
	case "h", "help":
		b.Printer.Message("%s", browseHelp)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q, h shows the commands", args[0])
	}
}

func (b *browser) open(ctx context.Context, filter feed.Filter) error {
	b.ctl = b.postsController(b.cache, filter)
	return b.show(ctx)
}

func (b *browser) show(ctx context.Context) error {
	if err := b.ctl.Load(ctx); err != nil {
		return err
	}
	items := b.ctl.Items()
	if len(items) == 0 {
		b.Printer.Message("no posts yet")
		return nil
	}
	return b.printer(ctx).Posts(items, 1)
}

// item resolves the 1-based index shown next to a post.
func (b *browser) item(arg string) (core.Post, error) {
	n, err := strconv.Atoi(arg)
	items := b.ctl.Items()
	if err != nil || n < 1 || n > len(items) {
		return core.Post{}, fmt.Errorf("no post %s on screen", arg)
	}
	return items[n-1], nil
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}
