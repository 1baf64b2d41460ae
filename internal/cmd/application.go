package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"murmur/internal/cmd/flags"
	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/database"
	"murmur/internal/feed"
	"murmur/internal/nats"
	"murmur/internal/reactions"
	"murmur/internal/render"
	"murmur/internal/session"
	"murmur/pkg/clicfg"
)

const VERSION = "0.1.0"

var cmd = &cli.Command{
	Name:    "murmur",
	Usage:   "murmur is a terminal client for a small social network",
	Version: VERSION,
	Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
		if err := initLogger(c.String(flags.LogLevel.Name), c.String(flags.Profile.Name)); err != nil {
			return ctx, err
		}
		return ctx, nil
	},
	Flags: flags.Global,
	Commands: []*cli.Command{
		signupCmd,
		signinCmd,
		signoutCmd,
		whoamiCmd,
		statusCmd,
		timelineCmd,
		userCmd,
		postCmd,
		composeCmd,
		replyCmd,
		reactCmd,
		browseCmd,
		watchCmd,
	},
}

func Run() {
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, core.ErrRedirected) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func parseConfig(c *cli.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if err := clicfg.ParseFlags(c, cfg); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("invalid page size: %d", cfg.PageSize)
	}
	if cfg.FetchRetries < 0 {
		return nil, fmt.Errorf("invalid fetch retries: %d", cfg.FetchRetries)
	}
	return cfg, nil
}

// run starts the container with the services every command needs plus the given ones and blocks until
// the runners are done.
func run(ctx context.Context, c *cli.Command, services ...pal.ServiceDef) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	services = append(services,
		pal.Provide(cfg),
		session.Provide(cfg.SessionBackend),
		pal.Provide(&database.Facade{}),
		pal.Provide(&feed.Feed{}),
		pal.Provide(&reactions.Service{}),
		pal.Provide(&render.Printer{}),
		pal.Provide[core.LoginRedirector](&loginPrompt{}),
	)
	if cfg.SessionBackend == config.SessionBackendNATS || cfg.ForwardEvents {
		services = append(services, nats.Provide())
	}

	return pal.New(services...).
		InjectSlog().
		InitTimeout(2*time.Second).
		HealthCheckTimeout(1*time.Second).
		ShutdownTimeout(10*time.Second).
		Run(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// runAction runs a single action as the only runner of the container.
func runAction(ctx context.Context, c *cli.Command, fn func(ctx context.Context, a *action) error,
	services ...pal.ServiceDef) error {
	return run(ctx, c, append(services, pal.Provide(&action{fn: fn}))...)
}
