package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"murmur/internal/cmd/flags"
	"murmur/internal/core"
	"murmur/internal/metrics"
	"murmur/internal/reactions"
	"murmur/internal/render"
)

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "Follow reactions live, print them or forward them to NATS JetStream with --forward-events",
	Action: func(ctx context.Context, c *cli.Command) error {
		services := []pal.ServiceDef{
			pal.Provide(&reactions.Watcher{}),
		}

		if c.Bool(flags.ForwardEvents.Name) {
			services = append(services, pal.Provide[core.ReactionPublisher](&reactions.NATSPublisher{}))
		} else {
			services = append(services, pal.Provide[core.ReactionPublisher](&render.EventPrinter{}))
		}
		if c.String(flags.MetricsAddr.Name) != "" {
			services = append(services, pal.Provide(&metrics.HTTPServer{}))
		}

		return run(ctx, c, services...)
	},
}
