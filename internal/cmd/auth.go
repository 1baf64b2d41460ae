package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"murmur/internal/cmd/flags"
	"murmur/internal/core"
	"murmur/internal/render"
	"murmur/internal/session"
)

var signupCmd = &cli.Command{
	Name:      "signup",
	Usage:     "Create an account and sign in",
	ArgsUsage: "<username>",
	Flags:     []cli.Flag{flags.Password},
	Action: func(ctx context.Context, c *cli.Command) error {
		username, password, err := credentials(c)
		if err != nil {
			return err
		}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			if _, err := a.Database.SignUp(ctx, username, password); err != nil {
				return err
			}
			return a.Printer.Session(core.Session{Username: username})
		})
	},
}

var signinCmd = &cli.Command{
	Name:      "signin",
	Usage:     "Sign in and store the session of the profile",
	ArgsUsage: "<username>",
	Flags:     []cli.Flag{flags.Password},
	Action: func(ctx context.Context, c *cli.Command) error {
		username, password, err := credentials(c)
		if err != nil {
			return err
		}

		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			_, err := a.Database.SignIn(ctx, username, password)
			if errors.Is(err, core.ErrInvalidCredentials) {
				return errors.New("invalid username or password")
			}
			if err != nil {
				return err
			}
			return a.Printer.Session(core.Session{Username: username})
		})
	},
}

var signoutCmd = &cli.Command{
	Name:  "signout",
	Usage: "Forget the session of the profile",
	Action: func(ctx context.Context, c *cli.Command) error {
		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			if err := a.Database.SignOut(ctx); err != nil {
				return err
			}
			a.Printer.Message("signed out")
			return nil
		})
	},
}

var whoamiCmd = &cli.Command{
	Name:  "whoami",
	Usage: "Show the signed in user and check the session with the database",
	Action: func(ctx context.Context, c *cli.Command) error {
		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			conn, err := a.Database.AuthenticatedConnection(ctx)
			if err != nil {
				if core.IsLoginRequired(err) {
					a.Printer.Message("not signed in")
				}
				return err
			}

			if err := a.Printer.Session(core.Session{Username: conn.Username}); err != nil {
				return err
			}
			a.Printer.Message("user id %s", conn.UserID)

			s, err := a.Database.CurrentSession(ctx)
			if err != nil {
				return err
			}
			if exp, ok, err := session.TokenExpiry(s.Token); err == nil && ok {
				a.Printer.Message("session expires in %s", render.Age(time.Until(exp)))
			}
			return nil
		})
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "Check that the database is up and show its version",
	Action: func(ctx context.Context, c *cli.Command) error {
		return runAction(ctx, c, func(ctx context.Context, a *action) error {
			if err := a.Database.HealthCheck(ctx); err != nil {
				return fmt.Errorf("database is unhealthy: %w", err)
			}
			version, err := a.Database.Version(ctx)
			if err != nil {
				return err
			}
			a.Printer.Message("%s is up, version %s", a.Config.Endpoint, version)
			return nil
		})
	},
}

func credentials(c *cli.Command) (string, string, error) {
	if c.Args().Len() != 1 {
		return "", "", fmt.Errorf("expected exactly one username, got %d arguments", c.Args().Len())
	}
	username := c.Args().First()
	password := c.String(flags.Password.Name)
	if username == "" || password == "" {
		return "", "", errors.New("username and password are required")
	}
	return username, password, nil
}
