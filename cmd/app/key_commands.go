package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/zero71st/farmgate/cmd/app/commands"
	"github.com/zero71st/farmgate/internal/app"
	"github.com/zero71st/farmgate/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "issue-key",
			Usage: "Issue a new API key for a user",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "user-id",
					Aliases:  []string{"u"},
					Required: true,
					Usage:    "Owner user ID (UUID)",
				},
				&cli.StringFlag{
					Name:     "label",
					Aliases:  []string{"l"},
					Required: true,
					Usage:    "Human-readable key label (e.g., ci-pipeline)",
				},
				&cli.IntFlag{
					Name:    "ttl-hours",
					Aliases: []string{"t"},
					Value:   0,
					Usage:   "Key lifetime in hours (0 means the key never expires)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunIssueKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("user-id"),
					cmd.String("label"),
					int(cmd.Int("ttl-hours")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "revoke-key",
			Usage: "Revoke an API key by ID",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "API key ID (UUID)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunRevokeKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "revoke-all-keys",
			Usage: "Revoke every active API key owned by a user",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "user-id",
					Aliases:  []string{"u"},
					Required: true,
					Usage:    "Owner user ID (UUID)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunRevokeAllKeys(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("user-id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clean-expired-keys",
			Usage: "Deactivate API keys that are past their expiry",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanExpiredKeys(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
