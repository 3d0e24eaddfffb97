package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/pelusa-v/roomchat/internal/dao"
	"github.com/pelusa-v/roomchat/internal/notify"
)

func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the chat tables and the job queue schema",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			db, err := dao.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			store := dao.New(db)
			defer store.Close()
			if err := store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to migrate tables: %w", err)
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("tables migrated")

			if cfg.Notify.Backend != "river" {
				return nil
			}
			return notify.Migrate(c.Context, cfg.Notify.DatabaseURL)
		},
	}
}
