package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "roomchat",
		Usage: "Real-time room chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the TOML configuration file",
				EnvVars: []string{"ROOMCHAT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			ServeCommand(),
			MigrateCommand(),
			ConfigCommand(),
		},
		// 默认启动服务
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("roomchat exited")
	}
}
