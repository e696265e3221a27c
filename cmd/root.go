/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "tootcast",
		Usage: "Read the latest posts of a feed aloud",
		Description: `Tootcast follows the recent posts of a single account and turns
		them into speech on request.

		A background loop polls the account's statuses, drops posts that are
		old, short or cannot be parsed, and caches the rest in memory. Every
		request to the HTTP endpoint claims one post that has not been read
		yet and returns it as MP3 audio synthesized by ElevenLabs.

		Flags can generally be set via environment variables, e.g.:

		--account-url => ACCOUNT_URL=https://mastodon.social/api/v1/accounts/1
		--port => PORT=8080

		A .env file in the working directory is loaded before flags are read.
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
				EnvVars: []string{"TOOTCAST_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Log as JSON instead of text",
				EnvVars: []string{"LOG_JSON"},
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			sayCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	// Values from .env never override the real environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env file: %v", err)
	}

	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
