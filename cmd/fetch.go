/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"tootcast/config"
	"tootcast/feed"
	"tootcast/ingest"
	"tootcast/models"
	"tootcast/store"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// fetchCmd runs a single ingestion cycle and prints what it stored
func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch the feed once and print the resulting items",
		Description: `Runs one polling cycle against the configured account and prints
every item that would be cached, after filtering and normalization.

Useful to check the quote extraction and length settings before running
the server. Returns each item as a JSON object on a single line. Use a
tool like jq to process the output.

Prints all other log messages to stderr.`,
		Flags: feedFlags(),
		Action: func(ctx *cli.Context) error {
			// Keep stdout for items only
			log.SetOutput(os.Stderr)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.AccountURL == "" {
				return config.ErrAccountURLRequired
			}

			s := store.New()
			ingester := ingest.New(
				feed.NewClient(cfg.AccountURL, cfg.RequestTimeout.Duration, cfg.FetchRetries),
				s,
				feed.NewNormalizer(cfg.WrapWidth, cfg.ExtractQuoted),
				ingest.Config{
					Interval:  cfg.PollInterval.Duration,
					MaxAge:    cfg.MaxAge.Duration,
					MinLength: cfg.MinLength,
				},
				nil,
			)

			result, err := ingester.RunOnce(ctx.Context)
			if err != nil {
				return err
			}

			items, err := s.Items()
			if err != nil {
				return err
			}

			var printErr error
			for i := range items {
				printErr = errors.Join(printErr, printStdout(&items[i]))
			}

			log.WithFields(log.Fields{
				"fetched":  result.Fetched,
				"filtered": result.Filtered,
				"dropped":  result.Dropped,
				"inserted": result.Inserted,
			}).Info("Fetch done")

			return printErr
		},
	}
}

func printStdout(item *models.Item) error {
	// Print as single JSON string on a single line
	itemJson, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(itemJson))
	return err
}
