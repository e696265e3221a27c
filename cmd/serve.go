/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tootcast/config"
	"tootcast/elevenlabs"
	"tootcast/feed"
	"tootcast/ingest"
	"tootcast/relay"
	"tootcast/server"
	"tootcast/store"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd starts the ingestion loop and the HTTP server
func serveCmd() *cli.Command {
	flags := append(feedFlags(), vendorFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "not-found-text",
			Usage:   "Text spoken when every item has been served",
			Value:   config.DefaultNotFoundText,
			EnvVars: []string{"NOT_FOUND_TEXT"},
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to listen on",
			Value:   config.DefaultPort,
			EnvVars: []string{"PORT"},
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the tootcast speech endpoint",
		Description: `Starts the tootcast HTTP server and the feed polling loop.

Every GET / request claims one post that has not been served yet and
returns it as audio. When all posts have been served the fallback text
is spoken instead.`,
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return serve(ctx.Context, cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	log.Info("Starting tootcast...")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Channel for store events consumed by the SSE broadcaster
	events := make(chan interface{}, 100)

	s := store.New()
	bc := server.NewBroadcaster()

	ingester := ingest.New(
		feed.NewClient(cfg.AccountURL, cfg.RequestTimeout.Duration, cfg.FetchRetries),
		s,
		feed.NewNormalizer(cfg.WrapWidth, cfg.ExtractQuoted),
		ingest.Config{
			Interval:  cfg.PollInterval.Duration,
			MaxAge:    cfg.MaxAge.Duration,
			MinLength: cfg.MinLength,
		},
		events,
	)

	synthesizer := elevenlabs.NewClient(elevenlabs.Options{
		BaseURL: cfg.VendorURL,
		APIKey:  cfg.APIKey,
		VoiceID: cfg.VoiceID,
		ModelID: cfg.ModelID,
		Timeout: cfg.RequestTimeout.Duration,
	})

	app := server.Server(&server.ServerConfig{
		Relay:       relay.New(s, synthesizer, cfg.NotFoundText, events),
		Store:       s,
		Broadcaster: bc,
	})

	var broadcastWg, ingestWg sync.WaitGroup

	broadcastWg.Add(1)
	go func() {
		defer broadcastWg.Done()
		bc.Run(events)
	}()

	ingestWg.Add(1)
	go func() {
		defer ingestWg.Done()
		if err := ingester.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Ingestion loop stopped: %v", err)
		}
	}()

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Infof("Listening on %s", addr)
		listenErr <- app.Listen(addr)
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Info("Gracefully shutting down...")
	case err = <-listenErr:
		log.Errorf("Server stopped: %v", err)
		stop()
	}

	// SSE streams only end once their channel is closed
	bc.Shutdown()
	if shutdownErr := app.ShutdownWithTimeout(60 * time.Second); shutdownErr != nil {
		log.Errorf("Failed to shut down server: %v", shutdownErr)
	}

	// No sender may be left when the event channel is closed
	ingestWg.Wait()
	close(events)
	broadcastWg.Wait()

	log.Info("Done!")
	return err
}
