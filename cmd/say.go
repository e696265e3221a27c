/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"tootcast/config"
	"tootcast/elevenlabs"

	"github.com/cqroot/prompt"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// sayCmd synthesizes a single text with the configured voice
func sayCmd() *cli.Command {
	flags := append(vendorFlags(),
		&cli.StringFlag{
			Name:    "text",
			Aliases: []string{"t"},
			Usage:   "Text to speak, asked for interactively when empty",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Value:   "speech.mp3",
			Usage:   "File the audio is written to",
		},
		&cli.DurationFlag{
			Name:    "request-timeout",
			Usage:   "Timeout for the vendor request",
			Value:   config.DefaultRequestTimeout,
			EnvVars: []string{"REQUEST_TIMEOUT"},
		},
	)

	return &cli.Command{
		Name:  "say",
		Usage: "Synthesize a text with the configured voice",
		Description: `Sends a single text to ElevenLabs and writes the returned audio
to a file. Handy to try out voice and model settings.`,
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				return config.ErrAPIKeyRequired
			}

			text := ctx.String("text")
			if text == "" {
				text, err = prompt.New().Ask("Text:").Input(cfg.NotFoundText)
				if err != nil {
					return err
				}
			}
			if text == "" {
				return errors.New("please specify a text to speak")
			}

			client := elevenlabs.NewClient(elevenlabs.Options{
				BaseURL: cfg.VendorURL,
				APIKey:  cfg.APIKey,
				VoiceID: cfg.VoiceID,
				ModelID: cfg.ModelID,
				Timeout: cfg.RequestTimeout.Duration,
			})

			audio, err := client.Synthesize(ctx.Context, text)
			if err != nil {
				return fmt.Errorf("could not synthesize text: %w", err)
			}

			out := ctx.String("out")
			if err := os.WriteFile(out, audio, 0o644); err != nil {
				return fmt.Errorf("could not write audio to %s: %w", out, err)
			}

			log.WithFields(log.Fields{
				"out":   out,
				"bytes": len(audio),
			}).Info("Wrote audio")
			return nil
		},
	}
}
