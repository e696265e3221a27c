package cmd

import (
	"fmt"

	"tootcast/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func feedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "account-url",
			Usage:   "Base URL of the account whose statuses are read",
			EnvVars: []string{"ACCOUNT_URL"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "Delay between two feed polls",
			Value:   config.DefaultPollInterval,
			EnvVars: []string{"POLL_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "max-age",
			Usage:   "Ignore posts created longer ago than this",
			Value:   config.DefaultMaxAge,
			EnvVars: []string{"MAX_AGE"},
		},
		&cli.IntFlag{
			Name:    "min-content-length",
			Usage:   "Ignore posts whose raw content is not longer than this",
			Value:   config.DefaultMinLength,
			EnvVars: []string{"MIN_CONTENT_LENGTH"},
		},
		&cli.IntFlag{
			Name:    "fetch-retries",
			Usage:   "Retries for a failed feed fetch within one poll",
			Value:   config.DefaultFetchRetries,
			EnvVars: []string{"FETCH_RETRIES"},
		},
		&cli.BoolFlag{
			Name:    "extract-quoted",
			Usage:   "Only keep the text between the first pair of double quotes",
			EnvVars: []string{"EXTRACT_TEXT_BETWEEN_DOUBLE_QUOTES"},
		},
		&cli.IntFlag{
			Name:    "wrap-width",
			Usage:   "Column at which post text is wrapped",
			Value:   config.DefaultWrapWidth,
			EnvVars: []string{"WRAP_WIDTH"},
		},
		&cli.DurationFlag{
			Name:    "request-timeout",
			Usage:   "Timeout for feed and vendor requests",
			Value:   config.DefaultRequestTimeout,
			EnvVars: []string{"REQUEST_TIMEOUT"},
		},
	}
}

func vendorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "ElevenLabs API key",
			EnvVars: []string{"ELEVEN_LABS_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "vendor-url",
			Usage:   "ElevenLabs API base URL",
			Value:   config.DefaultVendorURL,
			EnvVars: []string{"VENDOR_URL"},
		},
		&cli.StringFlag{
			Name:    "voice-id",
			Usage:   "ElevenLabs voice",
			Value:   config.DefaultVoiceID,
			EnvVars: []string{"VOICE_ID"},
		},
		&cli.StringFlag{
			Name:    "model-id",
			Usage:   "ElevenLabs model",
			Value:   config.DefaultModelID,
			EnvVars: []string{"MODEL_ID"},
		},
	}
}

// loadConfig merges defaults, the optional TOML file and every flag that
// was set on the command line or through the environment, then sets up logging.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	if path := ctx.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	stringFlags := map[string]*string{
		"account-url":    &cfg.AccountURL,
		"api-key":        &cfg.APIKey,
		"vendor-url":     &cfg.VendorURL,
		"voice-id":       &cfg.VoiceID,
		"model-id":       &cfg.ModelID,
		"not-found-text": &cfg.NotFoundText,
		"log-level":      &cfg.LogLevel,
	}
	for name, field := range stringFlags {
		if ctx.IsSet(name) {
			*field = ctx.String(name)
		}
	}

	intFlags := map[string]*int{
		"min-content-length": &cfg.MinLength,
		"fetch-retries":      &cfg.FetchRetries,
		"wrap-width":         &cfg.WrapWidth,
		"port":               &cfg.Port,
	}
	for name, field := range intFlags {
		if ctx.IsSet(name) {
			*field = ctx.Int(name)
		}
	}

	durationFlags := map[string]*config.Duration{
		"poll-interval":   &cfg.PollInterval,
		"max-age":         &cfg.MaxAge,
		"request-timeout": &cfg.RequestTimeout,
	}
	for name, field := range durationFlags {
		if ctx.IsSet(name) {
			field.Duration = ctx.Duration(name)
		}
	}

	if ctx.IsSet("extract-quoted") {
		cfg.ExtractQuoted = ctx.Bool("extract-quoted")
	}
	if ctx.IsSet("log-json") {
		cfg.LogJSON = ctx.Bool("log-json")
	}

	if err := configureLogging(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configureLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return nil
}
