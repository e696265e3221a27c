package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultVendorURL      = "https://api.elevenlabs.io"
	DefaultVoiceID        = "t0jbNlBVZ17f02VDIeMI"
	DefaultModelID        = "eleven_multilingual_v2"
	DefaultNotFoundText   = "No new items."
	DefaultPollInterval   = time.Minute
	DefaultMaxAge         = 5 * 24 * time.Hour
	DefaultMinLength      = 10
	DefaultWrapWidth      = 80
	DefaultRequestTimeout = 30 * time.Second
	DefaultFetchRetries   = 2
	DefaultPort           = 8080
	DefaultLogLevel       = "info"
)

var (
	ErrAccountURLRequired = errors.New("ACCOUNT_URL is not set")
	ErrAPIKeyRequired     = errors.New("ELEVEN_LABS_API_KEY is not set")
)

// Duration is a time.Duration read from strings like "90s" or "1h30m"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds every setting of the service
type Config struct {
	// Feed
	AccountURL   string   `toml:"account_url"`
	PollInterval Duration `toml:"poll_interval"`
	MaxAge       Duration `toml:"max_age"`
	MinLength    int      `toml:"min_content_length"`
	FetchRetries int      `toml:"fetch_retries"`

	// Normalization
	ExtractQuoted bool `toml:"extract_text_between_double_quotes"`
	WrapWidth     int  `toml:"wrap_width"`

	// Vendor
	VendorURL    string `toml:"vendor_url"`
	APIKey       string `toml:"eleven_labs_api_key"`
	VoiceID      string `toml:"voice_id"`
	ModelID      string `toml:"model_id"`
	NotFoundText string `toml:"not_found_text"`

	// Server and process
	RequestTimeout Duration `toml:"request_timeout"`
	Port           int      `toml:"port"`
	LogLevel       string   `toml:"log_level"`
	LogJSON        bool     `toml:"log_json"`
}

// Default returns a config with every optional setting filled in
func Default() *Config {
	return &Config{
		PollInterval:   Duration{DefaultPollInterval},
		MaxAge:         Duration{DefaultMaxAge},
		MinLength:      DefaultMinLength,
		FetchRetries:   DefaultFetchRetries,
		WrapWidth:      DefaultWrapWidth,
		VendorURL:      DefaultVendorURL,
		VoiceID:        DefaultVoiceID,
		ModelID:        DefaultModelID,
		NotFoundText:   DefaultNotFoundText,
		RequestTimeout: Duration{DefaultRequestTimeout},
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
	}
}

// LoadConfig reads a TOML file on top of the defaults. Keys missing from
// the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	var errs []error

	if c.AccountURL == "" {
		errs = append(errs, ErrAccountURLRequired)
	}
	if c.APIKey == "" {
		errs = append(errs, ErrAPIKeyRequired)
	}
	if c.PollInterval.Duration <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.MaxAge.Duration <= 0 {
		errs = append(errs, fmt.Errorf("max age must be positive, got %s", c.MaxAge))
	}
	if c.MinLength < 0 {
		errs = append(errs, fmt.Errorf("minimum content length must not be negative, got %d", c.MinLength))
	}
	if c.FetchRetries < 0 {
		errs = append(errs, fmt.Errorf("fetch retries must not be negative, got %d", c.FetchRetries))
	}
	if c.RequestTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}

	return errors.Join(errs...)
}
