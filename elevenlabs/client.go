// Package elevenlabs is a minimal client for the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "t0jbNlBVZ17f02VDIeMI"
	DefaultModelID = "eleven_multilingual_v2"

	textToSpeechPath = "/v1/text-to-speech/"

	headerAPIKey      = "xi-api-key"
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tootcast_vendor_requests_total",
		Help: "Text-to-speech requests sent to the vendor by response class",
	}, []string{"class"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tootcast_vendor_request_duration_seconds",
		Help:    "Duration of text-to-speech requests",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms, double each bucket
	})
)

var ErrTextEmpty = errors.New("text cannot be empty")

// VendorError is returned when the vendor answers with a non-2xx status.
// The response body is not inspected.
type VendorError struct {
	StatusCode int
	Status     string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("failed to request tts from vendor: %s", e.Status)
}

type Options struct {
	BaseURL string
	APIKey  string
	VoiceID string
	ModelID string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	voiceID    string
	modelID    string
}

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// NewClient creates a vendor client. Empty options fall back to the defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.VoiceID == "" {
		opts.VoiceID = DefaultVoiceID
	}
	if opts.ModelID == "" {
		opts.ModelID = DefaultModelID
	}

	return &Client{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		voiceID: opts.VoiceID,
		modelID: opts.ModelID,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Synthesize converts text to speech and returns the raw audio bytes
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	body, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: c.modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + textToSpeechPath + c.voiceID

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAccept, contentTypeMPEG)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to send request to vendor: %w", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithFields(log.Fields{
			"status": resp.Status,
			"voice":  c.voiceID,
			"model":  c.modelID,
		}).Warn("Vendor rejected text-to-speech request")
		return nil, &VendorError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	return audio, nil
}
