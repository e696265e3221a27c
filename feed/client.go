// Package feed talks to the upstream status feed and turns raw post HTML
// into text that can be read aloud.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tootcast/models"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	statusesPath  = "/statuses"
	userAgent     = "tootcast/1.0"
	maxRetryDelay = 5 * time.Second
)

// StatusError is returned when the feed answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed returned status %s", e.Status)
}

type Client struct {
	httpClient *http.Client
	accountURL string
	retries    uint64
}

// NewClient creates a feed client for the account at accountURL, e.g.
// https://mastodon.social/api/v1/accounts/109302. Every request is bounded
// by timeout and transient failures are retried up to retries times.
func NewClient(accountURL string, timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}

	return &Client{
		accountURL: strings.TrimSuffix(accountURL, "/"),
		retries:    uint64(retries),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchStatuses returns the account's recent posts, excluding replies
func (c *Client) FetchStatuses(ctx context.Context) ([]models.Post, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = maxRetryDelay
	b.Multiplier = 2

	var posts []models.Post

	operation := func() error {
		var err error
		posts, err = c.fetchOnce(ctx)
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.WithFields(log.Fields{
			"url":   c.accountURL,
			"error": err,
			"wait":  wait,
		}).Warn("Fetching statuses failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return posts, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]models.Post, error) {
	url := c.accountURL + statusesPath + "?exclude_replies=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statuses from %s: %w", c.accountURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		// Client errors will not go away by asking again
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}

	var posts []models.Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode statuses: %w", err))
	}

	return posts, nil
}
