// Package ingest keeps the item store filled from the upstream feed.
package ingest

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"tootcast/feed"
	"tootcast/models"
	"tootcast/store"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultInterval  = time.Minute
	DefaultMaxAge    = 5 * 24 * time.Hour
	DefaultMinLength = 10
)

// Fetcher returns the most recent posts of the followed account
type Fetcher interface {
	FetchStatuses(ctx context.Context) ([]models.Post, error)
}

// Config holds configuration for the ingestion loop
type Config struct {
	// Interval is the delay between two cycles
	Interval time.Duration

	// MaxAge drops posts created longer ago than this
	MaxAge time.Duration

	// MinLength drops posts whose raw content is not longer than this many characters
	MinLength int
}

// CycleResult counts what happened to the posts of one cycle
type CycleResult struct {
	Fetched  int
	Filtered int
	Dropped  int
	Inserted int
	Known    int
}

type Ingester struct {
	fetcher    Fetcher
	store      *store.Store
	normalizer *feed.Normalizer
	config     Config
	events     chan<- interface{}

	// now is replaced in tests
	now func() time.Time
}

// New creates an ingester. Events about new items are sent to events when
// it is non-nil; sends never block the loop.
func New(fetcher Fetcher, s *store.Store, normalizer *feed.Normalizer, config Config, events chan<- interface{}) *Ingester {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.MinLength < 0 {
		config.MinLength = DefaultMinLength
	}

	return &Ingester{
		fetcher:    fetcher,
		store:      s,
		normalizer: normalizer,
		config:     config,
		events:     events,
		now:        time.Now,
	}
}

// Run repeats ingestion cycles until ctx is cancelled. Errors end the current
// cycle only.
func (i *Ingester) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"interval":  i.config.Interval,
		"maxAge":    i.config.MaxAge,
		"minLength": i.config.MinLength,
	}).Info("Starting ingestion loop")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Ingestion loop: Shutting down")
			return ctx.Err()
		case <-timer.C:
			result, err := i.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info("Ingestion loop: Shutting down")
					return ctx.Err()
				}
				log.WithFields(log.Fields{
					"error": err,
				}).Error("Ingestion cycle failed")
			} else {
				log.WithFields(log.Fields{
					"fetched":  result.Fetched,
					"filtered": result.Filtered,
					"dropped":  result.Dropped,
					"inserted": result.Inserted,
					"known":    result.Known,
				}).Info("Ingestion cycle done")
			}
			timer.Reset(i.config.Interval)
		}
	}
}

// RunOnce fetches, filters, normalizes and stores one batch of posts
func (i *Ingester) RunOnce(ctx context.Context) (CycleResult, error) {
	var result CycleResult

	cyclesTotal.Inc()

	start := time.Now()
	posts, err := i.fetcher.FetchStatuses(ctx)
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		fetchErrors.Inc()
		return result, fmt.Errorf("failed to fetch posts: %w", err)
	}
	result.Fetched = len(posts)

	fresh := i.filter(posts)
	result.Filtered = len(posts) - len(fresh)
	postsProcessed.WithLabelValues(outcomeFiltered).Add(float64(result.Filtered))

	for _, post := range fresh {
		content, err := i.normalizer.Normalize(post.Content)
		if err != nil {
			log.WithFields(log.Fields{
				"id":    post.Id,
				"error": err,
			}).Warn("Failed to parse post, skipping")
			result.Dropped++
			postsProcessed.WithLabelValues(outcomeDropped).Inc()
			continue
		}

		item := models.Item{
			Id:        post.Id,
			CreatedAt: post.CreatedAt,
			Content:   content,
		}

		inserted, err := i.store.UpsertIfAbsent(item)
		if err != nil {
			return result, fmt.Errorf("failed to store post %s: %w", post.Id, err)
		}

		if !inserted {
			result.Known++
			postsProcessed.WithLabelValues(outcomeKnown).Inc()
			continue
		}

		log.WithFields(log.Fields{
			"id":        item.Id,
			"createdAt": item.CreatedAt.Format(time.RFC3339),
			"content":   item.Content,
		}).Info("New item")

		result.Inserted++
		postsProcessed.WithLabelValues(outcomeInserted).Inc()
		i.publish(models.CreateItemEvent{Item: item})
	}

	return result, nil
}

// filter keeps posts inside the recency window that are long enough
func (i *Ingester) filter(posts []models.Post) []models.Post {
	cutoff := i.now().Add(-i.config.MaxAge)

	return lo.Filter(posts, func(post models.Post, _ int) bool {
		return post.CreatedAt.After(cutoff) &&
			utf8.RuneCountInString(post.Content) > i.config.MinLength
	})
}

func (i *Ingester) publish(event interface{}) {
	if i.events == nil {
		return
	}

	select {
	case i.events <- event: // Non-blocking send
	default:
		log.Warn("Event channel full, skipping event")
	}
}
