// Package relay implements the request side: claim an unserved item and
// turn its text into speech.
package relay

import (
	"context"
	"fmt"

	"tootcast/models"
	"tootcast/store"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultFallbackText = "No new items."
	ContentTypeAudio    = "audio/mp3"
)

// Synthesizer converts text to audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Speech is the result of one serve call
type Speech struct {
	Text        string
	Audio       []byte
	ContentType string
	Fallback    bool
}

type Relay struct {
	store        *store.Store
	synthesizer  Synthesizer
	fallbackText string
	events       chan<- interface{}
}

// New creates a relay. Serve and statistics events are sent to events when
// it is non-nil; sends never block.
func New(s *store.Store, synthesizer Synthesizer, fallbackText string, events chan<- interface{}) *Relay {
	if fallbackText == "" {
		fallbackText = DefaultFallbackText
	}

	return &Relay{
		store:        s,
		synthesizer:  synthesizer,
		fallbackText: fallbackText,
		events:       events,
	}
}

// Speak claims the next unserved item, or the fallback text when there is
// none, and synthesizes it. The claim is not undone when synthesis fails.
func (r *Relay) Speak(ctx context.Context) (*Speech, error) {
	text, found, err := r.store.TakeNextUnserved()
	if err != nil {
		return nil, fmt.Errorf("failed to claim item: %w", err)
	}

	if found {
		log.WithFields(log.Fields{
			"content": text,
		}).Info("Serving item")
	} else {
		text = r.fallbackText
		log.Info("No unserved items, serving fallback text")
	}

	r.publish(models.ServeItemEvent{Content: text, Fallback: !found})
	r.logStats()

	// The store lock is released at this point; synthesis may be slow
	audio, err := r.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	return &Speech{
		Text:        text,
		Audio:       audio,
		ContentType: ContentTypeAudio,
		Fallback:    !found,
	}, nil
}

func (r *Relay) logStats() {
	stats, err := r.store.Stats()
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Failed to read store statistics")
		return
	}

	log.Infof("%d of %d items served", stats.Served, stats.Total)
	r.publish(stats)
}

func (r *Relay) publish(event interface{}) {
	if r.events == nil {
		return
	}

	select {
	case r.events <- event: // Non-blocking send
	default:
		log.Warn("Event channel full, skipping event")
	}
}
