package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tootcast/elevenlabs"
	"tootcast/models"
	"tootcast/relay"
	"tootcast/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const internalErrorMessage = "Internal server error"

type ServerConfig struct {
	// Relay answers speech requests
	Relay *relay.Relay

	// Store is read for statistics and item listings
	Store *store.Store

	// Broadcaster passes store events to SSE clients
	Broadcaster *Broadcaster
}

// errorHandler turns handler errors into {"error": "..."} responses. Only
// vendor rejections expose their message; everything else is logged and
// reported as a generic internal error.
func errorHandler(c *fiber.Ctx, err error) error {
	var (
		vendorErr *elevenlabs.VendorError
		fiberErr  *fiber.Error
	)

	switch {
	case errors.As(err, &vendorErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vendorErr.Error()})
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	log.WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"error":  err,
	}).Error("Request failed")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": internalErrorMessage})
}

// Returns a fiber.App instance to be used as an HTTP server for tootcast
func Server(config *ServerConfig) *fiber.App {
	bc := config.Broadcaster

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/", func(c *fiber.Ctx) error {
		speech, err := config.Relay.Speak(c.UserContext())
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, speech.ContentType)
		return c.Status(fiber.StatusOK).Send(speech.Audio)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := config.Store.Stats()
		if err != nil {
			return err
		}
		return c.JSON(stats)
	})

	app.Get("/items", func(c *fiber.Ctx) error {
		items, err := config.Store.Items()
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Delete("/events/sse", func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		bc.RemoveClient(key)
		return c.Status(fiber.StatusOK).SendString("OK")
	})

	app.Get("/events/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		events := make(chan interface{}, 10) // Buffered channel
		aliveChan := time.NewTicker(5 * time.Second)

		bc.AddClient(key, events)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer aliveChan.Stop()
			defer bc.RemoveClient(key)

			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveChan.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-events:
					if !ok {
						log.Infof("Event channel closed for client %s", key)
						return
					}
					if err := writeEvent(w, event); err != nil {
						log.Warnf("Failed to send event to client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

// writeEvent writes one SSE frame for event and flushes it
func writeEvent(w *bufio.Writer, event interface{}) error {
	var (
		name    string
		payload interface{}
	)

	switch event := event.(type) {
	case models.CreateItemEvent:
		name, payload = "create-item", event.Item
	case models.ServeItemEvent:
		name, payload = "serve-item", event
	case models.StatisticsEvent:
		name, payload = "statistics", event
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", name, err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}
