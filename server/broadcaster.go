package server

import (
	"sync"

	"tootcast/models"

	log "github.com/sirupsen/logrus"
)

// Broadcaster fans store events out to connected SSE clients
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan interface{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan interface{}),
	}
}

// Run forwards events to all clients until events is closed
func (b *Broadcaster) Run(events <-chan interface{}) {
	for event := range events {
		switch event.(type) {
		case models.CreateItemEvent, models.ServeItemEvent, models.StatisticsEvent:
			b.Broadcast(event)
		default:
			log.Warnf("Unknown event type %T", event)
		}
	}
}

func (b *Broadcaster) Broadcast(event interface{}) {
	b.RLock()
	defer b.RUnlock()

	for key, client := range b.clients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping event for client: %v", key)
		}
	}
}

// AddClient registers a client channel under key
func (b *Broadcaster) AddClient(key string, client chan interface{}) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and unregisters the client channel under key
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Count() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
