// Package store holds the in-memory item cache shared by the ingestion
// loop and the serving endpoint.
package store

import (
	"errors"
	"fmt"
	"sync"

	"tootcast/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var (
	storeItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tootcast_store_items",
		Help: "The number of items held in the store",
	})

	storeServedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tootcast_store_served_items",
		Help: "The number of items in the store that have been served",
	})
)

// ErrStoreUnavailable is returned when a store operation could not complete
// its critical section. Callers should log it and skip the current operation.
var ErrStoreUnavailable = errors.New("store unavailable")

// Store maps item ids to items. All access goes through a single mutex.
type Store struct {
	mu    sync.Mutex
	items map[string]*models.Item
}

func New() *Store {
	return &Store{
		items: make(map[string]*models.Item),
	}
}

// locked runs fn while holding the store mutex. A panic inside fn releases
// the lock and is reported as ErrStoreUnavailable.
func (s *Store) locked(fn func()) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"panic": r,
			}).Error("Recovered panic inside store critical section")
			err = fmt.Errorf("%w: %v", ErrStoreUnavailable, r)
		}
	}()

	fn()
	return nil
}

// UpsertIfAbsent inserts item unless an item with the same id exists.
// Existing items are never modified. Returns true if the item was inserted.
func (s *Store) UpsertIfAbsent(item models.Item) (bool, error) {
	var inserted bool

	err := s.locked(func() {
		if _, ok := s.items[item.Id]; ok {
			return
		}

		// New items always start unserved
		item.Served = false
		s.items[item.Id] = &item
		inserted = true
		s.updateGauges()
	})

	return inserted, err
}

// TakeNextUnserved claims any unserved item and returns its content. Every
// item sharing that exact content is marked served in the same critical
// section, so a content group is only ever claimed once.
func (s *Store) TakeNextUnserved() (string, bool, error) {
	var (
		content string
		found   bool
	)

	err := s.locked(func() {
		for _, item := range s.items {
			if !item.Served {
				content = item.Content
				found = true
				break
			}
		}

		if !found {
			return
		}

		for _, item := range s.items {
			if item.Content == content {
				item.Served = true
			}
		}
		s.updateGauges()
	})
	if err != nil {
		return "", false, err
	}

	return content, found, nil
}

// Get returns a copy of the item with the given id
func (s *Store) Get(id string) (models.Item, bool, error) {
	var (
		item models.Item
		ok   bool
	)

	err := s.locked(func() {
		var stored *models.Item
		if stored, ok = s.items[id]; ok {
			item = *stored
		}
	})

	return item, ok, err
}

// Items returns a snapshot copy of every stored item in no particular order
func (s *Store) Items() ([]models.Item, error) {
	var items []models.Item

	err := s.locked(func() {
		items = make([]models.Item, 0, len(s.items))
		for _, item := range s.items {
			items = append(items, *item)
		}
	})

	return items, err
}

func (s *Store) Len() (int, error) {
	var n int
	err := s.locked(func() {
		n = len(s.items)
	})
	return n, err
}

func (s *Store) ServedCount() (int, error) {
	var n int
	err := s.locked(func() {
		n = s.servedCount()
	})
	return n, err
}

// Stats returns total, served and unserved counts from a single snapshot
func (s *Store) Stats() (models.StatisticsEvent, error) {
	var stats models.StatisticsEvent
	err := s.locked(func() {
		served := s.servedCount()
		stats = models.StatisticsEvent{
			Total:    len(s.items),
			Served:   served,
			Unserved: len(s.items) - served,
		}
	})
	return stats, err
}

// servedCount must be called with the mutex held
func (s *Store) servedCount() int {
	return lo.CountBy(lo.Values(s.items), func(item *models.Item) bool {
		return item.Served
	})
}

// updateGauges must be called with the mutex held
func (s *Store) updateGauges() {
	storeItems.Set(float64(len(s.items)))
	storeServedItems.Set(float64(s.servedCount()))
}
