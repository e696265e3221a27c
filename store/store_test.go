package store_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"tootcast/models"
	"tootcast/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, content string) models.Item {
	return models.Item{
		Id:        id,
		CreatedAt: time.Now(),
		Content:   content,
	}
}

func TestUpsertIfAbsent(t *testing.T) {
	s := store.New()

	inserted, err := s.UpsertIfAbsent(item("1", "first"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same id with different content must not overwrite
	inserted, err = s.UpsertIfAbsent(item("1", "second"))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, ok, err := s.Get("1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", got.Content)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertIfAbsentKeepsServedFlag(t *testing.T) {
	s := store.New()

	_, err := s.UpsertIfAbsent(item("1", "hello"))
	require.NoError(t, err)

	content, ok, err := s.TakeNextUnserved()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", content)

	// Re-ingesting a served item must not reset it
	inserted, err := s.UpsertIfAbsent(item("1", "hello"))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, _, err := s.Get("1")
	require.NoError(t, err)
	assert.True(t, got.Served)

	_, ok, err = s.TakeNextUnserved()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertIfAbsentIgnoresIncomingServedFlag(t *testing.T) {
	s := store.New()

	in := item("1", "hello")
	in.Served = true
	_, err := s.UpsertIfAbsent(in)
	require.NoError(t, err)

	got, _, err := s.Get("1")
	require.NoError(t, err)
	assert.False(t, got.Served)
}

func TestTakeNextUnservedEmpty(t *testing.T) {
	s := store.New()

	content, ok, err := s.TakeNextUnserved()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, content)
}

func TestTakeNextUnservedMarksContentGroup(t *testing.T) {
	s := store.New()

	for _, it := range []models.Item{
		item("1", "same"),
		item("2", "same"),
		item("3", "other"),
	} {
		_, err := s.UpsertIfAbsent(it)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		content, ok, err := s.TakeNextUnserved()
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, seen[content], "content %q claimed twice", content)
		seen[content] = true

		if content == "same" {
			a, _, _ := s.Get("1")
			b, _, _ := s.Get("2")
			assert.True(t, a.Served)
			assert.True(t, b.Served)
		}
	}

	assert.Equal(t, map[string]bool{"same": true, "other": true}, seen)

	_, ok, err := s.TakeNextUnserved()
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, models.StatisticsEvent{Total: 3, Served: 3, Unserved: 0}, stats)
}

func TestTakeNextUnservedConcurrentCallers(t *testing.T) {
	s := store.New()

	// 50 content groups, each stored under 4 ids
	for g := 0; g < 50; g++ {
		for k := 0; k < 4; k++ {
			_, err := s.UpsertIfAbsent(item(fmt.Sprintf("%d-%d", g, k), fmt.Sprintf("content %d", g)))
			require.NoError(t, err)
		}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		claims = map[string]int{}
	)

	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				content, ok, err := s.TakeNextUnserved()
				if err != nil || !ok {
					return
				}
				mu.Lock()
				claims[content]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claims, 50)
	for content, n := range claims {
		assert.Equal(t, 1, n, "content %q claimed %d times", content, n)
	}

	served, err := s.ServedCount()
	require.NoError(t, err)
	assert.Equal(t, 200, served)
}

func TestConcurrentInsertAndTake(t *testing.T) {
	s := store.New()

	var wg sync.WaitGroup
	claimed := make(chan string, 1000)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = s.UpsertIfAbsent(item(fmt.Sprint(i), fmt.Sprint("post ", i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if content, ok, err := s.TakeNextUnserved(); err == nil && ok {
				claimed <- content
			}
		}
	}()
	wg.Wait()

	// Drain whatever is left after the inserter finished
	for {
		content, ok, err := s.TakeNextUnserved()
		require.NoError(t, err)
		if !ok {
			break
		}
		claimed <- content
	}
	close(claimed)

	unique := map[string]bool{}
	for content := range claimed {
		assert.False(t, unique[content], "content %q claimed twice", content)
		unique[content] = true
	}
	assert.Len(t, unique, 500)
}

func TestItemsSnapshot(t *testing.T) {
	s := store.New()

	_, err := s.UpsertIfAbsent(item("1", "a"))
	require.NoError(t, err)
	_, err = s.UpsertIfAbsent(item("2", "b"))
	require.NoError(t, err)

	items, err := s.Items()
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Mutating the snapshot does not touch the store
	items[0].Served = true
	served, err := s.ServedCount()
	require.NoError(t, err)
	assert.Equal(t, 0, served)
}
