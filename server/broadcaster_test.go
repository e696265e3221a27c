package server

import (
	"bufio"
	"bytes"
	"testing"

	"tootcast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster()
	first := make(chan interface{}, 1)
	second := make(chan interface{}, 1)
	b.AddClient("first", first)
	b.AddClient("second", second)

	events := make(chan interface{}, 1)
	events <- models.StatisticsEvent{Total: 3, Served: 1, Unserved: 2}
	close(events)
	b.Run(events)

	assert.Equal(t, models.StatisticsEvent{Total: 3, Served: 1, Unserved: 2}, <-first)
	assert.Equal(t, models.StatisticsEvent{Total: 3, Served: 1, Unserved: 2}, <-second)
}

func TestBroadcasterSkipsFullClients(t *testing.T) {
	b := NewBroadcaster()
	full := make(chan interface{}) // Never read
	b.AddClient("full", full)

	// Must return instead of blocking on the full client
	b.Broadcast(models.ServeItemEvent{Content: "hello"})
	assert.Equal(t, 1, b.Count())
}

func TestBroadcasterRemoveAndShutdown(t *testing.T) {
	b := NewBroadcaster()
	removed := make(chan interface{}, 1)
	kept := make(chan interface{}, 1)
	b.AddClient("removed", removed)
	b.AddClient("kept", kept)

	b.RemoveClient("removed")
	_, ok := <-removed
	assert.False(t, ok)
	assert.Equal(t, 1, b.Count())

	// Removing an unknown key is a no-op
	b.RemoveClient("unknown")

	b.Shutdown()
	_, ok = <-kept
	assert.False(t, ok)
	assert.Equal(t, 0, b.Count())
}

func TestWriteEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    interface{}
		expected string
	}{
		{
			name:     "serve item",
			event:    models.ServeItemEvent{Content: "hi", Fallback: true},
			expected: "event: serve-item\ndata: {\"content\":\"hi\",\"fallback\":true}\n\n",
		},
		{
			name:     "statistics",
			event:    models.StatisticsEvent{Total: 2, Served: 1, Unserved: 1},
			expected: "event: statistics\ndata: {\"total\":2,\"served\":1,\"unserved\":1}\n\n",
		},
		{
			name:     "unknown event",
			event:    "something else",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			require.NoError(t, writeEvent(w, tt.event))
			require.NoError(t, w.Flush())
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}
