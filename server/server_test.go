package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tootcast/elevenlabs"
	"tootcast/models"
	"tootcast/relay"
	"tootcast/server"
	"tootcast/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type synthFunc func(ctx context.Context, text string) ([]byte, error)

func (f synthFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}

func newServer(t *testing.T, s *store.Store, synth relay.Synthesizer) *server.ServerConfig {
	t.Helper()
	return &server.ServerConfig{
		Relay:       relay.New(s, synth, "", nil),
		Store:       s,
		Broadcaster: server.NewBroadcaster(),
	}
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload["error"]
}

func TestServeAudio(t *testing.T) {
	s := store.New()
	_, err := s.UpsertIfAbsent(models.Item{Id: "1", Content: "Hello world"})
	require.NoError(t, err)

	app := server.Server(newServer(t, s, synthFunc(func(ctx context.Context, text string) ([]byte, error) {
		return []byte("audio:" + text), nil
	})))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mp3", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "audio:Hello world", string(body))
}

func TestServeVendorRejection(t *testing.T) {
	app := server.Server(newServer(t, store.New(), synthFunc(func(ctx context.Context, text string) ([]byte, error) {
		return nil, &elevenlabs.VendorError{StatusCode: 401, Status: "401 Unauthorized"}
	})))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "failed to request tts from vendor: 401 Unauthorized", decodeError(t, resp.Body))
}

func TestServeInternalError(t *testing.T) {
	app := server.Server(newServer(t, store.New(), synthFunc(func(ctx context.Context, text string) ([]byte, error) {
		return nil, errors.New("dial tcp: connection refused to secret host")
	})))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	// Internal details never reach the caller
	assert.Equal(t, "Internal server error", decodeError(t, resp.Body))
}

func TestUnknownRoute(t *testing.T) {
	app := server.Server(newServer(t, store.New(), nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decodeError(t, resp.Body))
}

func TestStatsAndItems(t *testing.T) {
	s := store.New()
	for _, it := range []models.Item{
		{Id: "1", Content: "a"},
		{Id: "2", Content: "b"},
	} {
		_, err := s.UpsertIfAbsent(it)
		require.NoError(t, err)
	}
	_, _, err := s.TakeNextUnserved()
	require.NoError(t, err)

	app := server.Server(newServer(t, s, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stats", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats models.StatisticsEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, models.StatisticsEvent{Total: 2, Served: 1, Unserved: 1}, stats)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/items", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var items []models.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	assert.Len(t, items, 2)
}

func TestHealthAndMetrics(t *testing.T) {
	app := server.Server(newServer(t, store.New(), nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRemoveSSEClient(t *testing.T) {
	cfg := newServer(t, store.New(), nil)
	cfg.Broadcaster.AddClient("client-1", make(chan interface{}, 1))
	app := server.Server(cfg)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/events/sse?key=client-1", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, cfg.Broadcaster.Count())
}
