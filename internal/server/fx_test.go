package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobalert-crawler/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:    config.ServerConfig{Port: 8080},
		Retriever: config.RetrieverConfig{Timeout: time.Second},
		Enricher:  config.EnricherConfig{Concurrency: 2},
		Storage:   config.StorageConfig{Backend: "local", Local: config.LocalStorageConfig{BaseDir: t.TempDir()}},
		Tracking:  config.TrackingConfig{Backend: "memory"},
		Regions:   []config.RegionConfig{{Code: "AP", URL: "https://example.com/ap"}},
		Auth:      config.AuthConfig{Enabled: true, APIKey: "k"},
	}
}

func TestBuildWithMemoryBackends(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	categories := app.Service().Categories()
	require.Contains(t, categories, "latest")
	require.Contains(t, categories, "education")
	require.Equal(t, "state_ap", categories[len(categories)-1])

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/categories", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBuildFailsOnUnreachableRedis(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Tracking.Backend = "redis"
	cfg.Redis.URL = "redis://127.0.0.1:1/0"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis init failed")
}

func TestBuildRejectsPostgresTrackingWithoutPool(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Tracking.Backend = "postgres"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}
