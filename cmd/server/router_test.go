package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/handler"
	"github.com/nyumbani/smartsearch/internal/location"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, db pinger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	g, err := location.LoadGazetteer("")
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET,POST,OPTIONS",
			AllowedHeaders: "Content-Type",
		},
		AI: config.AIConfig{Provider: "openai"},
	}
	return newRouter(routerDeps{
		cfg:       cfg,
		logger:    zap.NewNop(),
		db:        db,
		search:    handler.NewSearchHandler(nil),
		locations: handler.NewLocationHandler(location.NewResolver(g, location.DefaultOptions(), nil, nil)),
		gazetteer: g.Version(),
		provider:  "openai",
	})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rr
}

func TestHealth(t *testing.T) {
	rr := get(newTestRouter(t, fakePinger{}), "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "up", body["database"])
	assert.Equal(t, false, body["ai_enabled"])
	assert.NotEmpty(t, body["gazetteer_version"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestHealth_DatabaseDown(t *testing.T) {
	rr := get(newTestRouter(t, fakePinger{err: errors.New("connection refused")}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"database":"down"`)
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t, fakePinger{})

	assert.Equal(t, http.StatusOK, get(r, "/version").Code)
	assert.Equal(t, http.StatusOK, get(r, "/metrics").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/locations/match?q=Karen").Code)

	rr := get(r, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "API endpoint not found")
}
