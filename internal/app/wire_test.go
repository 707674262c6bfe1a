package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/empirewand/wandcore/internal/catalog"
	"github.com/empirewand/wandcore/internal/command"
	"github.com/empirewand/wandcore/internal/policy"
	"github.com/empirewand/wandcore/internal/repository"
	"github.com/empirewand/wandcore/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *service.WandService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.New(catalog.Defaults())
	require.NoError(t, err)
	svc := service.NewWandService(cat, repository.NewMemoryStateRepository(nil), service.Options{StatsWindow: time.Hour}, logger)
	d := command.NewDispatcher(svc, policy.NewChecker(policy.DefaultGrants()), logger)
	return NewRouter(RouterDeps{Service: svc, Dispatcher: d, CORSOrigins: "*", Logger: logger}), svc
}

func post(t *testing.T, h http.Handler, path, body string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return w.Code, out
}

func TestRouter_HealthTracksMigration(t *testing.T) {
	h, svc := newTestRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, svc.Start(context.Background()))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_CommandFlow(t *testing.T) {
	h, svc := newTestRouter(t)
	require.NoError(t, svc.Start(context.Background()))

	code, body := post(t, h, "/v1/ew/get", `{"player_id":"steve"}`)
	require.Equal(t, http.StatusOK, code)
	wandID := body["data"].(map[string]interface{})["id"].(string)

	code, body = post(t, h, "/v1/ew/bind", `{"player_id":"steve","args":["`+wandID+`","slot:0","comet"]}`)
	require.Equal(t, http.StatusOK, code, body)

	code, _ = post(t, h, "/v1/ew/cast", `{"player_id":"steve","args":["`+wandID+`","comet"]}`)
	assert.Equal(t, http.StatusOK, code)

	code, body = post(t, h, "/v1/ew/cast", `{"player_id":"steve","args":["`+wandID+`","comet"]}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ON_COOLDOWN", body["code"])

	code, body = post(t, h, "/v1/ew/reload", `{"player_id":"steve"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "PERMISSION_DENIED", body["code"])
}
