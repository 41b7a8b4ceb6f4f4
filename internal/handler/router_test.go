package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunabot/sunabot/backend/internal/config"
	"github.com/sunabot/sunabot/backend/internal/knowledge"
	assistantService "github.com/sunabot/sunabot/backend/internal/service/assistant"
)

func newTestRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	kb := knowledge.MustLoad()
	cfg := &config.Config{
		Server: config.ServerConfig{StaticDir: staticDir, CORSOrigins: []string{"http://widget.test"}},
		AI:     config.AIConfig{DirectMaxTokens: 1024, ContinueMaxTokens: 600},
	}
	return NewRouter(cfg, Deps{
		Assistant: assistantService.NewService(nil, kb, cfg.AI),
		Knowledge: kb,
	})
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["modelo"])
	assert.Equal(t, false, body["voz"])
}

func TestRouterMountsChatAndFAQ(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/responder_copilot", bytes.NewBufferString(`{"mensaje":"¿Cómo saco mi RUC?"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"categoria":"RUC"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/faq", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speech/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/responder", nil)
	req.Header.Set("Origin", "http://widget.test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://widget.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterServesWidget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.js"), []byte("// widget"), 0o600))
	router := newTestRouter(t, dir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/script.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "// widget", rec.Body.String())
}
