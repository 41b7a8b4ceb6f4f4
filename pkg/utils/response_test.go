package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondFailure(rec, http.StatusBadRequest, "bad", "respuesta")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "bad", "respuesta": "respuesta"}, body)
}

func TestDecodeJSONEnforcesLimit(t *testing.T) {
	var dst map[string]string

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mensaje":"hola"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, 1024, &dst))
	assert.Equal(t, "hola", dst["mensaje"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mensaje":"`+strings.Repeat("a", 64)+`"}`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, 16, &dst))
}
