package faq

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunabot/sunabot/backend/internal/knowledge"
)

func setupRouter() *chi.Mux {
	r := chi.NewRouter()
	New(knowledge.MustLoad()).RegisterRoutes(r)
	return r
}

func get(t *testing.T, r http.Handler, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), out), resp.Body.String())
	}
	return resp.Code
}

func TestListCategories(t *testing.T) {
	var cats []categorySummary
	require.Equal(t, http.StatusOK, get(t, setupRouter(), "/faq", &cats))
	require.Len(t, cats, 6)
	assert.Equal(t, "RUC", cats[0].Name)
	assert.Len(t, cats[0].Questions, 4)
	assert.NotEmpty(t, cats[0].Links)
}

func TestQuestionsOfAccentedCategory(t *testing.T) {
	var body map[string]any
	code := get(t, setupRouter(), "/faq/"+url.PathEscape("Facturación"), &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Preguntas frecuentes sobre Facturación:", body["titulo"])
	assert.Len(t, body["preguntas"], 4)
}

func TestUnknownCategory(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, setupRouter(), "/faq/Aduanas", nil))
}

func TestCannedAnswer(t *testing.T) {
	r := setupRouter()

	var body map[string]any
	target := "/faq/RUC/respuesta?pregunta=" + url.QueryEscape("¿Cómo consulto un RUC?")
	require.Equal(t, http.StatusOK, get(t, r, target, &body))
	assert.Equal(t, true, body["predeterminada"])
	assert.Contains(t, body["respuesta"], "Consulta de RUC")

	target = "/faq/" + url.PathEscape("Clave SOL") + "/respuesta?pregunta=" + url.QueryEscape("¿Dónde está el login de Clave SOL?")
	require.Equal(t, http.StatusOK, get(t, r, target, &body))
	assert.Equal(t, false, body["predeterminada"])
	assert.Equal(t, knowledge.FallbackAnswer, body["respuesta"])

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/faq/RUC/respuesta", nil))
}
