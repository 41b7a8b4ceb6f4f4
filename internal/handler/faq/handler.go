package faq

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sunabot/sunabot/backend/internal/knowledge"
	"github.com/sunabot/sunabot/backend/pkg/utils"
)

// Handler serves the canned FAQ content.
type Handler struct {
	kb knowledge.Store
}

// New creates the FAQ handler.
func New(kb knowledge.Store) *Handler {
	return &Handler{kb: kb}
}

// RegisterRoutes mounts the FAQ routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/faq", h.handleListCategories)
	r.Get("/faq/{category}", h.handleQuestions)
	r.Get("/faq/{category}/respuesta", h.handleAnswer)
}

type categorySummary struct {
	Name        string           `json:"nombre"`
	Description string           `json:"descripcion"`
	Links       []knowledge.Link `json:"enlaces"`
	Questions   []string         `json:"preguntas"`
}

func (h *Handler) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	cats := h.kb.Categories()
	out := make([]categorySummary, 0, len(cats))
	for _, c := range cats {
		out = append(out, categorySummary{
			Name:        c.Name,
			Description: c.Description,
			Links:       c.Links,
			Questions:   h.kb.Questions(c.Name),
		})
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	c, ok := h.category(r)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "categoría no encontrada")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"categoria": c.Name,
		"titulo":    knowledge.Title(c.Name),
		"preguntas": h.kb.Questions(c.Name),
	})
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	c, ok := h.category(r)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "categoría no encontrada")
		return
	}
	question := strings.TrimSpace(r.URL.Query().Get("pregunta"))
	if question == "" {
		utils.RespondError(w, http.StatusBadRequest, "pregunta es obligatoria")
		return
	}

	answer, canned := h.kb.CannedAnswer(c.Name, question)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"categoria":      c.Name,
		"pregunta":       question,
		"respuesta":      answer,
		"predeterminada": canned,
	})
}

func (h *Handler) category(r *http.Request) (knowledge.Category, bool) {
	raw := chi.URLParam(r, "category")
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	return h.kb.Category(name)
}
