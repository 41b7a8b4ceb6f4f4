package assistant

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/model/chat"
	assistantService "github.com/sunabot/sunabot/backend/internal/service/assistant"
	"github.com/sunabot/sunabot/backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

// User-facing answers of the failure responses.
const (
	answerMissing    = "No se ha proporcionado ninguna consulta."
	answerInvalid    = "Por favor, proporciona una consulta válida."
	answerNotTax     = "Por favor, proporciona una consulta tributaria válida."
	answerDirect     = "Error al procesar tu consulta directa."
	answerRespond    = "Lo siento, ocurrió un error al procesar tu consulta. Por favor, intenta nuevamente."
	answerPremium    = "Error al procesar la consulta especializada."
	answerContinue   = "Error al procesar la continuación."
	answerStructured = "Error al procesar la consulta estructurada."
)

// Handler serves the chat endpoints.
type Handler struct {
	svc    *assistantService.Service
	logger zerolog.Logger
}

// New creates the chat endpoint handler.
func New(svc *assistantService.Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: log.With().Str("component", "handler.assistant").Logger(),
	}
}

// RegisterRoutes mounts the chat endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat_directo", h.handleDirect)
	r.Post("/responder", h.handleRespond)
	r.Post("/responder_copilot", h.handlePremium)
	r.Post("/continuar", h.handleContinue)
	r.Post("/responder_estructurado", h.handleStructured)
	// Older widget builds post structured queries here.
	r.Post("/responder_langchain", h.handleStructured)
}

func (h *Handler) handleDirect(w http.ResponseWriter, r *http.Request) {
	var req chat.DirectRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.svc.ChatDirect(r.Context(), req)
	h.reply(w, r, reply, err, answerDirect)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, h.svc.Respond, answerRespond)
}

func (h *Handler) handlePremium(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, h.svc.RespondPremium, answerPremium)
}

func (h *Handler) handleContinue(w http.ResponseWriter, r *http.Request) {
	var req chat.ContinueRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.svc.Continue(r.Context(), req)
	h.reply(w, r, reply, err, answerContinue)
}

func (h *Handler) handleStructured(w http.ResponseWriter, r *http.Request) {
	var req chat.QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.svc.RespondStructured(r.Context(), req)
	var invalid *assistantService.InvalidQueryError
	switch {
	case errors.As(err, &invalid):
		utils.RespondJSON(w, http.StatusBadRequest, map[string]any{
			"error":        "Consulta no válida",
			"validaciones": invalid.Validation,
			"respuesta":    answerNotTax,
		})
	case err != nil:
		h.fail(w, r, err, answerStructured)
	default:
		utils.RespondJSON(w, http.StatusOK, reply)
	}
}

type queryFunc func(context.Context, chat.QueryRequest) (chat.Reply, error)

func (h *Handler) query(w http.ResponseWriter, r *http.Request, fn queryFunc, failure string) {
	var req chat.QueryRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := fn(r.Context(), req)
	h.reply(w, r, reply, err, failure)
}

type validatable interface {
	Validate() error
}

// decode reads and validates the body. It answers the request itself and
// returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	if err := utils.DecodeJSON(w, r, maxBodyBytes, dst); err != nil {
		utils.RespondFailure(w, http.StatusBadRequest, answerInvalid, answerMissing)
		return false
	}
	if err := dst.Validate(); err != nil {
		if chat.MessageMissing(err) {
			utils.RespondFailure(w, http.StatusBadRequest, answerInvalid, answerMissing)
		} else {
			utils.RespondFailure(w, http.StatusBadRequest, err.Error(), answerInvalid)
		}
		return false
	}
	return true
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, reply chat.Reply, err error, failure string) {
	if err != nil {
		h.fail(w, r, err, failure)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, answer string) {
	switch {
	case errors.Is(err, assistantService.ErrEmptyMessage):
		utils.RespondFailure(w, http.StatusBadRequest, answerInvalid, answerMissing)
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("query failed")
		utils.RespondFailure(w, http.StatusInternalServerError, "Error al procesar la consulta.", answer)
	}
}
