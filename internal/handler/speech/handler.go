package speech

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
	"github.com/sunabot/sunabot/backend/internal/playback"
	speechsvc "github.com/sunabot/sunabot/backend/internal/service/speech"
	"github.com/sunabot/sunabot/backend/pkg/utils"
)

const maxBodyBytes = 64 << 10

// SpeechService is the part of the speech service the handlers use.
type SpeechService interface {
	Ready() bool
	Voices() []speechmodel.VoiceInfo
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
	NewEngine(sink speechsvc.AudioSink, opts speechsvc.EngineOptions) *speechsvc.Engine
}

// Handler serves the read-aloud endpoints.
type Handler struct {
	speechSvc SpeechService
	ws        *WebSocketHandler
	logger    zerolog.Logger
}

// Options tune the playback run for each websocket connection. Zero values
// get the engine and voice defaults.
type Options struct {
	Engine   speechsvc.EngineOptions
	Settings playback.Settings
}

// New creates the speech handler. conns may be nil.
func New(speechSvc SpeechService, conns *speechsvc.ConnectionManager, opts Options) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		ws:        NewWebSocketHandler(speechSvc, conns, opts),
		logger:    log.With().Str("component", "handler.speech").Logger(),
	}
}

// RegisterRoutes mounts the speech endpoints under /speech.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(sr chi.Router) {
		sr.Post("/synthesize", h.handleSynthesize)
		sr.Get("/voices", h.handleVoices)
		sr.Get("/health", h.handleHealth)
		h.ws.RegisterWebSocketRoutes(sr)
	})
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speechmodel.TTSRequest
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	resp, err := h.speechSvc.Synthesize(r.Context(), &req)
	switch {
	case errors.Is(err, speechsvc.ErrEmptyText):
		utils.RespondError(w, http.StatusBadRequest, "text has nothing to read")
		return
	case errors.Is(err, speechsvc.ErrCredentialsMissing):
		utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis unavailable")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("session", req.SessionID).Msg("synthesis failed")
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	if len(resp.AudioData) == 0 {
		utils.RespondJSON(w, http.StatusOK, resp)
		return
	}

	format := resp.Format
	if format == "" {
		format = "octet-stream"
	}
	w.Header().Set("Content-Type", audioContentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "inline; filename=respuesta."+format)
	if resp.Voice != "" {
		w.Header().Set("X-Speech-Voice", resp.Voice)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write audio response")
	}
}

func (h *Handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"voices": h.speechSvc.Voices(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if !h.speechSvc.Ready() {
		status = "degraded"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"service":     "speech",
		"ready":       h.speechSvc.Ready(),
		"connections": h.ws.conns.Len(),
	})
}

func audioContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "ogg_opus":
		return "audio/ogg"
	case "pcm":
		return "audio/L16"
	default:
		return "audio/" + format
	}
}
