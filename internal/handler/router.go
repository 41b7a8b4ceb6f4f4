package handler

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/config"
	"github.com/sunabot/sunabot/backend/internal/handler/assistant"
	"github.com/sunabot/sunabot/backend/internal/handler/faq"
	"github.com/sunabot/sunabot/backend/internal/handler/speech"
	"github.com/sunabot/sunabot/backend/internal/knowledge"
	middlewarePkg "github.com/sunabot/sunabot/backend/internal/middleware"
	assistantService "github.com/sunabot/sunabot/backend/internal/service/assistant"
	speechService "github.com/sunabot/sunabot/backend/internal/service/speech"
	"github.com/sunabot/sunabot/backend/pkg/utils"
)

// Deps are the services behind the HTTP routes. Speech and Conns may be nil,
// which leaves the read-aloud routes unmounted.
type Deps struct {
	Assistant *assistantService.Service
	Knowledge knowledge.Store
	Speech    *speechService.Service
	Conns     *speechService.ConnectionManager
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log.With().Str("component", "http").Logger()))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "healthy",
			"modelo": deps.Assistant.ModelReady(),
			"voz":    deps.Speech != nil && deps.Speech.Ready(),
		})
	})

	assistant.New(deps.Assistant).RegisterRoutes(r)
	faq.New(deps.Knowledge).RegisterRoutes(r)

	if deps.Speech != nil {
		opts := speech.Options{
			Engine: speechService.EngineOptions{
				ChunkBytes: cfg.Speech.ChunkBytes,
				Interval:   cfg.Speech.ChunkInterval,
			},
			Settings: cfg.Speech.Settings(),
		}
		speech.New(deps.Speech, deps.Conns, opts).RegisterRoutes(r)
	}

	if dir := cfg.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			log.Warn().Str("dir", dir).Msg("static directory not found, widget will not be served")
		} else {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		}
	}

	return r
}
