package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/config"
	"github.com/sunabot/sunabot/backend/internal/logging"
	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
	"github.com/sunabot/sunabot/backend/internal/playback"
	"github.com/sunabot/sunabot/backend/internal/service/speech"
)

func main() {
	text := flag.String("text", "", "texto a sintetizar; admite HTML de una respuesta")
	outputPath := flag.String("out", "", "archivo de salida (por defecto según el formato)")
	format := flag.String("format", "mp3", "formato de audio: mp3, pcm u ogg_opus")
	language := flag.String("lang", "", "idioma; por defecto la mejor voz en español del catálogo")
	voice := flag.String("voice", "", "voz del proveedor; tiene prioridad sobre -lang")
	raw := flag.Bool("raw", false, "enviar el texto sin normalizar")
	dryRun := flag.Bool("dry-run", false, "mostrar el texto normalizado y la voz sin llamar al proveedor")
	session := flag.String("session", "", "sessionID; vacío genera uno")
	timeout := flag.Duration("timeout", 45*time.Second, "tiempo máximo de la solicitud")
	flag.Parse()

	envErr := godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Log)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	if *text == "" {
		flag.Usage()
		log.Fatal().Msg("-text is required")
	}

	spoken := *text
	if !*raw {
		spoken = playback.Normalize(spoken)
	}

	lang := *language
	if lang == "" && *voice == "" {
		lang = bestSpanish(cfg.Speech)
	}

	log.Info().Str("text", spoken).Str("lang", lang).Str("voice", *voice).Msg("prepared utterance")
	if *dryRun {
		return
	}

	if !cfg.Speech.Enabled {
		log.Fatal().Err(speech.ErrCredentialsMissing).Msg("speech service not configured")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}
	out := *outputPath
	if out == "" {
		out = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), *format)
	}

	svc := speech.NewService(cfg.Speech.Model(), cfg.Speech.Catalog())
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	settings := cfg.Speech.Settings()
	resp, err := svc.Synthesize(ctx, &speechmodel.TTSRequest{
		SessionID: sessionID,
		Text:      spoken,
		Voice:     *voice,
		Speed:     float32(settings.Rate),
		Volume:    float32(settings.Volume),
		Format:    *format,
		Language:  lang,
		Raw:       true,
	})
	if err != nil {
		log.Fatal().Err(err).Str("session", sessionID).Msg("synthesis failed")
	}

	if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", out).Msg("failed to write audio")
	}
	log.Info().Str("path", out).Str("voice", resp.Voice).Int64("duration_ms", resp.Duration).Msg("synthesis succeeded")
}

// bestSpanish picks the catalog locale the widget would read with.
func bestSpanish(cfg config.SpeechConfig) string {
	catalog := cfg.Catalog()
	voices := make([]playback.Voice, 0, len(catalog))
	for _, v := range catalog {
		voices = append(voices, playback.Voice{Name: v.ID, Lang: v.Lang, Default: v.Default})
	}
	if v, ok := playback.SelectVoice(voices, cfg.Settings().Priorities); ok {
		return v.Lang
	}
	return cfg.Settings().DefaultLang
}
