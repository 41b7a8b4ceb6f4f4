package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
	"github.com/sunabot/sunabot/backend/internal/playback"
)

// Service is the speech entry point used by handlers: synthesis with text
// normalization and voice resolution over a fixed catalog.
type Service struct {
	config *speechmodel.SpeechConfig
	synth  Synthesizer
	voices []speechmodel.VoiceInfo
	logger zerolog.Logger
}

// NewService returns a Service that synthesizes through the Volcengine client.
func NewService(cfg *speechmodel.SpeechConfig, voices []speechmodel.VoiceInfo) *Service {
	return NewServiceWith(cfg, NewTTSClient(cfg), voices)
}

// NewServiceWith is NewService with an explicit synthesizer.
func NewServiceWith(cfg *speechmodel.SpeechConfig, synth Synthesizer, voices []speechmodel.VoiceInfo) *Service {
	return &Service{
		config: cfg,
		synth:  synth,
		voices: voices,
		logger: log.With().Str("component", "speech").Logger(),
	}
}

// Ready reports whether provider credentials are configured.
func (s *Service) Ready() bool {
	_, _, err := resolveCredentials(s.config)
	return err == nil
}

// Voices lists the catalog.
func (s *Service) Voices() []speechmodel.VoiceInfo {
	return append([]speechmodel.VoiceInfo(nil), s.voices...)
}

// Synthesize normalizes req.Text for reading unless req.Raw is set, resolves
// locale tags to catalog voices and synthesizes the result.
func (s *Service) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	out := *req
	if !out.Raw {
		out.Text = playback.Normalize(out.Text)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, ErrEmptyText
	}
	out.Voice = s.resolveVoice(out.Voice, out.Language)

	resp, err := s.synth.Synthesize(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("synthesize %q: %w", out.SessionID, err)
	}
	s.logger.Debug().Str("session", out.SessionID).Str("voice", resp.Voice).Int("bytes", len(resp.AudioData)).Msg("synthesized")
	return resp, nil
}

// NewEngine returns a playback engine writing to sink through this service.
func (s *Service) NewEngine(sink AudioSink, opts EngineOptions) *Engine {
	return NewEngine(s, sink, s.voices, opts)
}

// resolveVoice maps voice, when it is a locale tag, or else lang to a catalog
// voice ID. Unknown values pass through as provider voice IDs.
func (s *Service) resolveVoice(voice, lang string) string {
	voice = strings.TrimSpace(voice)
	for _, v := range s.voices {
		if voice != "" && strings.EqualFold(v.ID, voice) {
			return v.ID
		}
	}
	if voice != "" {
		if id, ok := s.voiceFor(voice); ok {
			return id
		}
		return voice
	}
	if id, ok := s.voiceFor(lang); ok {
		return id
	}
	return ""
}

func (s *Service) voiceFor(lang string) (string, bool) {
	lang = strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if lang == "" {
		return "", false
	}
	for _, v := range s.voices {
		if strings.EqualFold(v.Lang, lang) {
			return v.ID, true
		}
	}
	return "", false
}
