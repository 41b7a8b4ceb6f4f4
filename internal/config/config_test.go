package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.AI.TopP, 1e-9)
	assert.Nil(t, cfg.AI.MaxTokens)
	assert.InDelta(t, 0.85, cfg.Speech.Rate, 1e-9)
	assert.InDelta(t, 1.0, cfg.Speech.Pitch, 1e-9)
	assert.InDelta(t, 0.9, cfg.Speech.Volume, 1e-9)
	assert.Equal(t, "es-ES", cfg.Speech.TTSLanguage)
	assert.Equal(t, 100*time.Millisecond, cfg.Speech.ChunkInterval)
	assert.Equal(t, "http://localhost:5000", cfg.Client.ServerURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("ARK_MODEL", "ep-123")
	t.Setenv("ARK_MAX_TOKENS", "900")
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_ACCESS_TOKEN", "token")
	t.Setenv("SPEECH_TTS_VOICES", "es-MX=voice_mx, es-ES=voice_es")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.AI.Enabled())
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 900, *cfg.AI.MaxTokens)
	assert.True(t, cfg.Speech.Enabled)
	assert.Equal(t, []VoiceEntry{{Lang: "es-MX", ID: "voice_mx"}, {Lang: "es-ES", ID: "voice_es"}}, cfg.Speech.Voices)

	model := cfg.Speech.Model()
	assert.Equal(t, "app", model.AppID)
	assert.InDelta(t, 0.85, model.TTSSpeed, 1e-6)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"ARK_TEMPERATURE":    "hot",
		"SPEECH_TTS_VOICES":  "es-ES",
		"SPEECH_CHUNK_BYTES": "0",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadFile("")
			assert.Error(t, err)
		})
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunabot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\nlog_level: debug\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestAIConfigWithoutCredentials(t *testing.T) {
	_, err := AIConfig{}.NewChatModel(testContext(t))
	assert.ErrorIs(t, err, ErrAICredentialsMissing)
}

func TestSpeechCatalog(t *testing.T) {
	single := SpeechConfig{TTSVoice: "voice_es", TTSLanguage: "es-ES"}
	require.Len(t, single.Catalog(), 1)
	assert.True(t, single.Catalog()[0].Default)

	multi := SpeechConfig{TTSVoice: "ignored", Voices: []VoiceEntry{{Lang: "es-MX", ID: "mx"}, {Lang: "es-ES", ID: "es"}}}
	catalog := multi.Catalog()
	require.Len(t, catalog, 2)
	assert.Equal(t, "mx", catalog[0].ID)
	assert.True(t, catalog[0].Default)
	assert.False(t, catalog[1].Default)

	assert.Empty(t, SpeechConfig{}.Catalog())
}

func TestSpeechSettings(t *testing.T) {
	s := SpeechConfig{Rate: 1.1, Pitch: 1.0, Volume: 0.5, TTSLanguage: "es-PE"}.Settings()
	assert.InDelta(t, 1.1, s.Rate, 1e-9)
	assert.InDelta(t, 0.5, s.Volume, 1e-9)
	assert.Equal(t, "es-PE", s.DefaultLang)
	assert.NotEmpty(t, s.Priorities)

	assert.Equal(t, "es-ES", SpeechConfig{}.Settings().DefaultLang)
}
