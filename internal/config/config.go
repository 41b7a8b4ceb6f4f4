package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"

	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
	"github.com/sunabot/sunabot/backend/internal/playback"
)

// ErrAICredentialsMissing is returned when a chat model is requested without Ark credentials.
var ErrAICredentialsMissing = errors.New("ark credentials or model missing: set ARK_API_KEY (or ARK_ACCESS_KEY + ARK_SECRET_KEY) and ARK_MODEL")

// Config groups every setting of the service and its tools.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	AI     AIConfig
	Speech SpeechConfig
	Client ClientConfig
}

// Load reads configuration from the environment and, when SUNABOT_CONFIG
// points to a file, from that YAML file first.
func Load() (*Config, error) {
	return LoadFile(strings.TrimSpace(os.Getenv("SUNABOT_CONFIG")))
}

// LoadFile is Load with an explicit config file path. An empty path means
// environment only.
func LoadFile(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log:    loadLogConfig(v),
		AI:     ai,
		Speech: speech,
		Client: loadClientConfig(v),
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "5000")
	v.SetDefault("static_dir", "")
	v.SetDefault("cors_origins", "*")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("ark_base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ark_region", "cn-beijing")
	v.SetDefault("ark_temperature", "0.7")
	v.SetDefault("ark_top_p", "0.9")
	v.SetDefault("ark_direct_max_tokens", "1024")
	v.SetDefault("ark_continue_max_tokens", "600")

	v.SetDefault("speech_region", "cn-beijing")
	v.SetDefault("speech_tts_language", "es-ES")
	v.SetDefault("speech_tts_speed", "0.85")
	v.SetDefault("speech_tts_pitch", "1.0")
	v.SetDefault("speech_tts_volume", "0.9")
	v.SetDefault("speech_timeout", "30")
	v.SetDefault("speech_chunk_bytes", "4096")
	v.SetDefault("speech_chunk_interval", "100ms")

	v.SetDefault("sunabot_server_url", "http://localhost:5000")
	return v
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr        string
	StaticDir   string
	CORSOrigins []string
}

func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("port"))
	if port == "" {
		port = "5000"
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	addr := port
	if !strings.Contains(port, ":") {
		addr = ":" + port
	}

	return ServerConfig{
		Addr:        addr,
		StaticDir:   strings.TrimSpace(v.GetString("static_dir")),
		CORSOrigins: splitList(v.GetString("cors_origins")),
	}, nil
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig(v *viper.Viper) LogConfig {
	return LogConfig{
		Level:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		Format: strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
	}
}

// AIConfig describes the Ark chat model used to answer queries.
type AIConfig struct {
	APIKey            string
	AccessKey         string
	SecretKey         string
	Model             string
	BaseURL           string
	Region            string
	Temperature       float64
	TopP              float64
	MaxTokens         *int
	DirectMaxTokens   int
	ContinueMaxTokens int
}

// Enabled reports whether enough credentials were supplied to build a model.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark chat model described by the config.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, ErrAICredentialsMissing
	}

	temperature := float32(c.Temperature)
	topP := float32(c.TopP)

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseFloat(v, "ark_temperature")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseFloat(v, "ark_top_p")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ark_max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	directMax, err := parseInt(v, "ark_direct_max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	continueMax, err := parseInt(v, "ark_continue_max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:            strings.TrimSpace(v.GetString("ark_api_key")),
		AccessKey:         strings.TrimSpace(v.GetString("ark_access_key")),
		SecretKey:         strings.TrimSpace(v.GetString("ark_secret_key")),
		Model:             strings.TrimSpace(v.GetString("ark_model")),
		BaseURL:           strings.TrimSpace(v.GetString("ark_base_url")),
		Region:            strings.TrimSpace(v.GetString("ark_region")),
		Temperature:       temperature,
		TopP:              topP,
		MaxTokens:         maxTokens,
		DirectMaxTokens:   directMax,
		ContinueMaxTokens: continueMax,
	}, nil
}

// VoiceEntry is one catalog voice: a locale tag and the provider voice ID.
type VoiceEntry struct {
	Lang string
	ID   string
}

// SpeechConfig describes the Volcengine TTS credentials and playback tuning.
type SpeechConfig struct {
	AppID         string
	AccessToken   string
	Region        string
	BaseURL       string
	TTSVoice      string
	TTSLanguage   string
	Voices        []VoiceEntry
	Rate          float64
	Pitch         float64
	Volume        float64
	Timeout       int
	ChunkBytes    int
	ChunkInterval time.Duration
	Enabled       bool
}

// Model converts the settings into the shape the TTS client expects.
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AppID:       c.AppID,
		AccessToken: c.AccessToken,
		Region:      c.Region,
		BaseURL:     c.BaseURL,
		TTSVoice:    c.TTSVoice,
		TTSSpeed:    float32(c.Rate),
		TTSVolume:   float32(c.Volume),
		TTSLanguage: c.TTSLanguage,
		Timeout:     c.Timeout,
	}
}

// Settings returns the playback voice parameters. Pitch is applied by the
// browser engine only; the TTS provider has no pitch control.
func (c SpeechConfig) Settings() playback.Settings {
	s := playback.DefaultSettings()
	s.Rate = c.Rate
	s.Pitch = c.Pitch
	s.Volume = c.Volume
	if c.TTSLanguage != "" {
		s.DefaultLang = c.TTSLanguage
	}
	return s
}

// Catalog returns the configured voices. Without an explicit catalog the
// single TTSVoice is offered under TTSLanguage.
func (c SpeechConfig) Catalog() []speechmodel.VoiceInfo {
	if len(c.Voices) == 0 {
		if c.TTSVoice == "" {
			return nil
		}
		return []speechmodel.VoiceInfo{{ID: c.TTSVoice, Lang: c.TTSLanguage, Default: true}}
	}

	out := make([]speechmodel.VoiceInfo, 0, len(c.Voices))
	for i, v := range c.Voices {
		out = append(out, speechmodel.VoiceInfo{ID: v.ID, Lang: v.Lang, Default: i == 0})
	}
	return out
}

func loadSpeechConfig(v *viper.Viper) (SpeechConfig, error) {
	timeout, err := parseInt(v, "speech_timeout")
	if err != nil {
		return SpeechConfig{}, err
	}

	rate, err := parseFloat(v, "speech_tts_speed")
	if err != nil {
		return SpeechConfig{}, err
	}

	pitch, err := parseFloat(v, "speech_tts_pitch")
	if err != nil {
		return SpeechConfig{}, err
	}

	volume, err := parseFloat(v, "speech_tts_volume")
	if err != nil {
		return SpeechConfig{}, err
	}

	chunkBytes, err := parseInt(v, "speech_chunk_bytes")
	if err != nil {
		return SpeechConfig{}, err
	}
	if chunkBytes <= 0 {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_CHUNK_BYTES value %d: must be positive", chunkBytes)
	}

	interval, err := time.ParseDuration(strings.TrimSpace(v.GetString("speech_chunk_interval")))
	if err != nil {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_CHUNK_INTERVAL value: %w", err)
	}

	voices, err := ParseVoiceCatalog(v.GetString("speech_tts_voices"))
	if err != nil {
		return SpeechConfig{}, err
	}

	appID := strings.TrimSpace(v.GetString("speech_app_id"))
	token := strings.TrimSpace(v.GetString("speech_access_token"))
	if token == "" {
		token = strings.TrimSpace(v.GetString("speech_api_key"))
	}

	return SpeechConfig{
		AppID:         appID,
		AccessToken:   token,
		Region:        strings.TrimSpace(v.GetString("speech_region")),
		BaseURL:       strings.TrimSpace(v.GetString("speech_base_url")),
		TTSVoice:      strings.TrimSpace(v.GetString("speech_tts_voice")),
		TTSLanguage:   strings.TrimSpace(v.GetString("speech_tts_language")),
		Voices:        voices,
		Rate:          rate,
		Pitch:         pitch,
		Volume:        volume,
		Timeout:       timeout,
		ChunkBytes:    chunkBytes,
		ChunkInterval: interval,
		Enabled:       appID != "" && token != "",
	}, nil
}

// ParseVoiceCatalog parses "es-ES=voice_a,es-MX=voice_b" into catalog entries.
func ParseVoiceCatalog(raw string) ([]VoiceEntry, error) {
	var entries []VoiceEntry
	for _, item := range splitList(raw) {
		lang, id, ok := strings.Cut(item, "=")
		lang = strings.TrimSpace(lang)
		id = strings.TrimSpace(id)
		if !ok || lang == "" || id == "" {
			return nil, fmt.Errorf("invalid SPEECH_TTS_VOICES entry %q: want lang=voice", item)
		}
		entries = append(entries, VoiceEntry{Lang: lang, ID: id})
	}
	return entries, nil
}

// ClientConfig is used by the terminal tools that talk to a running server.
type ClientConfig struct {
	ServerURL string
}

func loadClientConfig(v *viper.Viper) ClientConfig {
	return ClientConfig{ServerURL: strings.TrimRight(strings.TrimSpace(v.GetString("sunabot_server_url")), "/")}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloat(v *viper.Viper, key string) (float64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", strings.ToUpper(key), raw, err)
	}
	return val, nil
}

func parseInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", strings.ToUpper(key), raw, err)
	}
	return val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", strings.ToUpper(key), raw, err)
	}
	return &val, nil
}
