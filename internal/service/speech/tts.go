package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
)

const defaultTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

var (
	ErrEmptyText  = errors.New("speech: text is empty")
	ErrEmptyAudio = errors.New("speech: provider returned no audio")
)

// ProviderError is a failure reported by the TTS provider itself.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts provider error %d: %s", e.Code, e.Message)
}

// ResourceMismatch reports whether the provider rejected the speaker for the
// resource ID it was requested under.
func (e *ProviderError) ResourceMismatch() bool {
	return strings.Contains(e.Message, "resource ID is mismatched with speaker related resource")
}

// TTSClient synthesizes speech over the Volcengine streaming websocket API.
type TTSClient struct {
	config *speechmodel.SpeechConfig
	url    string
	dialer *websocket.Dialer
	logger zerolog.Logger
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

// NewTTSClient returns a client for cfg. cfg.BaseURL overrides the provider
// endpoint.
func NewTTSClient(cfg *speechmodel.SpeechConfig) *TTSClient {
	url := defaultTTSURL
	if cfg != nil && strings.TrimSpace(cfg.BaseURL) != "" {
		url = strings.TrimSpace(cfg.BaseURL)
	}
	return &TTSClient{
		config: cfg,
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		logger: log.With().Str("component", "tts").Logger(),
	}
}

// Synthesize turns req.Text into audio. The requested voice is tried first,
// then the configured default, each under every compatible resource ID.
func (c *TTSClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.Timeout)*time.Second)
		defer cancel()
	}

	format := strings.TrimSpace(req.Format)
	if format == "" || format == "wav" {
		format = "mp3"
	}

	speakers := speakerCandidates(req.Voice, c.config.TTSVoice)
	if len(speakers) == 0 {
		return nil, fmt.Errorf("synthesize: no voice requested and SPEECH_TTS_VOICE unset")
	}

	var mismatch error
	for _, speaker := range speakers {
		for i, resource := range resourceCandidates(speaker) {
			resp, err := c.synthesizeWith(ctx, req, appID, token, speaker, format, resource)
			if err == nil {
				if i > 0 {
					c.logger.Info().Str("voice", speaker).Str("resource", resource).Msg("fallback resource succeeded")
				}
				return resp, nil
			}

			var provErr *ProviderError
			if errors.As(err, &provErr) && provErr.ResourceMismatch() {
				c.logger.Debug().Err(err).Str("voice", speaker).Str("resource", resource).Msg("resource mismatch")
				mismatch = err
				continue
			}
			return nil, err
		}
	}
	return nil, fmt.Errorf("synthesize with voices %v: %w", speakers, mismatch)
}

func (c *TTSClient) synthesizeWith(ctx context.Context, req *speechmodel.TTSRequest, appID, token, speaker, format, resource string) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resource)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial tts websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if resp != nil {
		if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
			c.logger.Debug().Str("logid", logID).Msg("tts connected")
		}
	}

	body, uid := c.buildRequest(req, speaker, format)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, newClientRequest(payload, compressionNone).encode()); err != nil {
		return nil, fmt.Errorf("send tts request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("read tts response: %w", err)
		}

		f, err := decodeFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode tts frame: %w", err)
		}
		content, err := decompress(f.payload, f.header.compression)
		if err != nil {
			return nil, fmt.Errorf("decompress tts frame: %w", err)
		}

		switch f.header.kind {
		case msgError:
			return nil, &ProviderError{Code: int(f.errorCode), Message: string(content)}

		case msgAudioOnlyResponse:
			audio.Write(content)

		case msgFullServerResponse:
			var msg ttsServerMessage
			if len(content) > 0 {
				if err := json.Unmarshal(content, &msg); err != nil {
					c.logger.Warn().Err(err).Msg("unreadable tts payload")
				}
			}
			if msg.Code != 0 && msg.Code != 3000 {
				return nil, &ProviderError{Code: msg.Code, Message: msg.Message}
			}
			if msg.ReqID != "" {
				reqID = msg.ReqID
			}
			if msg.Addition.Duration != "" {
				if ms, err := strconv.ParseInt(msg.Addition.Duration, 10, 64); err == nil {
					duration = ms
				}
			}
			if msg.Data != "" {
				chunk, err := base64.StdEncoding.DecodeString(msg.Data)
				if err != nil {
					return nil, fmt.Errorf("decode audio chunk: %w", err)
				}
				audio.Write(chunk)
			}

			finished := (f.hasEvent() && f.event == eventSessionFinished) || f.last() || msg.Sequence < 0
			if !finished {
				continue
			}
			if audio.Len() == 0 {
				return nil, ErrEmptyAudio
			}
			if reqID == "" {
				reqID = connectID
			}
			sessionID := strings.TrimSpace(req.SessionID)
			if sessionID == "" {
				sessionID = uid
			}
			return &speechmodel.TTSResponse{
				SessionID: sessionID,
				AudioData: audio.Bytes(),
				Duration:  duration,
				Format:    format,
				Voice:     speaker,
				RequestID: reqID,
				CreatedAt: time.Now(),
			}, nil

		default:
			c.logger.Debug().Uint8("type", uint8(f.header.kind)).Msg("ignoring tts frame")
		}
	}
}

func (c *TTSClient) buildRequest(req *speechmodel.TTSRequest, speaker, format string) (*ttsRequest, string) {
	body := &ttsRequest{}

	uid := strings.TrimSpace(req.SessionID)
	if uid == "" {
		uid = uuid.NewString()
	}
	body.User.UID = uid

	body.ReqParams.Speaker = speaker
	body.ReqParams.Text = req.Text
	body.ReqParams.AudioParams.Format = format
	body.ReqParams.AudioParams.SampleRate = 24000

	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1 {
		body.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1 {
		body.ReqParams.AudioParams.VolumeRatio = volume
	}

	body.ReqParams.Language = strings.TrimSpace(req.Language)
	if body.ReqParams.Language == "" {
		body.ReqParams.Language = strings.TrimSpace(c.config.TTSLanguage)
	}

	// Markdown is stripped before synthesis, so the provider filter stays on
	// only as a safety net.
	body.ReqParams.Additions = `{"disable_markdown_filter":false}`

	return body, uid
}

// resourceCandidates lists the resource IDs to try for voice, most likely
// first.
func resourceCandidates(voice string) []string {
	const (
		standard = "volc.service_type.10029"
		cloned   = "volc.megatts.default"
		seed     = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{cloned}
	}

	lower := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(lower, hint) {
			return []string{seed, standard}
		}
	}
	return []string{standard, seed}
}

// speakerCandidates returns requested then fallback, trimmed and without
// case-insensitive duplicates.
func speakerCandidates(requested, fallback string) []string {
	var out []string
	for _, s := range []string{requested, fallback} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if strings.EqualFold(existing, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
