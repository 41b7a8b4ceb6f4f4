package speech

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
)

func TestResourceCandidates(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		want  []string
	}{
		{name: "default voice", voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "cloned voice", voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts voice", voice: "es_female_lucia_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{name: "standard voice", voice: "es_male_standard", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		if got := resourceCandidates(tt.voice); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resourceCandidates(%q) = %v, want %v", tt.name, tt.voice, got, tt.want)
		}
	}
}

func TestSpeakerCandidates(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		fallback  string
		want      []string
	}{
		{name: "request and fallback", requested: "es_mx", fallback: "es_es", want: []string{"es_mx", "es_es"}},
		{name: "request empty", requested: " ", fallback: "es_es", want: []string{"es_es"}},
		{name: "duplicates ignored", requested: "ES_voice", fallback: "es_voice", want: []string{"ES_voice"}},
		{name: "nothing configured", want: nil},
	}

	for _, tt := range tests {
		if got := speakerCandidates(tt.requested, tt.fallback); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: speakerCandidates(%q, %q) = %v, want %v", tt.name, tt.requested, tt.fallback, got, tt.want)
		}
	}
}

// fakeProvider speaks the provider's binary protocol. Requests under a
// rejected resource ID fail with a resource mismatch.
type fakeProvider struct {
	reject func(resource string) bool

	mu        sync.Mutex
	resources []string
	requests  []ttsRequest
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	f, err := decodeFrame(bytes.NewReader(data))
	if err != nil {
		return
	}
	var req ttsRequest
	_ = json.Unmarshal(f.payload, &req)

	resource := r.Header.Get("X-Api-Resource-Id")
	p.mu.Lock()
	p.resources = append(p.resources, resource)
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.reject != nil && p.reject(resource) {
		_ = conn.WriteMessage(websocket.BinaryMessage, errorFrame(45000000, `{"error":"resource ID is mismatched with speaker related resource"}`))
		return
	}

	audio := &frame{
		header:  header{version: protocolVersion, size: 1, kind: msgAudioOnlyResponse, flags: flagPositiveSequence},
		payload: []byte("ID3-part-1|"),
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, audio.encode())

	tail, _ := json.Marshal(map[string]any{
		"reqid":    "req-42",
		"code":     0,
		"data":     base64.StdEncoding.EncodeToString([]byte("part-2")),
		"addition": map[string]string{"duration": "1500"},
	})
	packed, _ := compress(tail, compressionGzip)
	final := &frame{
		header:  header{version: protocolVersion, size: 1, kind: msgFullServerResponse, flags: flagWithEvent, serialization: serializationJSON, compression: compressionGzip},
		event:   eventSessionFinished,
		payload: packed,
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, final.encode())
}

func (p *fakeProvider) seen() ([]string, []ttsRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resources...), append([]ttsRequest(nil), p.requests...)
}

func newProviderClient(t *testing.T, p *fakeProvider) *TTSClient {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	return NewTTSClient(&speechmodel.SpeechConfig{
		AppID:       "app",
		AccessToken: "token",
		BaseURL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		TTSVoice:    "es_female_default",
		TTSSpeed:    0.85,
		TTSVolume:   0.9,
		TTSLanguage: "es-ES",
	})
}

func TestSynthesizeCollectsAudio(t *testing.T) {
	provider := &fakeProvider{}
	client := newProviderClient(t, provider)

	resp, err := client.Synthesize(testContext(t), &speechmodel.TTSRequest{SessionID: "m1", Text: "Hola"})
	require.NoError(t, err)

	assert.Equal(t, "ID3-part-1|part-2", string(resp.AudioData))
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, int64(1500), resp.Duration)
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, "m1", resp.SessionID)
	assert.Equal(t, "es_female_default", resp.Voice)

	_, requests := provider.seen()
	require.Len(t, requests, 1)
	sent := requests[0]
	assert.Equal(t, "Hola", sent.ReqParams.Text)
	assert.Equal(t, "es-ES", sent.ReqParams.Language)
	assert.InDelta(t, 0.85, sent.ReqParams.AudioParams.SpeedRatio, 1e-6)
	assert.Equal(t, "m1", sent.User.UID)
}

func TestSynthesizeFallsBackOnResourceMismatch(t *testing.T) {
	provider := &fakeProvider{reject: func(r string) bool { return r == "seed-tts-2.0" }}
	client := newProviderClient(t, provider)

	resp, err := client.Synthesize(testContext(t), &speechmodel.TTSRequest{Text: "Hola", Voice: "es_male_lucas_bigtts"})
	require.NoError(t, err)

	assert.Equal(t, "es_male_lucas_bigtts", resp.Voice)
	resources, _ := provider.seen()
	assert.Equal(t, []string{"seed-tts-2.0", "volc.service_type.10029"}, resources)
}

func TestSynthesizeReportsProviderErrors(t *testing.T) {
	provider := &fakeProvider{reject: func(string) bool { return true }}
	client := newProviderClient(t, provider)
	client.config.TTSVoice = "S_cloned"

	_, err := client.Synthesize(testContext(t), &speechmodel.TTSRequest{Text: "Hola", Voice: "es_standard"})
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.True(t, provErr.ResourceMismatch())

	resources, _ := provider.seen()
	assert.Equal(t, []string{"volc.service_type.10029", "seed-tts-2.0", "volc.megatts.default"}, resources)
}

func TestSynthesizeValidatesInput(t *testing.T) {
	client := NewTTSClient(&speechmodel.SpeechConfig{})

	_, err := client.Synthesize(testContext(t), &speechmodel.TTSRequest{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = client.Synthesize(testContext(t), &speechmodel.TTSRequest{Text: "Hola"})
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}
