package speech

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
	"github.com/sunabot/sunabot/backend/internal/playback"
)

// maxUtteranceRunes bounds one synthesis request.
const maxUtteranceRunes = 4000

// AudioChunk is one slice of synthesized audio on its way to a listener.
type AudioChunk struct {
	Trigger string `json:"trigger"`
	Seq     int    `json:"seq"`
	Format  string `json:"format"`
	Data    []byte `json:"data"`
	Final   bool   `json:"final"`
}

// AudioSink plays out audio chunks, typically by forwarding them to a
// browser. A write error ends playback as interrupted.
type AudioSink interface {
	WriteAudio(ctx context.Context, chunk AudioChunk) error
}

// AudioSinkFunc adapts a function to AudioSink.
type AudioSinkFunc func(ctx context.Context, chunk AudioChunk) error

func (f AudioSinkFunc) WriteAudio(ctx context.Context, chunk AudioChunk) error {
	return f(ctx, chunk)
}

// Synthesizer produces the audio of a whole utterance.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
}

// EngineOptions tune how synthesized audio is paced out to the sink.
type EngineOptions struct {
	ChunkBytes int
	Interval   time.Duration
	Format     string
}

// Engine is a playback.Engine backed by a Synthesizer and an AudioSink.
type Engine struct {
	synth  Synthesizer
	sink   AudioSink
	voices []playback.Voice
	opts   EngineOptions
}

var _ playback.Engine = (*Engine)(nil)

// NewEngine returns an engine offering the catalog voices.
func NewEngine(synth Synthesizer, sink AudioSink, catalog []speechmodel.VoiceInfo, opts EngineOptions) *Engine {
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = 4096
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.Format == "" {
		opts.Format = "mp3"
	}

	voices := make([]playback.Voice, 0, len(catalog))
	for _, v := range catalog {
		voices = append(voices, playback.Voice{Name: v.ID, Lang: v.Lang, Default: v.Default})
	}
	return &Engine{synth: synth, sink: sink, voices: voices, opts: opts}
}

func (e *Engine) Voices(context.Context) ([]playback.Voice, error) {
	return e.voices, nil
}

// Speak synthesizes u completely, then streams it to the sink in the
// background. It returns once the first chunk is scheduled.
func (e *Engine) Speak(ctx context.Context, u playback.Utterance) (playback.Playback, error) {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return nil, &playback.EngineError{Code: playback.ErrorInvalidArgument, Err: ErrEmptyText}
	}
	if len([]rune(text)) > maxUtteranceRunes {
		return nil, &playback.EngineError{Code: playback.ErrorTextTooLong}
	}

	req := &speechmodel.TTSRequest{
		SessionID: string(u.Trigger),
		Text:      text,
		Speed:     float32(u.Rate),
		Volume:    float32(u.Volume),
		Format:    e.opts.Format,
		Language:  u.Lang,
		Raw:       true,
	}
	if u.Voice != nil {
		req.Voice = u.Voice.Name
	}

	resp, err := e.synth.Synthesize(ctx, req)
	if err != nil {
		return nil, &playback.EngineError{Code: classify(ctx, err), Err: err}
	}

	chunks := split(string(u.Trigger), resp, e.opts.ChunkBytes)
	s := &stream{done: make(chan struct{})}
	go s.run(ctx, e.sink, chunks, pace(resp, len(chunks), e.opts.Interval))
	return s, nil
}

// pace spreads the reported audio duration over the chunks so the playback
// ends when the listener hears the last of it. Responses without a duration
// use the fallback interval.
func pace(resp *speechmodel.TTSResponse, chunks int, fallback time.Duration) time.Duration {
	if resp.Duration <= 0 || chunks == 0 {
		return fallback
	}
	return time.Duration(resp.Duration) * time.Millisecond / time.Duration(chunks)
}

func classify(ctx context.Context, err error) playback.ErrorCode {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return playback.ErrorCanceled
	}
	if errors.Is(err, ErrCredentialsMissing) {
		return playback.ErrorSynthesisUnavailable
	}
	if errors.Is(err, ErrEmptyText) {
		return playback.ErrorInvalidArgument
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.ResourceMismatch() {
		return playback.ErrorVoiceUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, websocket.ErrBadHandshake) || errors.Is(err, context.DeadlineExceeded) {
		return playback.ErrorNetwork
	}
	return playback.ErrorSynthesisFailed
}

func split(trigger string, resp *speechmodel.TTSResponse, size int) []AudioChunk {
	data := resp.AudioData
	chunks := make([]AudioChunk, 0, len(data)/size+1)
	for seq := 0; len(data) > 0; seq++ {
		n := min(size, len(data))
		chunks = append(chunks, AudioChunk{Trigger: trigger, Seq: seq, Format: resp.Format, Data: data[:n]})
		data = data[n:]
	}
	if len(chunks) > 0 {
		chunks[len(chunks)-1].Final = true
	}
	return chunks
}

// stream paces chunks out to a sink and implements playback.Playback.
type stream struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
	err    error
	done   chan struct{}
}

func (s *stream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		s.paused = true
		s.resume = make(chan struct{})
	}
	return nil
}

func (s *stream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		s.paused = false
		close(s.resume)
	}
	return nil
}

func (s *stream) Done() <-chan struct{} {
	return s.done
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) run(ctx context.Context, sink AudioSink, chunks []AudioChunk, interval time.Duration) {
	err := s.play(ctx, sink, chunks, interval)

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *stream) play(ctx context.Context, sink AudioSink, chunks []AudioChunk, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for _, chunk := range chunks {
		if err := s.waitResumed(ctx); err != nil {
			return err
		}
		if err := sink.WriteAudio(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return &playback.EngineError{Code: playback.ErrorCanceled, Err: ctx.Err()}
			}
			return &playback.EngineError{Code: playback.ErrorInterrupted, Err: err}
		}

		// Each chunk stays "playing" for its share of the audio.
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return &playback.EngineError{Code: playback.ErrorCanceled, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	// A pause during the last chunk holds the playback open.
	return s.waitResumed(ctx)
}

func (s *stream) waitResumed(ctx context.Context) error {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return &playback.EngineError{Code: playback.ErrorCanceled, Err: err}
		}
		return nil
	}
	resume := s.resume
	s.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return &playback.EngineError{Code: playback.ErrorCanceled, Err: ctx.Err()}
	}
}
