package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/playback"
	speechsvc "github.com/sunabot/sunabot/backend/internal/service/speech"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Inbound message types.
const (
	msgToggle  = "toggle"
	msgRestart = "restart"
	msgStop    = "stop"
	msgStopAll = "stop_all"
)

// Outbound message types.
const (
	msgConnected  = "connected"
	msgAffordance = "affordance"
	msgAlert      = "alert"
	msgAudio      = "audio"
	msgError      = "error"
)

// WebSocketHandler streams read-aloud audio to the widget. Each connection
// owns one playback controller.
type WebSocketHandler struct {
	speechSvc SpeechService
	conns     *speechsvc.ConnectionManager
	upgrader  websocket.Upgrader
	opts      Options
	logger    zerolog.Logger
}

// NewWebSocketHandler creates the websocket handler. A nil conns gets a
// private manager.
func NewWebSocketHandler(speechSvc SpeechService, conns *speechsvc.ConnectionManager, opts Options) *WebSocketHandler {
	if conns == nil {
		conns = speechsvc.NewConnectionManager()
	}
	return &WebSocketHandler{
		speechSvc: speechSvc,
		conns:     conns,
		opts:      opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
		},
		logger: log.With().Str("component", "websocket").Logger(),
	}
}

// RegisterWebSocketRoutes mounts the playback socket.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type    string `json:"type"`
	Trigger string `json:"trigger"`
	Text    string `json:"text,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// connWriter serializes writes; gorilla connections allow one writer.
type connWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger zerolog.Logger
}

func (w *connWriter) send(msgType string, data any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := w.conn.WriteJSON(outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()})
	if err != nil {
		w.logger.Debug().Err(err).Str("type", msgType).Msg("write failed")
	}
	return err
}

func (w *connWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	logger := h.logger.With().Str("conn", id).Logger()
	h.conns.Add(id, conn)
	defer h.conns.Remove(id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &connWriter{conn: conn, logger: logger}
	sink := speechsvc.AudioSinkFunc(func(_ context.Context, chunk speechsvc.AudioChunk) error {
		return out.send(msgAudio, chunk)
	})
	controller := playback.NewController(
		h.speechSvc.NewEngine(sink, h.opts.Engine),
		playback.ObserverFuncs{
			OnAffordance: func(a playback.Affordance) { _ = out.send(msgAffordance, a) },
			OnAlert: func(message string) {
				_ = out.send(msgAlert, map[string]string{"message": message})
			},
		},
		playback.WithSettings(h.opts.Settings),
		playback.WithLogger(logger),
	)
	defer func() {
		if err := controller.Close(); err != nil {
			logger.Warn().Err(err).Msg("close playback")
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go h.pingLoop(ctx, out)

	logger.Info().Msg("playback connection opened")
	_ = out.send(msgConnected, map[string]any{"id": id, "ready": h.speechSvc.Ready()})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				_ = out.send(msgError, map[string]string{"message": "invalid message"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			logger.Info().Msg("playback connection closed")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if err := h.handleMessage(ctx, controller, &msg); err != nil {
			_ = out.send(msgError, map[string]string{"message": err.Error(), "trigger": msg.Trigger})
		}
	}
}

var errUnknownType = errors.New("unknown message type")

// handleMessage applies one control message. ErrNoText is reported to the
// client as an alert by the controller itself.
func (h *WebSocketHandler) handleMessage(ctx context.Context, c *playback.Controller, msg *inboundMessage) error {
	trigger := playback.TriggerID(msg.Trigger)
	var err error
	switch msg.Type {
	case msgToggle:
		err = c.Toggle(ctx, trigger, msg.Text)
	case msgRestart:
		err = c.Restart(ctx, trigger)
	case msgStop:
		err = c.Stop(ctx, trigger)
	case msgStopAll:
		err = c.StopAll(ctx)
	default:
		return errUnknownType
	}
	if errors.Is(err, playback.ErrNoText) {
		return nil
	}
	return err
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, out *connWriter) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}
