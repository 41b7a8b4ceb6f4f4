package speech

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunabot/sunabot/backend/internal/playback"
	speechsvc "github.com/sunabot/sunabot/backend/internal/service/speech"
)

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, synth *fakeSynth) (*websocket.Conn, *speechsvc.ConnectionManager) {
	t.Helper()
	router, conns := newTestRouter(synth)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/speech/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	first := next(t, conn)
	require.Equal(t, msgConnected, first.Type)
	return conn, conns
}

func next(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// until reads messages until match returns true and returns everything read.
func until(t *testing.T, conn *websocket.Conn, match func(received) bool) []received {
	t.Helper()
	var all []received
	for {
		msg := next(t, conn)
		all = append(all, msg)
		if match(msg) {
			return all
		}
	}
}

func affordance(t *testing.T, msg received) playback.Affordance {
	t.Helper()
	var a struct {
		Trigger string `json:"trigger"`
		State   string `json:"state"`
		Icon    string `json:"icon"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &a))
	return playback.Affordance{Trigger: playback.TriggerID(a.Trigger), Icon: a.Icon}
}

func isIdle(msg received) bool {
	return msg.Type == msgAffordance && strings.Contains(string(msg.Data), `"state":"idle"`)
}

func TestWebSocketToggleStreamsAudio(t *testing.T) {
	synth := &fakeSynth{audio: []byte("mp3-data")}
	conn, conns := dial(t, synth)
	assert.Equal(t, 1, conns.Len())

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: msgToggle, Trigger: "turn-1", Text: "<p>Tu <strong>RUC</strong> está activo.</p>"}))

	msgs := until(t, conn, isIdle)

	var (
		sawPlaying bool
		chunk      speechsvc.AudioChunk
	)
	for _, m := range msgs {
		switch m.Type {
		case msgAffordance:
			if strings.Contains(string(m.Data), `"state":"playing"`) {
				sawPlaying = true
				assert.Equal(t, playback.TriggerID("turn-1"), affordance(t, m).Trigger)
			}
		case msgAudio:
			require.NoError(t, json.Unmarshal(m.Data, &chunk))
		}
	}
	assert.True(t, sawPlaying)
	assert.Equal(t, "turn-1", chunk.Trigger)
	assert.Equal(t, []byte("mp3-data"), chunk.Data)
	assert.True(t, chunk.Final)

	got := synth.requests()
	require.Len(t, got, 1)
	assert.Equal(t, "Tu ruc está activo.", got[0].Text)
	assert.Equal(t, "turn-1", got[0].SessionID)
}

func TestWebSocketEmptyTextAlerts(t *testing.T) {
	conn, _ := dial(t, &fakeSynth{audio: []byte("x")})

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: msgToggle, Trigger: "turn-2", Text: "🔊"}))

	msg := next(t, conn)
	require.Equal(t, msgAlert, msg.Type)
	assert.Contains(t, string(msg.Data), playback.AlertNoText)
}

func TestWebSocketReportsBadRequests(t *testing.T) {
	conn, _ := dial(t, &fakeSynth{})

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "dance", Trigger: "x"}))
	msg := next(t, conn)
	require.Equal(t, msgError, msg.Type)
	assert.Contains(t, string(msg.Data), errUnknownType.Error())

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: msgRestart, Trigger: "idle-turn"}))
	msg = next(t, conn)
	require.Equal(t, msgError, msg.Type)
	assert.Contains(t, string(msg.Data), playback.ErrNotActive.Error())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = next(t, conn)
	assert.Equal(t, msgError, msg.Type)
	assert.Contains(t, string(msg.Data), "invalid message")
}

func TestWebSocketStopIsSilentWhenIdle(t *testing.T) {
	conn, _ := dial(t, &fakeSynth{})

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: msgStop, Trigger: "nothing"}))
	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "dance"}))

	msg := next(t, conn)
	assert.Equal(t, msgError, msg.Type)
}
