package speech

import "time"

// TTSResponse carries the synthesized audio of one utterance.
type TTSResponse struct {
	SessionID string    `json:"sessionId"`
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration"` // milliseconds
	Format    string    `json:"format"`
	Voice     string    `json:"voice,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoiceInfo describes one voice offered to clients.
type VoiceInfo struct {
	ID      string `json:"id"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}
