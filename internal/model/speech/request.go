package speech

// TTSRequest asks for one utterance to be synthesized.
type TTSRequest struct {
	SessionID string  `json:"sessionId"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Speed     float32 `json:"speed"`  // 0.5-2.0
	Volume    float32 `json:"volume"` // 0.0-1.0
	Format    string  `json:"format"` // mp3, pcm, ogg_opus
	Language  string  `json:"language"`
	// Raw skips text normalization; the text is sent to the provider as is.
	Raw bool `json:"raw,omitempty"`
}
