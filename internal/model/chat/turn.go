package chat

import "time"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one entry of the conversation. Turns are immutable once appended.
type Turn struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	HTML       string    `json:"html"`
	Category   string    `json:"category,omitempty"`
	Quality    string    `json:"quality,omitempty"`
	Incomplete bool      `json:"incomplete,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
