package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Player is a participant at a table. Seat is the engine seat index.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	Seat      int             `json:"seat"`
	Name      string          `json:"name"`
	Bot       string          `json:"bot,omitempty"` // policy name; empty for human players
	Connected bool            `json:"connected"`
	Conn      *websocket.Conn `json:"-"`
}

// IsBot reports whether the seat is driven by a policy instead of a client.
func (p *Player) IsBot() bool {
	return p.Bot != ""
}
