package models

// GameAction captures a player's in-game move as it arrives over the wire.
type GameAction struct {
	ActionType string `json:"type"`
	Card       string `json:"card,omitempty"`
	Color      string `json:"color,omitempty"`
}
