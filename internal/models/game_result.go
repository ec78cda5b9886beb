package models

import "github.com/google/uuid"

// GameResult is one row of game_results: a seat's final standing in a game.
type GameResult struct {
	GameID   uuid.UUID `json:"game_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Seat     int       `json:"seat"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Cards    int       `json:"cards"`
	DidWin   bool      `json:"did_win"`
}
